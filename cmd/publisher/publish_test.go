package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidwall/gjson"

	"social-publisher/internal/auth"
	"social-publisher/internal/model"
)

func TestParseSettings(t *testing.T) {
	got, err := parseSettings([]string{"twitter.thread=true", "x.poll_options=a,b", "youtube.privacy=unlisted"})
	require.NoError(t, err)
	assert.True(t, got[model.PlatformTwitter].Bool("thread", false))
	assert.Equal(t, []string{"a", "b"}, got[model.PlatformTwitter].Strings("poll_options"))
	assert.Equal(t, "unlisted", got[model.PlatformYouTube].String("privacy", ""))

	for _, bad := range []string{"thread=true", "twitter.thread", "twitter.=1", "myspace.mood=happy"} {
		_, err := parseSettings([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestParsePairs(t *testing.T) {
	got, err := parsePairs([]string{"link=https://example.com/?a=b"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/?a=b", got["link"])

	_, err = parsePairs([]string{"=x"})
	assert.Error(t, err)
}

func TestListAccounts(t *testing.T) {
	store := auth.NewFileStore(filepath.Join(t.TempDir(), "credentials.json"))
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, model.Credential{
		AccountID:    "yt-main",
		Platform:     model.PlatformYouTube,
		AccessToken:  "ya29.secret",
		RefreshToken: "1//refresh",
		ExpiresAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}))
	require.NoError(t, store.Save(ctx, model.Credential{
		AccountID:   "x-main",
		Platform:    model.PlatformTwitter,
		Username:    "jack",
		AccessToken: "bearer",
		Legacy:      &model.LegacyCredential{Token: "t", Secret: "s"},
	}))

	var out bytes.Buffer
	require.NoError(t, listAccounts(&out, store))
	assert.NotContains(t, out.String(), "ya29.secret")
	assert.NotContains(t, out.String(), "1//refresh")

	list := gjson.Parse(out.String())
	require.Len(t, list.Array(), 2)
	assert.Equal(t, "yt-main", list.Get("0.account_id").String())
	assert.Equal(t, "2026-01-02T03:04:05Z", list.Get("0.expires_at").String())
	assert.True(t, list.Get("0.refreshable").Bool())
	assert.Equal(t, "jack", list.Get("1.username").String())
	assert.True(t, list.Get("1.oauth1").Bool())
	assert.False(t, list.Get("1.expires_at").Exists())
}
