package model

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlatform(t *testing.T) {
	for in, want := range map[string]Platform{
		"X":         PlatformTwitter,
		" x ":       PlatformTwitter,
		"Twitter":   PlatformTwitter,
		"YOUTUBE":   PlatformYouTube,
		"instagram": PlatformInstagram,
	} {
		got, err := ParsePlatform(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParsePlatform("myspace")
	var upe *UnsupportedPlatformError
	require.True(t, errors.As(err, &upe))
	assert.Equal(t, "myspace", upe.Platform)
}

func TestSucceededWithoutIDFails(t *testing.T) {
	raw := map[string]any{"status": "ok"}
	res := Succeeded("", "https://example.com/p", raw)
	assert.False(t, res.Success)
	assert.Empty(t, res.PostID)
	assert.Empty(t, res.PostURL)
	assert.NotEmpty(t, res.ErrorMessage)
	assert.Equal(t, raw, res.RawData)

	res = Succeeded("42", "https://example.com/p/42", nil)
	assert.True(t, res.Success)
	assert.Empty(t, res.ErrorMessage)

	assert.Equal(t, "unknown error", Failed("", nil).ErrorMessage)
}

func TestPostRequestMedia(t *testing.T) {
	uri, err := PostRequest{}.Media(PlatformFacebook)
	require.NoError(t, err)
	assert.Empty(t, uri)

	uri, err = PostRequest{MediaPaths: []string{" /tmp/a.jpg "}}.Media(PlatformFacebook)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/a.jpg", uri)

	_, err = PostRequest{MediaPaths: []string{"a.jpg", "b.jpg"}}.Media(PlatformFacebook)
	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))

	assert.NotNil(t, PostRequest{}.Settings(PlatformTikTok))
}

func TestCredentialExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.False(t, Credential{}.Expired(now, time.Hour))

	c := Credential{ExpiresAt: now.Add(30 * time.Second)}
	assert.False(t, c.Expired(now, 0))
	assert.True(t, c.Expired(now, time.Minute))
	assert.True(t, Credential{ExpiresAt: now}.Expired(now, 0))
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(&ValidationError{Reason: "x"}))
	assert.True(t, IsPermanent(fmt.Errorf("wrap: %w", &AuthError{Message: "expired"})))
	assert.True(t, IsPermanent(&APIError{Status: 400}))
	assert.False(t, IsPermanent(&APIError{Status: 429}))
	assert.False(t, IsPermanent(&APIError{Status: 503}))
	assert.False(t, IsPermanent(&TransientTransportError{Err: errors.New("reset")}))

	te := &ThreadError{Index: 2, PublishedIDs: []string{"1", "2"}, Err: &NotFoundError{}}
	assert.True(t, IsNotFound(te))
	assert.Contains(t, te.Error(), "[1,2]")
}
