package publishers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-publisher/internal/model"
)

func TestLinkedInPublishIsUnsupported(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	}))
	pub := env.publisher(t, model.PlatformLinkedIn, model.Credential{})
	ctx := context.Background()

	res, err := pub.Publish(ctx, model.PostRequest{Content: "hello network"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.ErrorMessage)

	assert.True(t, IsUnsupported(pub.Delete(ctx, "urn:li:share:1")))
	_, err = pub.Metrics(ctx, "urn:li:share:1")
	assert.True(t, IsUnsupported(err))

	comments, err := pub.Comments(ctx, "urn:li:share:1", 10)
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestLinkedInAccountInfo(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/userinfo", r.URL.Path)
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, `{"sub":"abc123","name":"Ada Lovelace","email":"ada@example.com","picture":"https://media.licdn.com/a.jpg"}`)
	}))
	pub := env.publisher(t, model.PlatformLinkedIn, model.Credential{})

	info, err := pub.AccountInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc123", info["id"])
	assert.Equal(t, "Ada Lovelace", info["name"])

	ok, err := pub.ValidateCredentials(context.Background())
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestLinkedInInvalidToken(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"serviceErrorCode":65600,"message":"Invalid access token","status":401}`)
	}))
	env.tokens.fresh = ""
	pub := env.publisher(t, model.PlatformLinkedIn, model.Credential{})

	ok, err := pub.ValidateCredentials(context.Background())
	assert.NoError(t, err)
	assert.False(t, ok)

	_, err = pub.AccountInfo(context.Background())
	assert.True(t, model.IsAuth(err))
}
