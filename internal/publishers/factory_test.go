package publishers

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-publisher/internal/model"
)

func TestFactoryCreatesEveryPlatform(t *testing.T) {
	env := newTestEnv(t, http.NotFoundHandler())
	f := env.factory(nil)

	for _, p := range model.Platforms {
		pub, err := f.Create(string(p), model.Credential{AccountID: "a"})
		require.NoError(t, err, p)
		assert.Equal(t, p, pub.Platform())
	}

	pub, err := f.Create(" X ", model.Credential{})
	require.NoError(t, err)
	assert.Equal(t, model.PlatformTwitter, pub.Platform())
}

func TestFactoryUnknownPlatform(t *testing.T) {
	env := newTestEnv(t, http.NotFoundHandler())

	_, err := env.factory(nil).Create("myspace", model.Credential{})
	var upe *model.UnsupportedPlatformError
	require.ErrorAs(t, err, &upe)
	assert.Equal(t, "myspace", upe.Platform)
}

func TestFactoryWithoutTokenProviderUsesCredential(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "static-token", r.URL.Query().Get("access_token"))
		writeJSON(w, http.StatusOK, `{"id":"page-1","name":"Page"}`)
	}))
	f := NewFactory(Deps{Config: env.cfg})

	pub, err := f.Create("facebook", model.Credential{AccountID: "a", AccessToken: "static-token"})
	require.NoError(t, err)
	ok, err := pub.ValidateCredentials(context.Background())
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestManagerPublishToSelected(t *testing.T) {
	var posts atomic.Int32
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		writeJSON(w, http.StatusOK, `{"id":"post-1"}`)
	}))
	m := NewManager(env.factory(nil), 2, nil)

	targets := []Target{
		{Platform: "facebook", Credential: model.Credential{AccountID: "fb-1", PlatformUserID: "page-1"}},
		{Platform: "facebook", Credential: model.Credential{AccountID: "fb-1", PlatformUserID: "page-1"}},
		{Platform: "facebook", Credential: model.Credential{AccountID: "fb-2", PlatformUserID: "page-2"}},
		{Platform: "myspace"},
	}
	out := m.PublishToSelected(context.Background(), targets, model.PostRequest{Content: "hi"})

	require.Len(t, out, 3)
	assert.True(t, out["fb-1"].Result.Success)
	assert.True(t, out["fb-2"].Result.Success)
	assert.Equal(t, int32(2), posts.Load(), "duplicate targets publish once")

	bad := out["myspace"]
	require.NotNil(t, bad)
	assert.False(t, bad.Result.Success)
	var upe *model.UnsupportedPlatformError
	assert.ErrorAs(t, bad.Err, &upe)
}

func TestManagerSupported(t *testing.T) {
	m := NewManager(NewFactory(Deps{}), 0, nil)
	assert.ElementsMatch(t, []string{"facebook", "instagram", "twitter", "tiktok", "youtube", "linkedin"}, m.Supported())
}
