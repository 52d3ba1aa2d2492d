package publishers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"social-publisher/internal"
	"social-publisher/internal/media"
	"social-publisher/internal/model"
)

// fakeTokens serves token and swaps in fresh on ForceRefresh.
type fakeTokens struct {
	mu     sync.Mutex
	token  string
	fresh  string
	forced int
}

func (f *fakeTokens) Token(_ context.Context, accountID string) (model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return model.Credential{AccountID: accountID, AccessToken: f.token}, nil
}

func (f *fakeTokens) ForceRefresh(_ context.Context, accountID, _ string) (model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forced++
	if f.fresh == "" {
		return model.Credential{}, &model.AuthError{Message: "no refresh token"}
	}
	f.token = f.fresh
	return model.Credential{AccountID: accountID, AccessToken: f.token}, nil
}

func (f *fakeTokens) refreshes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forced
}

func testConfig(t *testing.T, baseURL string) internal.Config {
	cfg := internal.Default()
	cfg.FacebookGraphURL = baseURL
	cfg.TwitterAPIURL = baseURL
	cfg.TwitterUploadURL = baseURL
	cfg.TikTokAPIURL = baseURL
	cfg.YouTubeAPIURL = baseURL
	cfg.LinkedInAPIURL = baseURL
	cfg.PollInterval = time.Millisecond
	cfg.PollMaxInterval = 5 * time.Millisecond
	cfg.PollMaxAttempts = 5
	cfg.ChunkBaseDelay = time.Millisecond
	cfg.ThreadDelay = 0
	cfg.RequestsPerSec = 0
	cfg.TempDir = t.TempDir()
	return cfg
}

type testEnv struct {
	server *httptest.Server
	tokens *fakeTokens
	cfg    internal.Config
}

func newTestEnv(t *testing.T, handler http.Handler) *testEnv {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &testEnv{
		server: server,
		tokens: &fakeTokens{token: "token-1", fresh: "token-2"},
		cfg:    testConfig(t, server.URL),
	}
}

func (e *testEnv) factory(prober media.Prober) *Factory {
	return NewFactory(Deps{Config: e.cfg, Tokens: e.tokens, Prober: prober})
}

func (e *testEnv) publisher(t *testing.T, p model.Platform, cred model.Credential) Publisher {
	t.Helper()
	if cred.AccountID == "" {
		cred.AccountID = "acct-1"
	}
	pub, err := e.factory(nil).CreateFor(p, cred)
	require.NoError(t, err)
	return pub
}

// mp4Header is enough of an ISO BMFF header for content sniffing to report video/mp4.
var mp4Header = []byte{0, 0, 0, 0x18, 'f', 't', 'y', 'p', 'm', 'p', '4', '2', 0, 0, 0, 0, 'm', 'p', '4', '2', 'i', 's', 'o', 'm'}

func writeVideo(t *testing.T, size int) string {
	t.Helper()
	data := make([]byte, size)
	copy(data, mp4Header)
	for i := len(mp4Header); i < size; i++ {
		data[i] = byte(i % 251)
	}
	p := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func writeImage(t *testing.T) string {
	t.Helper()
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R', 0, 0, 0, 1, 0, 0, 0, 1, 8, 2, 0, 0, 0}
	p := filepath.Join(t.TempDir(), "photo.png")
	require.NoError(t, os.WriteFile(p, png, 0o644))
	return p
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}
