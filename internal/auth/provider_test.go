package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-publisher/internal/model"
)

type countingRefresher struct {
	calls   atomic.Int32
	release chan struct{}
}

func (r *countingRefresher) Refresh(ctx context.Context, cred model.Credential) (model.Credential, error) {
	n := r.calls.Add(1)
	if r.release != nil {
		<-r.release
	}
	cred.AccessToken = "fresh-" + string(rune('0'+n))
	cred.ExpiresAt = time.Now().Add(time.Hour)
	return cred, nil
}

func expiredCred() model.Credential {
	return model.Credential{
		AccountID:    "acct-1",
		Platform:     model.PlatformTwitter,
		AccessToken:  "stale",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}
}

func TestTokenReturnsValidCredential(t *testing.T) {
	cred := expiredCred()
	cred.ExpiresAt = time.Now().Add(time.Hour)
	r := &countingRefresher{}
	p := NewProvider(NewMemoryStore(cred), map[model.Platform]Refresher{model.PlatformTwitter: r}, ProviderOptions{})

	got, err := p.Token(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "stale", got.AccessToken)
	assert.Equal(t, int32(0), r.calls.Load())
}

func TestConcurrentRefreshIsSingleFlight(t *testing.T) {
	store := NewMemoryStore(expiredCred())
	r := &countingRefresher{release: make(chan struct{})}
	p := NewProvider(store, map[model.Platform]Refresher{model.PlatformTwitter: r}, ProviderOptions{})

	var wg sync.WaitGroup
	results := make([]model.Credential, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = p.Token(context.Background(), "acct-1")
		}(i)
	}

	// Let both callers reach the refresh before it completes.
	time.Sleep(50 * time.Millisecond)
	close(r.release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, int32(1), r.calls.Load())
	assert.Equal(t, "fresh-1", results[0].AccessToken)
	assert.Equal(t, "fresh-1", results[1].AccessToken)

	saved, err := store.Load(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "fresh-1", saved.AccessToken)
	assert.Equal(t, "refresh", saved.RefreshToken)
}

func TestForceRefreshSkipsWhenTokenAlreadyReplaced(t *testing.T) {
	cred := expiredCred()
	cred.ExpiresAt = time.Time{}
	r := &countingRefresher{}
	p := NewProvider(NewMemoryStore(cred), map[model.Platform]Refresher{model.PlatformTwitter: r}, ProviderOptions{})

	first, err := p.ForceRefresh(context.Background(), "acct-1", "stale")
	require.NoError(t, err)
	second, err := p.ForceRefresh(context.Background(), "acct-1", "stale")
	require.NoError(t, err)

	assert.Equal(t, int32(1), r.calls.Load())
	assert.Equal(t, first.AccessToken, second.AccessToken)
}

func TestRefreshWithoutRefresherIsAuthError(t *testing.T) {
	p := NewProvider(NewMemoryStore(expiredCred()), nil, ProviderOptions{})
	_, err := p.Token(context.Background(), "acct-1")
	assert.True(t, model.IsAuth(err))
}

func TestTokenInsideSkewWithoutRefresher(t *testing.T) {
	cred := expiredCred()
	cred.ExpiresAt = time.Now().Add(30 * time.Second)
	p := NewProvider(NewMemoryStore(cred), nil, ProviderOptions{Skew: time.Minute})

	got, err := p.Token(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "stale", got.AccessToken)
}

func TestTokenInsideSkewIsRefreshed(t *testing.T) {
	cred := expiredCred()
	cred.ExpiresAt = time.Now().Add(30 * time.Second)
	r := &countingRefresher{}
	p := NewProvider(NewMemoryStore(cred), map[model.Platform]Refresher{model.PlatformTwitter: r}, ProviderOptions{Skew: time.Minute})

	got, err := p.Token(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "fresh-1", got.AccessToken)
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestUnknownAccount(t *testing.T) {
	p := NewProvider(NewMemoryStore(), nil, ProviderOptions{})
	_, err := p.Token(context.Background(), "missing")
	assert.Error(t, err)
}

func TestStaticProvider(t *testing.T) {
	s := Static(model.Credential{AccessToken: "tok", Platform: model.PlatformFacebook})
	got, err := s.Token(context.Background(), "any")
	require.NoError(t, err)
	assert.Equal(t, "tok", got.AccessToken)

	_, err = s.ForceRefresh(context.Background(), "any", "tok")
	assert.True(t, model.IsAuth(err))
}
