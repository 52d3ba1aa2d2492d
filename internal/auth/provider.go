// Package auth hands out currently valid account credentials and signs outgoing platform requests.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"social-publisher/internal/logging"
	"social-publisher/internal/model"
)

// Store persists credentials. It is owned by the caller (database, vault...).
type Store interface {
	Load(ctx context.Context, accountID string) (model.Credential, error)
	Save(ctx context.Context, cred model.Credential) error
}

// Refresher exchanges a credential for a fresh access token at the platform.
type Refresher interface {
	Refresh(ctx context.Context, cred model.Credential) (model.Credential, error)
}

// TokenProvider is what adapters use before every authenticated call.
type TokenProvider interface {
	// Token returns a credential whose access token is not expired, refreshing when needed.
	Token(ctx context.Context, accountID string) (model.Credential, error)
	// ForceRefresh refreshes after the platform rejected staleToken. When another caller already replaced
	// staleToken the cached credential is returned without a network call.
	ForceRefresh(ctx context.Context, accountID, staleToken string) (model.Credential, error)
}

type ProviderOptions struct {
	CacheSize int
	CacheTTL  time.Duration
	Skew      time.Duration
	Log       *logging.Logger
	Now       func() time.Time
}

// Provider caches credentials per account and serializes refreshes per account key.
type Provider struct {
	store      Store
	refreshers map[model.Platform]Refresher
	cache      *expirable.LRU[string, model.Credential]
	group      singleflight.Group
	skew       time.Duration
	now        func() time.Time
	log        *logging.Logger
}

func NewProvider(store Store, refreshers map[model.Platform]Refresher, opts ProviderOptions) *Provider {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1024
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = logging.Nop()
	}
	return &Provider{
		store:      store,
		refreshers: refreshers,
		cache:      expirable.NewLRU[string, model.Credential](opts.CacheSize, nil, opts.CacheTTL),
		skew:       opts.Skew,
		now:        opts.Now,
		log:        opts.Log,
	}
}

func (p *Provider) Token(ctx context.Context, accountID string) (model.Credential, error) {
	cred, err := p.current(ctx, accountID)
	if err != nil {
		return model.Credential{}, err
	}
	if !cred.Expired(p.now(), p.skew) {
		return cred, nil
	}
	if p.refreshers[cred.Platform] == nil && !cred.Expired(p.now(), 0) {
		// inside the skew window and nothing can refresh it: use what is left
		return cred, nil
	}
	p.log.Debugf("auth: token expired account=%s platform=%s", accountID, cred.Platform)
	return p.refresh(ctx, accountID, cred.AccessToken)
}

func (p *Provider) ForceRefresh(ctx context.Context, accountID, staleToken string) (model.Credential, error) {
	return p.refresh(ctx, accountID, staleToken)
}

// Forget drops the cached credential, e.g. after the account was disconnected.
func (p *Provider) Forget(accountID string) {
	p.cache.Remove(accountID)
}

func (p *Provider) current(ctx context.Context, accountID string) (model.Credential, error) {
	if cred, ok := p.cache.Get(accountID); ok {
		return cred, nil
	}
	cred, err := p.store.Load(ctx, accountID)
	if err != nil {
		return model.Credential{}, fmt.Errorf("load credential %s: %w", accountID, err)
	}
	if cred.AccountID == "" {
		cred.AccountID = accountID
	}
	p.cache.Add(accountID, cred)
	return cred, nil
}

func (p *Provider) refresh(ctx context.Context, accountID, staleToken string) (model.Credential, error) {
	v, err, shared := p.group.Do(accountID, func() (any, error) {
		cred, err := p.current(ctx, accountID)
		if err != nil {
			return model.Credential{}, err
		}
		if cred.AccessToken != staleToken && !cred.Expired(p.now(), p.skew) {
			return cred, nil
		}

		r, ok := p.refreshers[cred.Platform]
		if !ok || r == nil {
			return model.Credential{}, &model.AuthError{Platform: cred.Platform, Message: "token cannot be refreshed"}
		}

		fresh, err := r.Refresh(ctx, cred)
		if err != nil {
			return model.Credential{}, fmt.Errorf("refresh token: %w", err)
		}
		fresh = merge(cred, fresh)

		if err := p.store.Save(ctx, fresh); err != nil {
			p.log.Errorf("auth: persist refreshed credential account=%s: %v", accountID, err)
		}
		p.cache.Add(accountID, fresh)
		p.log.Infof("auth: refreshed token account=%s platform=%s", accountID, cred.Platform)
		return fresh, nil
	})
	if err != nil {
		return model.Credential{}, err
	}
	if shared {
		p.log.Debugf("auth: joined in-flight refresh account=%s", accountID)
	}
	return v.(model.Credential), nil
}

// merge keeps the identity fields of old and any refresh token the platform did not rotate.
func merge(old, fresh model.Credential) model.Credential {
	fresh.AccountID = old.AccountID
	fresh.Platform = old.Platform
	if fresh.PlatformUserID == "" {
		fresh.PlatformUserID = old.PlatformUserID
	}
	if fresh.Username == "" {
		fresh.Username = old.Username
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = old.RefreshToken
	}
	if fresh.Legacy == nil {
		fresh.Legacy = old.Legacy
	}
	return fresh
}

// Static serves one credential and never refreshes it.
func Static(cred model.Credential) TokenProvider {
	return staticProvider{cred: cred}
}

type staticProvider struct {
	cred model.Credential
}

func (s staticProvider) Token(context.Context, string) (model.Credential, error) {
	return s.cred, nil
}

func (s staticProvider) ForceRefresh(context.Context, string, string) (model.Credential, error) {
	return model.Credential{}, &model.AuthError{Platform: s.cred.Platform, Message: "static credential cannot be refreshed"}
}
