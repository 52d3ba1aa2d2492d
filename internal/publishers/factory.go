package publishers

import (
	"net/http"

	"golang.org/x/time/rate"

	"social-publisher/internal"
	"social-publisher/internal/auth"
	"social-publisher/internal/logging"
	"social-publisher/internal/media"
	"social-publisher/internal/model"
)

// Deps are the collaborators shared by every adapter a Factory creates.
type Deps struct {
	Config internal.Config
	// Tokens serves credentials by account id. Nil means the credential passed to Create is used as is.
	Tokens auth.TokenProvider
	Media  *media.Resolver
	Prober media.Prober
	Log    *logging.Logger

	// HTTPClient is used for API calls, MediaClient for uploads and downloads. Both default to clients
	// built from the configured timeouts.
	HTTPClient  *http.Client
	MediaClient *http.Client
}

func (d Deps) withDefaults() Deps {
	if d.Log == nil {
		d.Log = logging.Nop()
	}
	if d.HTTPClient == nil {
		d.HTTPClient = NewHTTPClient(d.Config.ConnectTimeout, d.Config.RequestTimeout)
	}
	if d.MediaClient == nil {
		d.MediaClient = NewHTTPClient(d.Config.ConnectTimeout, d.Config.MediaTimeout)
	}
	if d.Media == nil {
		d.Media = media.NewResolver(d.MediaClient, nil, d.Config.TempDir, d.Log)
	}
	if d.Prober == nil {
		d.Prober = media.FFProbe{}
	}
	return d
}

// Factory maps platform identifiers to adapters.
type Factory struct {
	deps Deps
}

func NewFactory(deps Deps) *Factory {
	return &Factory{deps: deps.withDefaults()}
}

// Create parses platform ("x" is accepted for twitter) and builds its adapter for cred.
func (f *Factory) Create(platform string, cred model.Credential) (Publisher, error) {
	p, err := model.ParsePlatform(platform)
	if err != nil {
		return nil, err
	}
	return f.CreateFor(p, cred)
}

func (f *Factory) CreateFor(p model.Platform, cred model.Credential) (Publisher, error) {
	if cred.Platform == "" {
		cred.Platform = p
	}
	a := f.account(p, cred)
	switch p {
	case model.PlatformFacebook:
		return newFacebook(a), nil
	case model.PlatformInstagram:
		return newInstagram(a), nil
	case model.PlatformTwitter:
		return newTwitter(a), nil
	case model.PlatformTikTok:
		return newTikTok(a), nil
	case model.PlatformYouTube:
		return newYouTube(a), nil
	case model.PlatformLinkedIn:
		return newLinkedIn(a), nil
	}
	return nil, &model.UnsupportedPlatformError{Platform: string(p)}
}

// account bundles what one adapter instance needs. The limiter is shared by the API and media clients of
// the adapter.
type account struct {
	Deps
	platform model.Platform
	cred     model.Credential
	tokens   auth.TokenProvider
	limiter  *rate.Limiter
	log      *logging.Logger
}

func (f *Factory) account(p model.Platform, cred model.Credential) account {
	tokens := f.deps.Tokens
	if tokens == nil {
		tokens = auth.Static(cred)
	}
	return account{
		Deps:     f.deps,
		platform: p,
		cred:     cred,
		tokens:   tokens,
		limiter:  newLimiter(f.deps.Config.RequestsPerSec),
		log:      f.deps.Log.With("platform", string(p), "account", cred.AccountID),
	}
}

// client builds an apiClient using signer for this account.
func (a account) client(signer auth.Signer) *apiClient {
	return &apiClient{
		platform:  a.platform,
		accountID: a.cred.AccountID,
		tokens:    a.tokens,
		signer:    signer,
		limiter:   a.limiter,
		log:       a.log,
	}
}
