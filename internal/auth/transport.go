package auth

import (
	"context"
	"net/http"

	"github.com/dghubble/oauth1"

	"social-publisher/internal/model"
)

// Signer authorizes requests for one account. It is chosen once when an adapter is built.
type Signer interface {
	HTTPClient() *http.Client
	// Authorize stamps token onto req. Signers whose client signs requests itself ignore token.
	Authorize(req *http.Request, token string)
	// Refreshable reports whether a rejected request can be retried with a refreshed token.
	Refreshable() bool
}

// BearerTransport sends the OAuth2 access token in the Authorization header.
type BearerTransport struct {
	Client *http.Client
}

func (b BearerTransport) HTTPClient() *http.Client { return b.Client }

func (b BearerTransport) Authorize(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
}

func (BearerTransport) Refreshable() bool { return true }

// QueryTokenTransport sends the access token as a query parameter (Graph API "access_token").
type QueryTokenTransport struct {
	Client *http.Client
	Param  string
}

func (q QueryTokenTransport) HTTPClient() *http.Client { return q.Client }

func (q QueryTokenTransport) Authorize(req *http.Request, token string) {
	param := q.Param
	if param == "" {
		param = "access_token"
	}
	v := req.URL.Query()
	v.Set(param, token)
	req.URL.RawQuery = v.Encode()
}

func (QueryTokenTransport) Refreshable() bool { return true }

// LegacySignedTransport signs every request with OAuth 1.0a user context.
type LegacySignedTransport struct {
	client *http.Client
}

func NewLegacySignedTransport(consumerKey, consumerSecret string, legacy model.LegacyCredential, base *http.Client) LegacySignedTransport {
	if base == nil {
		base = http.DefaultClient
	}
	config := oauth1.NewConfig(consumerKey, consumerSecret)
	token := oauth1.NewToken(legacy.Token, legacy.Secret)
	ctx := context.WithValue(context.Background(), oauth1.HTTPClient, base)

	client := config.Client(ctx, token)
	client.Timeout = base.Timeout
	return LegacySignedTransport{client: client}
}

func (l LegacySignedTransport) HTTPClient() *http.Client { return l.client }

func (LegacySignedTransport) Authorize(*http.Request, string) {}

func (LegacySignedTransport) Refreshable() bool { return false }

// SelectSigner picks OAuth1 signing when the account carries a legacy token pair and the app has consumer
// keys, otherwise bearer auth.
func SelectSigner(cred model.Credential, consumerKey, consumerSecret string, base *http.Client) Signer {
	if cred.HasLegacy() && consumerKey != "" && consumerSecret != "" {
		return NewLegacySignedTransport(consumerKey, consumerSecret, *cred.Legacy, base)
	}
	return BearerTransport{Client: base}
}
