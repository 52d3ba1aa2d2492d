package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"social-publisher/internal/model"
)

// OAuth2Refresher runs the standard refresh_token grant (Google, Twitter OAuth2, LinkedIn).
type OAuth2Refresher struct {
	Config     *oauth2.Config
	HTTPClient *http.Client
}

func NewOAuth2Refresher(clientID, clientSecret, tokenURL string, style oauth2.AuthStyle, client *http.Client) *OAuth2Refresher {
	return &OAuth2Refresher{
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: style},
		},
		HTTPClient: client,
	}
}

func (r *OAuth2Refresher) Refresh(ctx context.Context, cred model.Credential) (model.Credential, error) {
	if !cred.CanRefresh() {
		return model.Credential{}, &model.AuthError{Platform: cred.Platform, Message: "no refresh token"}
	}
	if r.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.HTTPClient)
	}
	tok, err := r.Config.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode < 500 {
			return model.Credential{}, &model.AuthError{Platform: cred.Platform, Message: strings.TrimSpace(string(rerr.Body))}
		}
		return model.Credential{}, &model.TransientTransportError{Op: "oauth2 refresh", Err: err}
	}

	cred.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		cred.RefreshToken = tok.RefreshToken
	}
	cred.ExpiresAt = tok.Expiry
	return cred, nil
}

// TikTokRefresher refreshes against TikTok's token endpoint, which takes client_key instead of client_id.
type TikTokRefresher struct {
	BaseURL      string
	ClientKey    string
	ClientSecret string
	HTTPClient   *http.Client
	Now          func() time.Time
}

func (r *TikTokRefresher) Refresh(ctx context.Context, cred model.Credential) (model.Credential, error) {
	if !cred.CanRefresh() {
		return model.Credential{}, &model.AuthError{Platform: cred.Platform, Message: "no refresh token"}
	}
	form := url.Values{
		"client_key":    {r.ClientKey},
		"client_secret": {r.ClientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {cred.RefreshToken},
	}
	body, status, err := postForm(ctx, r.HTTPClient, r.BaseURL+"/v2/oauth/token/", form)
	if err != nil {
		return model.Credential{}, err
	}
	res := gjson.ParseBytes(body)
	if status != http.StatusOK || res.Get("error").String() != "" || res.Get("access_token").String() == "" {
		msg := firstString(res, "error_description", "error", "message")
		return model.Credential{}, &model.AuthError{Platform: cred.Platform, Message: fmt.Sprintf("status=%d %s", status, msg)}
	}

	cred.AccessToken = res.Get("access_token").String()
	if rt := res.Get("refresh_token").String(); rt != "" {
		cred.RefreshToken = rt
	}
	if openID := res.Get("open_id").String(); openID != "" {
		cred.PlatformUserID = openID
	}
	cred.ExpiresAt = expiry(r.Now, res.Get("expires_in").Int())
	return cred, nil
}

// FacebookRefresher swaps the current token for a long-lived one (Facebook and Instagram Graph).
type FacebookRefresher struct {
	GraphURL   string
	AppID      string
	AppSecret  string
	HTTPClient *http.Client
	Now        func() time.Time
}

func (r *FacebookRefresher) Refresh(ctx context.Context, cred model.Credential) (model.Credential, error) {
	q := url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {r.AppID},
		"client_secret":     {r.AppSecret},
		"fb_exchange_token": {cred.AccessToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.GraphURL+"/oauth/access_token?"+q.Encode(), nil)
	if err != nil {
		return model.Credential{}, fmt.Errorf("create request: %w", err)
	}
	body, status, err := do(r.HTTPClient, req)
	if err != nil {
		return model.Credential{}, err
	}
	res := gjson.ParseBytes(body)
	if status != http.StatusOK || res.Get("access_token").String() == "" {
		return model.Credential{}, &model.AuthError{
			Platform: cred.Platform,
			Message:  fmt.Sprintf("status=%d %s", status, res.Get("error.message").String()),
		}
	}
	cred.AccessToken = res.Get("access_token").String()
	cred.ExpiresAt = expiry(r.Now, res.Get("expires_in").Int())
	return cred, nil
}

func postForm(ctx context.Context, client *http.Client, endpoint string, form url.Values) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return do(client, req)
}

func do(client *http.Client, req *http.Request) ([]byte, int, error) {
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, &model.TransientTransportError{Op: "token refresh", Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &model.TransientTransportError{Op: "read refresh response", Err: err}
	}
	return body, resp.StatusCode, nil
}

func expiry(now func() time.Time, seconds int64) time.Time {
	if seconds <= 0 {
		return time.Time{}
	}
	if now == nil {
		now = time.Now
	}
	return now().Add(time.Duration(seconds) * time.Second)
}

func firstString(res gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := res.Get(p).String(); v != "" {
			return v
		}
	}
	return ""
}
