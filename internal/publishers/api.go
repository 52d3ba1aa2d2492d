package publishers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"social-publisher/internal/auth"
	"social-publisher/internal/logging"
	"social-publisher/internal/model"
)

// NewHTTPClient returns a client with a bounded dial and overall timeout.
func NewHTTPClient(connect, timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: connect, KeepAlive: 30 * time.Second}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   connect,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       90 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
	}
}

func newLimiter(perSec float64) *rate.Limiter {
	if perSec <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := int(perSec)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSec), burst)
}

// requestFunc builds a fresh request for every attempt so bodies can be replayed after a refresh.
type requestFunc func(ctx context.Context) (*http.Request, error)

type response struct {
	Status int
	Header http.Header
	Body   []byte
}

func (r *response) JSON() gjson.Result {
	if r == nil {
		return gjson.Result{}
	}
	return gjson.ParseBytes(r.Body)
}

// apiClient performs authenticated calls for one account on one platform.
type apiClient struct {
	platform  model.Platform
	accountID string
	tokens    auth.TokenProvider
	signer    auth.Signer
	limiter   *rate.Limiter
	log       *logging.Logger
}

// do sends the request and, when the platform answers 401, refreshes the token exactly once and retries.
// A second 401 is returned as *model.AuthError.
func (c *apiClient) do(ctx context.Context, op string, build requestFunc) (*response, error) {
	cred, err := c.tokens.Token(ctx, c.accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	resp, err := c.send(ctx, op, build, cred.AccessToken)
	if err == nil || !model.IsAuth(err) || !c.signer.Refreshable() {
		return resp, err
	}

	c.log.Warnf("%s: %s rejected the access token, refreshing once", c.platform, op)
	fresh, rerr := c.tokens.ForceRefresh(ctx, c.accountID, cred.AccessToken)
	if rerr != nil {
		c.log.Errorf("%s: token refresh failed: %v", c.platform, rerr)
		return resp, err
	}
	return c.send(ctx, op, build, fresh.AccessToken)
}

func (c *apiClient) send(ctx context.Context, op string, build requestFunc, token string) (*response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := build(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	c.signer.Authorize(req, token)

	res, err := c.signer.HTTPClient().Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &model.TransientTransportError{Op: op, Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &model.TransientTransportError{Op: op + ": read response", Err: err}
	}
	resp := &response{Status: res.StatusCode, Header: res.Header, Body: body}
	c.log.Debugf("%s: %s %s -> %d", c.platform, req.Method, req.URL.Path, res.StatusCode)

	switch {
	case res.StatusCode == http.StatusUnauthorized:
		return resp, &model.AuthError{Platform: c.platform, Message: errorMessage(body)}
	case res.StatusCode == http.StatusNotFound:
		return resp, &model.NotFoundError{Platform: c.platform, Resource: op}
	case res.StatusCode < 200 || res.StatusCode > 299:
		return resp, &model.APIError{Platform: c.platform, Status: res.StatusCode, Message: errorMessage(body)}
	}
	return resp, nil
}

func (c *apiClient) get(ctx context.Context, op, endpoint string, query url.Values) (*response, error) {
	return c.do(ctx, op, func(ctx context.Context) (*http.Request, error) {
		u := endpoint
		if len(query) > 0 {
			u += "?" + query.Encode()
		}
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	})
}

func (c *apiClient) postJSON(ctx context.Context, op, endpoint string, payload any) (*response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: encode body: %w", op, err)
	}
	return c.do(ctx, op, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
		return req, nil
	})
}

func (c *apiClient) postForm(ctx context.Context, op, endpoint string, form url.Values) (*response, error) {
	encoded := form.Encode()
	return c.do(ctx, op, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
}

func (c *apiClient) delete(ctx context.Context, op, endpoint string) (*response, error) {
	return c.do(ctx, op, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	})
}

var errorPaths = []string{
	"error.message",
	"errors.0.message",
	"errors.0.detail",
	"detail",
	"error_description",
	"message",
	"error.code",
	"error",
	"title",
}

// errorMessage pulls the human readable message out of a platform error body.
func errorMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		res := gjson.ParseBytes(body)
		for _, p := range errorPaths {
			if v := res.Get(p); v.Exists() && v.Type == gjson.String && v.String() != "" {
				return v.String()
			}
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300] + "..."
	}
	return msg
}

// validation turns the error of an identity call into the (valid, err) shape of ValidateCredentials.
func validation(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case model.IsAuth(err):
		return false, nil
	default:
		return false, err
	}
}

// failure logs err and normalizes it into a failed PostResult.
func failure(log *logging.Logger, platform model.Platform, err error, raw map[string]any) *model.PostResult {
	log.Errorf("%s: publish failed: %v", platform, err)
	return model.Failed(err.Error(), raw)
}

// rawMap converts a JSON response into the opaque RawData map of a PostResult.
func rawMap(res gjson.Result) map[string]any {
	if m, ok := res.Value().(map[string]any); ok {
		return m
	}
	return nil
}
