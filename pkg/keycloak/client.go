package keycloak

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/realmkeep/realmkeep/pkg/log"
	"github.com/realmkeep/realmkeep/pkg/metrics"
	"github.com/realmkeep/realmkeep/pkg/types"
)

const defaultTimeout = 30 * time.Second

// Auth holds the client-credentials grant configuration for one realm.
type Auth struct {
	AuthURL      string `yaml:"auth_url" json:"auth_url"`
	Realm        string `yaml:"realm" json:"realm"`
	ClientID     string `yaml:"client_id" json:"client_id"`
	ClientSecret string `yaml:"client_secret" json:"client_secret"`
	VerifySSL    *bool  `yaml:"verify_ssl" json:"verify_ssl"`
	// Timeout bounds each HTTP call. Zero means the 30s default.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// Validate applies defaults and rejects incomplete auth config.
func (a *Auth) Validate() error {
	if a.AuthURL == "" {
		return fmt.Errorf("%w: keycloak auth_url is required", types.ErrConfig)
	}
	if a.ClientSecret == "" {
		return fmt.Errorf("%w: keycloak client_secret is required", types.ErrConfig)
	}
	if a.Realm == "" {
		a.Realm = "master"
	}
	if a.ClientID == "" {
		a.ClientID = "admin-cli"
	}
	if a.Timeout == 0 {
		a.Timeout = defaultTimeout
	}
	return nil
}

// Client speaks to the Keycloak admin REST API on behalf of the exporter
// and importer. It transparently acquires and refreshes bearer tokens and
// is safe for concurrent use; token refresh is single-flight so a burst of
// parallel 401s causes one re-authentication.
type Client struct {
	auth Auth
	http *http.Client

	mu    sync.Mutex
	token string

	refresh singleflight.Group
}

// NewClient validates the auth config and builds a client.
func NewClient(auth Auth) (*Client, error) {
	if err := auth.Validate(); err != nil {
		return nil, err
	}

	transport := http.DefaultTransport
	if auth.VerifySSL != nil && !*auth.VerifySSL {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &Client{
		auth: auth,
		http: &http.Client{
			Timeout:   auth.Timeout,
			Transport: transport,
		},
	}, nil
}

// Realm returns the configured realm name.
func (c *Client) Realm() string {
	return c.auth.Realm
}

func (c *Client) expand(endpoint string) string {
	return c.auth.AuthURL + strings.ReplaceAll(endpoint, "{realm}", c.auth.Realm)
}

func (c *Client) cachedToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) invalidate(token string) {
	c.mu.Lock()
	if c.token == token {
		c.token = ""
	}
	c.mu.Unlock()
}

// ensureToken returns a bearer token, re-authenticating when the cached
// one is missing or no longer active per the introspection endpoint.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	if token := c.cachedToken(); token != "" {
		active, err := c.introspect(ctx, token)
		if err != nil {
			return "", err
		}
		if active {
			return token, nil
		}
		c.invalidate(token)
	}
	return c.authenticate(ctx)
}

// authenticate runs the client-credentials grant. Concurrent callers
// share a single request.
func (c *Client) authenticate(ctx context.Context) (string, error) {
	v, err, _ := c.refresh.Do("token", func() (any, error) {
		logger := log.WithComponent("keycloak")
		logger.Debug().
			Str("auth_url", c.auth.AuthURL).
			Str("realm", c.auth.Realm).
			Msg("authenticating")

		form := url.Values{
			"grant_type":    {"client_credentials"},
			"client_id":     {c.auth.ClientID},
			"client_secret": {c.auth.ClientSecret},
		}
		body, err := c.postForm(ctx, "/realms/{realm}/protocol/openid-connect/token", form)
		if err != nil {
			return nil, fmt.Errorf("failed to authenticate with Keycloak: %w", err)
		}

		var payload struct {
			AccessToken string `json:"access_token"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("failed to decode token response: %w", err)
		}
		if payload.AccessToken == "" {
			return nil, fmt.Errorf("%w: token response contained no access_token", types.ErrTransport)
		}

		c.mu.Lock()
		c.token = payload.AccessToken
		c.mu.Unlock()
		metrics.TokenRefreshesTotal.Inc()
		return payload.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// introspect asks Keycloak whether a token is still active.
func (c *Client) introspect(ctx context.Context, token string) (bool, error) {
	form := url.Values{
		"client_id":     {c.auth.ClientID},
		"client_secret": {c.auth.ClientSecret},
		"token":         {token},
	}
	body, err := c.postForm(ctx, "/realms/{realm}/protocol/openid-connect/token/introspect", form)
	if err != nil {
		return false, fmt.Errorf("token introspection failed: %w", err)
	}

	var payload struct {
		Active bool `json:"active"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false, fmt.Errorf("failed to decode introspection response: %w", err)
	}
	return payload.Active, nil
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.expand(endpoint), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.transportErr(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportErr(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &types.StatusError{Status: resp.StatusCode, Body: truncate(body)}
	}
	return body, nil
}

// Get performs an authenticated GET against an endpoint template and
// decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, endpoint string, out any) error {
	body, err := c.call(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: failed to decode response from %s: %v", types.ErrInvalidEntity, endpoint, err)
	}
	return nil
}

// Post performs an authenticated POST with a JSON body.
func (c *Client) Post(ctx context.Context, endpoint string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: failed to encode payload for %s: %v", types.ErrInvalidEntity, endpoint, err)
	}
	_, err = c.call(ctx, http.MethodPost, endpoint, raw)
	return err
}

// call dispatches one authenticated request. A 401 invalidates the token
// and retries the original call once with a fresh one; a 403 surfaces as
// PermissionDenied and is never retried.
func (c *Client) call(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	body, status, err := c.dispatch(ctx, method, endpoint, payload, token)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		c.invalidate(token)
		token, err = c.authenticate(ctx)
		if err != nil {
			return nil, err
		}
		body, status, err = c.dispatch(ctx, method, endpoint, payload, token)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case status >= 200 && status <= 299:
		return body, nil
	case status == http.StatusForbidden:
		return nil, fmt.Errorf(
			"%w: %s %s returned 403: the client may lack sufficient permissions over realm %q, check its service-account roles",
			types.ErrPermissionDenied, method, endpoint, c.auth.Realm)
	default:
		return nil, &types.StatusError{Status: status, Body: truncate(body)}
	}
}

func (c *Client) dispatch(ctx context.Context, method, endpoint string, payload []byte, token string) ([]byte, int, error) {
	timer := metrics.NewTimer()
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.expand(endpoint), reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(method, "transport_error").Inc()
		return nil, 0, c.transportErr(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(method, "transport_error").Inc()
		return nil, 0, c.transportErr(ctx, err)
	}
	metrics.ProviderRequestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
	timer.ObserveDurationVec(metrics.ProviderRequestDuration, method)
	return body, resp.StatusCode, nil
}

func (c *Client) transportErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %v", types.ErrTransport, err)
}

func truncate(body []byte) string {
	const limit = 512
	s := string(body)
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
