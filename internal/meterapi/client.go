package meterapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"energywatch/internal/observability/metrics"
)

const (
	headerAPIKey = "X-Meter-API"
	headerToken  = "X-Meter-Token"

	// Sessions are refreshed slightly before the token's exp claim.
	tokenExpirySlack = 30 * time.Second
)

// Client is a session-holding client for the remote monitoring API. The API
// uses two-phase auth: a basic-auth exchange on the base URL returns a
// session token carried on every subsequent request.
type Client struct {
	baseURL     string
	settingsURL string
	apiKey      string
	basicAuth   string
	httpClient  *http.Client
	logger      *zap.Logger

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient assigns the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSettingsURL assigns the analytics UI base used in remediation hints.
func WithSettingsURL(settingsURL string) Option {
	return func(c *Client) {
		c.settingsURL = strings.TrimRight(settingsURL, "/")
	}
}

// NewClient constructs a client. basicAuth is the encoded credential pair
// for the initial exchange; loading and decrypting it is the caller's
// concern.
func NewClient(baseURL, apiKey, basicAuth string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("meterapi: empty base url")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		basicAuth:  basicAuth,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Authenticate performs the basic-auth exchange and stores the returned
// session token. The token is a JWT; its exp claim is read (unverified) so
// the session can be refreshed proactively.
func (c *Client) Authenticate(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Basic "+c.basicAuth)
	req.Header.Set("Accept", "text/json")
	req.Header.Set(headerAPIKey, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &AuthError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &AuthError{StatusCode: resp.StatusCode}
	}
	token := resp.Header.Get(headerToken)
	if token == "" {
		return &AuthError{Reason: "no session token in response"}
	}

	c.mu.Lock()
	c.token = token
	c.tokenExp = tokenExpiry(token)
	c.mu.Unlock()
	return nil
}

func tokenExpiry(token string) time.Time {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

func (c *Client) ensureSession(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	exp := c.tokenExp
	c.mu.Unlock()

	if token != "" && (exp.IsZero() || time.Until(exp) > tokenExpirySlack) {
		return token, nil
	}
	if err := c.Authenticate(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	token = c.token
	c.mu.Unlock()
	return token, nil
}

// get issues a token-bearing GET and decodes the JSON body.
func (c *Client) get(ctx context.Context, entity, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, entity, path, query, out)
}

// options issues a token-bearing OPTIONS request, used for field discovery.
func (c *Client) options(ctx context.Context, entity, path string, out any) error {
	return c.do(ctx, http.MethodOptions, entity, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, entity, path string, query url.Values, out any) error {
	started := time.Now()
	err := c.doOnce(ctx, method, path, query, out)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveFetch(entity, result, time.Since(started))
	return err
}

func (c *Client) doOnce(ctx context.Context, method, path string, query url.Values, out any) error {
	token, err := c.ensureSession(ctx)
	if err != nil {
		return err
	}

	fullURL := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/json")
	req.Header.Set(headerAPIKey, c.apiKey)
	req.Header.Set(headerToken, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{URL: fullURL, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{StatusCode: resp.StatusCode}
	case resp.StatusCode >= 300:
		return &TransportError{URL: fullURL, StatusCode: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{URL: fullURL, Err: err}
	}
	return nil
}

// settingsLink returns the analytics UI URL for one alarm's settings, used
// as a remediation hint in partial-failure logs.
func (c *Client) settingsLink(alarmID ID) string {
	if c.settingsURL == "" {
		return ""
	}
	return c.settingsURL + "/alarm/edit/" + string(alarmID)
}
