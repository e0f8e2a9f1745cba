// Package notify implements the LINE Notify OAuth flow and message API.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/garyellow/eyecare-linebot-go/internal/config"
	domerrors "github.com/garyellow/eyecare-linebot-go/internal/errors"
)

// LINE Notify endpoints.
const (
	DefaultAuthURL    = "https://notify-bot.line.me/oauth/authorize"
	DefaultTokenURL   = "https://notify-bot.line.me/oauth/token"
	DefaultAPIBaseURL = "https://notify-api.line.me/api"

	// Scope is the only scope LINE Notify defines.
	Scope = "notify"

	maxResponseBytes = 64 << 10
)

// MetricsRecorder receives outbound call observations.
type MetricsRecorder interface {
	RecordExternalRequest(service, status string, duration float64)
}

// Config configures a Client.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	APIBaseURL   string
	Timeout      time.Duration
	Metrics      MetricsRecorder
}

// Client talks to LINE Notify.
type Client struct {
	oauth      *oauth2.Config
	apiBaseURL string
	httpClient *http.Client
	metrics    MetricsRecorder
}

// Status is the result of /api/status for a token.
type Status struct {
	TargetType string
	Target     string
}

// NewClient creates a LINE Notify client.
func NewClient(cfg Config) *Client {
	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	apiBase := cfg.APIBaseURL
	if apiBase == "" {
		apiBase = DefaultAPIBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.NotifyRequest
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{Scope},
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiBaseURL: strings.TrimRight(apiBase, "/"),
		httpClient: &http.Client{Timeout: timeout},
		metrics:    cfg.Metrics,
	}
}

// AuthCodeURL returns the authorize URL carrying state.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for an access token.
// Failures match domerrors.ErrAuthorization.
func (c *Client) Exchange(ctx context.Context, code string) (string, error) {
	start := time.Now()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		c.record("notify_token", "error", start)
		return "", fmt.Errorf("%w: exchange code: %w", domerrors.ErrAuthorization, err)
	}
	if tok.AccessToken == "" {
		c.record("notify_token", "error", start)
		return "", fmt.Errorf("%w: token response without access_token", domerrors.ErrAuthorization)
	}
	c.record("notify_token", "success", start)
	return tok.AccessToken, nil
}

// Status returns the target the token posts to.
// Failures match domerrors.ErrAuthorization.
func (c *Client) Status(ctx context.Context, accessToken string) (*Status, error) {
	start := time.Now()
	body, err := c.do(ctx, accessToken, http.MethodGet, "/status", nil)
	if err != nil {
		c.record("notify_status", "error", start)
		return nil, fmt.Errorf("%w: %w", domerrors.ErrAuthorization, err)
	}
	c.record("notify_status", "success", start)

	result := gjson.ParseBytes(body)
	return &Status{
		TargetType: result.Get("targetType").String(),
		Target:     result.Get("target").String(),
	}, nil
}

// Send posts message to the token's target.
// Failures match domerrors.ErrExternalFetch.
func (c *Client) Send(ctx context.Context, accessToken, message string) error {
	start := time.Now()
	form := url.Values{"message": {message}}
	if _, err := c.do(ctx, accessToken, http.MethodPost, "/notify", form); err != nil {
		c.record("notify_send", "error", start)
		return err
	}
	c.record("notify_send", "success", start)
	return nil
}

// do performs an authenticated API call through an oauth2 static token client.
func (c *Client) do(ctx context.Context, accessToken, method, path string, form url.Values) ([]byte, error) {
	endpoint := c.apiBaseURL + path

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, domerrors.NewFetchError(endpoint, 0, err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	client := oauth2.NewClient(
		context.WithValue(ctx, oauth2.HTTPClient, c.httpClient),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
	)
	client.Timeout = c.httpClient.Timeout

	resp, err := client.Do(req)
	if err != nil {
		return nil, domerrors.NewFetchError(endpoint, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, domerrors.NewFetchError(endpoint, resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(data, "message").String()
		if msg == "" {
			msg = resp.Status
		}
		return nil, domerrors.NewFetchError(endpoint, resp.StatusCode, fmt.Errorf("%s", msg))
	}
	return data, nil
}

func (c *Client) record(service, status string, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordExternalRequest(service, status, time.Since(start).Seconds())
	}
}
