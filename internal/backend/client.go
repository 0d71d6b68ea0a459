// Package backend talks to the trusted ZeroInbox backend: it forwards the
// authorization code for server-side token exchange and reads the unread count.
package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/brizzai/zeroinbox/internal/config"
	"github.com/brizzai/zeroinbox/internal/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	// maxBodySize bounds how much of a backend response is read
	maxBodySize = 1 << 20

	// maxDetailLen bounds the backend error text shown to the user
	maxDetailLen = 200

	defaultTimeout = 30 * time.Second
)

// Response is a fully read backend response
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client sends exactly one request per call and never retries
type Client struct {
	client  *http.Client
	baseURL string
	headers map[string]string
	authMgr AuthManager
}

type ClientParams struct {
	fx.In

	Config      *config.Config
	AuthManager AuthManager
}

// NewClient creates a backend client. The cookie jar keeps whatever session
// the backend establishes during the exchange for later calls.
func NewClient(params ClientParams) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	timeout := params.Config.API.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		client: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		baseURL: strings.TrimRight(params.Config.API.BaseURL, "/"),
		headers: params.Config.API.Headers,
		authMgr: params.AuthManager,
	}, nil
}

// SetTimeout sets the timeout for the HTTP client
func (c *Client) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if c.baseURL == "" {
		return nil, ErrNoBaseURL
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.authMgr != nil {
		if err := c.authMgr.ApplyAuth(req); err != nil {
			return nil, fmt.Errorf("failed to apply authentication: %w", err)
		}
	}
	return req, nil
}

// execute performs the request and reads the whole (bounded) body
func (c *Client) execute(req *http.Request) (*Response, error) {
	logger.Debug("backend request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.Redacted()),
	)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Warn("failed to close response body", zap.Error(closeErr))
		}
	}()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	logger.Debug("backend response",
		zap.String("url", req.URL.Redacted()),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(bodyBytes)),
	)

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       bodyBytes,
		Headers:    resp.Header,
	}, nil
}

// detail turns a response body into a single short line for the user
func detail(body []byte) string {
	s := strings.TrimSpace(string(body))
	s = strings.Trim(s, `"`)
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > maxDetailLen {
		cut := maxDetailLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "…"
	}
	return s
}

func isJSON(h http.Header) bool {
	return strings.Contains(strings.ToLower(h.Get("Content-Type")), "json")
}

// Module provides the backend client dependencies
var Module = fx.Module("backend",
	fx.Provide(
		NewClient,
		fx.Annotate(
			NewHTTPAuthManager,
			fx.As(new(AuthManager)),
		),
	),
)
