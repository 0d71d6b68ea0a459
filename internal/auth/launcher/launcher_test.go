package launcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/brizzai/zeroinbox/internal/auth/request"
	"github.com/brizzai/zeroinbox/internal/config"
	"github.com/brizzai/zeroinbox/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func loopbackRequest(t *testing.T) *request.AuthorizationRequest {
	return &request.AuthorizationRequest{
		AuthURL:     "https://accounts.google.com/o/oauth2/auth?state=s1",
		RedirectURI: fmt.Sprintf("http://127.0.0.1:%d/oauth/callback", freePort(t)),
		State:       "s1",
	}
}

func newTestLoopback(timeout time.Duration, out io.Writer) *Loopback {
	return NewLoopback(&config.Config{OAuth: config.OAuthConfig{ConsentTimeout: timeout}}, out)
}

// browserHitting simulates the provider redirecting the browser to the callback
func browserHitting(t *testing.T, redirectURI, query string) func(string) error {
	return func(string) error {
		go func() {
			resp, err := http.Get(redirectURI + "?" + query)
			if err != nil {
				t.Errorf("callback request failed: %v", err)
				return
			}
			_ = resp.Body.Close()
		}()
		return nil
	}
}

func TestLoopback_DeliversSuccess(t *testing.T) {
	req := loopbackRequest(t)
	var out bytes.Buffer
	l := newTestLoopback(5*time.Second, &out)
	l.Open = browserHitting(t, req.RedirectURI, "code=abc123&state=s1")

	resp, err := l.Launch(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, models.ResponseSuccess, resp.Type)
	assert.Equal(t, "abc123", resp.Code())
	assert.Equal(t, "s1", resp.State())
	assert.Contains(t, out.String(), req.AuthURL)
}

func TestLoopback_DeliversProviderError(t *testing.T) {
	req := loopbackRequest(t)
	l := newTestLoopback(5*time.Second, io.Discard)
	l.Open = browserHitting(t, req.RedirectURI, "error=access_denied&state=s1")

	resp, err := l.Launch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.ResponseError, resp.Type)
	assert.Equal(t, "access_denied", resp.ErrorCode)
}

func TestLoopback_TimeoutIsDismiss(t *testing.T) {
	req := loopbackRequest(t)
	l := newTestLoopback(50*time.Millisecond, io.Discard)
	l.Open = func(string) error { return nil }

	resp, err := l.Launch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.ResponseDismiss, resp.Type)
}

func TestLoopback_ContextCancelIsCancel(t *testing.T) {
	req := loopbackRequest(t)
	l := newTestLoopback(5*time.Second, io.Discard)
	ctx, cancel := context.WithCancel(context.Background())
	l.Open = func(string) error {
		cancel()
		return nil
	}

	resp, err := l.Launch(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.ResponseCancel, resp.Type)
}

func TestLoopback_BrowserFailureStillWaits(t *testing.T) {
	req := loopbackRequest(t)
	l := newTestLoopback(50*time.Millisecond, io.Discard)
	l.Open = func(string) error { return fmt.Errorf("no browser") }

	resp, err := l.Launch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.ResponseDismiss, resp.Type)
}

func TestLoopback_PortInUse(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	req := &request.AuthorizationRequest{RedirectURI: "http://" + busy.Addr().String() + "/cb"}
	_, err = newTestLoopback(time.Second, io.Discard).Launch(context.Background(), req)
	assert.Error(t, err)
}

func TestLoopback_RejectsAppSchemeRedirect(t *testing.T) {
	req := &request.AuthorizationRequest{RedirectURI: "com.googleusercontent.apps.123:/oauthredirect"}
	_, err := newTestLoopback(time.Second, io.Discard).Launch(context.Background(), req)
	assert.Error(t, err)
}

func TestPaste(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType models.ResponseType
		wantCode string
		wantErr  bool
	}{
		{
			name:     "redirect url",
			input:    "com.googleusercontent.apps.123:/oauthredirect?code=abc123&state=s1\n",
			wantType: models.ResponseSuccess,
			wantCode: "abc123",
		},
		{name: "empty line", input: "\n", wantType: models.ResponseDismiss},
		{name: "end of input", input: "", wantType: models.ResponseCancel},
		{
			name:     "provider error",
			input:    "com.googleusercontent.apps.123:/oauthredirect?error=access_denied\n",
			wantType: models.ResponseError,
		},
		{name: "garbage", input: "http://[::1\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewPaste(&out, strings.NewReader(tt.input))

			resp, err := p.Launch(context.Background(), &request.AuthorizationRequest{AuthURL: "https://consent"})
			assert.Contains(t, out.String(), "https://consent")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, resp.Type)
			assert.Equal(t, tt.wantCode, resp.Code())
		})
	}
}

func TestPaste_ContextCancel(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := NewPaste(io.Discard, r).Launch(ctx, &request.AuthorizationRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.ResponseCancel, resp.Type)
}

func TestForPlatform(t *testing.T) {
	desktop := ForPlatform(Params{Config: &config.Config{OAuth: config.OAuthConfig{Platform: config.PlatformDesktop}}})
	assert.IsType(t, &Loopback{}, desktop)

	android := ForPlatform(Params{Config: &config.Config{OAuth: config.OAuthConfig{Platform: config.PlatformAndroid}}})
	assert.IsType(t, &Paste{}, android)
}
