package request

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/brizzai/zeroinbox/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		OAuth: config.OAuthConfig{
			Platform:    config.PlatformDesktop,
			WebClientID: "web-client.apps.googleusercontent.com",
			Scopes:      config.DefaultScopes,
			ExtraParams: map[string]string{"access_type": "offline"},
			Issuer:      "https://accounts.google.com",
		},
		Callback: config.CallbackConfig{Host: "127.0.0.1", Port: 8765, Path: "/oauth/callback"},
	}
}

func TestBuild_NotReadyBeforeResolve(t *testing.T) {
	b := NewBuilder(testConfig())

	assert.False(t, b.Ready())
	_, err := b.Build()
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestResolve_MissingClientID(t *testing.T) {
	cfg := testConfig()
	cfg.OAuth.WebClientID = ""
	b := NewBuilder(cfg)

	err := b.Resolve(context.Background())
	assert.ErrorIs(t, err, config.ErrConfigurationMissing)
	assert.False(t, b.Ready())
	assert.Error(t, b.Err())
}

func TestResolve_WebWithoutRedirect(t *testing.T) {
	cfg := testConfig()
	cfg.OAuth.Platform = config.PlatformWeb
	b := NewBuilder(cfg)

	err := b.Resolve(context.Background())
	assert.ErrorIs(t, err, config.ErrConfigurationMissing)
}

func TestBuild_WithoutPKCE(t *testing.T) {
	b := NewBuilder(testConfig())
	require.NoError(t, b.Resolve(context.Background()))
	require.True(t, b.Ready())

	req, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, ResponseTypeCode, req.ResponseType)
	assert.Equal(t, "web-client.apps.googleusercontent.com", req.ClientID)
	assert.Equal(t, "http://127.0.0.1:8765/oauth/callback", req.RedirectURI)
	assert.False(t, req.UsesPKCE())
	assert.Empty(t, req.CodeVerifier)
	assert.NotEmpty(t, req.State)
	assert.NotEmpty(t, req.AttemptID)

	u, err := url.Parse(req.AuthURL)
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", u.Host)
	q := u.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, req.State, q.Get("state"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, req.RedirectURI, q.Get("redirect_uri"))
	assert.Equal(t, "openid email profile https://www.googleapis.com/auth/gmail.readonly", q.Get("scope"))
	assert.Empty(t, q.Get("code_challenge"))
}

func TestBuild_WithPKCE(t *testing.T) {
	cfg := testConfig()
	cfg.OAuth.UsePKCE = true
	b := NewBuilder(cfg)
	require.NoError(t, b.Resolve(context.Background()))

	first, err := b.Build()
	require.NoError(t, err)
	second, err := b.Build()
	require.NoError(t, err)

	assert.True(t, first.UsesPKCE())
	assert.NotEmpty(t, first.CodeVerifier)
	assert.NotEqual(t, first.CodeVerifier, second.CodeVerifier, "each request needs a fresh verifier")
	assert.NotEqual(t, first.State, second.State)
	assert.NotEqual(t, first.AttemptID, second.AttemptID)

	sum := sha256.Sum256([]byte(first.CodeVerifier))
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), first.CodeChallenge)

	u, err := url.Parse(first.AuthURL)
	require.NoError(t, err)
	assert.Equal(t, first.CodeChallenge, u.Query().Get("code_challenge"))
	assert.Equal(t, ChallengeMethodS256, u.Query().Get("code_challenge_method"))

	first.Discard()
	assert.Empty(t, first.CodeVerifier)
	assert.NotEmpty(t, second.CodeVerifier)
}

func TestResolve_Discovery(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 srv.URL,
			"authorization_endpoint": srv.URL + "/o/oauth2/v2/auth",
			"token_endpoint":         srv.URL + "/token",
			"jwks_uri":               srv.URL + "/certs",
		})
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.OAuth.Discovery = true
	cfg.OAuth.Issuer = srv.URL
	b := NewBuilder(cfg)
	require.NoError(t, b.Resolve(context.Background()))

	req, err := b.Build()
	require.NoError(t, err)
	assert.Contains(t, req.AuthURL, srv.URL+"/o/oauth2/v2/auth?")
}

func TestResolve_DiscoveryFailureKeepsBuilderClosed(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	cfg := testConfig()
	cfg.OAuth.Discovery = true
	cfg.OAuth.Issuer = srv.URL
	b := NewBuilder(cfg)

	assert.Error(t, b.Resolve(context.Background()))
	assert.False(t, b.Ready())
}
