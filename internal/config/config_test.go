package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty directory with an empty home and no
// ZEROINBOX or legacy variables leaking in from the host
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", dir)
	for _, name := range []string{"API_URL", "WEB_CLIENT_ID", "ANDROID_CLIENT_ID", "IOS_CLIENT_ID"} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
	return dir
}

func flags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	InitFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(flags(t))
	require.NoError(t, err)

	assert.Equal(t, PlatformDesktop, cfg.OAuth.Platform)
	assert.Equal(t, DefaultScopes, cfg.OAuth.Scopes)
	assert.False(t, cfg.OAuth.UsePKCE)
	assert.Equal(t, "offline", cfg.OAuth.ExtraParams["access_type"])
	assert.Equal(t, 5*time.Minute, cfg.OAuth.ConsentTimeout)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, AuthTypeNone, cfg.API.AuthType)
	assert.Equal(t, CallbackConfig{Host: "127.0.0.1", Port: 8765, Path: "/oauth/callback"}, cfg.Callback)
	assert.Equal(t, 10, cfg.Unread.Limit)
	assert.Empty(t, cfg.API.BaseURL)
}

func TestLoad_LegacyEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("API_URL", "https://api.example.com/")
	t.Setenv("WEB_CLIENT_ID", "web.apps.googleusercontent.com")
	t.Setenv("ANDROID_CLIENT_ID", "android.apps.googleusercontent.com")
	t.Setenv("IOS_CLIENT_ID", "ios.apps.googleusercontent.com")

	cfg, err := Load(flags(t))
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.API.BaseURL, "trailing slash is trimmed")
	assert.Equal(t, "web.apps.googleusercontent.com", cfg.OAuth.WebClientID)
	assert.Equal(t, "android.apps.googleusercontent.com", cfg.OAuth.AndroidClientID)
	assert.Equal(t, "ios.apps.googleusercontent.com", cfg.OAuth.IOSClientID)
}

func TestLoad_PrefixedEnvironmentWins(t *testing.T) {
	isolate(t)
	t.Setenv("API_URL", "https://legacy.example.com")
	t.Setenv("ZEROINBOX_API_BASE_URL", "https://prefixed.example.com")
	t.Setenv("ZEROINBOX_OAUTH_USE_PKCE", "true")
	t.Setenv("ZEROINBOX_UNREAD_LIMIT", "25")

	cfg, err := Load(flags(t))
	require.NoError(t, err)

	assert.Equal(t, "https://prefixed.example.com", cfg.API.BaseURL)
	assert.True(t, cfg.OAuth.UsePKCE)
	assert.Equal(t, 25, cfg.Unread.Limit)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("WEB_CLIENT_ID=from-dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("WEB_CLIENT_ID") })

	cfg, err := Load(flags(t))
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.OAuth.WebClientID)
}

func TestLoad_ConfigFileAndFlags(t *testing.T) {
	dir := isolate(t)
	file := filepath.Join(dir, "zeroinbox.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
api:
  base_url: https://file.example.com
  auth_type: bearer
  auth_config:
    token: secret-token
oauth:
  platform: android
  android_client_id: 1234-abc.apps.googleusercontent.com
  use_pkce: true
unread:
  limit: 3
`), 0o600))

	cfg, err := Load(flags(t, "--config", file, "--api-url", "https://flag.example.com", "--pkce=false"))
	require.NoError(t, err)

	assert.Equal(t, "https://flag.example.com", cfg.API.BaseURL)
	assert.Equal(t, AuthTypeBearer, cfg.API.AuthType)
	assert.Equal(t, "secret-token", cfg.API.AuthConfig["token"])
	assert.Equal(t, PlatformAndroid, cfg.OAuth.Platform)
	assert.False(t, cfg.OAuth.UsePKCE, "explicit flag overrides the file")
	assert.Equal(t, 3, cfg.Unread.Limit)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	dir := isolate(t)
	_, err := Load(flags(t, "--config", filepath.Join(dir, "nope.yaml")))
	assert.Error(t, err)
}

func TestLoad_UnsupportedPlatform(t *testing.T) {
	isolate(t)
	_, err := Load(flags(t, "--platform", "symbian"))
	assert.ErrorContains(t, err, "symbian")
}

func TestClientID(t *testing.T) {
	oauth := OAuthConfig{
		WebClientID:     "web",
		AndroidClientID: "android",
		IOSClientID:     "ios",
	}
	tests := []struct {
		platform Platform
		desktop  string
		want     string
	}{
		{platform: PlatformWeb, want: "web"},
		{platform: PlatformAndroid, want: "android"},
		{platform: PlatformIOS, want: "ios"},
		{platform: PlatformDesktop, want: "web"},
		{platform: PlatformDesktop, desktop: "desktop", want: "desktop"},
	}
	for _, tt := range tests {
		t.Run(string(tt.platform)+"/"+tt.want, func(t *testing.T) {
			o := oauth
			o.Platform = tt.platform
			o.DesktopClientID = tt.desktop
			cfg := &Config{OAuth: o}
			assert.Equal(t, tt.want, cfg.ClientID())
		})
	}
}

func TestRedirectURI(t *testing.T) {
	callback := CallbackConfig{Host: "127.0.0.1", Port: 8765, Path: "/oauth/callback"}
	tests := []struct {
		name    string
		oauth   OAuthConfig
		want    string
		wantErr bool
	}{
		{
			name:  "explicit wins",
			oauth: OAuthConfig{Platform: PlatformDesktop, RedirectURI: "http://localhost:9999/cb"},
			want:  "http://localhost:9999/cb",
		},
		{
			name:  "desktop loopback",
			oauth: OAuthConfig{Platform: PlatformDesktop},
			want:  "http://127.0.0.1:8765/oauth/callback",
		},
		{
			name:  "android reverse client id",
			oauth: OAuthConfig{Platform: PlatformAndroid, AndroidClientID: "1234-abc.apps.googleusercontent.com"},
			want:  "com.googleusercontent.apps.1234-abc:/oauthredirect",
		},
		{
			name:    "ios without client id",
			oauth:   OAuthConfig{Platform: PlatformIOS},
			wantErr: true,
		},
		{
			name:    "web needs explicit redirect",
			oauth:   OAuthConfig{Platform: PlatformWeb, WebClientID: "web"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{OAuth: tt.oauth, Callback: callback}
			got, err := cfg.RedirectURI()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrConfigurationMissing))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWarnings(t *testing.T) {
	cfg := &Config{OAuth: OAuthConfig{Platform: PlatformDesktop}}
	assert.Equal(t, []string{
		"Missing API_URL (api.base_url)",
		"Missing desktop client id (oauth.desktop_client_id)",
	}, cfg.Warnings())

	cfg = &Config{API: APIConfig{BaseURL: "https://api"}, OAuth: OAuthConfig{Platform: PlatformWeb, WebClientID: "web"}}
	assert.Equal(t, []string{"Missing redirect URI (oauth.redirect_uri)"}, cfg.Warnings())

	cfg.OAuth.RedirectURI = "https://app.example.com/cb"
	assert.Empty(t, cfg.Warnings())
}

func TestRedacted(t *testing.T) {
	cfg := &Config{API: APIConfig{AuthConfig: map[string]string{"token": "secret"}}}
	red := cfg.Redacted()
	assert.Equal(t, "****", red.API.AuthConfig["token"])
	assert.Equal(t, "secret", cfg.API.AuthConfig["token"], "original is untouched")
}

func TestRedacted_Headers(t *testing.T) {
	cfg := &Config{API: APIConfig{Headers: map[string]string{
		"Authorization":       "Bearer s3cr3t",
		"Proxy-Authorization": "Basic s3cr3t",
		"Cookie":              "session=s3cr3t",
		"X-Api-Key":           "s3cr3t",
		"X-Refresh-Token":     "s3cr3t",
		"X-Client-Secret":     "s3cr3t",
		"Accept":              "application/json",
		"X-Request-Source":    "cli",
	}}}

	red := cfg.Redacted()

	tests := []struct {
		header string
		want   string
	}{
		{"Authorization", "****"},
		{"Proxy-Authorization", "****"},
		{"Cookie", "****"},
		{"X-Api-Key", "****"},
		{"X-Refresh-Token", "****"},
		{"X-Client-Secret", "****"},
		{"Accept", "application/json"},
		{"X-Request-Source", "cli"},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, red.API.Headers[tt.header])
		})
	}
	assert.Equal(t, "Bearer s3cr3t", cfg.API.Headers["Authorization"], "original is untouched")
}
