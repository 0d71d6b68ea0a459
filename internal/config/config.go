package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version information - set by GoReleaser during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// GetVersionInfo returns a formatted version string
func GetVersionInfo() string {
	return fmt.Sprintf("zeroinbox version %s, commit %s, built at %s", version, commit, date)
}

// EnvPrefix is the prefix for every environment variable read by Load
const EnvPrefix = "ZEROINBOX"

// ErrConfigurationMissing is returned when a value required to start sign-in is absent
var ErrConfigurationMissing = errors.New("configuration missing")

type Config struct {
	API      APIConfig      `mapstructure:"api" yaml:"api"`
	OAuth    OAuthConfig    `mapstructure:"oauth" yaml:"oauth"`
	Callback CallbackConfig `mapstructure:"callback" yaml:"callback"`
	Unread   UnreadConfig   `mapstructure:"unread" yaml:"unread"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// AuthType represents the type of authentication applied to backend requests
type AuthType string

const (
	AuthTypeNone   AuthType = "none"
	AuthTypeBearer AuthType = "bearer"
	AuthTypeAPIKey AuthType = "api_key"
)

type APIConfig struct {
	BaseURL    string            `mapstructure:"base_url" yaml:"base_url"`
	Timeout    time.Duration     `mapstructure:"timeout" yaml:"timeout"`
	AuthType   AuthType          `mapstructure:"auth_type" yaml:"auth_type"`
	AuthConfig map[string]string `mapstructure:"auth_config" yaml:"auth_config,omitempty"`
	Headers    map[string]string `mapstructure:"headers" yaml:"headers,omitempty"`
}

// Platform selects which OAuth client identifier and redirect style are used
type Platform string

const (
	PlatformWeb     Platform = "web"
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
	PlatformDesktop Platform = "desktop"
)

type OAuthConfig struct {
	Platform        Platform          `mapstructure:"platform" yaml:"platform"`
	WebClientID     string            `mapstructure:"web_client_id" yaml:"web_client_id"`
	AndroidClientID string            `mapstructure:"android_client_id" yaml:"android_client_id"`
	IOSClientID     string            `mapstructure:"ios_client_id" yaml:"ios_client_id"`
	DesktopClientID string            `mapstructure:"desktop_client_id" yaml:"desktop_client_id"`
	RedirectURI     string            `mapstructure:"redirect_uri" yaml:"redirect_uri"`
	Scopes          []string          `mapstructure:"scopes" yaml:"scopes"`
	UsePKCE         bool              `mapstructure:"use_pkce" yaml:"use_pkce"`
	ExtraParams     map[string]string `mapstructure:"extra_params" yaml:"extra_params,omitempty"`
	Issuer          string            `mapstructure:"issuer" yaml:"issuer"`
	Discovery       bool              `mapstructure:"discovery" yaml:"discovery"`
	ConsentTimeout  time.Duration     `mapstructure:"consent_timeout" yaml:"consent_timeout"`
}

type CallbackConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	Path string `mapstructure:"path" yaml:"path"`
}

type UnreadConfig struct {
	Limit int `mapstructure:"limit" yaml:"limit"`
}

type LoggingConfig struct {
	Level             string `mapstructure:"level" yaml:"level"`
	Format            string `mapstructure:"format" yaml:"format"`
	Color             bool   `mapstructure:"color" yaml:"color"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace" yaml:"disable_stacktrace"`
	OutputPath        string `mapstructure:"output_path" yaml:"output_path"`
	AppendToFile      bool   `mapstructure:"append_to_file" yaml:"append_to_file"`
	DisableConsole    bool   `mapstructure:"disable_console" yaml:"disable_console"`
}

// DefaultScopes are requested when no scopes are configured. Gmail read access
// is needed by the backend to count unread mail.
var DefaultScopes = []string{
	"openid",
	"email",
	"profile",
	"https://www.googleapis.com/auth/gmail.readonly",
}

// legacyEnv maps the variable names used by the mobile build onto config keys
var legacyEnv = map[string]string{
	"api.base_url":            "API_URL",
	"oauth.web_client_id":     "WEB_CLIENT_ID",
	"oauth.android_client_id": "ANDROID_CLIENT_ID",
	"oauth.ios_client_id":     "IOS_CLIENT_ID",
}

// InitFlags registers the command line flags understood by Load (without parsing)
func InitFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to a YAML config file")
	fs.String("api-url", "", "Backend base URL")
	fs.String("platform", "", "OAuth client platform (web|android|ios|desktop)")
	fs.Bool("pkce", false, "Use PKCE for the authorization request")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.auth_type", string(AuthTypeNone))
	v.SetDefault("api.base_url", "")
	v.SetDefault("oauth.platform", string(PlatformDesktop))
	// keys without a real default are still registered so the environment reaches Unmarshal
	for _, key := range []string{"web_client_id", "android_client_id", "ios_client_id", "desktop_client_id", "redirect_uri"} {
		v.SetDefault("oauth."+key, "")
	}
	v.SetDefault("oauth.scopes", DefaultScopes)
	v.SetDefault("oauth.use_pkce", false)
	v.SetDefault("oauth.extra_params", map[string]string{
		"access_type": "offline",
		"prompt":      "consent",
	})
	v.SetDefault("oauth.issuer", "https://accounts.google.com")
	v.SetDefault("oauth.discovery", false)
	v.SetDefault("oauth.consent_timeout", 5*time.Minute)
	v.SetDefault("callback.host", "127.0.0.1")
	v.SetDefault("callback.port", 8765)
	v.SetDefault("callback.path", "/oauth/callback")
	v.SetDefault("unread.limit", 10)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load resolves the configuration from defaults, an optional YAML file, a .env
// file, the environment and command line flags, in increasing precedence.
// Missing identifiers are not an error here; see Warnings.
func Load(fs *pflag.FlagSet) (*Config, error) {
	// .env only fills variables that are not already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, name := range legacyEnv {
		if err := v.BindEnv(key, EnvPrefix+"_"+envKey(key), name); err != nil {
			return nil, err
		}
	}

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, err
		}
	}

	v.SetConfigType("yaml")
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "zeroinbox"))
		}
		if err := v.ReadInConfig(); err != nil {
			// It's OK if the file doesn't exist, only error if it's another problem
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Flags override the file and environment
	if apiURL := v.GetString("api-url"); apiURL != "" {
		config.API.BaseURL = apiURL
	}
	if platform := v.GetString("platform"); platform != "" {
		config.OAuth.Platform = Platform(platform)
	}
	if fs != nil {
		if f := fs.Lookup("pkce"); f != nil && f.Changed {
			config.OAuth.UsePKCE = v.GetBool("pkce")
		}
	}

	config.API.BaseURL = strings.TrimRight(config.API.BaseURL, "/")

	switch config.OAuth.Platform {
	case PlatformWeb, PlatformAndroid, PlatformIOS, PlatformDesktop:
	default:
		return nil, fmt.Errorf("unsupported oauth.platform %q, expected web, android, ios or desktop", config.OAuth.Platform)
	}

	return &config, nil
}

func envKey(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// ClientID returns the OAuth client identifier for the configured platform
func (c *Config) ClientID() string {
	switch c.OAuth.Platform {
	case PlatformWeb:
		return c.OAuth.WebClientID
	case PlatformAndroid:
		return c.OAuth.AndroidClientID
	case PlatformIOS:
		return c.OAuth.IOSClientID
	default:
		if c.OAuth.DesktopClientID != "" {
			return c.OAuth.DesktopClientID
		}
		return c.OAuth.WebClientID
	}
}

// RedirectURI returns the explicit redirect URI or derives one for the platform.
// Google native clients register the reverse client id as their app scheme.
func (c *Config) RedirectURI() (string, error) {
	if c.OAuth.RedirectURI != "" {
		return c.OAuth.RedirectURI, nil
	}

	switch c.OAuth.Platform {
	case PlatformDesktop:
		u := url.URL{
			Scheme: "http",
			Host:   fmt.Sprintf("%s:%d", c.Callback.Host, c.Callback.Port),
			Path:   c.Callback.Path,
		}
		return u.String(), nil
	case PlatformAndroid, PlatformIOS:
		id := c.ClientID()
		if id == "" {
			return "", fmt.Errorf("%w: client id for %s", ErrConfigurationMissing, c.OAuth.Platform)
		}
		prefix := strings.TrimSuffix(id, ".apps.googleusercontent.com")
		return "com.googleusercontent.apps." + prefix + ":/oauthredirect", nil
	default:
		return "", fmt.Errorf("%w: oauth.redirect_uri is required for the %s platform", ErrConfigurationMissing, c.OAuth.Platform)
	}
}

// Warnings lists the missing values the user should be told about. An empty
// result means sign-in can be attempted.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.API.BaseURL == "" {
		warnings = append(warnings, "Missing API_URL (api.base_url)")
	}
	if c.ClientID() == "" {
		warnings = append(warnings, fmt.Sprintf("Missing %s client id (oauth.%s_client_id)", c.OAuth.Platform, c.OAuth.Platform))
	}
	if _, err := c.RedirectURI(); err != nil && c.ClientID() != "" {
		warnings = append(warnings, "Missing redirect URI (oauth.redirect_uri)")
	}
	return warnings
}

// Redacted returns a copy with secret values masked, for display
func (c *Config) Redacted() *Config {
	out := *c
	if len(c.API.AuthConfig) > 0 {
		out.API.AuthConfig = make(map[string]string, len(c.API.AuthConfig))
		for k := range c.API.AuthConfig {
			out.API.AuthConfig[k] = "****"
		}
	}
	if len(c.API.Headers) > 0 {
		out.API.Headers = make(map[string]string, len(c.API.Headers))
		for k, v := range c.API.Headers {
			if sensitiveHeader(k) {
				v = "****"
			}
			out.API.Headers[k] = v
		}
	}
	return &out
}

var secretHeaderWords = []string{"auth", "cookie", "key", "token", "secret", "password"}

// sensitiveHeader reports whether a header value can carry a credential.
// Matches Authorization, Proxy-Authorization, Cookie and names like X-Api-Key.
func sensitiveHeader(name string) bool {
	name = strings.ToLower(name)
	for _, w := range secretHeaderWords {
		if strings.Contains(name, w) {
			return true
		}
	}
	return false
}
