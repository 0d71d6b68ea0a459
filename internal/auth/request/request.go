// Package request builds Google OAuth authorization requests.
package request

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/brizzai/zeroinbox/internal/config"
	"github.com/brizzai/zeroinbox/internal/logger"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// ResponseTypeCode is the only response type requested
	ResponseTypeCode = "code"

	// ChallengeMethodS256 is the only PKCE method used
	ChallengeMethodS256 = "S256"
)

// ErrNotReady is returned by Build until Resolve has succeeded
var ErrNotReady = errors.New("authorization request is not ready")

// AuthorizationRequest is one sign-in attempt. It lives in memory only and is
// discarded once the provider response has been consumed.
type AuthorizationRequest struct {
	AttemptID       string
	ClientID        string
	Scopes          []string
	ResponseType    string
	RedirectURI     string
	State           string
	CodeVerifier    string
	CodeChallenge   string
	ChallengeMethod string
	ExtraParams     map[string]string
	AuthURL         string
}

// UsesPKCE reports whether the request was built with a code challenge
func (r *AuthorizationRequest) UsesPKCE() bool {
	return r.CodeChallenge != ""
}

// Discard forgets the verifier once the attempt is over
func (r *AuthorizationRequest) Discard() {
	r.CodeVerifier = ""
}

// Builder turns the configuration into authorization requests
type Builder struct {
	cfg *config.Config

	mu       sync.RWMutex
	oauthCfg *oauth2.Config
	resolved error
}

// NewBuilder creates a Builder; call Resolve before Build
func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{cfg: cfg, resolved: ErrNotReady}
}

// Resolve validates the configuration and settles the provider endpoint.
// With discovery enabled the endpoint comes from the issuer's OpenID
// configuration; otherwise Google's well-known endpoint is used.
func (b *Builder) Resolve(ctx context.Context) error {
	err := b.resolve(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.resolved = err
	if err != nil {
		b.oauthCfg = nil
	}
	return err
}

func (b *Builder) resolve(ctx context.Context) error {
	clientID := b.cfg.ClientID()
	if clientID == "" {
		return fmt.Errorf("%w: oauth client id for platform %s", config.ErrConfigurationMissing, b.cfg.OAuth.Platform)
	}

	redirectURI, err := b.cfg.RedirectURI()
	if err != nil {
		return err
	}

	endpoint := google.Endpoint
	if b.cfg.OAuth.Discovery {
		provider, err := oidc.NewProvider(ctx, b.cfg.OAuth.Issuer)
		if err != nil {
			return fmt.Errorf("failed to discover provider %s: %w", b.cfg.OAuth.Issuer, err)
		}
		endpoint = provider.Endpoint()
	}

	scopes := b.cfg.OAuth.Scopes
	if len(scopes) == 0 {
		scopes = config.DefaultScopes
	}

	oauthCfg := &oauth2.Config{
		ClientID:    clientID,
		Endpoint:    endpoint,
		RedirectURL: redirectURI,
		Scopes:      scopes,
	}

	b.mu.Lock()
	b.oauthCfg = oauthCfg
	b.mu.Unlock()

	logger.Debug("authorization request builder ready",
		zap.String("client_id", clientID),
		zap.String("redirect_uri", redirectURI),
		zap.String("auth_url", endpoint.AuthURL),
		zap.Bool("pkce", b.cfg.OAuth.UsePKCE),
	)
	return nil
}

// Ready reports whether Build can produce a request
func (b *Builder) Ready() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.resolved == nil
}

// Err returns why the builder is not ready, nil when it is
func (b *Builder) Err() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.resolved
}

// UsePKCE reports whether requests from this builder carry a code challenge
func (b *Builder) UsePKCE() bool {
	return b.cfg.OAuth.UsePKCE
}

// Build creates a fresh request with its own state and, when PKCE is on, its
// own verifier and challenge.
func (b *Builder) Build() (*AuthorizationRequest, error) {
	b.mu.RLock()
	oauthCfg, resolved := b.oauthCfg, b.resolved
	b.mu.RUnlock()

	if resolved != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotReady, resolved)
	}

	req := &AuthorizationRequest{
		AttemptID:    uuid.NewString(),
		ClientID:     oauthCfg.ClientID,
		Scopes:       append([]string(nil), oauthCfg.Scopes...),
		ResponseType: ResponseTypeCode,
		RedirectURI:  oauthCfg.RedirectURL,
		State:        uuid.NewString(),
		ExtraParams:  make(map[string]string, len(b.cfg.OAuth.ExtraParams)),
	}

	opts := []oauth2.AuthCodeOption{}
	for k, v := range b.cfg.OAuth.ExtraParams {
		req.ExtraParams[k] = v
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}

	if b.cfg.OAuth.UsePKCE {
		req.CodeVerifier = oauth2.GenerateVerifier()
		req.CodeChallenge = oauth2.S256ChallengeFromVerifier(req.CodeVerifier)
		req.ChallengeMethod = ChallengeMethodS256
		opts = append(opts, oauth2.S256ChallengeOption(req.CodeVerifier))
	}

	req.AuthURL = oauthCfg.AuthCodeURL(req.State, opts...)
	return req, nil
}

// Module provides the request builder
var Module = fx.Module("request",
	fx.Provide(NewBuilder),
)
