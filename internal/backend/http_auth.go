package backend

import (
	"fmt"
	"net/http"

	"github.com/brizzai/zeroinbox/internal/config"
)

// AuthManager applies backend credentials to outgoing requests. The session
// cookie set by the exchange is handled by the client's cookie jar instead.
type AuthManager interface {
	ApplyAuth(req *http.Request) error
}

// HTTPAuthManager implements AuthManager from the api config section
type HTTPAuthManager struct {
	authType   config.AuthType
	authConfig map[string]string
}

// NewHTTPAuthManager creates a new HTTPAuthManager
func NewHTTPAuthManager(cfg *config.Config) *HTTPAuthManager {
	return &HTTPAuthManager{
		authType:   cfg.API.AuthType,
		authConfig: cfg.API.AuthConfig,
	}
}

// ApplyAuth adds authentication to the request
func (a *HTTPAuthManager) ApplyAuth(req *http.Request) error {
	switch a.authType {
	case config.AuthTypeNone, "":
		return nil
	case config.AuthTypeBearer:
		token := a.authConfig["token"]
		if token == "" {
			return fmt.Errorf("bearer auth configured without api.auth_config.token")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	case config.AuthTypeAPIKey:
		key := a.authConfig["key"]
		header := a.authConfig["header"]
		if header == "" {
			header = "X-API-Key"
		}
		req.Header.Set(header, key)
	default:
		return fmt.Errorf("unsupported auth type: %s", a.authType)
	}
	return nil
}
