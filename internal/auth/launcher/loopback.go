package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/brizzai/zeroinbox/internal/auth/request"
	"github.com/brizzai/zeroinbox/internal/config"
	"github.com/brizzai/zeroinbox/internal/logger"
	"github.com/brizzai/zeroinbox/internal/models"
	"github.com/pkg/browser"
	"go.uber.org/zap"
)

const (
	// shutdownTimeout is the maximum time to wait for the callback server to stop
	shutdownTimeout = 2 * time.Second

	defaultConsentTimeout = 5 * time.Minute
)

const callbackPage = `<!doctype html>
<html><head><meta charset="utf-8"><title>ZeroInbox</title></head>
<body style="font-family:sans-serif;text-align:center;margin-top:4em">
<h2>%s</h2><p>You can close this window and return to the terminal.</p>
</body></html>`

// Loopback receives the redirect on a local HTTP listener bound to the
// redirect URI's host and port.
type Loopback struct {
	out            io.Writer
	consentTimeout time.Duration

	// Open shows url to the user; defaults to the system browser
	Open func(url string) error
}

// NewLoopback creates a loopback launcher
func NewLoopback(cfg *config.Config, out io.Writer) *Loopback {
	timeout := cfg.OAuth.ConsentTimeout
	if timeout <= 0 {
		timeout = defaultConsentTimeout
	}
	return &Loopback{
		out:            out,
		consentTimeout: timeout,
		Open:           browser.OpenURL,
	}
}

// Launch serves the callback, opens the consent page and waits. Context
// cancellation yields a cancel response; the consent timeout a dismiss.
func (l *Loopback) Launch(ctx context.Context, req *request.AuthorizationRequest) (models.AuthorizationResponse, error) {
	redirect, err := url.Parse(req.RedirectURI)
	if err != nil {
		return models.AuthorizationResponse{}, fmt.Errorf("invalid redirect uri: %w", err)
	}
	if redirect.Scheme != "http" || redirect.Host == "" {
		return models.AuthorizationResponse{}, fmt.Errorf("loopback launcher needs an http redirect uri, got %q", req.RedirectURI)
	}

	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return models.AuthorizationResponse{}, fmt.Errorf("failed to listen on %s: %w", redirect.Host, err)
	}

	path := redirect.Path
	if path == "" {
		path = "/"
	}

	responses := make(chan models.AuthorizationResponse, 1)
	var once sync.Once

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		resp := models.ParseAuthorizationResponse(r.URL.Query())
		delivered := false
		once.Do(func() {
			responses <- resp
			delivered = true
		})

		title := "Sign-in received"
		if !delivered {
			title = "This sign-in was already handled"
		} else if resp.Type != models.ResponseSuccess {
			title = "Sign-in was not completed"
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, callbackPage, title)
	})

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting callback server",
			zap.String("address", listener.Addr().String()),
			zap.String("path", path),
		)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("callback server error: %w", err)
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("callback server shutdown error", zap.Error(err))
		}
	}()

	fmt.Fprintf(l.out, "Opening Google sign-in in your browser. If it does not open, visit:\n%s\n", req.AuthURL)
	if l.Open != nil {
		if err := l.Open(req.AuthURL); err != nil {
			logger.Warn("failed to open browser", zap.Error(err))
		}
	}

	timer := time.NewTimer(l.consentTimeout)
	defer timer.Stop()

	select {
	case resp := <-responses:
		logger.Debug("callback received", zap.String("type", string(resp.Type)))
		return resp, nil
	case err := <-errChan:
		return models.AuthorizationResponse{}, err
	case <-timer.C:
		logger.Info("consent timed out", zap.Duration("timeout", l.consentTimeout))
		return models.Dismissed(), nil
	case <-ctx.Done():
		return models.Cancelled(), nil
	}
}
