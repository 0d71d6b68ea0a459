// Package flow drives a sign-in attempt from launch to a linked backend
// session, and the unread fetch that follows it.
package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/brizzai/zeroinbox/internal/auth/launcher"
	"github.com/brizzai/zeroinbox/internal/auth/request"
	"github.com/brizzai/zeroinbox/internal/backend"
	"github.com/brizzai/zeroinbox/internal/config"
	"github.com/brizzai/zeroinbox/internal/logger"
	"github.com/brizzai/zeroinbox/internal/models"
	"github.com/brizzai/zeroinbox/internal/status"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Status messages shown to the user
const (
	MsgAwaitingProvider = "Opening Google..."
	MsgExchanging       = "Exchanging token..."
	MsgLinked           = "Success! Tokens saved on backend."
	MsgRejected         = "Sign-in cancelled or failed"
	MsgMissingCode      = "Missing authorization code"
	MsgMissingVerifier  = "Missing code or verifier"
	MsgStateMismatch    = "Sign-in response did not match this attempt"
	MsgExchangeFailed   = "Failure during token exchange"
	MsgFetchingUnread   = "Fetching unread mail..."
	MsgUnreadFailed     = "Could not fetch unread mail"
)

// ErrNotReady is returned by Launch while the trigger must stay disabled
var ErrNotReady = errors.New("sign-in is not ready")

// Builder produces authorization requests
type Builder interface {
	Ready() bool
	Err() error
	UsePKCE() bool
	Build() (*request.AuthorizationRequest, error)
}

// Exchanger is the backend side of the flow
type Exchanger interface {
	Exchange(ctx context.Context, in backend.ExchangeRequest) backend.ExchangeResult
	FetchUnread(ctx context.Context, limit int) (int, error)
}

// Reporter receives every status change
type Reporter interface {
	Set(models.Status)
	Current() models.Status
}

// Attempt is one launched sign-in
type Attempt struct {
	Generation uint64
	Request    *request.AuthorizationRequest
}

// Params holds the flow's collaborators
type Params struct {
	fx.In

	Config    *config.Config
	Builder   Builder
	Launcher  launcher.Launcher
	Exchanger Exchanger
	Reporter  Reporter
}

// Flow is the authorization response handler. Only the most recently launched
// attempt may change the status; responses for older attempts are dropped.
type Flow struct {
	cfg       *config.Config
	builder   Builder
	launcher  launcher.Launcher
	exchanger Exchanger
	reporter  Reporter

	mu         sync.Mutex
	generation uint64
}

// New creates a Flow
func New(params Params) *Flow {
	return &Flow{
		cfg:       params.Config,
		builder:   params.Builder,
		launcher:  params.Launcher,
		exchanger: params.Exchanger,
		reporter:  params.Reporter,
	}
}

// Ready reports whether the sign-in trigger should be enabled
func (f *Flow) Ready() bool {
	return f.builder.Ready()
}

// Launch starts a new attempt: Idle → AwaitingProvider. It does nothing and
// returns ErrNotReady when the request builder is not ready.
func (f *Flow) Launch(ctx context.Context) (*Attempt, error) {
	if !f.builder.Ready() {
		return nil, fmt.Errorf("%w: %v", ErrNotReady, f.builder.Err())
	}

	req, err := f.builder.Build()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotReady, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.generation++
	attempt := &Attempt{Generation: f.generation, Request: req}

	logger.Info("sign-in launched",
		zap.String("attempt", req.AttemptID),
		zap.Uint64("generation", attempt.Generation),
		zap.Bool("pkce", req.UsesPKCE()),
	)
	f.reporter.Set(models.Status{
		Phase:     models.PhaseAwaitingProvider,
		Message:   MsgAwaitingProvider,
		AttemptID: req.AttemptID,
	})
	return attempt, nil
}

// SignIn launches an attempt, presents it and handles the provider's answer.
// It returns the status the attempt ended in.
func (f *Flow) SignIn(ctx context.Context) models.Status {
	attempt, err := f.Launch(ctx)
	if err != nil {
		logger.Warn("sign-in not launched", zap.Error(err))
		return models.Status{
			Phase:   models.PhaseRejected,
			Message: fmt.Sprintf("Sign-in unavailable: %v", f.builder.Err()),
			Kind:    models.KindConfigurationMissing,
		}
	}

	resp, err := f.launcher.Launch(ctx, attempt.Request)
	if err != nil {
		logger.Error("failed to present sign-in", zap.Error(err))
		return f.Fail(attempt, err)
	}
	return f.Handle(ctx, attempt, resp)
}

// Fail ends attempt as rejected because the consent screen could not be shown
func (f *Flow) Fail(attempt *Attempt, err error) models.Status {
	defer attempt.Request.Discard()
	return f.settle(attempt, models.Status{
		Phase:   models.PhaseRejected,
		Message: fmt.Sprintf("%s: %v", MsgRejected, err),
		Kind:    models.KindProviderRejected,
	})
}

// Handle consumes the provider's response for attempt. Every path ends in
// exactly one terminal status; only a well-formed success reaches the backend.
func (f *Flow) Handle(ctx context.Context, attempt *Attempt, resp models.AuthorizationResponse) models.Status {
	req := attempt.Request
	defer req.Discard()

	if !f.isCurrent(attempt) {
		logger.Debug("dropping response for stale attempt",
			zap.String("attempt", req.AttemptID),
			zap.String("type", string(resp.Type)),
		)
		return f.reporter.Current()
	}

	switch resp.Type {
	case models.ResponseDismiss, models.ResponseCancel, models.ResponseError:
		logger.Info("sign-in rejected", zap.String("attempt", req.AttemptID), zap.String("reason", resp.Reason()))
		return f.settle(attempt, models.Status{
			Phase:   models.PhaseRejected,
			Message: fmt.Sprintf("%s (%s)", MsgRejected, resp.Reason()),
			Kind:    models.KindProviderRejected,
		})

	case models.ResponseSuccess:
		// validated below

	default:
		return f.settle(attempt, models.Status{
			Phase:   models.PhaseRejected,
			Message: fmt.Sprintf("Unexpected sign-in response %q", resp.Type),
			Kind:    models.KindResponseMalformed,
		})
	}

	if state := resp.State(); state != "" && state != req.State {
		logger.Warn("state mismatch", zap.String("attempt", req.AttemptID))
		return f.settle(attempt, malformed(MsgStateMismatch))
	}

	code := resp.Code()
	if code == "" {
		logger.Warn("success response without code", zap.String("attempt", req.AttemptID))
		return f.settle(attempt, malformed(MsgMissingCode))
	}

	requireVerifier := f.builder.UsePKCE()
	if requireVerifier && req.CodeVerifier == "" {
		logger.Warn("pkce verifier missing", zap.String("attempt", req.AttemptID))
		return f.settle(attempt, malformed(MsgMissingVerifier))
	}

	if !f.transition(attempt, models.Status{Phase: models.PhaseExchangingCode, Message: MsgExchanging}) {
		return f.reporter.Current()
	}

	result := f.exchanger.Exchange(ctx, backend.ExchangeRequest{
		Code:            code,
		CodeVerifier:    req.CodeVerifier,
		ClientID:        req.ClientID,
		RedirectURI:     req.RedirectURI,
		RequireVerifier: requireVerifier,
	})

	if !result.OK {
		var msg string
		kind := models.KindExchangeTransportFailure
		if result.Err != nil {
			msg = fmt.Sprintf("%s: %v", MsgExchangeFailed, result.Err)
			kind = result.Err.Kind
		} else {
			msg = MsgExchangeFailed
		}
		logger.Error("exchange failed", zap.String("attempt", req.AttemptID), zap.String("kind", string(kind)))
		return f.settle(attempt, models.Status{
			Phase:   models.PhaseExchangeFailed,
			Message: msg,
			Kind:    kind,
		})
	}

	logger.Info("backend linked", zap.String("attempt", req.AttemptID))
	return f.settle(attempt, models.Status{Phase: models.PhaseExchangeSucceeded, Message: MsgLinked})
}

// FetchUnread reads the unread count. It is not gated on a linked session:
// an unlinked backend answers with an error that is reported as a failure.
// A zero limit means the configured default; a negative one is a failure.
func (f *Flow) FetchUnread(ctx context.Context, limit int) models.Status {
	if limit == 0 {
		limit = f.cfg.Unread.Limit
	}

	f.reporter.Set(models.Status{Phase: models.PhaseFetchingUnread, Message: MsgFetchingUnread})

	count, err := f.exchanger.FetchUnread(ctx, limit)
	var s models.Status
	if err != nil {
		logger.Warn("unread fetch failed", zap.Error(err))
		s = models.Status{
			Phase:   models.PhaseUnreadFetchFailed,
			Message: fmt.Sprintf("%s: %v", MsgUnreadFailed, err),
			Kind:    backend.KindOf(err, models.KindUnreadFetchFailure),
		}
	} else {
		s = models.Status{
			Phase:   models.PhaseUnreadFetched,
			Message: fmt.Sprintf("Unread: %d", count),
			Unread:  count,
		}
	}
	f.reporter.Set(s)
	return s
}

func malformed(msg string) models.Status {
	return models.Status{Phase: models.PhaseRejected, Message: msg, Kind: models.KindResponseMalformed}
}

func (f *Flow) isCurrent(attempt *Attempt) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return attempt.Generation == f.generation
}

// transition sets s if attempt is still current; the check and the write
// happen under the same lock so a newer launch cannot interleave.
func (f *Flow) transition(attempt *Attempt, s models.Status) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if attempt.Generation != f.generation {
		return false
	}
	s.AttemptID = attempt.Request.AttemptID
	f.reporter.Set(s)
	return true
}

// settle writes a terminal status for attempt, or drops it if a newer
// attempt was launched meanwhile.
func (f *Flow) settle(attempt *Attempt, s models.Status) models.Status {
	if !f.transition(attempt, s) {
		logger.Debug("dropping outcome for stale attempt",
			zap.String("attempt", attempt.Request.AttemptID),
			zap.String("phase", string(s.Phase)),
		)
		return f.reporter.Current()
	}
	s.AttemptID = attempt.Request.AttemptID
	return s
}

// Module provides the flow
var Module = fx.Module("flow",
	fx.Provide(
		New,
		func(b *request.Builder) Builder { return b },
		func(c *backend.Client) Exchanger { return c },
		func(r *status.Reporter) Reporter { return r },
	),
)
