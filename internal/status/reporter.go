// Package status holds the single current-phase value shown to the user.
package status

import (
	"sync"

	"github.com/brizzai/zeroinbox/internal/logger"
	"github.com/brizzai/zeroinbox/internal/models"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Reporter is a current-value holder with replace-and-notify semantics.
// There is no history: observers only ever see the latest value.
type Reporter struct {
	// notifyMu orders whole Set calls so observers end on the same value as Current
	notifyMu  sync.Mutex
	mu        sync.Mutex
	current   models.Status
	nextID    int
	observers []observer
}

type observer struct {
	id int
	fn func(models.Status)
}

// NewReporter creates a Reporter starting at Idle
func NewReporter() *Reporter {
	return &Reporter{current: models.IdleStatus()}
}

// Current returns the latest status
func (r *Reporter) Current() models.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Set replaces the current status and notifies observers in subscription order.
// Observers run on the caller's goroutine and may read Current, but must not
// call Set. Concurrent calls deliver in the order they stored.
func (r *Reporter) Set(s models.Status) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	r.current = s
	observers := make([]observer, len(r.observers))
	copy(observers, r.observers)
	r.mu.Unlock()

	logger.Debug("status changed",
		zap.String("phase", string(s.Phase)),
		zap.String("message", s.Message),
		zap.String("attempt", s.AttemptID),
	)

	for _, o := range observers {
		o.fn(s)
	}
}

// Subscribe registers fn for future changes and returns a function removing it
func (r *Reporter) Subscribe(fn func(models.Status)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.observers = append(r.observers, observer{id: id, fn: fn})

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, o := range r.observers {
			if o.id == id {
				r.observers = append(r.observers[:i], r.observers[i+1:]...)
				return
			}
		}
	}
}

// Module provides the status reporter
var Module = fx.Module("status",
	fx.Provide(NewReporter),
)
