// Package gate decides whether a recognized identity may unlock the door and fires
// the actuator at most once per cooldown window.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/facegate/internal/facematch"
)

// ErrActuation wraps every failure reported by the actuator.
var ErrActuation = errors.New("actuation failed")

// Actuator performs the physical unlock.
type Actuator interface {
	Unlock(ctx context.Context) error
}

// Outcome is the result of one Attempt.
type Outcome int

const (
	NotApplicable Outcome = iota // label is not authorized
	Suppressed                   // inside the cooldown window
	Fired                        // actuator succeeded
	Failed                       // actuator returned an error
)

func (o Outcome) String() string {
	switch o {
	case NotApplicable:
		return "not_applicable"
	case Suppressed:
		return "suppressed"
	case Fired:
		return "fired"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Stats counts attempts per outcome since the gate was created.
type Stats struct {
	NotApplicable uint64 `json:"not_applicable"`
	Suppressed    uint64 `json:"suppressed"`
	Fired         uint64 `json:"fired"`
	Failed        uint64 `json:"failed"`
}

// Gate serializes check-then-fire so concurrent attempts never double fire.
// State lives in memory only.
type Gate struct {
	actuator   Actuator
	cooldown   time.Duration
	authorized map[string]struct{}
	logger     *slog.Logger

	mu          sync.Mutex
	lastTrigger time.Time
	triggered   bool

	counts [4]atomic.Uint64
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the logger used for outcome messages.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// New creates a gate for the given authorized labels. Labels are compared after
// NormalizeLabel; empty entries are ignored.
func New(actuator Actuator, cooldown time.Duration, authorized []string, opts ...Option) *Gate {
	g := &Gate{
		actuator:   actuator,
		cooldown:   cooldown,
		authorized: make(map[string]struct{}, len(authorized)),
		logger:     slog.Default(),
	}
	for _, label := range authorized {
		if label = facematch.NormalizeLabel(label); label != "" {
			g.authorized[label] = struct{}{}
		}
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authorized reports whether label may trigger the actuator.
func (g *Gate) Authorized(label string) bool {
	if label == "" {
		return false
	}
	_, ok := g.authorized[label]
	return ok
}

// Attempt fires the actuator for an authorized label unless a successful unlock
// happened less than the cooldown before now. The lock is held while the actuator
// runs, so callers queue behind an in-flight unlock. A failed unlock leaves the
// cooldown untouched and returns an error wrapping ErrActuation.
func (g *Gate) Attempt(ctx context.Context, label string, now time.Time) (Outcome, error) {
	if !g.Authorized(label) {
		return g.record(NotApplicable), nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.triggered && now.Sub(g.lastTrigger) < g.cooldown {
		g.logger.Debug("unlock suppressed", "label", label, "last_trigger", g.lastTrigger)
		return g.record(Suppressed), nil
	}

	if err := g.actuator.Unlock(ctx); err != nil {
		g.logger.Error("unlock failed", "label", label, "error", err)
		return g.record(Failed), fmt.Errorf("%w: %w", ErrActuation, err)
	}

	g.lastTrigger = now
	g.triggered = true
	g.logger.Info("door unlocked", "label", label)
	return g.record(Fired), nil
}

func (g *Gate) record(o Outcome) Outcome {
	g.counts[o].Add(1)
	return o
}

// LastTrigger returns the time of the last successful unlock.
func (g *Gate) LastTrigger() (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastTrigger, g.triggered
}

// Cooldown returns the configured cooldown window.
func (g *Gate) Cooldown() time.Duration {
	return g.cooldown
}

// Stats returns a snapshot of the outcome counters.
func (g *Gate) Stats() Stats {
	return Stats{
		NotApplicable: g.counts[NotApplicable].Load(),
		Suppressed:    g.counts[Suppressed].Load(),
		Fired:         g.counts[Fired].Load(),
		Failed:        g.counts[Failed].Load(),
	}
}
