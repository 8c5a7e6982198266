package gate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeActuator struct {
	mu     sync.Mutex
	calls  int
	err    error
	delay  time.Duration
	active atomic.Int32
	peak   atomic.Int32
}

func (f *fakeActuator) Unlock(ctx context.Context) error {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeActuator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAttempt_Debounce(t *testing.T) {
	act := &fakeActuator{}
	g := New(act, 60*time.Second, []string{"Ali"}, WithLogger(quietLogger()))
	t0 := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	ctx := context.Background()

	steps := []struct {
		offset   time.Duration
		expected Outcome
	}{
		{0, Fired},
		{30 * time.Second, Suppressed},
		{59999 * time.Millisecond, Suppressed},
		{61 * time.Second, Fired},
		{120 * time.Second, Suppressed},
		{121 * time.Second, Fired},
	}

	for _, step := range steps {
		outcome, err := g.Attempt(ctx, "Ali", t0.Add(step.offset))
		if err != nil {
			t.Fatalf("t=%v: unexpected error %v", step.offset, err)
		}
		if outcome != step.expected {
			t.Errorf("t=%v: outcome = %v, want %v", step.offset, outcome, step.expected)
		}
	}

	if act.Calls() != 3 {
		t.Errorf("expected 3 actuator calls, got %d", act.Calls())
	}
	last, ok := g.LastTrigger()
	if !ok || !last.Equal(t0.Add(121*time.Second)) {
		t.Errorf("LastTrigger = %v, %v", last, ok)
	}
}

func TestAttempt_ExactCooldownFires(t *testing.T) {
	g := New(&fakeActuator{}, time.Minute, []string{"Ali"}, WithLogger(quietLogger()))
	t0 := time.Unix(1000, 0)

	if o, _ := g.Attempt(context.Background(), "Ali", t0); o != Fired {
		t.Fatalf("first attempt = %v, want fired", o)
	}
	if o, _ := g.Attempt(context.Background(), "Ali", t0.Add(time.Minute)); o != Fired {
		t.Errorf("attempt at exactly the cooldown = %v, want fired", o)
	}
}

func TestAttempt_FailureDoesNotStartCooldown(t *testing.T) {
	act := &fakeActuator{err: errors.New("connection refused")}
	g := New(act, 60*time.Second, []string{"Ali"}, WithLogger(quietLogger()))
	t0 := time.Unix(1000, 0)
	ctx := context.Background()

	outcome, err := g.Attempt(ctx, "Ali", t0)
	if outcome != Failed {
		t.Errorf("outcome = %v, want failed", outcome)
	}
	if !errors.Is(err, ErrActuation) {
		t.Errorf("expected ErrActuation, got %v", err)
	}
	if _, ok := g.LastTrigger(); ok {
		t.Error("failed unlock must not set the last trigger")
	}

	act.mu.Lock()
	act.err = nil
	act.mu.Unlock()

	outcome, err = g.Attempt(ctx, "Ali", t0.Add(time.Second))
	if err != nil || outcome != Fired {
		t.Errorf("retry after failure = %v, %v; want fired", outcome, err)
	}
	if act.Calls() != 2 {
		t.Errorf("expected 2 actuator calls, got %d", act.Calls())
	}
}

func TestAttempt_NotApplicable(t *testing.T) {
	act := &fakeActuator{}
	g := New(act, time.Minute, []string{"Ali", "  Sara ", ""}, WithLogger(quietLogger()))

	tests := []struct {
		label    string
		expected Outcome
	}{
		{"", NotApplicable},
		{"Jan", NotApplicable},
		{"ali", NotApplicable},
		{"Sara", Fired},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			outcome, err := g.Attempt(context.Background(), tt.label, time.Unix(0, 0))
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if outcome != tt.expected {
				t.Errorf("Attempt(%q) = %v, want %v", tt.label, outcome, tt.expected)
			}
		})
	}

	if act.Calls() != 1 {
		t.Errorf("expected 1 actuator call, got %d", act.Calls())
	}
}

func TestAttempt_ConcurrentFiresOnce(t *testing.T) {
	act := &fakeActuator{delay: 20 * time.Millisecond}
	g := New(act, time.Minute, []string{"Ali"}, WithLogger(quietLogger()))
	now := time.Unix(5000, 0)

	var wg sync.WaitGroup
	outcomes := make([]Outcome, 16)
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], _ = g.Attempt(context.Background(), "Ali", now)
		}(i)
	}
	wg.Wait()

	fired := 0
	for _, o := range outcomes {
		if o == Fired {
			fired++
		} else if o != Suppressed {
			t.Errorf("unexpected outcome %v", o)
		}
	}
	if fired != 1 {
		t.Errorf("expected exactly one fired outcome, got %d", fired)
	}
	if act.peak.Load() != 1 {
		t.Errorf("expected at most one concurrent unlock, saw %d", act.peak.Load())
	}
}

func TestStats(t *testing.T) {
	act := &fakeActuator{}
	g := New(act, time.Minute, []string{"Ali"}, WithLogger(quietLogger()))
	ctx := context.Background()
	t0 := time.Unix(0, 0)

	_, _ = g.Attempt(ctx, "Ali", t0)
	_, _ = g.Attempt(ctx, "Ali", t0.Add(time.Second))
	_, _ = g.Attempt(ctx, "Jan", t0)
	act.err = errors.New("boom")
	_, _ = g.Attempt(ctx, "Ali", t0.Add(2*time.Minute))

	expected := Stats{NotApplicable: 1, Suppressed: 1, Fired: 1, Failed: 1}
	if got := g.Stats(); got != expected {
		t.Errorf("Stats() = %+v, want %+v", got, expected)
	}
}

func TestOutcomeString(t *testing.T) {
	tests := []struct {
		outcome  Outcome
		expected string
	}{
		{NotApplicable, "not_applicable"},
		{Suppressed, "suppressed"},
		{Fired, "fired"},
		{Failed, "failed"},
		{Outcome(9), "outcome(9)"},
	}
	for _, tt := range tests {
		if got := tt.outcome.String(); got != tt.expected {
			t.Errorf("Outcome(%d).String() = %q, want %q", int(tt.outcome), got, tt.expected)
		}
	}
}
