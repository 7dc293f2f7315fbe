package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

var errFlaky = errors.New("flaky")

func fastPolicy(attempts int) Policy {
	return Policy{
		Attempts: attempts,
		Backoff:  Backoff{Initial: time.Millisecond, Max: 2 * time.Millisecond, Factor: 2},
	}
}

func retryFlaky(err error) Verdict {
	return Verdict{Retry: errors.Is(err, errFlaky), Trip: true}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	exec := NewExecutor(fastPolicy(3))

	calls := 0
	err := exec.Do(context.Background(), "nats.publish", func(context.Context) error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	}, retryFlaky)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoStopsOnPermanentFailure(t *testing.T) {
	exec := NewExecutor(fastPolicy(3))

	calls := 0
	errBad := errors.New("bad payload")
	err := exec.Do(context.Background(), "nats.publish", func(context.Context) error {
		calls++
		return errBad
	}, retryFlaky)
	if !errors.Is(err, errBad) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDoReturnsLastErrorWhenContextEnds(t *testing.T) {
	exec := NewExecutor(Policy{Attempts: 5, Backoff: Backoff{Initial: time.Hour, Max: time.Hour}})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	calls := 0
	err := exec.Do(ctx, "ollama.embed", func(context.Context) error {
		calls++
		return errFlaky
	}, retryFlaky)
	if !errors.Is(err, errFlaky) {
		t.Fatalf("expected last call error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestBackoffDelayIsCapped(t *testing.T) {
	b := Backoff{Initial: 10 * time.Millisecond, Max: 35 * time.Millisecond, Factor: 2}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 35 * time.Millisecond, 35 * time.Millisecond}
	for i, w := range want {
		if got := b.delay(i + 1); got != w {
			t.Fatalf("delay(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestBreakerOpensAndShortCircuits(t *testing.T) {
	p := fastPolicy(1)
	p.Breaker = &BreakerPolicy{MinRequests: 2, FailureRatio: 0.5, OpenFor: time.Minute, HalfOpenProbes: 1}
	exec := NewExecutor(p)

	for i := 0; i < 2; i++ {
		err := exec.Do(context.Background(), "nats.publish", func(context.Context) error {
			return errFlaky
		}, retryFlaky)
		if !errors.Is(err, errFlaky) {
			t.Fatalf("call %d: expected flaky error, got %v", i, err)
		}
	}

	err := exec.Do(context.Background(), "nats.publish", func(context.Context) error {
		t.Fatalf("open breaker must not invoke the call")
		return nil
	}, retryFlaky)
	if !errors.Is(err, gobreaker.ErrOpenState) || !IsCircuitOpen(err) {
		t.Fatalf("expected open state error, got %v", err)
	}
}

func TestBreakerIgnoresNonTrippingFailures(t *testing.T) {
	p := fastPolicy(1)
	p.Breaker = &BreakerPolicy{MinRequests: 1, FailureRatio: 0.1, OpenFor: time.Minute}
	exec := NewExecutor(p)

	ignore := func(error) Verdict { return Verdict{} }
	for i := 0; i < 3; i++ {
		_ = exec.Do(context.Background(), "nats.publish", func(context.Context) error {
			return context.Canceled
		}, ignore)
	}
	calls := 0
	if err := exec.Do(context.Background(), "nats.publish", func(context.Context) error {
		calls++
		return nil
	}, ignore); err != nil || calls != 1 {
		t.Fatalf("breaker should stay closed, err=%v calls=%d", err, calls)
	}
}

type observerFake struct {
	retries []string
	states  []string
}

func (o *observerFake) ObserveRetry(operation string) {
	o.retries = append(o.retries, operation)
}

func (o *observerFake) ObserveBreakerState(operation, state string) {
	o.states = append(o.states, operation+":"+state)
}

func TestObserverSeesRetriesAndTransitions(t *testing.T) {
	obs := &observerFake{}
	p := fastPolicy(2)
	p.Breaker = &BreakerPolicy{MinRequests: 1, FailureRatio: 0.5, OpenFor: time.Minute, HalfOpenProbes: 1}
	p.Observer = obs
	exec := NewExecutor(p)

	err := exec.Do(context.Background(), "ollama.embed", func(context.Context) error {
		return errFlaky
	}, retryFlaky)
	if !errors.Is(err, errFlaky) {
		t.Fatalf("expected flaky error, got %v", err)
	}
	if len(obs.retries) != 1 || obs.retries[0] != "ollama.embed" {
		t.Fatalf("expected one retry observation, got %v", obs.retries)
	}
	if len(obs.states) != 1 || obs.states[0] != "ollama.embed:open" {
		t.Fatalf("expected breaker open transition, got %v", obs.states)
	}
}
