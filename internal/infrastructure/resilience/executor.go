package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Verdict is a classifier's reading of one failed attempt.
type Verdict struct {
	// Retry asks for another attempt while the policy allows one.
	Retry bool
	// Trip counts the failure against the operation's breaker.
	Trip bool
}

type Classifier func(err error) Verdict

// Executor runs remote calls under a Policy. Breakers are kept per operation
// name, so one Executor can be shared by several call paths.
type Executor struct {
	policy Policy

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

func NewExecutor(policy Policy) *Executor {
	return &Executor{
		policy:   policy.withDefaults(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

// Do calls fn until it succeeds, the classifier refuses a retry, attempts run
// out, or ctx ends. The last error is returned unchanged.
func (e *Executor) Do(ctx context.Context, operation string, fn func(context.Context) error, classify Classifier) error {
	if fn == nil {
		return fmt.Errorf("resilience %s: nil call", operation)
	}
	if classify == nil {
		classify = func(error) Verdict { return Verdict{Trip: true} }
	}

	run := func() error { return e.attempt(ctx, operation, fn, classify) }
	if e.policy.Breaker == nil {
		return run()
	}
	_, err := e.breaker(operation, classify).Execute(func() (struct{}, error) {
		return struct{}{}, run()
	})
	return err
}

func (e *Executor) attempt(ctx context.Context, operation string, fn func(context.Context) error, classify Classifier) error {
	var err error
	for n := 1; ; n++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if n >= e.policy.Attempts || !classify(err).Retry {
			return err
		}

		wait := e.policy.Backoff.delay(n)
		slog.Warn("remote.retry",
			"operation", operation,
			"attempt", n,
			"max_attempts", e.policy.Attempts,
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)
		if e.policy.Observer != nil {
			e.policy.Observer.ObserveRetry(operation)
		}
		if !sleep(ctx, wait) {
			return err
		}
	}
}

func (e *Executor) breaker(operation string, classify Classifier) *gobreaker.CircuitBreaker[struct{}] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cb, ok := e.breakers[operation]; ok {
		return cb
	}
	bp := e.policy.Breaker
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        operation,
		MaxRequests: bp.HalfOpenProbes,
		Timeout:     bp.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= bp.MinRequests &&
				float64(c.TotalFailures)/float64(c.Requests) >= bp.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classify(err).Trip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("remote.breaker", "operation", name, "from", from.String(), "to", to.String())
			if e.policy.Observer != nil {
				e.policy.Observer.ObserveBreakerState(name, to.String())
			}
		},
	})
	e.breakers[operation] = cb
	return cb
}

// IsCircuitOpen reports whether err came from a breaker refusing the call.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
