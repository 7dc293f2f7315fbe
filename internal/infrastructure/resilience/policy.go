package resilience

import "time"

// Policy bounds how often a remote call is repeated and when its breaker
// stops letting calls through.
type Policy struct {
	Attempts int
	Backoff  Backoff
	// Breaker is nil when the call path should never short-circuit.
	Breaker  *BreakerPolicy
	Observer Observer
}

type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
}

type BreakerPolicy struct {
	MinRequests    uint32
	FailureRatio   float64
	OpenFor        time.Duration
	HalfOpenProbes uint32
}

// Observer receives retry and breaker transitions, typically a metrics sink.
type Observer interface {
	ObserveRetry(operation string)
	ObserveBreakerState(operation, state string)
}

// NotifyPolicy guards routing notifications. They run inside the analyze
// request, so retries stay short and a dead broker is cut off quickly.
func NotifyPolicy() Policy {
	return Policy{
		Attempts: 2,
		Backoff:  Backoff{Initial: 50 * time.Millisecond, Max: 200 * time.Millisecond, Factor: 2},
		Breaker: &BreakerPolicy{
			MinRequests:    5,
			FailureRatio:   0.5,
			OpenFor:        15 * time.Second,
			HalfOpenProbes: 1,
		},
	}
}

// EmbedPolicy guards embedding batches in the offline ingest run, where
// waiting for a model to load is cheaper than failing the file.
func EmbedPolicy() Policy {
	return Policy{
		Attempts: 4,
		Backoff:  Backoff{Initial: 500 * time.Millisecond, Max: 8 * time.Second, Factor: 2},
	}
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.Backoff.Initial <= 0 {
		p.Backoff.Initial = 100 * time.Millisecond
	}
	if p.Backoff.Max < p.Backoff.Initial {
		p.Backoff.Max = p.Backoff.Initial
	}
	if p.Backoff.Factor < 1 {
		p.Backoff.Factor = 2
	}
	if b := p.Breaker; b != nil {
		cp := *b
		if cp.MinRequests == 0 {
			cp.MinRequests = 5
		}
		if cp.FailureRatio <= 0 || cp.FailureRatio > 1 {
			cp.FailureRatio = 0.5
		}
		if cp.OpenFor <= 0 {
			cp.OpenFor = 30 * time.Second
		}
		if cp.HalfOpenProbes == 0 {
			cp.HalfOpenProbes = 1
		}
		p.Breaker = &cp
	}
	return p
}

// delay returns the wait before retry number n (1-based).
func (b Backoff) delay(n int) time.Duration {
	d := float64(b.Initial)
	for i := 1; i < n; i++ {
		d *= b.Factor
		if d >= float64(b.Max) {
			return b.Max
		}
	}
	return time.Duration(d)
}
