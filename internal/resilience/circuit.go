// Package resilience wraps calls to upstream services (Alpha Vantage,
// Anthropic) with retries and per-service circuit breakers.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Upstream service names.
const (
	ServiceAlphaVantage = "alphavantage"
	ServiceAnthropic    = "anthropic"
)

// ErrCircuitOpen is returned without calling upstream while a breaker is open.
var ErrCircuitOpen = eris.New("resilience: circuit open")

// State is a breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return "unknown"
}

// BreakerConfig tunes a circuit breaker.
type BreakerConfig struct {
	// Threshold is the consecutive failures that open the circuit.
	Threshold int
	// Cooldown is how long the circuit stays open before a trial request is let through.
	Cooldown time.Duration
	// Counts decides which errors are failures. Defaults to IsTransient, so
	// a not-found ticker does not trip the breaker.
	Counts func(error) bool
}

// DefaultBreakerConfig returns the breaker defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{Threshold: 5, Cooldown: 30 * time.Second}
}

// Breaker is a consecutive-failure circuit breaker for one upstream service.
type Breaker struct {
	name string
	cfg  BreakerConfig
	now  func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a closed breaker.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	d := DefaultBreakerConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = d.Threshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = d.Cooldown
	}
	if cfg.Counts == nil {
		cfg.Counts = IsTransient
	}
	return &Breaker{name: name, cfg: cfg, now: time.Now}
}

// State reports the breaker state, accounting for an elapsed cooldown.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return HalfOpen
	}
	return b.state
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			return eris.Wrapf(ErrCircuitOpen, "resilience: %s", b.name)
		}
		b.setState(HalfOpen)
		b.probing = true
		return nil
	case HalfOpen:
		// One trial request at a time.
		if b.probing {
			return eris.Wrapf(ErrCircuitOpen, "resilience: %s probing", b.name)
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false

	if err == nil || !b.cfg.Counts(err) {
		b.failures = 0
		if b.state != Closed {
			b.setState(Closed)
		}
		return
	}

	b.failures++
	if b.state == HalfOpen || b.failures >= b.cfg.Threshold {
		b.openedAt = b.now()
		b.setState(Open)
	}
}

func (b *Breaker) setState(s State) {
	if b.state == s {
		return
	}
	zap.L().Info("circuit state change",
		zap.String("service", b.name),
		zap.Stringer("from", b.state),
		zap.Stringer("to", s),
	)
	b.state = s
}

// Execute runs fn if the breaker admits it and records the outcome.
func Execute[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	if err := b.allow(); err != nil {
		var zero T
		return zero, err
	}
	v, err := fn(ctx)
	b.record(err)
	return v, err
}

// Breakers holds one breaker per upstream service.
type Breakers struct {
	cfg BreakerConfig

	mu  sync.Mutex
	set map[string]*Breaker
}

// NewBreakers creates an empty registry sharing cfg.
func NewBreakers(cfg BreakerConfig) *Breakers {
	return &Breakers{cfg: cfg, set: make(map[string]*Breaker)}
}

// For returns the breaker for service, creating it on first use.
func (r *Breakers) For(service string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.set[service]
	if !ok {
		b = NewBreaker(service, r.cfg)
		r.set[service] = b
	}
	return b
}

// States snapshots every known breaker, for the health endpoint.
func (r *Breakers) States() map[string]string {
	r.mu.Lock()
	breakers := make([]*Breaker, 0, len(r.set))
	for _, b := range r.set {
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	out := make(map[string]string, len(breakers))
	for _, b := range breakers {
		out[b.name] = b.State().String()
	}
	return out
}

// Guard applies a retry policy and per-service breakers to upstream calls.
type Guard struct {
	Policy   Policy
	Breakers *Breakers
}

// NewGuard creates a Guard.
func NewGuard(p Policy, cfg BreakerConfig) *Guard {
	return &Guard{Policy: p, Breakers: NewBreakers(cfg)}
}

// Call runs fn against service with retries; each attempt passes through the
// service's breaker. An open circuit is not retried.
func Call[T any](ctx context.Context, g *Guard, service, operation string, fn func(context.Context) (T, error)) (T, error) {
	if g == nil {
		return fn(ctx)
	}
	p := g.Policy
	if p.OnRetry == nil {
		p.OnRetry = RetryLogger(service, operation)
	}
	b := g.Breakers.For(service)
	return Retry(ctx, p, func(ctx context.Context) (T, error) {
		return Execute(ctx, b, fn)
	})
}
