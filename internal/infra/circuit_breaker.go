package infra

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ── Circuit Breaker ───────────────────────────────────────────────────────────
// Closed → Open after FailureThreshold consecutive failures; Open → Half-Open
// once OpenTimeout has passed; Half-Open → Closed after SuccessThreshold
// trial calls succeed, or straight back to Open on the first failed trial.

type CBState int

const (
	CBClosed CBState = iota
	CBOpen
	CBHalfOpen
)

func (s CBState) String() string {
	switch s {
	case CBClosed:
		return "closed"
	case CBOpen:
		return "open"
	case CBHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned by Execute while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration
}

// DefaultCBConfig suits an SMTP relay: alerts are rare, so trip fast and
// try again after a minute.
func DefaultCBConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 3,
		SuccessThreshold: 1,
		OpenTimeout:      time.Minute,
	}
}

type CircuitBreaker struct {
	cfg CircuitBreakerConfig
	now func() time.Time

	mu        sync.Mutex
	state     CBState
	failures  int
	successes int
	openedAt  time.Time
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCBConfig(cfg.Name)
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

func (cb *CircuitBreaker) State() CBState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentLocked()
}

func (cb *CircuitBreaker) currentLocked() CBState {
	if cb.state == CBOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.OpenTimeout {
		cb.state = CBHalfOpen
		cb.successes = 0
	}
	return cb.state
}

// Execute runs fn unless the breaker is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if cb.State() == CBOpen {
		return ErrCircuitOpen
	}
	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.failLocked()
		return err
	}
	cb.succeedLocked()
	return nil
}

func (cb *CircuitBreaker) failLocked() {
	cb.failures++
	if cb.state == CBHalfOpen || cb.failures >= cb.cfg.FailureThreshold {
		if cb.state != CBOpen {
			log.Warn().Str("breaker", cb.cfg.Name).Int("failures", cb.failures).Msg("circuit breaker opened")
		}
		cb.state = CBOpen
		cb.openedAt = cb.now()
		cb.failures = 0
		cb.successes = 0
	}
}

func (cb *CircuitBreaker) succeedLocked() {
	cb.failures = 0
	if cb.state != CBHalfOpen {
		return
	}
	cb.successes++
	if cb.successes >= cb.cfg.SuccessThreshold {
		cb.state = CBClosed
		cb.successes = 0
		log.Info().Str("breaker", cb.cfg.Name).Msg("circuit breaker closed")
	}
}
