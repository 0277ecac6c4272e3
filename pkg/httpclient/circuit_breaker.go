package httpclient

import (
	"errors"
	"sync"
	"time"

	"github.com/IgorGrieder/minimizurl/internal/infrastructure/logger"
	"go.uber.org/zap"
)

type State int

const (
	StateClosed State = iota + 1
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker opens after maxFailures consecutive failures and lets a
// single probe through once openTimeout has passed.
type CircuitBreaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	maxFailures int
	openSince   time.Time
	openTimeout time.Duration
	now         func() time.Time
}

func NewCircuitBreaker(maxFailures int, openTimeout time.Duration) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}
	return &CircuitBreaker{
		state:       StateClosed,
		maxFailures: maxFailures,
		openTimeout: openTimeout,
		now:         time.Now,
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) CheckBeforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openSince) < cb.openTimeout {
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		return nil
	case StateHalfOpen:
		// probe in flight
		return ErrCircuitOpen
	default:
		return nil
	}
}

func (cb *CircuitBreaker) OnSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.transition(StateClosed)
	}
}

func (cb *CircuitBreaker) OnFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.open()
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.maxFailures {
			cb.open()
		}
	}
}

func (cb *CircuitBreaker) open() {
	cb.openSince = cb.now()
	cb.transition(StateOpen)
}

func (cb *CircuitBreaker) transition(to State) {
	logger.Warn("circuit breaker state change",
		zap.Stringer("from", cb.state),
		zap.Stringer("to", to),
		zap.Int("failures", cb.failures),
	)
	cb.state = to
}
