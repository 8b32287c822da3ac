package resilience

import (
	"context"
	"sort"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is blocking all requests.
	StateOpen
	// StateHalfOpen means the circuit is testing if the service recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state as its String form.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseState parses the output of State.String.
func ParseState(s string) (State, bool) {
	switch s {
	case "closed":
		return StateClosed, true
	case "open":
		return StateOpen, true
	case "half-open", "half_open":
		return StateHalfOpen, true
	default:
		return StateClosed, false
	}
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of failures before opening a circuit.
	// Default: 5
	FailureThreshold int

	// RecoveryTimeout is how long a circuit stays open before a trial call.
	// Default: 60 seconds
	RecoveryTimeout time.Duration

	// MonitoringPeriod bounds how long failures are remembered by Cleanup.
	// Default: 10 minutes
	MonitoringPeriod time.Duration

	// OnStateChange is called when a service's circuit changes state.
	// It runs outside the breaker lock.
	OnStateChange func(service string, from, to State)

	// IsFailure determines if an error should count as a failure.
	// Default: all non-nil errors are failures.
	IsFailure func(err error) bool

	// Now returns the current time. Default: time.Now
	Now func() time.Time
}

// CircuitSettings overrides the breaker defaults for one service.
// Zero fields inherit the CircuitBreakerConfig values.
type CircuitSettings struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
}

// CircuitStats is a snapshot of one service's circuit.
// Zero timestamps mean "never" and are omitted from JSON.
type CircuitStats struct {
	Service       string    `json:"service"`
	State         State     `json:"state"`
	Failures      int       `json:"failures"`
	Successes     int       `json:"successes"`
	TotalRequests int64     `json:"totalRequests"`
	LastFailureAt time.Time `json:"lastFailureAt,omitzero"`
	LastSuccessAt time.Time `json:"lastSuccessAt,omitzero"`
	NextAttemptAt time.Time `json:"nextAttemptAt,omitzero"`
}

type circuit struct {
	state         State
	failures      int
	successes     int
	totalRequests int64
	lastFailureAt time.Time
	lastSuccessAt time.Time
	nextAttemptAt time.Time
}

type transition struct {
	service  string
	from, to State
}

// CircuitBreaker keeps one circuit per service name.
//
// Failures accumulate while a circuit is closed; only a success in the
// half-open state (or Cleanup, or an explicit reset) clears them. The
// half-open state admits every caller that arrives, not a single trial request.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu       sync.Mutex
	circuits map[string]*circuit
	settings map[string]CircuitSettings
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	// Apply defaults
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	if config.MonitoringPeriod <= 0 {
		config.MonitoringPeriod = 10 * time.Minute
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &CircuitBreaker{
		config:   config,
		circuits: make(map[string]*circuit),
		settings: make(map[string]CircuitSettings),
	}
}

// Config returns the effective configuration.
func (cb *CircuitBreaker) Config() CircuitBreakerConfig {
	return cb.config
}

// Configure sets the threshold and recovery timeout for service. The zero
// CircuitSettings restores the defaults. Settings survive ResetService.
func (cb *CircuitBreaker) Configure(service string, s CircuitSettings) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if s == (CircuitSettings{}) {
		delete(cb.settings, service)
		return
	}
	cb.settings[service] = s
}

// Settings returns the effective settings for service.
func (cb *CircuitBreaker) Settings(service string) CircuitSettings {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.settingsLocked(service)
}

// IsOpen is the gate check for service. An open circuit whose recovery
// timeout has passed moves to half-open here and the call is admitted.
func (cb *CircuitBreaker) IsOpen(service string) bool {
	cb.mu.Lock()
	c := cb.circuitLocked(service)
	t, moved := cb.halfOpenLocked(service, c)
	open := c.state == StateOpen
	cb.mu.Unlock()

	if moved {
		cb.notify(t)
	}
	return open
}

// Execute runs op unless the circuit for service is open. The outcome is
// recorded exactly once and op's error is returned unchanged.
func (cb *CircuitBreaker) Execute(ctx context.Context, service string, op func(context.Context) error) error {
	if cb.IsOpen(service) {
		return &CircuitOpenError{Service: service, RetryAfter: cb.RetryAfter(service)}
	}

	err := op(ctx)
	if cb.config.IsFailure(err) {
		cb.RecordFailure(service)
	} else {
		cb.RecordSuccess(service)
	}
	return err
}

// RecordSuccess records a successful call. A half-open circuit closes and
// its failure count is cleared.
func (cb *CircuitBreaker) RecordSuccess(service string) {
	cb.mu.Lock()
	c := cb.circuitLocked(service)
	c.successes++
	c.totalRequests++
	c.lastSuccessAt = cb.config.Now()

	var transitions []transition
	if c.state == StateHalfOpen {
		transitions = append(transitions, cb.setStateLocked(service, c, StateClosed))
		c.failures = 0
	}
	cb.mu.Unlock()

	cb.notify(transitions...)
}

// RecordFailure records a failed call and opens the circuit once the
// failure threshold is met.
func (cb *CircuitBreaker) RecordFailure(service string) {
	cb.mu.Lock()
	now := cb.config.Now()
	c := cb.circuitLocked(service)
	c.failures++
	c.totalRequests++
	c.lastFailureAt = now

	var transitions []transition
	if c.state != StateOpen && c.failures >= cb.settingsLocked(service).FailureThreshold {
		transitions = append(transitions, cb.setStateLocked(service, c, StateOpen))
	}
	cb.mu.Unlock()

	cb.notify(transitions...)
}

// RetryAfter returns the time until an open circuit admits a trial call,
// or zero when the circuit is not open.
func (cb *CircuitBreaker) RetryAfter(service string) time.Duration {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c, ok := cb.circuits[service]
	if !ok || c.state != StateOpen {
		return 0
	}
	if d := c.nextAttemptAt.Sub(cb.config.Now()); d > 0 {
		return d
	}
	return 0
}

// Stats returns a snapshot of the circuit for service. It does not create
// the circuit and does not perform the open to half-open transition.
func (cb *CircuitBreaker) Stats(service string) CircuitStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c, ok := cb.circuits[service]
	if !ok {
		return CircuitStats{Service: service, State: StateClosed}
	}
	return c.snapshot(service)
}

// AllStats returns a snapshot of every known circuit, sorted by service.
func (cb *CircuitBreaker) AllStats() []CircuitStats {
	cb.mu.Lock()
	out := make([]CircuitStats, 0, len(cb.circuits))
	for name, c := range cb.circuits {
		out = append(out, c.snapshot(name))
	}
	cb.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out
}

// ResetService forgets everything about service; its next call starts closed.
func (cb *CircuitBreaker) ResetService(service string) {
	cb.mu.Lock()
	c, ok := cb.circuits[service]
	delete(cb.circuits, service)
	cb.mu.Unlock()

	if ok && c.state != StateClosed {
		cb.notify(transition{service: service, from: c.state, to: StateClosed})
	}
}

// ForceState moves the circuit for service into state. Forcing open arms a
// fresh recovery timeout; forcing closed clears the failure count.
func (cb *CircuitBreaker) ForceState(service string, state State) {
	cb.mu.Lock()
	c := cb.circuitLocked(service)
	t := cb.setStateLocked(service, c, state)
	if state == StateClosed {
		c.failures = 0
	}
	cb.mu.Unlock()

	if t.from != t.to {
		cb.notify(t)
	}
}

// Cleanup clears stale failure counts on closed circuits and moves overdue
// open circuits to half-open. It returns the number of circuits adjusted.
func (cb *CircuitBreaker) Cleanup() int {
	cb.mu.Lock()
	now := cb.config.Now()
	cutoff := now.Add(-cb.config.MonitoringPeriod)

	adjusted := 0
	var transitions []transition
	for name, c := range cb.circuits {
		switch c.state {
		case StateClosed:
			if c.failures > 0 && c.lastFailureAt.Before(cutoff) {
				c.failures = 0
				adjusted++
			}
		case StateOpen:
			if t, moved := cb.halfOpenLocked(name, c); moved {
				transitions = append(transitions, t)
				adjusted++
			}
		}
	}
	cb.mu.Unlock()

	cb.notify(transitions...)
	return adjusted
}

// Close drops all circuit state and per-service settings.
func (cb *CircuitBreaker) Close() {
	cb.mu.Lock()
	cb.circuits = make(map[string]*circuit)
	cb.settings = make(map[string]CircuitSettings)
	cb.mu.Unlock()
}

func (cb *CircuitBreaker) settingsLocked(service string) CircuitSettings {
	s := cb.settings[service]
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = cb.config.FailureThreshold
	}
	if s.RecoveryTimeout <= 0 {
		s.RecoveryTimeout = cb.config.RecoveryTimeout
	}
	return s
}

func (cb *CircuitBreaker) circuitLocked(service string) *circuit {
	c, ok := cb.circuits[service]
	if !ok {
		c = &circuit{state: StateClosed}
		cb.circuits[service] = c
	}
	return c
}

// halfOpenLocked performs the lazy open to half-open transition.
func (cb *CircuitBreaker) halfOpenLocked(service string, c *circuit) (transition, bool) {
	if c.state == StateOpen && cb.config.Now().After(c.nextAttemptAt) {
		return cb.setStateLocked(service, c, StateHalfOpen), true
	}
	return transition{}, false
}

func (cb *CircuitBreaker) setStateLocked(service string, c *circuit, state State) transition {
	t := transition{service: service, from: c.state, to: state}
	c.state = state
	if state == StateOpen {
		c.nextAttemptAt = cb.config.Now().Add(cb.settingsLocked(service).RecoveryTimeout)
	}
	return t
}

func (cb *CircuitBreaker) notify(transitions ...transition) {
	if cb.config.OnStateChange == nil {
		return
	}
	for _, t := range transitions {
		cb.config.OnStateChange(t.service, t.from, t.to)
	}
}

func (c *circuit) snapshot(service string) CircuitStats {
	return CircuitStats{
		Service:       service,
		State:         c.state,
		Failures:      c.failures,
		Successes:     c.successes,
		TotalRequests: c.totalRequests,
		LastFailureAt: c.lastFailureAt,
		LastSuccessAt: c.lastSuccessAt,
		NextAttemptAt: c.nextAttemptAt,
	}
}
