package circuitbreaker

import "time"

// Config holds the configuration for a circuit breaker.
type Config struct {
	// Name identifies the circuit breaker in logs and metrics.
	Name string

	// Enabled determines whether the circuit breaker is active.
	// When false, New returns nil and Execute passes through directly.
	Enabled bool

	// MaxRequests is the number of probe requests allowed while half-open.
	// Zero means one.
	MaxRequests uint

	// Interval clears the closed-state counts periodically. Zero keeps them.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing. Zero means 60s.
	Timeout time.Duration

	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint

	// IsSuccessful reports whether an error returned by the protected call
	// should count as a success. Errors caused by the caller (bad input,
	// unknown entity) must not open the breaker. Nil counts only nil as success.
	IsSuccessful func(err error) bool

	// OnStateChange is invoked on every transition.
	OnStateChange func(name string, from, to State)
}
