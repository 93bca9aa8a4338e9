package model

import "time"

//go:generate stringer -type=ExchangeStatus
type ExchangeStatus int16

const (
	StatusUnknown ExchangeStatus = iota
	StatusHealthy
	StatusDegraded
	StatusUnhealthy
)

func (s ExchangeStatus) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	}
	return "unknown"
}

// ExchangeHealth is the rolling health summary of one exchange adapter.
// It is owned by the failover controller; only the prober (or an explicit
// failover trigger) mutates it.
type ExchangeHealth struct {
	Status              ExchangeStatus
	Latency             time.Duration
	ErrorRate           float64
	LastCheck           time.Time
	LastSuccess         time.Time
	ConsecutiveFailures int
	LastError           string
}

// Available reports whether the exchange can currently serve traffic.
// Degraded counts as available: slow beats absent.
func (h ExchangeHealth) Available() bool {
	return h.Status == StatusHealthy || h.Status == StatusDegraded
}

// FailoverReason is the closed set of causes that can move the primary role.
type FailoverReason string

const (
	ReasonConnectionTimeout FailoverReason = "connection_timeout"
	ReasonAPIError          FailoverReason = "api_error"
	ReasonRateLimitExceeded FailoverReason = "rate_limit_exceeded"
	ReasonManualTrigger     FailoverReason = "manual_trigger"
	ReasonHealthCheckFailed FailoverReason = "health_check_failed"
	ReasonHighLatency       FailoverReason = "high_latency"
	ReasonFailback          FailoverReason = "failback"
)

// CircuitState is the three-state circuit breaker phase. It never leaves
// the breaker; external code observes it only through snapshots.
type CircuitState int32

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	}
	return "invalid"
}
