package resilience

// HealthStatus reports a breaker's state for health endpoints.
type HealthStatus struct {
	// Name is the guarded dependency.
	Name string `json:"name"`

	// Healthy is false only while the breaker is open.
	Healthy bool `json:"healthy"`

	// State is "closed", "half-open" or "open".
	State string `json:"state"`

	Requests             uint32 `json:"requests"`
	TotalSuccesses       uint32 `json:"total_successes"`
	TotalFailures        uint32 `json:"total_failures"`
	ConsecutiveFailures  uint32 `json:"consecutive_failures"`
	ConsecutiveSuccesses uint32 `json:"consecutive_successes"`
}

// HealthReporter is implemented by anything that owns a breaker.
type HealthReporter interface {
	GetHealth() HealthStatus
}
