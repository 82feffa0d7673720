package models

import "time"

// EndpointClass groups endpoints that share a limit.
type EndpointClass string

const (
	// ClassRead covers session reads and score lookups.
	ClassRead EndpointClass = "read"
	// ClassWrite covers step submissions and navigation.
	ClassWrite EndpointClass = "write"
	// ClassVerify covers session starts and validation runs.
	ClassVerify EndpointClass = "verify"
)

// IsValid reports whether c is a known class.
func (c EndpointClass) IsValid() bool {
	switch c {
	case ClassRead, ClassWrite, ClassVerify:
		return true
	}
	return false
}

// Limit is a sliding-window allowance.
type Limit struct {
	Requests int           `json:"requests" yaml:"requests"`
	Window   time.Duration `json:"window" yaml:"window"`
}

// DefaultLimits apply per key (one IP or one user) and class.
var DefaultLimits = map[EndpointClass]Limit{
	ClassRead:   {Requests: 120, Window: time.Minute},
	ClassWrite:  {Requests: 60, Window: time.Minute},
	ClassVerify: {Requests: 10, Window: time.Minute},
}

// RateLimitResult is the outcome of one check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"`
}

// RateLimitExceededResponse is the 429 body.
type RateLimitExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}
