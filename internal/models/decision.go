package models

import (
	"encoding/json"
	"math"
	"time"
)

// Reason codes carried on rejected decisions. Stable strings: clients and
// dashboards key off them.
const (
	ReasonValidationFailed      = "VALIDATION_FAILED"
	ReasonRateLimitExceeded     = "RATE_LIMIT_EXCEEDED"
	ReasonTenantRequired        = "TENANT_REQUIRED"
	ReasonTenantSuspended       = "TENANT_SUSPENDED"
	ReasonClientUpgradeRequired = "CLIENT_UPGRADE_REQUIRED"
	ReasonCircuitOpen           = "CIRCUIT_OPEN"
)

// Decision is the outcome of running one request through the admission
// pipeline. It is produced fresh per request and never persisted.
//
// Failure semantics by reason code:
// - VALIDATION_FAILED is a client error and must not be retried unchanged.
// - RATE_LIMIT_EXCEEDED is retryable after RetryAfter.
// - CIRCUIT_OPEN is a transient server-side unavailability, retryable after
//   the breaker's reset timeout.
type Decision struct {
	Allowed     bool          `json:"allowed"`
	ReasonCode  string        `json:"reason_code,omitempty"`
	Message     string        `json:"message,omitempty"`
	RetryAfter  time.Duration `json:"-"`
	Remaining   int64         `json:"remaining,omitempty"`
	Limit       int64         `json:"limit,omitempty"`
	ResetAt     time.Time     `json:"-"`
	FieldErrors []string      `json:"field_errors,omitempty"`
	RequestID   string        `json:"request_id,omitempty"`
}

// MarshalJSON emits RetryAfter in milliseconds so clients never have to
// interpret Go duration encoding, and drops ResetAt entirely when the
// decision carries no window.
func (d Decision) MarshalJSON() ([]byte, error) {
	type alias Decision
	out := struct {
		alias
		ResetAt      *time.Time `json:"reset_at,omitempty"`
		RetryAfterMs int64      `json:"retry_after_ms,omitempty"`
	}{alias: alias(d), RetryAfterMs: d.RetryAfter.Milliseconds()}
	if !d.ResetAt.IsZero() {
		out.ResetAt = &d.ResetAt
	}
	return json.Marshal(out)
}

// RetryAfterSeconds rounds the retry hint up to whole seconds for the
// Retry-After header, minimum 1.
func (d Decision) RetryAfterSeconds() int {
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Allow returns an admitting decision carrying the rate budget of the most
// restrictive scope so headers can still be populated.
func Allow(remaining, limit int64, resetAt time.Time) Decision {
	return Decision{Allowed: true, Remaining: remaining, Limit: limit, ResetAt: resetAt}
}

// Deny returns a rejecting decision with a stable reason code and a
// human-readable message.
func Deny(reason, message string) Decision {
	return Decision{Allowed: false, ReasonCode: reason, Message: message}
}
