package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecision_MarshalOmitsZeroWindowFields(t *testing.T) {
	d := Deny(ReasonTenantRequired, "missing required header X-Tenant-ID")

	data, err := json.Marshal(d)
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.NotContains(t, payload, "reset_at")
	assert.NotContains(t, payload, "retry_after_ms")
	assert.Equal(t, "TENANT_REQUIRED", payload["reason_code"])
}

func TestDecision_MarshalEmitsRetryHintInMilliseconds(t *testing.T) {
	d := Deny(ReasonRateLimitExceeded, "rate limit exceeded for user scope")
	d.RetryAfter = 42 * time.Second
	d.ResetAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	data, err := json.Marshal(d)
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, float64(42_000), payload["retry_after_ms"])
	assert.Equal(t, "2026-03-01T10:00:00Z", payload["reset_at"])
}

func TestDecision_RetryAfterSecondsRoundsUp(t *testing.T) {
	d := Decision{RetryAfter: 1500 * time.Millisecond}
	assert.Equal(t, 2, d.RetryAfterSeconds())

	d.RetryAfter = 0
	assert.Equal(t, 1, d.RetryAfterSeconds(), "a rejected caller always waits at least a second")
}
