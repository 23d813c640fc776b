// Package models - API response types and error handling.
// This file defines the outgoing JSON structures with consistent formatting.
//
// Response Design Principles:
// - Consistent JSON structure across all endpoints
// - Machine-readable codes plus human-readable messages
// - Optional fields use omitempty to reduce response size
// - RFC3339 timestamps for international compatibility
package models

import (
	"time"

	"github.com/google/uuid"
)

// ErrorResponse provides structured error information with debugging context.
type ErrorResponse struct {
	Error     string            `json:"error"`                // Error type (always "error")
	Message   string            `json:"message"`              // Human-readable error description
	Code      string            `json:"code,omitempty"`       // Machine-readable error code
	Details   map[string]string `json:"details,omitempty"`    // Field-specific error details
	Timestamp time.Time         `json:"timestamp"`            // Error occurrence time
	RequestID string            `json:"request_id,omitempty"` // Unique request identifier
}

// Generic API error codes. Admission rejections use the reason codes in
// decision.go instead.
const (
	ErrorCodeNotFound           = "NOT_FOUND"           // 404: Resource doesn't exist
	ErrorCodeBadRequest         = "BAD_REQUEST"         // 400: Invalid request format
	ErrorCodeInvalidRequest     = "INVALID_REQUEST"     // 400: Invalid request data
	ErrorCodeInternalError      = "INTERNAL_ERROR"      // 500: Server-side error
	ErrorCodeServiceUnavailable = "SERVICE_UNAVAILABLE" // 503: Service temporarily down
)

// NewErrorResponse creates an error response with a fresh request ID.
func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now().UTC(),
		RequestID: uuid.New().String(),
	}
}

// Health status values.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Uptime     string                     `json:"uptime,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

type ComponentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]ComponentHealth),
	}
}

// AddComponent records the health of one subsystem.
func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	if h.Components == nil {
		h.Components = make(map[string]ComponentHealth)
	}
	h.Components[name] = ComponentHealth{Status: status, Message: message}
}

// BreakerStatus is the admin view of one circuit breaker.
type BreakerStatus struct {
	Service             string     `json:"service"`
	State               string     `json:"state"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
	HalfOpenSuccesses   int        `json:"half_open_successes"`
}

type ListBreakersResponse struct {
	Breakers []BreakerStatus `json:"breakers"`
}

// TenantSummary is the admin view of one tenant record.
type TenantSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CreatorTier string    `json:"creator_tier,omitempty"`
	Suspended   bool      `json:"suspended"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ListTenantsResponse struct {
	Tenants    []TenantSummary `json:"tenants"`
	TotalCount int             `json:"total_count"`
}
