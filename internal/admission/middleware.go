package admission

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"gatekeeper/internal/models"
)

// Header names read by the middleware when building the descriptor.
const (
	HeaderUserID        = "X-User-ID"
	HeaderCreatorTier   = "X-Creator-Tier"
	HeaderClientVersion = "X-Client-Version"
)

// maxBodyBytes caps how much of a request body the middleware will buffer
// for validation.
const maxBodyBytes = 1 << 20

// Middleware runs every request through the controller before the handler.
// Rejections are written as JSON with the decision's reason code; admitted
// requests continue with rate limit headers set.
func Middleware(c *Controller) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rd, err := buildDescriptor(c, r)
			if err != nil {
				writeJSON(w, http.StatusBadRequest,
					models.NewErrorResponse("invalid JSON body", models.ErrorCodeBadRequest))
				return
			}

			decision := c.Admit(r.Context(), rd)
			if !decision.Allowed {
				decision.RequestID = uuid.New().String()
				writeRejection(w, decision)
				return
			}

			setRateHeaders(w, decision)
			next.ServeHTTP(w, r)
		})
	}
}

// buildDescriptor flattens the HTTP request into the controller's view of
// it. The body is buffered and restored so the handler can read it again.
func buildDescriptor(c *Controller, r *http.Request) (*models.RequestDescriptor, error) {
	rd := &models.RequestDescriptor{
		Method:        r.Method,
		Path:          r.URL.Path,
		Headers:       make(map[string]string, len(r.Header)),
		ClientVersion: r.Header.Get(HeaderClientVersion),
		Identity: models.Identity{
			TenantID:    r.Header.Get(c.admission.TenantHeader),
			UserID:      r.Header.Get(HeaderUserID),
			CreatorTier: r.Header.Get(HeaderCreatorTier),
		},
	}

	for name := range r.Header {
		rd.Headers[name] = r.Header.Get(name)
	}

	if query := r.URL.Query(); len(query) > 0 {
		// Values stay strings here; the validator converts them where the
		// schema declares a numeric field.
		rd.Query = make(map[string]any, len(query))
		for key, values := range query {
			if len(values) == 0 {
				continue
			}
			rd.Query[key] = values[0]
		}
	}

	if hasJSONBody(r) {
		data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			return nil, err
		}
		r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(data))

		if len(bytes.TrimSpace(data)) > 0 {
			if err := json.Unmarshal(data, &rd.Body); err != nil {
				return nil, err
			}
		}
	}

	return rd, nil
}

func hasJSONBody(r *http.Request) bool {
	if r.Body == nil || r.Method == http.MethodGet || r.Method == http.MethodHead {
		return false
	}
	ct := r.Header.Get("Content-Type")
	return ct == "" || strings.HasPrefix(ct, "application/json")
}

// writeRejection maps a denying decision to its HTTP representation.
func writeRejection(w http.ResponseWriter, d models.Decision) {
	status := http.StatusForbidden
	switch d.ReasonCode {
	case models.ReasonValidationFailed, models.ReasonTenantRequired:
		status = http.StatusBadRequest
	case models.ReasonTenantSuspended:
		status = http.StatusForbidden
	case models.ReasonClientUpgradeRequired:
		status = http.StatusUpgradeRequired
	case models.ReasonRateLimitExceeded:
		status = http.StatusTooManyRequests
		setRateHeaders(w, d)
		w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfterSeconds()))
	case models.ReasonCircuitOpen:
		status = http.StatusServiceUnavailable
		w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfterSeconds()))
	}

	writeJSON(w, status, d)
}

func setRateHeaders(w http.ResponseWriter, d models.Decision) {
	if d.Limit <= 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
