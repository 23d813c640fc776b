package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"

	"gatekeeper/internal/breaker"
	"gatekeeper/internal/models"
)

// UpstreamBreaker is the breaker name guarding the forwarding proxy.
// Operators tune it via the breakers config section.
const UpstreamBreaker = "upstream"

// NewBackend builds the handler serving admitted API requests: a reverse
// proxy to the configured upstream, guarded by the upstream circuit
// breaker. An empty upstream returns nil so SetupRoutes installs its
// standalone fallback.
func NewBackend(upstream string, breakers *breaker.Registry) (http.Handler, error) {
	if upstream == "" {
		return nil, nil
	}

	target, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL %q: %w", upstream, err)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		slog.Error("Upstream request failed", "upstream", target.Host, "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(models.NewErrorResponse("Upstream unavailable", models.ErrorCodeServiceUnavailable))
	}

	return BreakerGuard(breakers, UpstreamBreaker)(proxy), nil
}

// BreakerGuard rejects requests while the named circuit is open and feeds
// response outcomes back into it. 5xx responses count as failures. An
// unconfigured name disables the guard.
func BreakerGuard(breakers *breaker.Registry, name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		b := breakers.Get(name)
		if b == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !b.Allow() {
				d := models.Deny(models.ReasonCircuitOpen,
					fmt.Sprintf("%s is temporarily unavailable", name))
				d.RetryAfter = b.RetryAfter()
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfterSeconds()))
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(d)
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status >= http.StatusInternalServerError {
				b.OnFailure()
			} else {
				b.OnSuccess()
			}
		})
	}
}

// statusRecorder captures the response status for breaker accounting.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
