// Package api exposes the service's own HTTP surface: health, the admin
// endpoints for breakers and tenants, and the guarded forwarding route for
// the backend it fronts.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"gatekeeper/internal/breaker"
	"gatekeeper/internal/models"
	"gatekeeper/internal/storage"
	"gatekeeper/internal/version"
)

// Handlers contains the HTTP handlers for the service's own endpoints.
type Handlers struct {
	store     storage.Storage
	breakers  *breaker.Registry
	version   version.Info
	startedAt time.Time
}

// NewHandlers creates a new handlers instance.
func NewHandlers(store storage.Storage, breakers *breaker.Registry, ver version.Info) *Handlers {
	return &Handlers{
		store:     store,
		breakers:  breakers,
		version:   ver,
		startedAt: time.Now(),
	}
}

// HealthCheck reports overall service health including storage reachability
// and breaker states.
// GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthCheckResponse(models.StatusHealthy)
	response.Version = h.version.Version
	response.Uptime = time.Since(h.startedAt).Round(time.Second).String()

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		response.Status = models.StatusDegraded
		response.AddComponent("storage", models.StatusUnhealthy, err.Error())
	} else {
		response.AddComponent("storage", models.StatusHealthy, "Storage is operational")
	}

	openBreakers := 0
	for _, snap := range h.breakers.Snapshots() {
		if snap.State == breaker.StateOpen {
			openBreakers++
		}
	}
	if openBreakers > 0 {
		response.Status = models.StatusDegraded
		response.AddComponent("breakers", models.StatusDegraded, "One or more circuits are open")
	} else {
		response.AddComponent("breakers", models.StatusHealthy, "All circuits closed")
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// ListBreakers returns the state of every configured circuit breaker.
// GET /admin/breakers
func (h *Handlers) ListBreakers(w http.ResponseWriter, r *http.Request) {
	snaps := h.breakers.Snapshots()

	response := models.ListBreakersResponse{
		Breakers: make([]models.BreakerStatus, 0, len(snaps)),
	}
	for _, snap := range snaps {
		status := models.BreakerStatus{
			Service:             snap.Name,
			State:               string(snap.State),
			ConsecutiveFailures: snap.ConsecutiveFails,
			HalfOpenSuccesses:   snap.HalfOpenSuccesses,
		}
		if !snap.LastFailureAt.IsZero() {
			t := snap.LastFailureAt
			status.LastFailureAt = &t
		}
		response.Breakers = append(response.Breakers, status)
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// ListTenants returns all tenant records.
// GET /admin/tenants
func (h *Handlers) ListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.store.Tenants(r.Context())
	if err != nil {
		slog.Error("Failed to list tenants", "error", err)
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError,
			"Failed to list tenants")
		return
	}

	response := models.ListTenantsResponse{
		Tenants:    make([]models.TenantSummary, 0, len(tenants)),
		TotalCount: len(tenants),
	}
	for _, t := range tenants {
		response.Tenants = append(response.Tenants, t.Summary())
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// GetTenant returns one tenant record including its limit overrides.
// GET /admin/tenants/{tenant_id}
func (h *Handlers) GetTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenant_id"]

	tenant, err := h.store.GetTenant(r.Context(), tenantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodeNotFound, "Tenant not found")
			return
		}
		slog.Error("Failed to get tenant", "tenant_id", tenantID, "error", err)
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError,
			"Failed to get tenant")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, tenant)
}

// SaveTenant creates or updates a tenant record.
// PUT /admin/tenants/{tenant_id}
func (h *Handlers) SaveTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenant_id"]

	var tenant models.Tenant
	if err := json.NewDecoder(r.Body).Decode(&tenant); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return
	}
	tenant.ID = tenantID

	if err := h.store.SaveTenant(r.Context(), &tenant); err != nil {
		slog.Error("Failed to save tenant", "tenant_id", tenantID, "error", err)
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError,
			"Failed to save tenant")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, tenant.Summary())
}

// DeleteTenant removes a tenant record.
// DELETE /admin/tenants/{tenant_id}
func (h *Handlers) DeleteTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenant_id"]

	if err := h.store.DeleteTenant(r.Context(), tenantID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodeNotFound, "Tenant not found")
			return
		}
		slog.Error("Failed to delete tenant", "tenant_id", tenantID, "error", err)
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError,
			"Failed to delete tenant")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

func (h *Handlers) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	h.writeJSONResponse(w, statusCode, models.NewErrorResponse(message, errorCode))
}
