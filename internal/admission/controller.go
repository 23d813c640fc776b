// Package admission decides whether each inbound request may proceed. One
// controller composes the independent checks (tenant isolation, client
// version, schema validation, rate limits) into a single ordered pipeline
// that produces one Decision per request.
package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"gatekeeper/internal/breaker"
	"gatekeeper/internal/models"
	"gatekeeper/internal/observability"
	"gatekeeper/internal/ratelimit"
	"gatekeeper/internal/storage"
	"gatekeeper/internal/validate"
)

// Controller runs the admission pipeline. It is immutable after
// construction and safe for concurrent use.
type Controller struct {
	admission models.AdmissionConfig
	limits    models.LimitsConfig

	limiter   *ratelimit.Limiter
	validator *validate.Validator
	tenants   storage.Storage
	breakers  *breaker.Registry
	metrics   *observability.AdmissionMetrics
	gate      *versionGate

	// endpoints maps "METHOD normalizedPath" to its per-endpoint limit.
	endpoints map[string]models.EndpointLimit

	log *slog.Logger
}

// NewController builds the pipeline from configuration. metrics may be nil
// when the metrics endpoint is disabled.
func NewController(
	cfg *models.Config,
	limiter *ratelimit.Limiter,
	validator *validate.Validator,
	tenants storage.Storage,
	breakers *breaker.Registry,
	metrics *observability.AdmissionMetrics,
	log *slog.Logger,
) (*Controller, error) {
	gate, err := newVersionGate(cfg.Admission.MinClientVersion)
	if err != nil {
		return nil, err
	}

	endpoints := make(map[string]models.EndpointLimit, len(cfg.Limits.Endpoints))
	for _, e := range cfg.Limits.Endpoints {
		key := endpointRuleKey(e.Method, validate.NormalizePath(e.Path))
		endpoints[key] = e
	}

	if log == nil {
		log = slog.Default()
	}

	return &Controller{
		admission: cfg.Admission,
		limits:    cfg.Limits,
		limiter:   limiter,
		validator: validator,
		tenants:   tenants,
		breakers:  breakers,
		metrics:   metrics,
		gate:      gate,
		endpoints: endpoints,
		log:       log,
	}, nil
}

// Admit runs the request through the pipeline and returns the decision.
// Checks run cheapest-first; the first failing check decides.
func (c *Controller) Admit(ctx context.Context, rd *models.RequestDescriptor) models.Decision {
	decision := c.admit(ctx, rd)
	if c.metrics != nil {
		c.metrics.RecordDecision(ctx, decision.Allowed, decision.ReasonCode)
	}
	return decision
}

func (c *Controller) admit(ctx context.Context, rd *models.RequestDescriptor) models.Decision {
	// Tenant isolation: every non-public request must identify its tenant.
	if rd.Identity.TenantID == "" && !c.isPublicPath(rd.Path) {
		return models.Deny(models.ReasonTenantRequired,
			fmt.Sprintf("missing required header %s", c.admission.TenantHeader))
	}

	if !c.gate.check(rd.ClientVersion) {
		return models.Deny(models.ReasonClientUpgradeRequired,
			fmt.Sprintf("client version %s is no longer supported, minimum is %s",
				rd.ClientVersion, c.admission.MinClientVersion))
	}

	// Structural validation runs before anything that touches storage:
	// rejecting malformed input is the cheapest check and avoids wasting a
	// tenant lookup and rate limit budget on it.
	if c.validator != nil {
		if msgs := c.validator.Validate(rd.Method, rd.Path, rd.Body, rd.Query); len(msgs) > 0 {
			d := models.Deny(models.ReasonValidationFailed, "request validation failed")
			d.FieldErrors = msgs
			return d
		}
	}

	tenant := c.lookupTenant(ctx, rd.Identity.TenantID)
	if tenant != nil && tenant.Suspended {
		return models.Deny(models.ReasonTenantSuspended,
			fmt.Sprintf("tenant %s is suspended", tenant.ID))
	}

	if !c.limits.Enabled {
		return models.Decision{Allowed: true}
	}

	checks := c.buildChecks(rd, tenant)
	res, failedScope, err := c.limiter.CheckAll(ctx, checks)
	if err != nil {
		// The limiter itself degrades internally; an error here means even
		// the local fallback failed, which we treat as allow.
		c.log.Error("rate limit check failed, admitting request", "error", err)
		return models.Decision{Allowed: true}
	}

	if !res.Allowed {
		d := models.Deny(models.ReasonRateLimitExceeded,
			fmt.Sprintf("rate limit exceeded for %s scope", failedScope))
		d.RetryAfter = res.RetryAfter
		d.Remaining = res.Remaining
		d.Limit = res.Limit
		d.ResetAt = res.ResetAt
		return d
	}

	return models.Allow(res.Remaining, res.Limit, res.ResetAt)
}

// lookupTenant fetches the tenant record through the database breaker. The
// record enriches the decision (tier, overrides, suspension); when it
// cannot be fetched the pipeline continues with configured defaults rather
// than rejecting traffic.
func (c *Controller) lookupTenant(ctx context.Context, tenantID string) *models.Tenant {
	if tenantID == "" || c.tenants == nil {
		return nil
	}

	var tenant *models.Tenant
	err := c.breakers.Do("database", func() error {
		t, lookupErr := c.tenants.GetTenant(ctx, tenantID)
		if lookupErr != nil {
			// An unprovisioned tenant is a routine miss, not a database
			// failure; it must not feed the breaker.
			if errors.Is(lookupErr, storage.ErrNotFound) {
				return nil
			}
			return lookupErr
		}
		tenant = t
		return nil
	})
	if err != nil {
		if errors.Is(err, breaker.ErrOpen) {
			c.log.Warn("tenant lookup skipped, database breaker open", "tenant_id", tenantID)
		} else {
			c.log.Warn("tenant lookup failed, using default limits",
				"tenant_id", tenantID, "error", err)
		}
		return nil
	}
	return tenant
}

// buildChecks assembles the scope checks most-specific-first: endpoint,
// user, tenant, tier, global. The first scope to fail supplies the retry
// hint.
func (c *Controller) buildChecks(rd *models.RequestDescriptor, tenant *models.Tenant) []ratelimit.ScopedCheck {
	tenantID := rd.Identity.TenantID
	userID := rd.Identity.UserID
	normalized := validate.NormalizePath(rd.Path)
	cost := int64(1)

	checks := make([]ratelimit.ScopedCheck, 0, 5)

	if e, ok := c.endpoints[endpointRuleKey(rd.Method, normalized)]; ok {
		if e.CostWeight > 1 {
			cost = int64(math.Round(e.CostWeight))
		}
		limit := models.ScopeLimit{WindowMs: e.WindowMs, MaxRequests: e.MaxRequests}
		// Keyed per user when one is identified; otherwise the tenant's
		// traffic on this endpoint shares one counter so user-less callers
		// cannot bypass the window.
		if limit.Enabled() && (userID != "" || tenantID != "") {
			checks = append(checks, ratelimit.ScopedCheck{
				Scope:  ratelimit.ScopeEndpoint,
				Key:    ratelimit.EndpointKey(tenantID, userID, rd.Method, normalized),
				Params: ratelimit.Params{Window: limit.Window(), MaxRequests: limit.MaxRequests},
				Cost:   cost,
			})
		}
	}

	if c.limits.User.Enabled() && userID != "" {
		checks = append(checks, ratelimit.ScopedCheck{
			Scope:  ratelimit.ScopeUser,
			Key:    ratelimit.UserKey(tenantID, userID),
			Params: ratelimit.Params{Window: c.limits.User.Window(), MaxRequests: c.limits.User.MaxRequests},
			Cost:   cost,
		})
	}

	if tenantID != "" {
		limit := tenant.EffectiveLimit(c.limits.Tenant)
		if limit.Enabled() {
			checks = append(checks, ratelimit.ScopedCheck{
				Scope:  ratelimit.ScopeTenant,
				Key:    ratelimit.TenantKey(tenantID),
				Params: ratelimit.Params{Window: limit.Window(), MaxRequests: limit.MaxRequests},
				Cost:   cost,
			})
		}
	}

	tier := rd.Identity.CreatorTier
	if tenant != nil && tenant.CreatorTier != "" {
		tier = tenant.CreatorTier
	}
	if tier != "" && tenantID != "" {
		if limit, ok := c.limits.Tiers[tier]; ok && limit.Enabled() {
			checks = append(checks, ratelimit.ScopedCheck{
				Scope:  ratelimit.ScopeTier,
				Key:    ratelimit.TierKey(tenantID, tier),
				Params: ratelimit.Params{Window: limit.Window(), MaxRequests: limit.MaxRequests},
				Cost:   cost,
			})
		}
	}

	if c.limits.Global.Enabled() {
		checks = append(checks, ratelimit.ScopedCheck{
			Scope:  ratelimit.ScopeGlobal,
			Key:    ratelimit.GlobalKey(),
			Params: ratelimit.Params{Window: c.limits.Global.Window(), MaxRequests: c.limits.Global.MaxRequests},
			Cost:   cost,
		})
	}

	return checks
}

func (c *Controller) isPublicPath(path string) bool {
	for _, prefix := range c.admission.PublicPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func endpointRuleKey(method, normalizedPath string) string {
	return strings.ToUpper(method) + " " + normalizedPath
}
