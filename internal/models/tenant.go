package models

import "time"

// Creator tier constants. Tiers map to their own rate limit windows in
// LimitsConfig.Tiers; an unknown tier simply has no tier-scoped limit.
const (
	TierFree    = "free"
	TierCreator = "creator"
	TierPro     = "pro"
)

// Tenant is one customer organization (a school or district). Records are
// loaded from storage at admission time to resolve the creator tier and any
// per-tenant limit overrides.
type Tenant struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CreatorTier string    `json:"creator_tier,omitempty"`
	Suspended   bool      `json:"suspended"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Overrides replace the configured tenant-scope window for this tenant
	// when set. Zero values mean "use the configured default".
	Overrides ScopeLimit `json:"overrides"`
}

// EffectiveLimit returns the tenant-scope window to enforce for this tenant,
// preferring a per-tenant override over the configured default.
func (t *Tenant) EffectiveLimit(fallback ScopeLimit) ScopeLimit {
	if t != nil && t.Overrides.Enabled() {
		return t.Overrides
	}
	return fallback
}

// Summary converts the tenant to its admin API representation.
func (t *Tenant) Summary() TenantSummary {
	return TenantSummary{
		ID:          t.ID,
		Name:        t.Name,
		CreatorTier: t.CreatorTier,
		Suspended:   t.Suspended,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}
