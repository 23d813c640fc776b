package ratelimit

import "strings"

// ScopeKey identifies one counting window. Keys are built deterministically
// so that identical logical requests always land on the same counter and
// distinct scopes never collide. The unit separator keeps user-supplied
// identifiers from forging another scope's key.
type ScopeKey string

const keySep = "\x1f"

// Scope kinds, ordered most specific first. Evaluation follows this order so
// the first failing (most specific) scope supplies the retry hint.
const (
	ScopeEndpoint = "endpoint"
	ScopeUser     = "user"
	ScopeTenant   = "tenant"
	ScopeTier     = "tier"
	ScopeGlobal   = "global"
)

// GlobalKey returns the single process-wide scope key.
func GlobalKey() ScopeKey {
	return ScopeKey(ScopeGlobal)
}

// TenantKey returns the scope key for one tenant.
func TenantKey(tenantID string) ScopeKey {
	return join(ScopeTenant, tenantID)
}

// UserKey returns the scope key for one user within a tenant.
func UserKey(tenantID, userID string) ScopeKey {
	return join(ScopeUser, tenantID, userID)
}

// TierKey returns the scope key for one creator tier within a tenant.
func TierKey(tenantID, tier string) ScopeKey {
	return join(ScopeTier, tenantID, tier)
}

// EndpointKey returns the scope key for one caller on one normalized route.
// The route must already be normalized so all concrete IDs share a counter.
func EndpointKey(tenantID, userID, method, normalizedPath string) ScopeKey {
	return join(ScopeEndpoint, tenantID, userID, method, normalizedPath)
}

func join(parts ...string) ScopeKey {
	return ScopeKey(strings.Join(parts, keySep))
}

// ScopedCheck pairs a scope key with the window to enforce on it.
type ScopedCheck struct {
	Scope string
	Key   ScopeKey
	Params
	Cost int64
}
