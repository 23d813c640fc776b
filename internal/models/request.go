// Package models - Inbound request descriptor.
// The dispatch layer builds a RequestDescriptor from each HTTP request before
// consulting the admission controller. Identity fields arrive already
// validated by the authentication layer; admission treats them as trusted.
package models

// Identity carries the resolved caller identity for scope-key construction.
type Identity struct {
	TenantID    string `json:"tenant_id"`
	UserID      string `json:"user_id"`
	CreatorTier string `json:"creator_tier,omitempty"`
}

// RequestDescriptor is the admission controller's view of one inbound request.
type RequestDescriptor struct {
	Method        string            `json:"method"`
	Path          string            `json:"path"`
	Headers       map[string]string `json:"headers,omitempty"`
	Query         map[string]any    `json:"query,omitempty"`
	Body          map[string]any    `json:"body,omitempty"`
	Identity      Identity          `json:"identity"`
	ClientVersion string            `json:"client_version,omitempty"`
}

// Header returns the named header value or "".
func (rd *RequestDescriptor) Header(name string) string {
	if rd.Headers == nil {
		return ""
	}
	return rd.Headers[name]
}
