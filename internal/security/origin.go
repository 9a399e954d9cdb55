package security

import (
	"net/http"
	"net/url"
	"strings"
)

// OriginPolicy decides which browser origins may open a channel
type OriginPolicy struct {
	allowed        map[string]struct{}
	allowLocalhost bool
}

// NewOriginPolicy creates a policy allowing the given origins.
// If allowLocalhost is true, any localhost origin is permitted (development mode).
func NewOriginPolicy(origins []string, allowLocalhost bool) *OriginPolicy {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.TrimSuffix(strings.ToLower(o), "/")] = struct{}{}
	}
	return &OriginPolicy{allowed: allowed, allowLocalhost: allowLocalhost}
}

// Allowed reports whether origin may connect. An empty origin (a non-browser
// client) is always allowed; browsers always send one.
func (p *OriginPolicy) Allowed(origin string) bool {
	if origin == "" {
		return true
	}
	if _, ok := p.allowed["*"]; ok {
		return true
	}
	if _, ok := p.allowed[strings.ToLower(origin)]; ok {
		return true
	}
	if p.allowLocalhost {
		if u, err := url.Parse(origin); err == nil && IsLocalhost(u.Hostname()) {
			return true
		}
	}
	return false
}

// CheckOrigin is suitable for websocket.Upgrader.CheckOrigin
func (p *OriginPolicy) CheckOrigin(r *http.Request) bool {
	return p.Allowed(r.Header.Get("Origin"))
}
