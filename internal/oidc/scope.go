package oidc

import "strings"

// ScopeOfflineAccess requests a refresh token. It is not part of the
// resource catalog; clients must both list it in their allowed scopes and
// have AllowOfflineAccess set.
const ScopeOfflineAccess = "offline_access"

// ScopeValidationResult partitions a validated scope request into identity
// scopes, API scopes and the API resources those map to. Derived per request,
// never persisted.
type ScopeValidationResult struct {
	// ValidScopes is every requested scope that passed validation, in
	// request order.
	ValidScopes []string

	IdentityResources []IdentityResource
	APIScopes         []APIScope
	APIResources      []APIResource

	// OfflineAccess is set when offline_access was requested and granted.
	OfflineAccess bool
}

// ContainsOpenID reports whether the openid scope was granted.
func (r *ScopeValidationResult) ContainsOpenID() bool {
	for _, s := range r.ValidScopes {
		if s == "openid" {
			return true
		}
	}
	return false
}

// ScopeValidator classifies requested scopes against the resource catalog and
// a client's allowed set.
type ScopeValidator struct {
	catalog *ResourceCatalog
}

// NewScopeValidator returns a ScopeValidator over the given catalog.
func NewScopeValidator(catalog *ResourceCatalog) *ScopeValidator {
	return &ScopeValidator{catalog: catalog}
}

// Validate checks requested scopes against the client's allowed set and the
// catalog. A scope outside the allowed set fails immediately; unrecognized
// scopes are collected and reported together so the client gets one
// informative error.
func (v *ScopeValidator) Validate(requested, clientAllowed []string) (*ScopeValidationResult, error) {
	allowed := make(map[string]struct{}, len(clientAllowed))
	for _, s := range clientAllowed {
		allowed[s] = struct{}{}
	}

	res := &ScopeValidationResult{}
	var unknown []string
	seenResource := map[string]struct{}{}

	for _, scope := range requested {
		if _, ok := allowed[scope]; !ok {
			return nil, NewProtocolError(ErrorInvalidScope, "client not allowed to request scope "+scope)
		}

		if scope == ScopeOfflineAccess {
			res.OfflineAccess = true
			res.ValidScopes = append(res.ValidScopes, scope)
			continue
		}
		if ir, ok := v.catalog.FindIdentityResource(scope); ok {
			res.IdentityResources = append(res.IdentityResources, ir)
			res.ValidScopes = append(res.ValidScopes, scope)
			continue
		}
		if as, ok := v.catalog.FindAPIScope(scope); ok {
			res.APIScopes = append(res.APIScopes, as)
			res.ValidScopes = append(res.ValidScopes, scope)
			for _, ar := range v.catalog.APIResourcesForScope(scope) {
				if _, dup := seenResource[ar.Name]; !dup {
					seenResource[ar.Name] = struct{}{}
					res.APIResources = append(res.APIResources, ar)
				}
			}
			continue
		}
		unknown = append(unknown, scope)
	}

	if len(unknown) > 0 {
		return nil, NewProtocolError(ErrorInvalidScope, "unknown scopes: "+strings.Join(unknown, " "))
	}
	return res, nil
}

// ParseScopes splits a raw scope parameter on whitespace, trims and
// de-duplicates case-sensitively. Empty or whitespace input yields nil.
func ParseScopes(raw string) []string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
