package oidc

// IdentityResource is a named group of user claims requestable as a scope
// (e.g. openid, profile, email).
type IdentityResource struct {
	Name       string
	ClaimTypes []string
}

// APIScope is a scope that grants access to one or more API resources.
type APIScope struct {
	Name       string
	ClaimTypes []string
}

// APIResource is a protected API; its Scopes list names the APIScopes that
// map to it.
type APIResource struct {
	Name   string
	Scopes []string
}

// ResourceCatalog is the registry of everything a scope can refer to. The
// scope validator classifies requested scopes against it.
type ResourceCatalog struct {
	IdentityResources []IdentityResource
	APIScopes         []APIScope
	APIResources      []APIResource
}

// FindIdentityResource returns the identity resource with the given name.
func (c *ResourceCatalog) FindIdentityResource(name string) (IdentityResource, bool) {
	for _, r := range c.IdentityResources {
		if r.Name == name {
			return r, true
		}
	}
	return IdentityResource{}, false
}

// FindAPIScope returns the API scope with the given name.
func (c *ResourceCatalog) FindAPIScope(name string) (APIScope, bool) {
	for _, s := range c.APIScopes {
		if s.Name == name {
			return s, true
		}
	}
	return APIScope{}, false
}

// APIResourcesForScope returns every API resource whose scope list contains
// the given scope name.
func (c *ResourceCatalog) APIResourcesForScope(name string) []APIResource {
	var out []APIResource
	for _, r := range c.APIResources {
		for _, s := range r.Scopes {
			if s == name {
				out = append(out, r)
				break
			}
		}
	}
	return out
}
