// Package resolve defines the reference resolver contracts the transformers
// depend on, plus decorators that bound, cache and observe resolver calls.
package resolve

import (
	"context"

	"github.com/CosmoTheDev/hubwatch/models"
)

// ProjectVersionResolver resolves a project version URL to its display name.
type ProjectVersionResolver interface {
	ResolveProjectVersion(ctx context.Context, url string) (models.ProjectVersionRef, error)
}

// ComponentVersionResolver resolves a component version URL to its display name.
type ComponentVersionResolver interface {
	ResolveComponentVersion(ctx context.Context, url string) (models.ComponentVersionRef, error)
}

// PolicyRuleResolver resolves a policy rule URL to the rule name.
type PolicyRuleResolver interface {
	ResolvePolicyRule(ctx context.Context, url string) (models.PolicyRuleRef, error)
}

// PolicyStatusResolver resolves the live policy status of a BOM component.
type PolicyStatusResolver interface {
	ResolvePolicyStatus(ctx context.Context, url string) (models.PolicyStatusRef, error)
}

// Resolver is the full set of lookups a transformer may need.
//
// Implementations return an error wrapping ErrNotFound when the referenced
// entity no longer exists, and a *TransportError when the backend could not
// be reached. Implementations must be safe for concurrent use.
type Resolver interface {
	ProjectVersionResolver
	ComponentVersionResolver
	PolicyRuleResolver
	PolicyStatusResolver
}

// Op names a resolver method for observers and cache keys.
type Op string

const (
	OpProjectVersion   Op = "project_version"
	OpComponentVersion Op = "component_version"
	OpPolicyRule       Op = "policy_rule"
	OpPolicyStatus     Op = "policy_status"
)
