package resolve

import (
	"context"

	"github.com/CosmoTheDev/hubwatch/models"
)

// Outcome describes one completed resolver call.
type Outcome struct {
	Op  Op
	URL string
	Err error
}

// Observe returns a Resolver that reports every call outcome to fn.
// fn is called from the resolving goroutine and must be safe for concurrent use.
func Observe(r Resolver, fn func(Outcome)) Resolver {
	if fn == nil {
		return r
	}
	return &observed{next: r, fn: fn}
}

type observed struct {
	next Resolver
	fn   func(Outcome)
}

func (o *observed) ResolveProjectVersion(ctx context.Context, url string) (models.ProjectVersionRef, error) {
	ref, err := o.next.ResolveProjectVersion(ctx, url)
	o.fn(Outcome{Op: OpProjectVersion, URL: url, Err: err})
	return ref, err
}

func (o *observed) ResolveComponentVersion(ctx context.Context, url string) (models.ComponentVersionRef, error) {
	ref, err := o.next.ResolveComponentVersion(ctx, url)
	o.fn(Outcome{Op: OpComponentVersion, URL: url, Err: err})
	return ref, err
}

func (o *observed) ResolvePolicyRule(ctx context.Context, url string) (models.PolicyRuleRef, error) {
	ref, err := o.next.ResolvePolicyRule(ctx, url)
	o.fn(Outcome{Op: OpPolicyRule, URL: url, Err: err})
	return ref, err
}

func (o *observed) ResolvePolicyStatus(ctx context.Context, url string) (models.PolicyStatusRef, error) {
	ref, err := o.next.ResolvePolicyStatus(ctx, url)
	o.fn(Outcome{Op: OpPolicyStatus, URL: url, Err: err})
	return ref, err
}
