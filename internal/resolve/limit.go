package resolve

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/CosmoTheDev/hubwatch/models"
)

// Limit returns a Resolver that allows at most n calls into r at once.
// n <= 0 returns r unchanged.
func Limit(r Resolver, n int) Resolver {
	if n <= 0 {
		return r
	}
	return &limited{next: r, sem: semaphore.NewWeighted(int64(n))}
}

type limited struct {
	next Resolver
	sem  *semaphore.Weighted
}

func bounded[T any](ctx context.Context, sem *semaphore.Weighted, fn func() (T, error)) (T, error) {
	var zero T
	if err := sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}
	defer sem.Release(1)
	return fn()
}

func (l *limited) ResolveProjectVersion(ctx context.Context, url string) (models.ProjectVersionRef, error) {
	return bounded(ctx, l.sem, func() (models.ProjectVersionRef, error) {
		return l.next.ResolveProjectVersion(ctx, url)
	})
}

func (l *limited) ResolveComponentVersion(ctx context.Context, url string) (models.ComponentVersionRef, error) {
	return bounded(ctx, l.sem, func() (models.ComponentVersionRef, error) {
		return l.next.ResolveComponentVersion(ctx, url)
	})
}

func (l *limited) ResolvePolicyRule(ctx context.Context, url string) (models.PolicyRuleRef, error) {
	return bounded(ctx, l.sem, func() (models.PolicyRuleRef, error) {
		return l.next.ResolvePolicyRule(ctx, url)
	})
}

func (l *limited) ResolvePolicyStatus(ctx context.Context, url string) (models.PolicyStatusRef, error) {
	return bounded(ctx, l.sem, func() (models.PolicyStatusRef, error) {
		return l.next.ResolvePolicyStatus(ctx, url)
	})
}
