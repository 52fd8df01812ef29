// Package resolvetest provides an in-memory Resolver for tests.
package resolvetest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CosmoTheDev/hubwatch/internal/resolve"
	"github.com/CosmoTheDev/hubwatch/models"
)

// Fake resolves URLs from in-memory maps. A URL missing from every map
// resolves to resolve.ErrNotFound. Errs overrides any entry for its URL.
type Fake struct {
	Projects   map[string]string
	Components map[string]string
	Rules      map[string]string
	Statuses   map[string][]string
	Errs       map[string]error

	// Delay is applied before each lookup; a done context aborts the wait.
	Delay time.Duration

	mu       sync.Mutex
	calls    map[string]int
	inFlight atomic.Int64
	peak     atomic.Int64
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		Projects:   map[string]string{},
		Components: map[string]string{},
		Rules:      map[string]string{},
		Statuses:   map[string][]string{},
		Errs:       map[string]error{},
	}
}

// Calls returns how many times url was looked up.
func (f *Fake) Calls(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// Peak returns the highest number of concurrent lookups observed.
func (f *Fake) Peak() int {
	return int(f.peak.Load())
}

func (f *Fake) enter(ctx context.Context, url string) error {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[url]++
	f.mu.Unlock()

	n := f.inFlight.Add(1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	defer f.inFlight.Add(-1)

	if f.Delay > 0 {
		t := time.NewTimer(f.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	if err, ok := f.Errs[url]; ok {
		return err
	}
	return nil
}

func (f *Fake) ResolveProjectVersion(ctx context.Context, url string) (models.ProjectVersionRef, error) {
	if err := f.enter(ctx, url); err != nil {
		return models.ProjectVersionRef{}, err
	}
	name, ok := f.Projects[url]
	if !ok {
		return models.ProjectVersionRef{}, resolve.NotFound(url)
	}
	return models.ProjectVersionRef{URL: url, Name: name}, nil
}

func (f *Fake) ResolveComponentVersion(ctx context.Context, url string) (models.ComponentVersionRef, error) {
	if err := f.enter(ctx, url); err != nil {
		return models.ComponentVersionRef{}, err
	}
	name, ok := f.Components[url]
	if !ok {
		return models.ComponentVersionRef{}, resolve.NotFound(url)
	}
	return models.ComponentVersionRef{URL: url, Name: name}, nil
}

func (f *Fake) ResolvePolicyRule(ctx context.Context, url string) (models.PolicyRuleRef, error) {
	if err := f.enter(ctx, url); err != nil {
		return models.PolicyRuleRef{}, err
	}
	name, ok := f.Rules[url]
	if !ok {
		return models.PolicyRuleRef{}, resolve.NotFound(url)
	}
	return models.PolicyRuleRef{URL: url, Name: name}, nil
}

func (f *Fake) ResolvePolicyStatus(ctx context.Context, url string) (models.PolicyStatusRef, error) {
	if err := f.enter(ctx, url); err != nil {
		return models.PolicyStatusRef{}, err
	}
	rules, ok := f.Statuses[url]
	if !ok {
		return models.PolicyStatusRef{}, resolve.NotFound(url)
	}
	return models.PolicyStatusRef{URL: url, RuleURLs: append([]string(nil), rules...)}, nil
}
