// Package pipeline runs a batch of notifications through the transform
// dispatcher with bounded concurrency and merges the results.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/CosmoTheDev/hubwatch/internal/aggregate"
	"github.com/CosmoTheDev/hubwatch/internal/resolve"
	"github.com/CosmoTheDev/hubwatch/internal/transform"
	"github.com/CosmoTheDev/hubwatch/models"
)

// ErrBackendUnavailable is returned when too many consecutive resolver calls
// failed with transport errors and the batch was abandoned.
var ErrBackendUnavailable = errors.New("pipeline: backend unavailable")

// NotificationSource fetches raw notifications created after a point in time.
type NotificationSource interface {
	FetchSince(ctx context.Context, since time.Time) ([]models.Notification, error)
}

// Options bounds a batch run.
type Options struct {
	// Workers is the number of events transformed concurrently.
	Workers int `json:"workers"`
	// MaxInFlight bounds concurrent resolver calls across all workers; 0 means unbounded.
	MaxInFlight int `json:"max_in_flight"`
	// Timeout is the batch deadline; 0 disables it.
	Timeout time.Duration `json:"timeout"`
	// OutageThreshold is the number of consecutive transport failures that
	// abandons the batch; 0 disables outage detection.
	OutageThreshold int `json:"outage_threshold"`
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Workers:         4,
		MaxInFlight:     8,
		OutageThreshold: 10,
	}
}

// Result is the outcome of one batch.
type Result struct {
	RunID  uuid.UUID `json:"run_id"`
	Since  time.Time `json:"since"`
	Newest time.Time `json:"newest"`
	// RetryFrom is the creation time of the oldest event that failed with a
	// retryable failure kind, or zero.
	RetryFrom   time.Time             `json:"retry_from,omitempty"`
	Events      int                   `json:"events"`
	Items       []models.ContentItem  `json:"items"`
	Failures    []models.FailureEntry `json:"failures"`
	StartedAt   time.Time             `json:"started_at"`
	CompletedAt time.Time             `json:"completed_at"`
}

// NextCursor returns the cursor a caller should store after this batch. It
// never moves past an event that may succeed when fetched again.
func (r *Result) NextCursor() time.Time {
	next := r.Since
	if r.Newest.After(next) {
		next = r.Newest
	}
	if !r.RetryFrom.IsZero() {
		if c := r.RetryFrom.Add(-time.Nanosecond); c.Before(next) {
			next = c
		}
		if next.Before(r.Since) {
			next = r.Since
		}
	}
	return next
}

// Pipeline transforms batches of notifications. It holds no state between batches.
type Pipeline struct {
	dispatcher *transform.Dispatcher
	resolver   resolve.Resolver
	opts       Options
}

// New returns a Pipeline. Non-positive Workers falls back to the default.
func New(d *transform.Dispatcher, r resolve.Resolver, opts Options) *Pipeline {
	if d == nil {
		d = transform.NewDispatcher(nil)
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultOptions().Workers
	}
	return &Pipeline{dispatcher: d, resolver: r, opts: opts}
}

// Run fetches notifications created after since and processes them.
func (p *Pipeline) Run(ctx context.Context, src NotificationSource, since time.Time) (*Result, error) {
	events, err := src.FetchSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("pipeline: fetch notifications: %w", err)
	}
	res, err := p.Process(ctx, events)
	if res != nil {
		res.Since = since
	}
	return res, err
}

type eventResult struct {
	idx int
	res transform.Result
}

// Process transforms events and merges the resulting items. Per-event
// problems are reported in Result.Failures. An error is returned only when
// the parent context ends or the backend is considered unavailable; the
// partial result is returned alongside it.
func (p *Pipeline) Process(ctx context.Context, events []models.Notification) (*Result, error) {
	res := &Result{RunID: uuid.New(), Events: len(events), StartedAt: time.Now().UTC()}
	for _, n := range events {
		if n.CreatedAt.After(res.Newest) {
			res.Newest = n.CreatedAt
		}
	}

	batchCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	workCtx := batchCtx
	if p.opts.Timeout > 0 {
		var stop context.CancelFunc
		workCtx, stop = context.WithTimeout(batchCtx, p.opts.Timeout)
		defer stop()
	}

	detector := newOutageDetector(p.opts.OutageThreshold, func() { cancel(ErrBackendUnavailable) })
	r := resolve.Observe(resolve.Limit(p.resolver, p.opts.MaxInFlight), detector.observe)

	results := make(chan eventResult, len(events))
	go func() {
		g := new(errgroup.Group)
		g.SetLimit(p.opts.Workers)
		for i, n := range events {
			if workCtx.Err() != nil {
				results <- eventResult{idx: i, res: notStarted(workCtx, n)}
				continue
			}
			g.Go(func() error {
				if workCtx.Err() != nil {
					results <- eventResult{idx: i, res: notStarted(workCtx, n)}
					return nil
				}
				results <- eventResult{idx: i, res: p.dispatcher.Dispatch(workCtx, n, r)}
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	perEvent := make([]transform.Result, len(events))
	for er := range results {
		perEvent[er.idx] = er.res
	}

	var items []models.ContentItem
	for i, er := range perEvent {
		items = append(items, er.Items...)
		res.Failures = append(res.Failures, er.Failures...)
		for _, f := range er.Failures {
			if !f.Kind.Retryable() {
				continue
			}
			if at := events[i].CreatedAt; res.RetryFrom.IsZero() || at.Before(res.RetryFrom) {
				res.RetryFrom = at
			}
		}
	}
	res.Items = aggregate.Merge(items)
	res.CompletedAt = time.Now().UTC()

	slog.Info("pipeline: batch complete",
		"run_id", res.RunID,
		"events", res.Events,
		"items", len(res.Items),
		"failures", len(res.Failures),
		"duration", res.CompletedAt.Sub(res.StartedAt),
	)

	if detector.isTripped() {
		return res, fmt.Errorf("%w: %d consecutive transport failures", ErrBackendUnavailable, p.opts.OutageThreshold)
	}
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("pipeline: %w", err)
	}
	return res, nil
}

// notStarted reports an event the batch ended before reaching.
func notStarted(ctx context.Context, n models.Notification) transform.Result {
	reason := "batch deadline passed before event was processed"
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.DeadlineExceeded) {
		reason = fmt.Sprintf("batch ended before event was processed: %v", cause)
	}
	return transform.Result{Failures: []models.FailureEntry{{
		EventID: n.ID,
		Type:    n.Type,
		Kind:    models.FailureTimeout,
		Reason:  reason,
	}}}
}
