package transform

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/CosmoTheDev/hubwatch/internal/resolve"
	"github.com/CosmoTheDev/hubwatch/models"
)

// Dispatcher routes each notification to the transformer registered for its type.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher returns a Dispatcher over reg. A nil reg uses DefaultRegistry.
func NewDispatcher(reg *Registry) *Dispatcher {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Dispatcher{registry: reg}
}

// Dispatch transforms n. It never returns an error: unknown types, transformer
// errors and panics are all reported as failures in the result.
func (d *Dispatcher) Dispatch(ctx context.Context, n models.Notification, r resolve.Resolver) (res Result) {
	if n.Unreadable != "" {
		return Result{Failures: []models.FailureEntry{itemFailure(n, models.FailureValidation, n.Unreadable)}}
	}
	t := d.registry.ForType(n.Type)
	if t == nil {
		return Result{Failures: []models.FailureEntry{
			itemFailure(n, models.FailureUnsupportedType, fmt.Sprintf("no transformer for notification type %q", n.Type)),
		}}
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("transformer panicked", "event", n.ID, "type", n.Type, "panic", rec, "stack", string(debug.Stack()))
			res = Result{Failures: []models.FailureEntry{
				itemFailure(n, models.FailureInternal, fmt.Sprintf("transformer panic: %v", rec)),
			}}
		}
	}()

	out, err := t.Transform(ctx, n, r)
	if err != nil {
		f := Failure(n, err)
		slog.Debug("notification dropped", "event", n.ID, "type", n.Type, "kind", f.Kind, "reason", f.Reason)
		return Result{Failures: []models.FailureEntry{f}}
	}

	res.Failures = out.Failures
	for _, item := range out.Items {
		if err := item.Validate(); err != nil {
			res.Failures = append(res.Failures, itemFailure(n, models.FailureValidation, err.Error()))
			continue
		}
		res.Items = append(res.Items, item)
	}
	return res
}
