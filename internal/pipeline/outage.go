package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/CosmoTheDev/hubwatch/internal/resolve"
)

// outageDetector trips after threshold consecutive transport failures across
// all resolver calls of a batch. Any other outcome resets the count; context
// errors are ignored.
type outageDetector struct {
	mu        sync.Mutex
	threshold int
	failures  int
	tripped   bool
	onTrip    func()
}

func newOutageDetector(threshold int, onTrip func()) *outageDetector {
	return &outageDetector{threshold: threshold, onTrip: onTrip}
}

func (d *outageDetector) observe(o resolve.Outcome) {
	if d.threshold <= 0 {
		return
	}
	if errors.Is(o.Err, context.Canceled) || errors.Is(o.Err, context.DeadlineExceeded) {
		return
	}

	d.mu.Lock()
	if !resolve.IsTransport(o.Err) {
		d.failures = 0
		d.mu.Unlock()
		return
	}
	d.failures++
	trip := !d.tripped && d.failures >= d.threshold
	if trip {
		d.tripped = true
	}
	failures := d.failures
	d.mu.Unlock()

	if trip {
		slog.Warn("pipeline: backend unavailable, cancelling batch", "consecutive_failures", failures, "last_url", o.URL)
		d.onTrip()
	}
}

func (d *outageDetector) isTripped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tripped
}
