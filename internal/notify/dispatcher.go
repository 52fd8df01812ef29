package notify

import (
	"context"
	"io"
	"log/slog"

	"github.com/CosmoTheDev/hubwatch/internal/config"
	"github.com/CosmoTheDev/hubwatch/models"
)

// Dispatcher fans out events to all configured channels.
type Dispatcher struct {
	channels []Channel
	minSev   models.SeverityLevel             // minimum vulnerability severity (empty = all)
	types    map[models.NotificationType]bool // types to send (empty = all)
}

// NewDispatcher creates a Dispatcher from the given config.
// Only channels with IsConfigured() == true are active.
func NewDispatcher(cfg config.NotifyConfig) *Dispatcher {
	return newDispatcher(cfg,
		NewSlack(cfg.Slack),
		NewWebhook(cfg.Webhook),
		NewKafka(cfg.Kafka),
	)
}

func newDispatcher(cfg config.NotifyConfig, channels ...Channel) *Dispatcher {
	d := &Dispatcher{}
	if cfg.MinSeverity != "" {
		d.minSev = models.MapSeverity(cfg.MinSeverity)
	}
	if len(cfg.Types) > 0 {
		d.types = make(map[models.NotificationType]bool, len(cfg.Types))
		for _, t := range cfg.Types {
			d.types[models.NotificationType(t)] = true
		}
	}
	for _, ch := range channels {
		if ch.IsConfigured() {
			d.channels = append(d.channels, ch)
		}
	}
	return d
}

// IsAnyConfigured returns true if at least one channel is ready to send.
func (d *Dispatcher) IsAnyConfigured() bool {
	return len(d.channels) > 0
}

// Channels returns the names of the active channels.
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.channels))
	for _, ch := range d.channels {
		names = append(names, ch.Name())
	}
	return names
}

// Notify sends evt to all configured channels. Errors are logged but never
// returned. It reports whether evt passed the filters.
func (d *Dispatcher) Notify(ctx context.Context, evt Event) bool {
	if !d.shouldSend(evt) {
		return false
	}
	for _, ch := range d.channels {
		if err := ch.Send(ctx, evt); err != nil {
			slog.Warn("notify: channel send failed", "channel", ch.Name(), "type", evt.Type, "key", evt.Key, "error", err)
		}
	}
	return true
}

// NotifyItems sends one event per item and returns how many passed the filters.
func (d *Dispatcher) NotifyItems(ctx context.Context, items []models.ContentItem) int {
	if !d.IsAnyConfigured() {
		return 0
	}
	sent := 0
	for _, evt := range EventsFromItems(items) {
		if ctx.Err() != nil {
			break
		}
		if d.Notify(ctx, evt) {
			sent++
		}
	}
	return sent
}

// Close releases channels that hold connections.
func (d *Dispatcher) Close() {
	for _, ch := range d.channels {
		if c, ok := ch.(io.Closer); ok {
			if err := c.Close(); err != nil {
				slog.Warn("notify: closing channel", "channel", ch.Name(), "error", err)
			}
		}
	}
}

func (d *Dispatcher) shouldSend(evt Event) bool {
	if len(d.types) > 0 && !d.types[evt.Type] {
		return false
	}
	// Severity only filters items that carry one.
	if d.minSev != "" && evt.Severity != "" {
		return evt.Severity.AtLeast(d.minSev)
	}
	return true
}
