package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/CosmoTheDev/hubwatch/models"
)

// Event is one merged content item prepared for delivery.
type Event struct {
	Type     models.NotificationType
	Title    string
	Body     string
	Severity models.SeverityLevel // set for vulnerability items only
	Key      string               // rendered identity key, stable across runs
	At       time.Time
	Item     models.ContentItem
}

// Channel is implemented by each delivery target.
type Channel interface {
	Name() string
	IsConfigured() bool
	Send(ctx context.Context, evt Event) error
}

// EventFromItem renders item as an Event.
func EventFromItem(item models.ContentItem) Event {
	base := item.Base()
	evt := Event{
		Type: base.Type,
		Key:  item.Key().String(),
		At:   base.CreatedAt,
		Item: item,
	}
	subject := fmt.Sprintf("%s %s in %s %s", base.ComponentName, base.ComponentVersion, base.ProjectName, base.ProjectVersion)

	switch v := item.(type) {
	case models.PolicyViolationContentItem:
		evt.Title = "Policy violation: " + subject
		evt.Body = "Rules: " + strings.Join(v.RuleNames, ", ")
	case models.PolicyOverrideContentItem:
		evt.Title = "Policy override: " + subject
		evt.Body = "Rules: " + strings.Join(v.RuleNames, ", ")
		if who := strings.TrimSpace(v.FirstName + " " + v.LastName); who != "" {
			evt.Body += "\nOverridden by: " + who
		}
	case models.VulnerabilityContentItem:
		evt.Title = "Vulnerabilities: " + subject
		evt.Body = "IDs: " + strings.Join(v.VulnerabilityIDs, ", ")
		evt.Severity = v.Severity
	case models.VersionUpdateContentItem:
		evt.Title = "Version update: " + subject
		if v.PreviousVersion != "" {
			evt.Body = "Previous version: " + v.PreviousVersion
		}
	default:
		evt.Title = string(base.Type) + ": " + subject
	}
	return evt
}

// EventsFromItems renders every item in order.
func EventsFromItems(items []models.ContentItem) []Event {
	out := make([]Event, 0, len(items))
	for _, item := range items {
		out = append(out, EventFromItem(item))
	}
	return out
}
