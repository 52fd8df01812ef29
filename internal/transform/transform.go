// Package transform converts raw hub notifications into resolved content
// items. Each notification type has one Transformer; the Dispatcher selects
// it and turns every error into a FailureEntry.
package transform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/CosmoTheDev/hubwatch/internal/resolve"
	"github.com/CosmoTheDev/hubwatch/models"
)

// Result is the outcome of transforming one notification. Failures only
// describe items dropped from an otherwise successful event.
type Result struct {
	Items    []models.ContentItem
	Failures []models.FailureEntry
}

// Transformer converts one notification type.
//
// Transform returns an error when the event as a whole cannot be processed;
// the Dispatcher then discards any items and records a single failure.
type Transformer interface {
	Type() models.NotificationType
	Transform(ctx context.Context, n models.Notification, r resolve.Resolver) (Result, error)
}

// ValidationError reports a malformed payload or a required field that came out empty.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Classify maps an error returned by a Transformer to a failure kind.
func Classify(err error) models.FailureKind {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return models.FailureValidation
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return models.FailureTimeout
	case errors.Is(err, resolve.ErrNotFound):
		return models.FailureUnresolvable
	case resolve.IsTransport(err):
		return models.FailureTransport
	default:
		return models.FailureInternal
	}
}

// Failure builds the FailureEntry for an event-level error.
func Failure(n models.Notification, err error) models.FailureEntry {
	return models.FailureEntry{EventID: n.ID, Type: n.Type, Kind: Classify(err), Reason: err.Error()}
}

func itemFailure(n models.Notification, kind models.FailureKind, reason string) models.FailureEntry {
	return models.FailureEntry{EventID: n.ID, Type: n.Type, Kind: kind, Reason: reason}
}

func decode(n models.Notification, v any) error {
	if len(n.Content) == 0 || string(n.Content) == "null" {
		return invalid("notification has no content")
	}
	if err := json.Unmarshal(n.Content, v); err != nil {
		return invalid("malformed %s payload: %v", n.Type, err)
	}
	return nil
}

func isContextErr(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// ruleFailure is a rule URL that could not be resolved.
type ruleFailure struct {
	URL string
	Err error
}

// resolveRuleNames resolves rule URLs in order. URLs and names are
// de-duplicated keeping first occurrence. Rules that fail to resolve are
// skipped and returned as ruleFailures. Only a context error is returned.
func resolveRuleNames(ctx context.Context, r resolve.PolicyRuleResolver, urls []string) ([]string, []ruleFailure, error) {
	seenURL := make(map[string]struct{}, len(urls))
	seenName := make(map[string]struct{}, len(urls))
	var names []string
	var skipped []ruleFailure
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := seenURL[u]; ok {
			continue
		}
		seenURL[u] = struct{}{}

		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		rule, err := r.ResolvePolicyRule(ctx, u)
		if err != nil {
			if isContextErr(ctx, err) {
				return nil, nil, err
			}
			skipped = append(skipped, ruleFailure{URL: u, Err: err})
			continue
		}
		name := strings.TrimSpace(rule.Name)
		if name == "" {
			continue
		}
		if _, ok := seenName[name]; ok {
			continue
		}
		seenName[name] = struct{}{}
		names = append(names, name)
	}
	return names, skipped, nil
}

// ruleFailures turns skipped rules into failure entries for n.
func ruleFailures(n models.Notification, component string, skipped []ruleFailure) []models.FailureEntry {
	out := make([]models.FailureEntry, 0, len(skipped))
	for _, s := range skipped {
		out = append(out, itemFailure(n, Classify(s.Err),
			fmt.Sprintf("policy rule %s of component %s: %v", s.URL, component, s.Err)))
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

const noRulesReason = "no policy rules resolved"
