package transform

import (
	"context"
	"errors"
	"fmt"

	"github.com/CosmoTheDev/hubwatch/internal/resolve"
	"github.com/CosmoTheDev/hubwatch/models"
)

// PolicyViolation transforms RULE_VIOLATION notifications into one item per
// component version in violation.
type PolicyViolation struct{}

func (PolicyViolation) Type() models.NotificationType { return models.NotificationPolicyViolation }

func (PolicyViolation) Transform(ctx context.Context, n models.Notification, r resolve.Resolver) (Result, error) {
	var c models.RuleViolationContent
	if err := decode(n, &c); err != nil {
		return Result{}, err
	}
	if c.ProjectVersionLink == "" {
		return Result{}, invalid("rule violation has no project version link")
	}
	if len(c.ComponentVersionStatuses) == 0 {
		return Result{}, invalid("rule violation has no component version statuses")
	}

	pv, err := r.ResolveProjectVersion(ctx, c.ProjectVersionLink)
	if err != nil {
		return Result{}, fmt.Errorf("project version: %w", err)
	}

	// Every identity reference must resolve before any item is built.
	comps := make([]models.ComponentVersionRef, len(c.ComponentVersionStatuses))
	for i, st := range c.ComponentVersionStatuses {
		if st.ComponentVersionLink == "" {
			return Result{}, invalid("component %q has no component version link", st.ComponentName)
		}
		cv, err := r.ResolveComponentVersion(ctx, st.ComponentVersionLink)
		if err != nil {
			return Result{}, fmt.Errorf("component version of %q: %w", st.ComponentName, err)
		}
		comps[i] = cv
	}

	var res Result
	for i, st := range c.ComponentVersionStatuses {
		names, skipped, err := resolveRuleNames(ctx, r, st.PolicyRuleLinks)
		if err != nil {
			return Result{}, fmt.Errorf("policy rules of %q: %w", st.ComponentName, err)
		}
		res.Failures = append(res.Failures, ruleFailures(n, st.ComponentName, skipped)...)
		if len(names) == 0 {
			res.Failures = append(res.Failures, itemFailure(n, models.FailureValidation,
				fmt.Sprintf("%s: component %s %s", noRulesReason, st.ComponentName, comps[i].Name)))
			continue
		}
		res.Items = append(res.Items, models.PolicyViolationContentItem{
			Content: models.Content{
				ProjectName:      c.ProjectName,
				ProjectVersion:   firstNonEmpty(pv.Name, c.ProjectVersionName),
				ComponentName:    st.ComponentName,
				ComponentVersion: comps[i].Name,
				Type:             n.Type,
				CreatedAt:        n.CreatedAt,
			},
			RuleNames: names,
		})
	}
	return res, nil
}

// PolicyOverride transforms POLICY_OVERRIDE notifications. Only rules the
// component version still carries in its live policy status are reported.
type PolicyOverride struct{}

func (PolicyOverride) Type() models.NotificationType { return models.NotificationPolicyOverride }

func (PolicyOverride) Transform(ctx context.Context, n models.Notification, r resolve.Resolver) (Result, error) {
	var c models.PolicyOverrideContent
	if err := decode(n, &c); err != nil {
		return Result{}, err
	}
	switch {
	case c.ProjectVersionLink == "":
		return Result{}, invalid("policy override has no project version link")
	case c.ComponentVersionLink == "":
		return Result{}, invalid("policy override has no component version link")
	case c.PolicyStatusLink == "":
		return Result{}, invalid("policy override has no policy status link")
	}

	pv, err := r.ResolveProjectVersion(ctx, c.ProjectVersionLink)
	if err != nil {
		return Result{}, fmt.Errorf("project version: %w", err)
	}
	cv, err := r.ResolveComponentVersion(ctx, c.ComponentVersionLink)
	if err != nil {
		return Result{}, fmt.Errorf("component version of %q: %w", c.ComponentName, err)
	}

	active := map[string]struct{}{}
	status, err := r.ResolvePolicyStatus(ctx, c.PolicyStatusLink)
	switch {
	case errors.Is(err, resolve.ErrNotFound):
		// No live status: nothing left to report as overridden.
	case err != nil:
		return Result{}, fmt.Errorf("policy status of %q: %w", c.ComponentName, err)
	default:
		for _, u := range status.RuleURLs {
			active[u] = struct{}{}
		}
	}

	var ruleURLs []string
	for _, u := range c.PolicyRuleLinks {
		if _, ok := active[u]; ok {
			ruleURLs = append(ruleURLs, u)
		}
	}

	names, skipped, err := resolveRuleNames(ctx, r, ruleURLs)
	if err != nil {
		return Result{}, fmt.Errorf("policy rules of %q: %w", c.ComponentName, err)
	}
	failures := ruleFailures(n, c.ComponentName, skipped)
	if len(names) == 0 {
		if len(failures) == 0 {
			return Result{}, invalid("%s: component %s %s", noRulesReason, c.ComponentName, cv.Name)
		}
		return Result{Failures: append(failures, itemFailure(n, models.FailureValidation,
			fmt.Sprintf("%s: component %s %s", noRulesReason, c.ComponentName, cv.Name)))}, nil
	}

	return Result{Failures: failures, Items: []models.ContentItem{models.PolicyOverrideContentItem{
		Content: models.Content{
			ProjectName:      c.ProjectName,
			ProjectVersion:   firstNonEmpty(pv.Name, c.ProjectVersionName),
			ComponentName:    c.ComponentName,
			ComponentVersion: firstNonEmpty(cv.Name, c.ComponentVersionName),
			Type:             n.Type,
			CreatedAt:        n.CreatedAt,
		},
		RuleNames: names,
		FirstName: c.FirstName,
		LastName:  c.LastName,
	}}}, nil
}
