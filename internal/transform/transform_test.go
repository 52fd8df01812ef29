package transform

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CosmoTheDev/hubwatch/internal/resolve"
	"github.com/CosmoTheDev/hubwatch/internal/resolve/resolvetest"
	"github.com/CosmoTheDev/hubwatch/models"
)

const (
	projectVersionURL   = "http://hub/api/projects/p/versions/v"
	componentVersionURL = "http://hub/api/components/c/versions/v"
	policyStatusURL     = "http://hub/api/status/1"
	ruleURL             = "http://hub/api/policy-rules/1"
	otherRuleURL        = "http://hub/api/policy-rules/2"
)

var createdAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixtureResolver() *resolvetest.Fake {
	f := resolvetest.New()
	f.Projects[projectVersionURL] = "0.1.0"
	f.Components[componentVersionURL] = "0.9.8"
	f.Rules[ruleURL] = "Policy Name"
	f.Rules[otherRuleURL] = "Other Policy"
	f.Statuses[policyStatusURL] = []string{ruleURL}
	return f
}

func notification(t *testing.T, id string, typ models.NotificationType, content any) models.Notification {
	t.Helper()
	raw, err := json.Marshal(content)
	require.NoError(t, err)
	return models.Notification{ID: id, Type: typ, CreatedAt: createdAt, Content: raw}
}

func overrideEvent(t *testing.T, id, firstName string) models.Notification {
	return notification(t, id, models.NotificationPolicyOverride, models.PolicyOverrideContent{
		ProjectName:          "test project",
		ProjectVersionName:   "0.1.0",
		ProjectVersionLink:   projectVersionURL,
		ComponentName:        "component 1",
		ComponentVersionName: "0.9.8",
		ComponentVersionLink: componentVersionURL,
		PolicyStatusLink:     policyStatusURL,
		PolicyRuleLinks:      []string{ruleURL},
		FirstName:            firstName,
		LastName:             "noMyName",
	})
}

func TestPolicyOverrideEndToEnd(t *testing.T) {
	d := NewDispatcher(nil)
	res := d.Dispatch(context.Background(), overrideEvent(t, "e1", "myName"), fixtureResolver())

	require.Empty(t, res.Failures)
	require.Len(t, res.Items, 1)
	item, ok := res.Items[0].(models.PolicyOverrideContentItem)
	require.True(t, ok)
	assert.Equal(t, "test project", item.ProjectName)
	assert.Equal(t, "0.1.0", item.ProjectVersion)
	assert.Equal(t, "component 1", item.ComponentName)
	assert.Equal(t, "0.9.8", item.ComponentVersion)
	assert.Equal(t, "myName", item.FirstName)
	assert.Equal(t, "noMyName", item.LastName)
	assert.Equal(t, []string{"Policy Name"}, item.RuleNames)
	assert.Equal(t, createdAt, item.CreatedAt)
}

func TestPolicyOverrideKeepsOnlyLiveRules(t *testing.T) {
	r := fixtureResolver()
	n := notification(t, "e1", models.NotificationPolicyOverride, models.PolicyOverrideContent{
		ProjectName:          "test project",
		ProjectVersionLink:   projectVersionURL,
		ComponentName:        "component 1",
		ComponentVersionLink: componentVersionURL,
		PolicyStatusLink:     policyStatusURL,
		PolicyRuleLinks:      []string{otherRuleURL, ruleURL},
	})

	res := NewDispatcher(nil).Dispatch(context.Background(), n, r)
	require.Len(t, res.Items, 1)
	assert.Equal(t, []string{"Policy Name"}, res.Items[0].(models.PolicyOverrideContentItem).RuleNames)
	assert.Zero(t, r.Calls(otherRuleURL))
}

func TestPolicyOverrideWithoutLiveStatusIsDropped(t *testing.T) {
	r := fixtureResolver()
	delete(r.Statuses, policyStatusURL)

	res := NewDispatcher(nil).Dispatch(context.Background(), overrideEvent(t, "e1", "myName"), r)
	assert.Empty(t, res.Items)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, models.FailureValidation, res.Failures[0].Kind)
	assert.Contains(t, res.Failures[0].Reason, noRulesReason)
}

func TestPolicyOverrideUnresolvableComponentVoidsEvent(t *testing.T) {
	r := fixtureResolver()
	delete(r.Components, componentVersionURL)

	res := NewDispatcher(nil).Dispatch(context.Background(), overrideEvent(t, "e1", "myName"), r)
	assert.Empty(t, res.Items)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "e1", res.Failures[0].EventID)
	assert.Equal(t, models.FailureUnresolvable, res.Failures[0].Kind)
}

func violationEvent(t *testing.T, statuses ...models.ComponentVersionStatus) models.Notification {
	return notification(t, "v1", models.NotificationPolicyViolation, models.RuleViolationContent{
		ProjectName:              "test project",
		ProjectVersionName:       "0.1.0",
		ProjectVersionLink:       projectVersionURL,
		ComponentVersionStatuses: statuses,
	})
}

func TestPolicyViolationEmitsOneItemPerComponent(t *testing.T) {
	r := fixtureResolver()
	secondURL := "http://hub/api/components/d/versions/v"
	r.Components[secondURL] = "2.0.0"

	n := violationEvent(t,
		models.ComponentVersionStatus{ComponentName: "component 1", ComponentVersionLink: componentVersionURL, PolicyRuleLinks: []string{ruleURL, ruleURL}},
		models.ComponentVersionStatus{ComponentName: "component 2", ComponentVersionLink: secondURL, PolicyRuleLinks: []string{otherRuleURL, ruleURL}},
	)

	res := NewDispatcher(nil).Dispatch(context.Background(), n, r)
	require.Empty(t, res.Failures)
	require.Len(t, res.Items, 2)

	first := res.Items[0].(models.PolicyViolationContentItem)
	assert.Equal(t, "component 1", first.ComponentName)
	assert.Equal(t, []string{"Policy Name"}, first.RuleNames)

	second := res.Items[1].(models.PolicyViolationContentItem)
	assert.Equal(t, "2.0.0", second.ComponentVersion)
	assert.Equal(t, []string{"Other Policy", "Policy Name"}, second.RuleNames)

	// Duplicate rule URLs within an entry are resolved once.
	assert.Equal(t, 2, r.Calls(ruleURL))
}

func TestPolicyViolationReportsSkippedRules(t *testing.T) {
	r := fixtureResolver()
	r.Errs[otherRuleURL] = &resolve.TransportError{URL: otherRuleURL, StatusCode: 503, Err: errors.New("unavailable")}
	missingURL := "http://hub/api/policy-rules/missing"

	n := violationEvent(t, models.ComponentVersionStatus{
		ComponentName: "component 1", ComponentVersionLink: componentVersionURL,
		PolicyRuleLinks: []string{missingURL, otherRuleURL, ruleURL},
	})

	res := NewDispatcher(nil).Dispatch(context.Background(), n, r)
	require.Len(t, res.Items, 1)
	assert.Equal(t, []string{"Policy Name"}, res.Items[0].(models.PolicyViolationContentItem).RuleNames)

	require.Len(t, res.Failures, 2)
	assert.Equal(t, models.FailureUnresolvable, res.Failures[0].Kind)
	assert.Contains(t, res.Failures[0].Reason, missingURL)
	assert.Equal(t, models.FailureTransport, res.Failures[1].Kind)
	assert.Contains(t, res.Failures[1].Reason, otherRuleURL)
	for _, f := range res.Failures {
		assert.Equal(t, "v1", f.EventID)
	}
}

func TestPolicyOverrideReportsRuleTransportFailure(t *testing.T) {
	r := fixtureResolver()
	r.Statuses[policyStatusURL] = []string{ruleURL, otherRuleURL}
	r.Errs[otherRuleURL] = &resolve.TransportError{URL: otherRuleURL, StatusCode: 503, Err: errors.New("unavailable")}
	n := notification(t, "e1", models.NotificationPolicyOverride, models.PolicyOverrideContent{
		ProjectName:          "test project",
		ProjectVersionLink:   projectVersionURL,
		ComponentName:        "component 1",
		ComponentVersionLink: componentVersionURL,
		PolicyStatusLink:     policyStatusURL,
		PolicyRuleLinks:      []string{ruleURL, otherRuleURL},
	})

	res := NewDispatcher(nil).Dispatch(context.Background(), n, r)
	require.Len(t, res.Items, 1)
	assert.Equal(t, []string{"Policy Name"}, res.Items[0].(models.PolicyOverrideContentItem).RuleNames)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, models.FailureTransport, res.Failures[0].Kind)
	assert.Contains(t, res.Failures[0].Reason, otherRuleURL)

	// With no rule left the item is dropped but the transport failure stays.
	delete(r.Rules, ruleURL)
	r.Errs[ruleURL] = &resolve.TransportError{URL: ruleURL, StatusCode: 502, Err: errors.New("bad gateway")}
	res = NewDispatcher(nil).Dispatch(context.Background(), n, r)
	assert.Empty(t, res.Items)
	require.Len(t, res.Failures, 3)
	assert.Equal(t, models.FailureTransport, res.Failures[0].Kind)
	assert.Equal(t, models.FailureTransport, res.Failures[1].Kind)
	assert.Equal(t, models.FailureValidation, res.Failures[2].Kind)
}

func TestResolveRuleNamesStopsOnceContextEnds(t *testing.T) {
	r := fixtureResolver()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	names, skipped, err := resolveRuleNames(ctx, r, []string{"http://hub/gone", ruleURL})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, names)
	assert.Empty(t, skipped)
	assert.Zero(t, r.Calls("http://hub/gone"))
	assert.Zero(t, r.Calls(ruleURL))
}

func TestPolicyViolationDropsEntryWithNoRules(t *testing.T) {
	r := fixtureResolver()
	secondURL := "http://hub/api/components/d/versions/v"
	r.Components[secondURL] = "2.0.0"

	n := violationEvent(t,
		models.ComponentVersionStatus{ComponentName: "component 1", ComponentVersionLink: componentVersionURL, PolicyRuleLinks: []string{"http://hub/gone"}},
		models.ComponentVersionStatus{ComponentName: "component 2", ComponentVersionLink: secondURL, PolicyRuleLinks: []string{ruleURL}},
	)

	res := NewDispatcher(nil).Dispatch(context.Background(), n, r)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "component 2", res.Items[0].Base().ComponentName)
	require.Len(t, res.Failures, 2)
	assert.Equal(t, models.FailureUnresolvable, res.Failures[0].Kind)
	assert.Contains(t, res.Failures[0].Reason, "http://hub/gone")
	assert.Equal(t, models.FailureValidation, res.Failures[1].Kind)
	assert.Contains(t, res.Failures[1].Reason, noRulesReason)
}

func TestPolicyViolationIdentityFailureVoidsWholeEvent(t *testing.T) {
	r := fixtureResolver()
	n := violationEvent(t,
		models.ComponentVersionStatus{ComponentName: "component 1", ComponentVersionLink: componentVersionURL, PolicyRuleLinks: []string{ruleURL}},
		models.ComponentVersionStatus{ComponentName: "ghost", ComponentVersionLink: "http://hub/api/components/ghost", PolicyRuleLinks: []string{ruleURL}},
	)

	res := NewDispatcher(nil).Dispatch(context.Background(), n, r)
	assert.Empty(t, res.Items)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, models.FailureUnresolvable, res.Failures[0].Kind)
	assert.Equal(t, "v1", res.Failures[0].EventID)
}

func TestPolicyViolationTransportFailureOnIdentity(t *testing.T) {
	r := fixtureResolver()
	r.Errs[projectVersionURL] = &resolve.TransportError{URL: projectVersionURL, Err: errors.New("connection refused")}
	n := violationEvent(t, models.ComponentVersionStatus{ComponentName: "component 1", ComponentVersionLink: componentVersionURL, PolicyRuleLinks: []string{ruleURL}})

	res := NewDispatcher(nil).Dispatch(context.Background(), n, r)
	assert.Empty(t, res.Items)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, models.FailureTransport, res.Failures[0].Kind)
}

func TestVulnerabilityEmitsOneItemPerAffectedProject(t *testing.T) {
	r := fixtureResolver()
	otherPV := "http://hub/api/projects/q/versions/w"
	r.Projects[otherPV] = "7.0"

	n := notification(t, "vuln", models.NotificationVulnerability, models.VulnerabilityContent{
		ComponentName:        "component 1",
		VersionName:          "0.9.8",
		ComponentVersionLink: componentVersionURL,
		Severity:             "high",
		NewVulnerabilityIDs:  []models.VulnerabilitySourceQualifiedID{{Source: "NVD", VulnerabilityID: "CVE-1"}},
		UpdatedVulnerabilityIDs: []models.VulnerabilitySourceQualifiedID{
			{Source: "NVD", VulnerabilityID: "CVE-2"}, {Source: "NVD", VulnerabilityID: "CVE-1"},
		},
		AffectedProjectVersions: []models.AffectedProjectVersion{
			{ProjectName: "test project", ProjectVersionLink: projectVersionURL},
			{ProjectName: "other project", ProjectVersionLink: otherPV},
		},
	})

	res := NewDispatcher(nil).Dispatch(context.Background(), n, r)
	require.Empty(t, res.Failures)
	require.Len(t, res.Items, 2)
	first := res.Items[0].(models.VulnerabilityContentItem)
	assert.Equal(t, []string{"CVE-1", "CVE-2"}, first.VulnerabilityIDs)
	assert.Equal(t, models.SeverityHigh, first.Severity)
	assert.Equal(t, "0.1.0", first.ProjectVersion)
	assert.Equal(t, "7.0", res.Items[1].Base().ProjectVersion)
}

func TestVulnerabilityWithoutIDsIsValidationFailure(t *testing.T) {
	n := notification(t, "vuln", models.NotificationVulnerability, models.VulnerabilityContent{
		ComponentName:           "component 1",
		ComponentVersionLink:    componentVersionURL,
		AffectedProjectVersions: []models.AffectedProjectVersion{{ProjectName: "p", ProjectVersionLink: projectVersionURL}},
	})
	res := NewDispatcher(nil).Dispatch(context.Background(), n, fixtureResolver())
	require.Len(t, res.Failures, 1)
	assert.Equal(t, models.FailureValidation, res.Failures[0].Kind)
}

func TestVersionUpdate(t *testing.T) {
	n := notification(t, "vu", models.NotificationVersionUpdate, models.VersionUpdateContent{
		ProjectName:          "test project",
		ProjectVersionLink:   projectVersionURL,
		ComponentName:        "component 1",
		ComponentVersionLink: componentVersionURL,
		PreviousVersionName:  "0.9.7",
	})
	res := NewDispatcher(nil).Dispatch(context.Background(), n, fixtureResolver())
	require.Len(t, res.Items, 1)
	assert.Equal(t, "0.9.7", res.Items[0].(models.VersionUpdateContentItem).PreviousVersion)
}

func TestDispatchUnsupportedType(t *testing.T) {
	n := models.Notification{ID: "x", Type: "PROJECT_CREATED", Content: json.RawMessage(`{}`)}
	res := NewDispatcher(nil).Dispatch(context.Background(), n, fixtureResolver())
	assert.Empty(t, res.Items)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, models.FailureUnsupportedType, res.Failures[0].Kind)
}

func TestDispatchMalformedPayload(t *testing.T) {
	n := models.Notification{ID: "x", Type: models.NotificationPolicyOverride, Content: json.RawMessage(`{"projectName":`)}
	res := NewDispatcher(nil).Dispatch(context.Background(), n, fixtureResolver())
	require.Len(t, res.Failures, 1)
	assert.Equal(t, models.FailureValidation, res.Failures[0].Kind)
}

type panicking struct{}

func (panicking) Type() models.NotificationType { return "BOOM" }
func (panicking) Transform(context.Context, models.Notification, resolve.Resolver) (Result, error) {
	panic("nil map")
}

type invalidItems struct{}

func (invalidItems) Type() models.NotificationType { return "PARTIAL" }
func (invalidItems) Transform(_ context.Context, n models.Notification, _ resolve.Resolver) (Result, error) {
	return Result{Items: []models.ContentItem{
		models.VersionUpdateContentItem{Content: models.Content{ProjectName: "p", Type: n.Type}},
	}}, nil
}

func TestDispatchRecoversPanicsAndRevalidates(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(panicking{}))
	require.NoError(t, reg.Register(invalidItems{}))
	d := NewDispatcher(reg)

	res := d.Dispatch(context.Background(), models.Notification{ID: "p", Type: "BOOM"}, fixtureResolver())
	require.Len(t, res.Failures, 1)
	assert.Equal(t, models.FailureInternal, res.Failures[0].Kind)
	assert.Contains(t, res.Failures[0].Reason, "nil map")

	res = d.Dispatch(context.Background(), models.Notification{ID: "q", Type: "PARTIAL"}, fixtureResolver())
	assert.Empty(t, res.Items)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, models.FailureValidation, res.Failures[0].Kind)
}

func TestDispatchUnreadableEventIsValidationFailure(t *testing.T) {
	r := fixtureResolver()
	n := overrideEvent(t, "e1", "myName")
	n.CreatedAt = time.Time{}
	n.Unreadable = `unreadable createdAt "yesterday"`

	res := NewDispatcher(nil).Dispatch(context.Background(), n, r)
	assert.Empty(t, res.Items)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "e1", res.Failures[0].EventID)
	assert.Equal(t, models.FailureValidation, res.Failures[0].Kind)
	assert.Equal(t, n.Unreadable, res.Failures[0].Reason)
	assert.Zero(t, r.Calls(projectVersionURL))
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := DefaultRegistry()
	assert.Error(t, reg.Register(PolicyOverride{}))
	assert.Len(t, reg.Types(), 4)
}

func TestDispatchDeadlineIsTimeout(t *testing.T) {
	r := fixtureResolver()
	r.Delay = time.Second
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	res := NewDispatcher(nil).Dispatch(ctx, overrideEvent(t, "slow", "myName"), r)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, models.FailureTimeout, res.Failures[0].Kind)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, models.FailureUnresolvable, Classify(resolve.NotFound("x")))
	assert.Equal(t, models.FailureTransport, Classify(&resolve.TransportError{Err: errors.New("x")}))
	assert.Equal(t, models.FailureTimeout, Classify(context.DeadlineExceeded))
	assert.Equal(t, models.FailureValidation, Classify(invalid("bad")))
	assert.Equal(t, models.FailureInternal, Classify(errors.New("?")))
}
