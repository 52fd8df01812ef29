package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseContent(at time.Time) Content {
	return Content{
		ProjectName:      "test project",
		ProjectVersion:   "0.1.0",
		ComponentName:    "component 1",
		ComponentVersion: "0.9.8",
		Type:             NotificationPolicyOverride,
		CreatedAt:        at,
	}
}

func TestContentValidate(t *testing.T) {
	c := baseContent(time.Now())
	require.NoError(t, c.Validate())

	c.ComponentVersion = " "
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "component version")
}

func TestPolicyOverrideMergeUnionsRulesAndKeepsEarliestScalars(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := PolicyOverrideContentItem{Content: baseContent(t0.Add(time.Hour)), RuleNames: []string{"B", "C"}, FirstName: "late"}
	early := PolicyOverrideContentItem{Content: baseContent(t0), RuleNames: []string{"A", "B"}, FirstName: "early", LastName: "user"}

	merged := late.Merge(early).(PolicyOverrideContentItem)
	assert.Equal(t, []string{"B", "C", "A"}, merged.RuleNames)
	assert.Equal(t, "early", merged.FirstName)
	assert.Equal(t, "user", merged.LastName)
	assert.Equal(t, t0, merged.CreatedAt)

	// Inputs are untouched.
	assert.Equal(t, []string{"B", "C"}, late.RuleNames)
	assert.Equal(t, "late", late.FirstName)
}

func TestMergeTieKeepsFirstSeenScalar(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := VersionUpdateContentItem{Content: baseContent(t0), PreviousVersion: "1.0"}
	b := VersionUpdateContentItem{Content: baseContent(t0), PreviousVersion: "2.0"}
	a.Type, b.Type = NotificationVersionUpdate, NotificationVersionUpdate

	assert.Equal(t, "1.0", a.Merge(b).(VersionUpdateContentItem).PreviousVersion)
	assert.Equal(t, "2.0", b.Merge(a).(VersionUpdateContentItem).PreviousVersion)
}

func TestMergeKeepsEarliestScalarEvenWhenEmpty(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	early := PolicyOverrideContentItem{Content: baseContent(t0), RuleNames: []string{"A"}, FirstName: "early"}
	late := PolicyOverrideContentItem{Content: baseContent(t0.Add(time.Hour)), RuleNames: []string{"A"}, FirstName: "late", LastName: "user"}

	for _, merged := range []PolicyOverrideContentItem{
		early.Merge(late).(PolicyOverrideContentItem),
		late.Merge(early).(PolicyOverrideContentItem),
	} {
		assert.Equal(t, "early", merged.FirstName)
		assert.Empty(t, merged.LastName)
	}
}

func TestMergeIgnoresMismatchedItems(t *testing.T) {
	t0 := time.Now()
	a := PolicyViolationContentItem{Content: baseContent(t0), RuleNames: []string{"A"}}
	a.Type = NotificationPolicyViolation
	other := a
	other.ComponentVersion = "1.0.0"
	other.RuleNames = []string{"Z"}

	assert.Equal(t, a, a.Merge(other))
	assert.Equal(t, a, a.Merge(VulnerabilityContentItem{Content: a.Content}))
}

func TestMergeIsIdempotent(t *testing.T) {
	a := VulnerabilityContentItem{Content: baseContent(time.Now()), VulnerabilityIDs: []string{"CVE-1", "CVE-2"}, Severity: SeverityHigh}
	a.Type = NotificationVulnerability
	assert.Equal(t, a, a.Merge(a))
}

func TestMapSeverity(t *testing.T) {
	assert.Equal(t, SeverityCritical, MapSeverity("critical"))
	assert.Equal(t, SeverityMedium, MapSeverity(" MODERATE "))
	assert.Equal(t, SeverityUnknown, MapSeverity("bogus"))
	assert.True(t, SeverityHigh.AtLeast(SeverityMedium))
	assert.False(t, SeverityLow.AtLeast(SeverityMedium))
	assert.True(t, SeverityUnknown.AtLeast(""))
}
