package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CosmoTheDev/hubwatch/internal/resolve"
	"github.com/CosmoTheDev/hubwatch/internal/resolve/resolvetest"
	"github.com/CosmoTheDev/hubwatch/internal/transform"
	"github.com/CosmoTheDev/hubwatch/models"
)

var base = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func fixture() *resolvetest.Fake {
	f := resolvetest.New()
	f.Projects["pv"] = "0.1.0"
	f.Components["cv"] = "0.9.8"
	f.Components["cv2"] = "1.0.0"
	f.Rules["rule"] = "Policy Name"
	f.Rules["rule2"] = "Second Policy"
	f.Statuses["status"] = []string{"rule", "rule2"}
	return f
}

func override(t *testing.T, id string, offset time.Duration, componentLink string, rules ...string) models.Notification {
	t.Helper()
	raw, err := json.Marshal(models.PolicyOverrideContent{
		ProjectName:          "test project",
		ProjectVersionLink:   "pv",
		ComponentName:        "component 1",
		ComponentVersionLink: componentLink,
		PolicyStatusLink:     "status",
		PolicyRuleLinks:      rules,
		FirstName:            "myName",
	})
	require.NoError(t, err)
	return models.Notification{ID: id, Type: models.NotificationPolicyOverride, CreatedAt: base.Add(offset), Content: raw}
}

func TestProcessMixedBatch(t *testing.T) {
	events := []models.Notification{
		override(t, "e1", time.Second, "cv", "rule"),
		override(t, "e2", 2*time.Second, "cv", "rule2"),
		override(t, "e3", 3*time.Second, "missing", "rule"),
		{ID: "e4", Type: "PROJECT_CREATED", CreatedAt: base.Add(4 * time.Second)},
		override(t, "e5", 5*time.Second, "cv2", "rule"),
	}

	p := New(transform.NewDispatcher(nil), fixture(), Options{Workers: 3, MaxInFlight: 2})
	res, err := p.Process(context.Background(), events)
	require.NoError(t, err)

	assert.Equal(t, 5, res.Events)
	assert.Equal(t, base.Add(5*time.Second), res.Newest)
	require.Len(t, res.Items, 2)
	merged := res.Items[0].(models.PolicyOverrideContentItem)
	assert.Equal(t, []string{"Policy Name", "Second Policy"}, merged.RuleNames)
	assert.Equal(t, base.Add(time.Second), merged.CreatedAt)
	assert.Equal(t, "1.0.0", res.Items[1].Base().ComponentVersion)

	require.Len(t, res.Failures, 2)
	assert.Equal(t, "e3", res.Failures[0].EventID)
	assert.Equal(t, models.FailureUnresolvable, res.Failures[0].Kind)
	assert.Equal(t, "e4", res.Failures[1].EventID)
	assert.Equal(t, models.FailureUnsupportedType, res.Failures[1].Kind)

	assert.True(t, res.RetryFrom.IsZero())
	assert.Equal(t, res.Newest, res.NextCursor())
	assert.NotEqual(t, res.RunID.String(), "")
}

func TestProcessEmptyBatch(t *testing.T) {
	res, err := New(nil, fixture(), DefaultOptions()).Process(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Empty(t, res.Failures)
}

func TestProcessDeadlineProducesTimeouts(t *testing.T) {
	f := fixture()
	f.Delay = 500 * time.Millisecond
	var events []models.Notification
	for i := 0; i < 6; i++ {
		events = append(events, override(t, fmt.Sprintf("e%d", i), time.Duration(i)*time.Second, "cv", "rule"))
	}

	p := New(nil, f, Options{Workers: 2, Timeout: 50 * time.Millisecond})
	start := time.Now()
	res, err := p.Process(context.Background(), events)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 400*time.Millisecond)

	assert.Empty(t, res.Items)
	require.Len(t, res.Failures, 6)
	for i, fe := range res.Failures {
		assert.Equal(t, fmt.Sprintf("e%d", i), fe.EventID)
		assert.Equal(t, models.FailureTimeout, fe.Kind)
	}
	assert.Equal(t, base, res.RetryFrom)
}

func TestProcessOutageCancelsBatch(t *testing.T) {
	f := fixture()
	f.Errs["pv"] = &resolve.TransportError{URL: "pv", StatusCode: 503, Err: errors.New("unavailable")}
	var events []models.Notification
	for i := 0; i < 20; i++ {
		events = append(events, override(t, fmt.Sprintf("e%d", i), time.Duration(i)*time.Second, "cv", "rule"))
	}

	p := New(nil, f, Options{Workers: 1, OutageThreshold: 3})
	res, err := p.Process(context.Background(), events)
	require.ErrorIs(t, err, ErrBackendUnavailable)
	require.NotNil(t, res)
	assert.Less(t, f.Calls("pv"), 20)
	require.Len(t, res.Failures, 20)
	assert.Equal(t, models.FailureTransport, res.Failures[0].Kind)
	assert.Equal(t, models.FailureTimeout, res.Failures[19].Kind)
}

func TestProcessIsolatedTransportErrorIsPerEvent(t *testing.T) {
	f := fixture()
	f.Errs["cv2"] = &resolve.TransportError{URL: "cv2", Err: errors.New("reset by peer")}
	events := []models.Notification{
		override(t, "e1", time.Second, "cv2", "rule"),
		override(t, "e2", 2*time.Second, "cv", "rule"),
	}

	res, err := New(nil, f, Options{Workers: 1, OutageThreshold: 3}).Process(context.Background(), events)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, models.FailureTransport, res.Failures[0].Kind)
	assert.Equal(t, base.Add(time.Second), res.RetryFrom)
	assert.Equal(t, base.Add(time.Second-time.Nanosecond), res.NextCursor())
}

func TestProcessHoldsCursorForFailedSecondaryRule(t *testing.T) {
	f := fixture()
	f.Errs["rule2"] = &resolve.TransportError{URL: "rule2", StatusCode: 503, Err: errors.New("unavailable")}
	events := []models.Notification{
		override(t, "e1", time.Second, "cv", "rule"),
		override(t, "e2", 2*time.Second, "cv2", "rule", "rule2"),
		override(t, "e3", 3*time.Second, "cv", "rule"),
	}

	res, err := New(nil, f, Options{Workers: 2, OutageThreshold: 3}).Process(context.Background(), events)
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, []string{"Policy Name"}, res.Items[1].(models.PolicyOverrideContentItem).RuleNames)

	require.Len(t, res.Failures, 1)
	assert.Equal(t, "e2", res.Failures[0].EventID)
	assert.Equal(t, models.FailureTransport, res.Failures[0].Kind)
	assert.Contains(t, res.Failures[0].Reason, "rule2")
	assert.Equal(t, base.Add(2*time.Second), res.RetryFrom)
	assert.Equal(t, base.Add(2*time.Second-time.Nanosecond), res.NextCursor())
}

func TestProcessReportsUnreadableEvent(t *testing.T) {
	events := []models.Notification{
		{ID: "bad", Type: models.NotificationVersionUpdate, Unreadable: "unreadable createdAt \"not a date\""},
		override(t, "e1", time.Second, "cv", "rule"),
	}

	res, err := New(nil, fixture(), DefaultOptions()).Process(context.Background(), events)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "bad", res.Failures[0].EventID)
	assert.Equal(t, models.FailureValidation, res.Failures[0].Kind)
	assert.Equal(t, base.Add(time.Second), res.NextCursor())
}

func TestProcessBoundsInFlightResolverCalls(t *testing.T) {
	f := fixture()
	f.Delay = 5 * time.Millisecond
	var events []models.Notification
	for i := 0; i < 16; i++ {
		events = append(events, override(t, fmt.Sprintf("e%d", i), time.Duration(i)*time.Second, "cv", "rule"))
	}

	res, err := New(nil, f, Options{Workers: 8, MaxInFlight: 3}).Process(context.Background(), events)
	require.NoError(t, err)
	assert.Empty(t, res.Failures)
	assert.LessOrEqual(t, f.Peak(), 3)
}

func TestProcessParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := New(nil, fixture(), DefaultOptions()).Process(ctx, []models.Notification{override(t, "e1", 0, "cv", "rule")})
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, models.FailureTimeout, res.Failures[0].Kind)
}

type stubSource struct {
	events []models.Notification
	err    error
	since  time.Time
}

func (s *stubSource) FetchSince(_ context.Context, since time.Time) ([]models.Notification, error) {
	s.since = since
	return s.events, s.err
}

func TestRunFetchesFromSource(t *testing.T) {
	src := &stubSource{events: []models.Notification{override(t, "e1", time.Minute, "cv", "rule")}}
	res, err := New(nil, fixture(), DefaultOptions()).Run(context.Background(), src, base)
	require.NoError(t, err)
	assert.Equal(t, base, src.since)
	assert.Equal(t, base, res.Since)
	assert.Equal(t, base.Add(time.Minute), res.NextCursor())
}

func TestRunReturnsSourceError(t *testing.T) {
	src := &stubSource{err: errors.New("hub down")}
	res, err := New(nil, fixture(), DefaultOptions()).Run(context.Background(), src, base)
	assert.Nil(t, res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hub down")
}

func TestNextCursorWithoutEventsKeepsSince(t *testing.T) {
	r := &Result{Since: base}
	assert.Equal(t, base, r.NextCursor())
}
