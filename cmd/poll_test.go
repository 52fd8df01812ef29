package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CosmoTheDev/hubwatch/internal/config"
	"github.com/CosmoTheDev/hubwatch/internal/store"
	"github.com/CosmoTheDev/hubwatch/models"
)

// fakeHub serves one VERSION_UPDATE and one unsupported notification.
func fakeHub(t *testing.T, failVersions *atomic.Bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/notifications", func(w http.ResponseWriter, r *http.Request) {
		writeJSONBody(t, w, map[string]interface{}{
			"totalCount": 2,
			"items": []map[string]interface{}{
				{
					"type":      "VERSION_UPDATE",
					"createdAt": "2024-03-02T10:00:00.000Z",
					"_meta":     map[string]string{"href": "/api/notifications/n1"},
					"content": map[string]string{
						"projectName":         "test project",
						"projectVersion":      "/api/projects/1/versions/2",
						"componentName":       "component 1",
						"componentVersion":    "/api/components/3/versions/4",
						"previousVersionName": "0.9.7",
					},
				},
				{
					"type":      "BOM_EDIT",
					"createdAt": "2024-03-03T10:00:00.000Z",
					"_meta":     map[string]string{"href": "/api/notifications/n2"},
					"content":   map[string]string{},
				},
			},
		})
	})
	mux.HandleFunc("/api/projects/1/versions/2", func(w http.ResponseWriter, r *http.Request) {
		if failVersions != nil && failVersions.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSONBody(t, w, map[string]string{"versionName": "0.1.0"})
	})
	mux.HandleFunc("/api/components/3/versions/4", func(w http.ResponseWriter, r *http.Request) {
		writeJSONBody(t, w, map[string]string{"versionName": "0.9.8"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSONBody(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func testConfig(t *testing.T, hubURL string) *config.Config {
	t.Helper()
	return &config.Config{
		Hub:      config.HubConfig{URL: hubURL, TimeoutSeconds: 5},
		Pipeline: config.PipelineConfig{Workers: 2, MaxInFlight: 4, OutageThreshold: 10},
		Database: config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "hubwatch.db")},
	}
}

func newTestPoller(t *testing.T, cfg *config.Config) *poller {
	t.Helper()
	p, err := newPoller(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestPollAdvancesCursorAndRecordsRun(t *testing.T) {
	srv := fakeHub(t, nil)
	p := newTestPoller(t, testConfig(t, srv.URL))
	ctx := context.Background()

	res, err := p.poll(ctx, pollRequest{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	item := res.Items[0].(models.VersionUpdateContentItem)
	assert.Equal(t, "0.1.0", item.ProjectVersion)
	assert.Equal(t, "0.9.8", item.ComponentVersion)
	assert.Equal(t, "0.9.7", item.PreviousVersion)

	require.Len(t, res.Failures, 1)
	assert.Equal(t, models.FailureUnsupportedType, res.Failures[0].Kind)

	cursor, err := p.store.Cursor(ctx, store.DefaultCursor)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 3, 10, 0, 0, 0, time.UTC), cursor)

	runs, err := p.store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.StatusCompleted, runs[0].Status)
	assert.Equal(t, 2, runs[0].EventCount)

	failures, err := p.store.ListFailures(ctx, runs[0].RunID, 10)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "/api/notifications/n2", failures[0].EventID)

	// Everything is behind the cursor now.
	res, err = p.poll(ctx, pollRequest{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Events)
}

func TestPollDryRunLeavesStateUntouched(t *testing.T) {
	srv := fakeHub(t, nil)
	p := newTestPoller(t, testConfig(t, srv.URL))
	ctx := context.Background()

	res, err := p.poll(ctx, pollRequest{dryRun: true})
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)

	cursor, err := p.store.Cursor(ctx, store.DefaultCursor)
	require.NoError(t, err)
	assert.True(t, cursor.IsZero())
	runs, err := p.store.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestPollHoldsCursorBeforeRetryableFailure(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	srv := fakeHub(t, &fail)
	p := newTestPoller(t, testConfig(t, srv.URL))
	ctx := context.Background()

	res, err := p.poll(ctx, pollRequest{})
	require.NoError(t, err)
	assert.Empty(t, res.Items)

	cursor, err := p.store.Cursor(ctx, store.DefaultCursor)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC).Add(-time.Nanosecond), cursor)

	// The hub recovers; the held-back notification is processed.
	fail.Store(false)
	res, err = p.poll(ctx, pollRequest{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
}

func TestPollSinceOverridesCursor(t *testing.T) {
	srv := fakeHub(t, nil)
	p := newTestPoller(t, testConfig(t, srv.URL))

	since := time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)
	res, err := p.poll(context.Background(), pollRequest{since: &since})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Events)
	assert.Empty(t, res.Items)
}

func TestPollRecordsFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	p := newTestPoller(t, testConfig(t, srv.URL))
	ctx := context.Background()

	res, err := p.poll(ctx, pollRequest{})
	require.Error(t, err)
	assert.Nil(t, res)

	runs, err := p.store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.StatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "fetch notifications")
}
