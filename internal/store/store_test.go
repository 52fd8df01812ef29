package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CosmoTheDev/hubwatch/internal/config"
	"github.com/CosmoTheDev/hubwatch/internal/database"
	"github.com/CosmoTheDev/hubwatch/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.New(config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "store.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return New(db)
}

func TestCursorRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.Cursor(ctx, DefaultCursor)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	at := time.Date(2024, 5, 1, 12, 30, 0, 123456789, time.UTC)
	require.NoError(t, s.SaveCursor(ctx, DefaultCursor, at))
	require.NoError(t, s.SaveCursor(ctx, DefaultCursor, at.Add(time.Hour)))

	got, err = s.Cursor(ctx, DefaultCursor)
	require.NoError(t, err)
	assert.True(t, at.Add(time.Hour).Equal(got))

	require.NoError(t, s.ResetCursor(ctx, DefaultCursor))
	got, err = s.Cursor(ctx, DefaultCursor)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestRecordRunAndListFailures(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	failures := []models.FailureEntry{
		{EventID: "e1", Type: models.NotificationPolicyOverride, Kind: models.FailureUnresolvable, Reason: "gone"},
		{EventID: "e2", Type: "PROJECT_CREATED", Kind: models.FailureUnsupportedType, Reason: "no transformer"},
	}
	require.NoError(t, s.RecordRun(ctx, Run{
		RunID: "run-1", Since: start, CursorAfter: start.Add(time.Hour), EventCount: 3,
		ItemCount: 1, FailureCount: 2, Status: StatusCompleted, StartedAt: start, CompletedAt: start.Add(time.Second),
	}, failures))
	require.NoError(t, s.RecordRun(ctx, Run{RunID: "run-2", Status: StatusFailed, Error: "backend unavailable", StartedAt: start}, nil))

	all, err := s.ListFailures(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "e2", all[0].EventID)
	assert.Equal(t, models.FailureUnsupportedType, all[0].Kind)

	byRun, err := s.ListFailures(ctx, "run-2", 10)
	require.NoError(t, err)
	assert.Empty(t, byRun)

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].RunID)
	assert.Equal(t, "backend unavailable", runs[0].Error)
	assert.Equal(t, 2, runs[1].FailureCount)
	assert.True(t, start.Add(time.Hour).Equal(runs[1].CursorAfter))
}
