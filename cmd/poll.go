package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/hubwatch/internal/config"
	"github.com/CosmoTheDev/hubwatch/internal/database"
	"github.com/CosmoTheDev/hubwatch/internal/hub"
	"github.com/CosmoTheDev/hubwatch/internal/notify"
	"github.com/CosmoTheDev/hubwatch/internal/pipeline"
	"github.com/CosmoTheDev/hubwatch/internal/store"
	"github.com/CosmoTheDev/hubwatch/internal/transform"
	"github.com/CosmoTheDev/hubwatch/models"
)

var (
	pollSince  string
	pollOutput string
	pollDryRun bool
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Process notifications created since the last poll",
	Long: `Fetches every notification created after the stored cursor, resolves the
references each one carries and merges items that describe the same component
version. Content items and failures are printed, the run is recorded in the
database and the cursor is advanced.

The cursor never moves past a notification that failed with a retryable
failure (TRANSPORT_ERROR or TIMEOUT), so the next poll sees it again.`,
	RunE: runPoll,
}

func init() {
	pollCmd.Flags().StringVar(&pollSince, "since", "",
		"process notifications after this RFC3339 time instead of the stored cursor")
	pollCmd.Flags().StringVarP(&pollOutput, "output", "o", formatTable,
		"output format: table, json or yaml")
	pollCmd.Flags().BoolVar(&pollDryRun, "dry-run", false,
		"print results without recording the run, notifying or advancing the cursor")
}

func runPoll(cmd *cobra.Command, args []string) error {
	if err := validFormat(pollOutput); err != nil {
		return err
	}
	var since *time.Time
	if pollSince != "" {
		t, err := time.Parse(time.RFC3339, pollSince)
		if err != nil {
			return fmt.Errorf("invalid --since %q: %w", pollSince, err)
		}
		since = &t
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	p, err := newPoller(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	res, runErr := p.poll(ctx, pollRequest{since: since, dryRun: pollDryRun})
	if res != nil {
		if err := writeResult(os.Stdout, newPollReport(res, pollDryRun), pollOutput); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}
	return runErr
}

// pollRequest overrides the defaults of a single poll.
type pollRequest struct {
	since  *time.Time
	dryRun bool
}

// poller owns the long-lived dependencies of a poll: the hub client, the
// resolver stack, the store and the notifier. watch reuses one across ticks.
type poller struct {
	source   pipeline.NotificationSource
	store    *store.Store
	pipeline *pipeline.Pipeline
	notifier *notify.Dispatcher
	cursor   string
	closers  []func()
}

func newPoller(ctx context.Context, cfg *config.Config) (*poller, error) {
	client, err := newHubClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating hub client: %w", err)
	}
	st, db, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	resolver, closeCache := newResolver(ctx, cfg, client)
	notifier := notify.NewDispatcher(cfg.Notify)

	return &poller{
		source:   client,
		store:    st,
		pipeline: pipeline.New(transform.NewDispatcher(nil), resolver, pipelineOptions(cfg)),
		notifier: notifier,
		cursor:   store.DefaultCursor,
		closers:  []func(){closeCache, notifier.Close, closeDB(db)},
	}, nil
}

func closeDB(db database.DB) func() {
	return func() {
		if err := db.Close(); err != nil {
			slog.Warn("closing database", "error", err)
		}
	}
}

// Close releases everything newPoller opened.
func (p *poller) Close() {
	for _, c := range p.closers {
		c()
	}
}

// poll runs one batch. The returned result is nil only when nothing could be
// fetched; otherwise it is returned even alongside an error.
func (p *poller) poll(ctx context.Context, req pollRequest) (*pipeline.Result, error) {
	var since time.Time
	if req.since != nil {
		since = *req.since
	} else {
		c, err := p.store.Cursor(ctx, p.cursor)
		if err != nil {
			return nil, err
		}
		since = c
	}

	started := time.Now().UTC()
	res, runErr := p.pipeline.Run(ctx, p.source, since)
	if res == nil {
		if !req.dryRun {
			p.record(ctx, store.Run{
				RunID:       uuid.NewString(),
				Since:       since,
				CursorAfter: since,
				Status:      store.StatusFailed,
				Error:       runErr.Error(),
				StartedAt:   started,
				CompletedAt: time.Now().UTC(),
			}, nil)
		}
		return nil, runErr
	}

	run := store.Run{
		RunID:        res.RunID.String(),
		Since:        since,
		CursorAfter:  since,
		EventCount:   res.Events,
		ItemCount:    len(res.Items),
		FailureCount: len(res.Failures),
		Status:       store.StatusCompleted,
		StartedAt:    res.StartedAt,
		CompletedAt:  res.CompletedAt,
	}

	switch {
	case req.dryRun:
		slog.Info("dry run, cursor not advanced", "run_id", run.RunID, "items", run.ItemCount)
		return res, runErr
	case runErr != nil:
		run.Status = store.StatusFailed
		run.Error = runErr.Error()
		p.record(ctx, run, res.Failures)
		if errors.Is(runErr, pipeline.ErrBackendUnavailable) {
			slog.Warn("hub unavailable, cursor not advanced", "run_id", run.RunID)
		}
		return res, runErr
	}

	run.CursorAfter = res.NextCursor()
	p.record(ctx, run, res.Failures)
	if err := p.store.SaveCursor(ctx, p.cursor, run.CursorAfter); err != nil {
		return res, err
	}

	if sent := p.notifier.NotifyItems(ctx, res.Items); sent > 0 {
		slog.Info("notifications sent", "run_id", run.RunID, "count", sent, "channels", p.notifier.Channels())
	}
	slog.Info("poll complete",
		"run_id", run.RunID,
		"events", run.EventCount,
		"items", run.ItemCount,
		"failures", run.FailureCount,
		"cursor", run.CursorAfter,
	)
	return res, nil
}

// record writes the run audit. Errors are logged and do not fail the poll.
func (p *poller) record(ctx context.Context, run store.Run, failures []models.FailureEntry) {
	if err := p.store.RecordRun(ctx, run, failures); err != nil {
		slog.Warn("recording run", "run_id", run.RunID, "error", err)
	}
}

var _ pipeline.NotificationSource = (*hub.Client)(nil)
