package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/CosmoTheDev/hubwatch/internal/store"
)

// RunsModel shows the cursor and the most recent pipeline runs.
type RunsModel struct {
	src      Source
	cursor   time.Time
	runs     []store.Run
	err      error
	width    int
	height   int
	lastLoad time.Time
	loading  bool
}

type runsLoadedMsg struct {
	cursor time.Time
	runs   []store.Run
	err    error
}

// NewRunsModel creates a RunsModel.
func NewRunsModel(src Source) RunsModel {
	return RunsModel{src: src, loading: true}
}

func (d RunsModel) Init() tea.Cmd {
	return d.loadCmd()
}

func (d RunsModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		cursor, err := d.src.Cursor(ctx, store.DefaultCursor)
		if err != nil {
			slog.Debug("tui: loading cursor", "error", err)
		}
		runs, rerr := d.src.ListRuns(ctx, 20)
		if rerr != nil {
			err = rerr
		}
		return runsLoadedMsg{cursor: cursor, runs: runs, err: err}
	}
}

func (d RunsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runsLoadedMsg:
		d.cursor = msg.cursor
		d.runs = msg.runs
		d.err = msg.err
		d.loading = false
		d.lastLoad = time.Now()
		// Refresh every 10 seconds.
		return d, tea.Tick(10*time.Second, func(time.Time) tea.Msg {
			return d.loadCmd()()
		})
	case tea.KeyMsg:
		if msg.String() == "r" {
			d.loading = true
			return d, d.loadCmd()
		}
	}
	return d, nil
}

func (d *RunsModel) SetSize(w, h int) {
	d.width = w
	d.height = h
}

func (d RunsModel) View() string {
	if d.loading && len(d.runs) == 0 {
		return panelStyle.Width(max(20, d.width-2)).Render("Loading runs...")
	}

	var events, items, failures int
	for _, r := range d.runs {
		events += r.EventCount
		items += r.ItemCount
		failures += r.FailureCount
	}

	cardW := 18
	if d.width >= 100 {
		cardW = 20
	}
	failStyle := okStyle
	if failures > 0 {
		failStyle = highStyle
	}
	summary := lipgloss.JoinHorizontal(lipgloss.Top,
		renderCounter("Runs", len(d.runs), lowStyle, cardW),
		renderCounter("Events", events, mediumStyle, cardW),
		renderCounter("Items", items, okStyle, cardW),
		renderCounter("Failures", failures, failStyle, cardW),
	)

	lineLimit := max(5, d.height-14)
	var rows strings.Builder
	for i, r := range d.runs {
		if i >= lineLimit {
			break
		}
		counts := fmt.Sprintf("E:%d I:%d F:%d", r.EventCount, r.ItemCount, r.FailureCount)
		line := lipgloss.JoinHorizontal(lipgloss.Left,
			lipgloss.NewStyle().Width(38).Foreground(ink).Render(r.RunID),
			lipgloss.NewStyle().Width(21).Foreground(slate).Render(r.StartedAt.Local().Format(time.DateTime)),
			lipgloss.NewStyle().Width(13).Render(statusBadge(r.Status)),
			dimStyle.Render(counts),
		)
		rows.WriteString(line + "\n")
		if r.Error != "" {
			rows.WriteString(criticalStyle.Render("  "+truncate(r.Error, max(20, d.width-8))) + "\n")
		}
	}
	if len(d.runs) == 0 {
		rows.WriteString(dimStyle.Render("No runs yet. Run: hubwatch poll\n"))
	}
	if d.err != nil {
		rows.WriteString(criticalStyle.Render("load failed: "+d.err.Error()) + "\n")
	}

	cursor := "beginning"
	if !d.cursor.IsZero() {
		cursor = d.cursor.UTC().Format(time.RFC3339)
	}
	updated := "never"
	if !d.lastLoad.IsZero() {
		updated = d.lastLoad.Format("15:04:05")
	}
	footer := lipgloss.JoinHorizontal(lipgloss.Left,
		keycapStyle.Render("r"),
		" ",
		dimStyle.Render("refresh"),
		"   ",
		dimStyle.Render("cursor "+cursor),
		"   ",
		dimStyle.Render("updated "+updated),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Padding(0, 1).Render(summary),
		panelStyle.Width(max(20, d.width-2)).Render(
			lipgloss.JoinVertical(lipgloss.Left,
				panelHeaderStyle.Render("Recent Runs"),
				dimStyle.Render("Run                                   Started              Status       Counts"),
				rows.String(),
				footer,
			),
		),
	)
}

func statusBadge(status string) string {
	switch status {
	case store.StatusCompleted:
		return lipgloss.NewStyle().Foreground(bgDark).Background(green).Padding(0, 1).Render(status)
	case store.StatusFailed:
		return lipgloss.NewStyle().Foreground(bgDark).Background(red).Padding(0, 1).Render(status)
	case store.StatusDryRun:
		return lipgloss.NewStyle().Foreground(bgDark).Background(blue).Padding(0, 1).Render(status)
	}
	return mutedBadgeStyle.Render(status)
}

func renderCounter(label string, count int, style lipgloss.Style, width int) string {
	return boxStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Center,
			style.Bold(true).Render(fmt.Sprintf("%d", count)),
			dimStyle.Render(strings.ToUpper(label)),
		),
	) + "  "
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
