package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.yaml.in/yaml/v3"

	"github.com/CosmoTheDev/hubwatch/internal/notify"
	"github.com/CosmoTheDev/hubwatch/internal/pipeline"
	"github.com/CosmoTheDev/hubwatch/internal/store"
	"github.com/CosmoTheDev/hubwatch/models"
)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#7C3AED")).
	MarginBottom(1)

var successStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#10B981"))

var warnStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#F59E0B"))

var dimStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#6B7280"))

// Output formats accepted by --output.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func validFormat(f string) error {
	switch f {
	case formatTable, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q (want table, json or yaml)", f)
}

// pollReport is the printable summary of one poll.
type pollReport struct {
	RunID    string                `json:"run_id"   yaml:"run_id"`
	Since    time.Time             `json:"since"    yaml:"since"`
	Cursor   time.Time             `json:"cursor"   yaml:"cursor"`
	Events   int                   `json:"events"   yaml:"events"`
	DryRun   bool                  `json:"dry_run"  yaml:"dry_run"`
	Items    []models.ContentItem  `json:"items"    yaml:"items"`
	Failures []models.FailureEntry `json:"failures" yaml:"failures"`
}

func newPollReport(res *pipeline.Result, dryRun bool) pollReport {
	items := res.Items
	if items == nil {
		items = []models.ContentItem{}
	}
	failures := res.Failures
	if failures == nil {
		failures = []models.FailureEntry{}
	}
	return pollReport{
		RunID:    res.RunID.String(),
		Since:    res.Since,
		Cursor:   res.NextCursor(),
		Events:   res.Events,
		DryRun:   dryRun,
		Items:    items,
		Failures: failures,
	}
}

// writeResult renders result in format. Table rendering is type specific;
// unknown types fall back to JSON.
func writeResult(w io.Writer, result interface{}, format string) error {
	switch format {
	case formatJSON:
		return writeJSON(w, result)
	case formatYAML:
		return writeYAML(w, result)
	default:
		return writeTable(w, result)
	}
}

func writeJSON(w io.Writer, result interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func writeYAML(w io.Writer, result interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(result); err != nil {
		return err
	}
	return enc.Close()
}

func writeTable(w io.Writer, result interface{}) error {
	switch r := result.(type) {
	case pollReport:
		return writePollTable(w, r)
	case []store.Run:
		return writeRunsTable(w, r)
	case []store.Failure:
		return writeFailuresTable(w, r)
	default:
		return writeJSON(w, result)
	}
}

func writePollTable(w io.Writer, r pollReport) error {
	title := fmt.Sprintf("Run %s", r.RunID)
	if r.DryRun {
		title += " (dry run)"
	}
	fmt.Fprintln(w, headerStyle.Render(title))
	fmt.Fprintf(w, "Since:    %s\n", formatCursor(r.Since))
	fmt.Fprintf(w, "Cursor:   %s\n", formatCursor(r.Cursor))
	fmt.Fprintf(w, "Events:   %d\n", r.Events)
	fmt.Fprintf(w, "Items:    %d\n", len(r.Items))
	fmt.Fprintf(w, "Failures: %d\n\n", len(r.Failures))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(r.Items) > 0 {
		fmt.Fprintln(tw, "TYPE\tPROJECT\tVERSION\tCOMPONENT\tCOMPONENT VERSION\tDETAILS")
		for _, item := range r.Items {
			c := item.Base()
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				c.Type, c.ProjectName, c.ProjectVersion, c.ComponentName, c.ComponentVersion, itemDetails(item))
		}
	} else {
		fmt.Fprintln(tw, dimStyle.Render("No content items."))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(r.Failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, warnStyle.Render("Failures:"))
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "KIND\tTYPE\tEVENT\tREASON")
		for _, f := range r.Failures {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Kind, f.Type, f.EventID, f.Reason)
		}
		return tw.Flush()
	}
	return nil
}

func writeRunsTable(w io.Writer, runs []store.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No runs recorded."))
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTATUS\tSTARTED\tEVENTS\tITEMS\tFAILURES\tCURSOR\tERROR")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			r.RunID, r.Status, r.StartedAt.Local().Format(time.DateTime),
			r.EventCount, r.ItemCount, r.FailureCount, formatCursor(r.CursorAfter), r.Error)
	}
	return tw.Flush()
}

func writeFailuresTable(w io.Writer, failures []store.Failure) error {
	if len(failures) == 0 {
		fmt.Fprintln(w, successStyle.Render("No failures recorded."))
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RECORDED\tRUN\tKIND\tTYPE\tEVENT\tREASON")
	for _, f := range failures {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			f.RecordedAt.Local().Format(time.DateTime), f.RunID, f.Kind, f.Type, f.EventID, f.Reason)
	}
	return tw.Flush()
}

// itemDetails flattens the notification body into one table cell.
func itemDetails(item models.ContentItem) string {
	evt := notify.EventFromItem(item)
	var out []string
	if evt.Severity != "" {
		out = append(out, "Severity: "+string(evt.Severity))
	}
	lines := strings.Split(evt.Body, "\n")
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "; ")
}

func formatCursor(t time.Time) string {
	if t.IsZero() {
		return "beginning"
	}
	return t.UTC().Format(time.RFC3339Nano)
}
