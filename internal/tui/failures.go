package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/CosmoTheDev/hubwatch/internal/store"
	"github.com/CosmoTheDev/hubwatch/models"
)

// failureFilter selects failures by kind. An empty kinds list matches all.
type failureFilter struct {
	label string
	key   string
	kinds []models.FailureKind
}

var failureFilters = []failureFilter{
	{label: "All", key: "0"},
	{label: "Retryable", key: "t", kinds: []models.FailureKind{models.FailureTransport, models.FailureTimeout}},
	{label: "Unresolvable", key: "u", kinds: []models.FailureKind{models.FailureUnresolvable}},
	{label: "Invalid", key: "v", kinds: []models.FailureKind{models.FailureValidation, models.FailureUnsupportedType}},
	{label: "Internal", key: "i", kinds: []models.FailureKind{models.FailureInternal}},
}

func (f failureFilter) match(kind models.FailureKind) bool {
	if len(f.kinds) == 0 {
		return true
	}
	for _, k := range f.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// FailuresModel lists audited failures with kind filters.
type FailuresModel struct {
	src      Source
	failures []store.Failure
	err      error
	width    int
	height   int
	cursor   int
	filter   int
	loading  bool
}

type failuresLoadedMsg struct {
	failures []store.Failure
	err      error
}

// NewFailuresModel creates a FailuresModel.
func NewFailuresModel(src Source) FailuresModel {
	return FailuresModel{src: src, loading: true}
}

func (f FailuresModel) Init() tea.Cmd {
	return f.loadCmd()
}

func (f FailuresModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		failures, err := f.src.ListFailures(context.Background(), "", 200)
		return failuresLoadedMsg{failures: failures, err: err}
	}
}

func (f FailuresModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case failuresLoadedMsg:
		f.failures = msg.failures
		f.err = msg.err
		f.loading = false
		f = f.clampCursor()
		return f, tea.Tick(30*time.Second, func(time.Time) tea.Msg {
			return f.loadCmd()()
		})

	case tea.KeyMsg:
		switch key := msg.String(); key {
		case "j", "down":
			f.cursor++
		case "k", "up":
			if f.cursor > 0 {
				f.cursor--
			}
		case "r":
			f.loading = true
			return f, f.loadCmd()
		default:
			for i, flt := range failureFilters {
				if flt.key == key {
					f.filter = i
					f.cursor = 0
				}
			}
		}
	}
	f = f.clampCursor()
	return f, nil
}

func (f *FailuresModel) SetSize(w, h int) {
	f.width = w
	f.height = h
}

func (f FailuresModel) visible() []store.Failure {
	flt := failureFilters[f.filter]
	out := make([]store.Failure, 0, len(f.failures))
	for _, fl := range f.failures {
		if flt.match(fl.Kind) {
			out = append(out, fl)
		}
	}
	return out
}

func (f FailuresModel) View() string {
	if f.loading && len(f.failures) == 0 {
		return panelStyle.Width(max(20, f.width-2)).Render("Loading failures...")
	}

	visible := f.visible()
	lineLimit := max(5, f.height-12)
	var rows strings.Builder
	for i, fl := range visible {
		if i >= lineLimit {
			break
		}
		rows.WriteString(f.renderRow(i, fl))
	}
	if len(visible) == 0 {
		rows.WriteString(dimStyle.Render("No failures.\n"))
	}
	if f.err != nil {
		rows.WriteString(criticalStyle.Render("load failed: "+f.err.Error()) + "\n")
	}

	chips := make([]string, 0, 2*len(failureFilters)+3)
	for i, flt := range failureFilters {
		count := 0
		for _, fl := range f.failures {
			if flt.match(fl.Kind) {
				count++
			}
		}
		chips = append(chips, f.filterChip(i, count), " ")
	}
	chips = append(chips, " ", keycapStyle.Render("r"), " ", dimStyle.Render("refresh"))

	detail := ""
	if f.cursor < len(visible) {
		sel := visible[f.cursor]
		detail = lipgloss.JoinVertical(lipgloss.Left,
			panelHeaderStyle.Render("Selected"),
			dimStyle.Render("event   ")+sel.EventID,
			dimStyle.Render("run     ")+sel.RunID,
			dimStyle.Render("reason  ")+sel.Reason,
		)
	}

	return panelStyle.Width(max(20, f.width-2)).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			panelHeaderStyle.Render("Failures"),
			lipgloss.JoinHorizontal(lipgloss.Left, chips...),
			"",
			dimStyle.Render("  Kind               Type              Recorded             Reason"),
			rows.String(),
			detail,
			"",
			dimStyle.Render("j/k navigate  0 all  t retryable  u unresolvable  v invalid  i internal"),
		),
	)
}

func (f FailuresModel) renderRow(idx int, fl store.Failure) string {
	cursor := " "
	if idx == f.cursor {
		cursor = "▌"
	}
	line := lipgloss.JoinHorizontal(lipgloss.Left,
		lipgloss.NewStyle().Width(2).Foreground(accent).Render(cursor),
		lipgloss.NewStyle().Width(19).Render(kindStyle(fl.Kind).Render(string(fl.Kind))),
		lipgloss.NewStyle().Width(18).Foreground(slate).Render(truncate(string(fl.Type), 16)),
		lipgloss.NewStyle().Width(21).Foreground(slate).Render(fl.RecordedAt.Local().Format(time.DateTime)),
		lipgloss.NewStyle().Foreground(ink).Render(truncate(fl.Reason, max(20, f.width-66))),
	)
	if idx == f.cursor {
		return selectedRowStyle.Width(max(20, f.width-6)).Render(line) + "\n"
	}
	return line + "\n"
}

func (f FailuresModel) filterChip(i, count int) string {
	flt := failureFilters[i]
	text := fmt.Sprintf("%s %d", flt.label, count)
	if f.filter == i {
		return activeTabStyle.Render(text)
	}
	return tabStyle.Render(text + " [" + flt.key + "]")
}

func (f FailuresModel) clampCursor() FailuresModel {
	total := len(f.visible())
	if total == 0 || f.cursor < 0 {
		f.cursor = 0
		return f
	}
	if f.cursor >= total {
		f.cursor = total - 1
	}
	return f
}
