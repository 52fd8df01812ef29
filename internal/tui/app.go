// Package tui is the terminal dashboard over the run and failure history.
package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/CosmoTheDev/hubwatch/internal/store"
)

// Source is the read side of the store the dashboard renders.
type Source interface {
	Cursor(ctx context.Context, name string) (time.Time, error)
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
	ListFailures(ctx context.Context, runID string, limit int) ([]store.Failure, error)
}

// Tab represents a TUI navigation tab.
type Tab int

const (
	TabRuns Tab = iota
	TabFailures
)

var tabNames = []string{"Runs", "Failures"}
var tabTinyNames = []string{"R", "F"}

// App is the root bubbletea model.
type App struct {
	hubURL    string
	width     int
	height    int
	activeTab Tab
	runs      RunsModel
	failures  FailuresModel
}

// NewApp creates the TUI application.
func NewApp(src Source, hubURL string) *App {
	return &App{
		hubURL:   hubURL,
		runs:     NewRunsModel(src),
		failures: NewFailuresModel(src),
	}
}

// Run starts the bubbletea program.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.runs.Init(),
		a.failures.Init(),
	)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		contentW := max(20, msg.Width-2)
		contentH := max(8, msg.Height-7)
		a.runs.SetSize(contentW, contentH)
		a.failures.SetSize(contentW, contentH)

	case runsLoadedMsg:
		// Loads are routed to their model regardless of the visible tab.
		m, cmd := a.runs.Update(msg)
		a.runs = m.(RunsModel)
		return a, cmd

	case failuresLoadedMsg:
		m, cmd := a.failures.Update(msg)
		a.failures = m.(FailuresModel)
		return a, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return a, tea.Quit
		case "1":
			a.activeTab = TabRuns
			return a, nil
		case "2":
			a.activeTab = TabFailures
			return a, nil
		case "tab":
			a.activeTab = (a.activeTab + 1) % Tab(len(tabNames))
			return a, nil
		case "shift+tab":
			a.activeTab--
			if a.activeTab < 0 {
				a.activeTab = Tab(len(tabNames) - 1)
			}
			return a, nil
		}
	}

	// Delegate to active view.
	switch a.activeTab {
	case TabRuns:
		m, cmd := a.runs.Update(msg)
		a.runs = m.(RunsModel)
		cmds = append(cmds, cmd)
	case TabFailures:
		m, cmd := a.failures.Update(msg)
		a.failures = m.(FailuresModel)
		cmds = append(cmds, cmd)
	}

	return a, tea.Batch(cmds...)
}

// View implements tea.Model.
func (a *App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	var content string
	switch a.activeTab {
	case TabRuns:
		content = a.runs.View()
	case TabFailures:
		content = a.failures.View()
	}

	contentBox := lipgloss.NewStyle().
		Width(a.width).
		Padding(0, 1).
		MaxHeight(max(1, a.height-4)).
		Render(content)

	status := lipgloss.NewStyle().
		Width(a.width).
		Padding(0, 1).
		Foreground(slateDim).
		Render("tab next  shift+tab prev  1-2 jump  q quit")

	return lipgloss.JoinVertical(lipgloss.Left,
		a.renderHeader(),
		a.renderTabs(),
		contentBox,
		status,
	)
}

func (a *App) renderHeader() string {
	row := lipgloss.JoinHorizontal(lipgloss.Left,
		titleStyle.Render("hubwatch"),
		"  ",
		dimStyle.Render(a.hubURL),
		"  ",
		mutedBadgeStyle.Render(" "+tabNames[a.activeTab]+" "),
	)
	return lipgloss.NewStyle().
		BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(line).
		Width(a.width).
		Padding(0, 1).
		Render(row)
}

func (a *App) renderTabs() string {
	rendered := a.renderTabLabels(tabNames)
	if lipgloss.Width(rendered) > max(10, a.width-2) {
		rendered = a.renderTabLabels(tabTinyNames)
	}
	return lipgloss.NewStyle().
		Width(a.width).
		Padding(0, 1).
		Foreground(slate).
		Render(rendered)
}

func (a *App) renderTabLabels(labels []string) string {
	parts := make([]string, 0, len(labels))
	for i, name := range labels {
		label := fmt.Sprintf("%d:%s", i+1, name)
		if Tab(i) == a.activeTab {
			parts = append(parts, lipgloss.NewStyle().Bold(true).Foreground(accent).Render(label))
		} else {
			parts = append(parts, dimStyle.Render(label))
		}
		if i < len(labels)-1 {
			parts = append(parts, dimStyle.Render("  ·  "))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Left, parts...)
}
