// Package tui is an interactive viewer for batch reconciliation reports.
package tui

import (
	"fmt"
	"strings"

	"github.com/Veraticus/the-books-must-balance/internal/reconcile"
	"github.com/Veraticus/the-books-must-balance/internal/report"
	"github.com/Veraticus/the-books-must-balance/internal/tui/themes"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// chrome is the number of lines taken by everything except table rows.
const chrome = 12

// Model holds the report viewer state.
type Model struct {
	theme        themes.Theme
	report       *reconcile.Report
	help         help.Model
	keymap       KeyMap
	table        table.Model
	visible      []int
	config     Config
	filter     reconcile.Status
	width      int
	height     int
	showDetail bool
	quitting   bool
}

// filters is the order the filter key cycles through. Empty shows all.
var filters = []reconcile.Status{"", reconcile.StatusDerived, reconcile.StatusFailed}

// NewModel builds a viewer for rep.
func NewModel(rep *reconcile.Report, opts ...Option) Model {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Account", Width: 24},
			{Title: "Status", Width: 20},
			{Title: "Initial Before", Width: 14},
			{Title: "Initial After", Width: 14},
			{Title: "Balance", Width: 12},
			{Title: "Txn Sum", Width: 12},
			{Title: "Txns", Width: 5},
		}),
		table.WithFocused(true),
	)
	styles := table.DefaultStyles()
	styles.Header = cfg.Theme.Header
	styles.Selected = cfg.Theme.Selected
	t.SetStyles(styles)

	h := help.New()
	h.ShowAll = false

	m := Model{
		theme:  cfg.Theme,
		report: rep,
		help:   h,
		keymap: DefaultKeyMap(),
		table:  t,
		config: cfg,
		width:  cfg.Width,
		height: cfg.Height,
	}
	m.refreshRows()
	m.handleResize()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.handleResize()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keymap.ForceQuit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keymap.Quit):
			if m.showDetail {
				m.showDetail = false
				return m, nil
			}
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keymap.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keymap.Detail):
			m.showDetail = !m.showDetail && m.Selected() != nil
			return m, nil
		case key.Matches(msg, m.keymap.Filter):
			m.filter = nextFilter(m.filter)
			m.showDetail = false
			m.refreshRows()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// Selected returns the account under the cursor, or nil when the table is
// empty.
func (m Model) Selected() *reconcile.AccountReport {
	cursor := m.table.Cursor()
	if cursor < 0 || cursor >= len(m.visible) {
		return nil
	}
	return &m.report.Accounts[m.visible[cursor]]
}

func (m *Model) refreshRows() {
	visible := make([]int, 0, len(m.report.Accounts))
	rows := make([]table.Row, 0, len(m.report.Accounts))
	for i := range m.report.Accounts {
		entry := &m.report.Accounts[i]
		if m.filter != "" && entry.Status != m.filter {
			continue
		}
		r := report.NewRow(entry)
		visible = append(visible, i)
		rows = append(rows, table.Row{
			r.Name, r.Status, r.Before, r.After, r.Balance, r.TransactionSum,
			fmt.Sprintf("%d", r.TransactionCount),
		})
	}
	m.visible = visible
	m.table.SetRows(rows)
	m.table.SetCursor(0)
}

func nextFilter(current reconcile.Status) reconcile.Status {
	for i, f := range filters {
		if f == current {
			return filters[(i+1)%len(filters)]
		}
	}
	return ""
}

func (m *Model) handleResize() {
	m.table.SetHeight(max(m.height-chrome, 3))
	m.help.Width = m.width
}

// View renders the viewer.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	title := "📒 Reconciliation report"
	if m.report.DryRun {
		title += " (dry run)"
	}
	if m.filter != "" {
		title += " · " + string(m.filter) + " only"
	}

	sections := []string{
		m.theme.Title.Render(title),
		m.theme.Box.Render(m.table.View()),
		m.summaryLine(),
	}
	if m.showDetail {
		if entry := m.Selected(); entry != nil {
			sections = append(sections, m.detailView(entry))
		}
	}
	if m.config.ShowHelp {
		sections = append(sections, m.help.View(m.keymap))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) summaryLine() string {
	s := m.report.Summary()
	parts := []string{
		m.theme.Bold.Render(fmt.Sprintf("%d accounts", s.Total)),
		m.theme.Derived.Render(fmt.Sprintf("%d derived", s.Derived)),
		m.theme.Unchanged.Render(fmt.Sprintf("%d skipped", s.Skipped)),
	}
	failed := fmt.Sprintf("%d failed", s.Failed)
	if s.Failed > 0 {
		parts = append(parts, m.theme.Failed.Render(failed))
	} else {
		parts = append(parts, m.theme.Muted.Render(failed))
	}
	return strings.Join(parts, "  ")
}

func (m Model) detailView(entry *reconcile.AccountReport) string {
	r := report.NewRow(entry)
	lines := []string{
		m.theme.Bold.Render(r.Name) + "  " + m.theme.Status(entry.Status).Render(r.Status),
		fmt.Sprintf("ID:                 %s", r.AccountID),
		fmt.Sprintf("Currency:           %s", r.Currency),
		fmt.Sprintf("Initial balance:    %s -> %s", r.Before, r.After),
		fmt.Sprintf("Stored balance:     %s", r.Balance),
		fmt.Sprintf("Transaction sum:    %s (%d transactions)", r.TransactionSum, r.TransactionCount),
		fmt.Sprintf("Calculated balance: %s", r.CalculatedBalance),
	}
	if r.UnsignedCount > 0 {
		lines = append(lines, m.theme.Warning.Render(
			fmt.Sprintf("%d transactions carry no balance sign and were not summed", r.UnsignedCount)))
	}
	if r.Error != "" {
		lines = append(lines, m.theme.Failed.Render("Error: "+r.Error))
	}
	return m.theme.Box.Render(strings.Join(lines, "\n"))
}
