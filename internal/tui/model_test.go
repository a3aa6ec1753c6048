package tui

import (
	"errors"
	"testing"

	"github.com/Veraticus/the-books-must-balance/internal/reconcile"
	"github.com/Veraticus/the-books-must-balance/internal/tui/themes"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReport() *reconcile.Report {
	return &reconcile.Report{
		Accounts: []reconcile.AccountReport{
			{
				AccountID:         "a1",
				Name:              "Checking",
				Status:            reconcile.StatusDerived,
				After:             decimal.NewFromInt(200),
				Balance:           decimal.NewFromInt(1200),
				TransactionSum:    decimal.NewFromInt(1000),
				CalculatedBalance: decimal.NewFromInt(1200),
				TransactionCount:  2,
			},
			{
				AccountID: "a2",
				Name:      "Savings",
				Status:    reconcile.StatusReconciled,
				Before:    decimal.NewFromInt(50),
				After:     decimal.NewFromInt(50),
			},
			{
				AccountID: "a3",
				Name:      "Card",
				Status:    reconcile.StatusFailed,
				Err:       errors.New("database is locked"),
			},
		},
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func TestModel_View(t *testing.T) {
	m := NewModel(testReport(), WithSize(120, 30))

	view := m.View()
	assert.Contains(t, view, "Reconciliation report")
	assert.Contains(t, view, "Checking")
	assert.Contains(t, view, "200.00")
	assert.Contains(t, view, "1 derived")
	assert.Contains(t, view, "1 failed")
}

func TestModel_Navigation(t *testing.T) {
	m := NewModel(testReport(), WithSize(120, 30))
	require.NotNil(t, m.Selected())
	assert.Equal(t, "a1", m.Selected().AccountID)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, "a2", m.Selected().AccountID)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, m.showDetail)
	assert.Contains(t, m.View(), "Initial balance:    50.00 -> 50.00")

	// Quit closes the detail box first.
	m, cmd := update(t, m, runes("q"))
	assert.Nil(t, cmd)
	assert.False(t, m.showDetail)
	assert.False(t, m.quitting)
}

func TestModel_Filter(t *testing.T) {
	m := NewModel(testReport(), WithSize(120, 30), WithTheme(themes.Mono))

	m, _ = update(t, m, runes("f"))
	assert.Equal(t, reconcile.StatusDerived, m.filter)
	require.Len(t, m.table.Rows(), 1)
	assert.Equal(t, "a1", m.Selected().AccountID)
	assert.Contains(t, m.View(), "derived only")

	m, _ = update(t, m, runes("f"))
	assert.Equal(t, reconcile.StatusFailed, m.filter)
	require.Len(t, m.table.Rows(), 1)
	assert.Equal(t, "a3", m.Selected().AccountID)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Contains(t, m.View(), "Error: database is locked")

	m, _ = update(t, m, runes("f"))
	assert.Empty(t, m.filter)
	assert.Len(t, m.table.Rows(), 3)
	assert.False(t, m.showDetail)
}

func TestModel_EmptyReport(t *testing.T) {
	m := NewModel(&reconcile.Report{DryRun: true})
	assert.Nil(t, m.Selected())

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.showDetail)
	assert.Contains(t, m.View(), "(dry run)")
}

func TestModel_Quit(t *testing.T) {
	m := NewModel(testReport())

	m, cmd := update(t, m, runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, m.quitting)
	assert.Empty(t, m.View())
}

func TestModel_Resize(t *testing.T) {
	m := NewModel(testReport())

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 90, Height: 40})
	assert.Equal(t, 90, m.width)
	assert.Equal(t, 90, m.help.Width)
	tall := m.table.Height()

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 90, Height: 5})
	assert.Less(t, m.table.Height(), tall)
	assert.Contains(t, m.View(), "Checking")
}
