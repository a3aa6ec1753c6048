// Package themes holds the color schemes of the report viewer.
package themes

import (
	"sort"
	"strings"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/reconcile"
	"github.com/charmbracelet/lipgloss"
)

// Theme styles the report viewer. Status styles color the status column
// and the summary line.
type Theme struct {
	Title     lipgloss.Style
	Muted     lipgloss.Style
	Bold      lipgloss.Style
	Selected  lipgloss.Style
	Header    lipgloss.Style
	Box       lipgloss.Style
	Derived   lipgloss.Style
	Unchanged lipgloss.Style
	Failed    lipgloss.Style
	Warning   lipgloss.Style
}

// Status returns the style for an account outcome.
func (t Theme) Status(s reconcile.Status) lipgloss.Style {
	switch s {
	case reconcile.StatusDerived:
		return t.Derived
	case reconcile.StatusFailed:
		return t.Failed
	default:
		return t.Unchanged
	}
}

var border = lipgloss.Color("#404040")

// Default is the colored theme.
var Default = Theme{
	Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#fafafa")).MarginBottom(1),
	Muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("#a3a3a3")),
	Bold:     lipgloss.NewStyle().Bold(true),
	Selected: lipgloss.NewStyle().Background(lipgloss.Color("#5b8def")).Foreground(lipgloss.Color("#fafafa")).Bold(true),
	Header: lipgloss.NewStyle().Bold(true).
		BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(border),
	Box:       lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(border).Padding(0, 1),
	Derived:   lipgloss.NewStyle().Foreground(lipgloss.Color("#10b981")).Bold(true),
	Unchanged: lipgloss.NewStyle().Foreground(lipgloss.Color("#737373")).Italic(true),
	Failed:    lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")).Bold(true),
	Warning:   lipgloss.NewStyle().Foreground(lipgloss.Color("#f59e0b")),
}

// Mono uses weight and reverse video only, for terminals without color.
var Mono = Theme{
	Title:     lipgloss.NewStyle().Bold(true).MarginBottom(1),
	Muted:     lipgloss.NewStyle().Faint(true),
	Bold:      lipgloss.NewStyle().Bold(true),
	Selected:  lipgloss.NewStyle().Reverse(true),
	Header:    lipgloss.NewStyle().Bold(true).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true),
	Box:       lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1),
	Derived:   lipgloss.NewStyle().Bold(true),
	Unchanged: lipgloss.NewStyle().Faint(true),
	Failed:    lipgloss.NewStyle().Bold(true).Underline(true),
	Warning:   lipgloss.NewStyle().Underline(true),
}

var byName = map[string]Theme{
	"default": Default,
	"mono":    Mono,
}

// ByName looks up a theme. An empty name is the default theme.
func ByName(name string) (Theme, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Default, nil
	}
	if t, ok := byName[name]; ok {
		return t, nil
	}
	return Theme{}, common.InvalidArgumentf("unknown theme %q (want %s)", name, strings.Join(Names(), " or "))
}

// Names lists the available themes.
func Names() []string {
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
