package tui

import (
	"github.com/Veraticus/the-books-must-balance/internal/tui/themes"
)

// Config holds viewer settings.
type Config struct {
	Theme    themes.Theme
	Width    int
	Height   int
	ShowHelp bool
}

// Option configures the viewer.
type Option func(*Config)

func defaultConfig() Config {
	return Config{Theme: themes.Default, Width: 100, Height: 24, ShowHelp: true}
}

// WithTheme sets the color scheme.
func WithTheme(theme themes.Theme) Option {
	return func(c *Config) { c.Theme = theme }
}

// WithSize sets the size used until the terminal reports its own.
func WithSize(width, height int) Option {
	return func(c *Config) { c.Width, c.Height = width, height }
}

// WithHelp toggles the key help footer.
func WithHelp(show bool) Option {
	return func(c *Config) { c.ShowHelp = show }
}
