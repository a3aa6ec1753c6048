package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/the-books-must-balance/internal/reconcile"
	"github.com/schollz/progressbar/v3"
)

// BatchProgress draws a progress bar for a batch reconciliation and keeps
// the failed accounts so they can be listed once the bar is done.
type BatchProgress struct {
	writer   io.Writer
	bar      *progressbar.ProgressBar
	failures []reconcile.AccountReport
}

// NewBatchProgress creates a progress bar for total accounts. Pass 0 when the
// total is not known yet and call Start once it is.
func NewBatchProgress(writer io.Writer, total int) *BatchProgress {
	p := &BatchProgress{writer: writer}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Reconciling accounts...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
	return p
}

// Start sets the number of accounts the bar counts to. It matches the
// reconcile.BatchOptions Start callback.
func (p *BatchProgress) Start(total int) {
	p.bar.ChangeMax(total)
}

// Observe advances the bar by one account. It matches the
// reconcile.BatchOptions Progress callback.
func (p *BatchProgress) Observe(entry reconcile.AccountReport) {
	if entry.Status == reconcile.StatusFailed {
		p.failures = append(p.failures, entry)
	}
	if err := p.bar.Add(1); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// Finish completes the bar and lists any failed accounts.
func (p *BatchProgress) Finish() {
	if !p.bar.IsFinished() {
		if err := p.bar.Finish(); err != nil {
			slog.Warn("Failed to finish progress bar", "error", err)
		}
	}
	for i := range p.failures {
		if _, err := fmt.Fprintln(p.writer, FormatError(p.failures[i].Summary())); err != nil {
			slog.Warn("Failed to write failure", "error", err)
		}
	}
}

// Failures returns the failed accounts seen so far.
func (p *BatchProgress) Failures() []reconcile.AccountReport {
	return p.failures
}
