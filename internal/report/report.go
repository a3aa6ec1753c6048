// Package report renders batch reconciliation reports as tables, CSV, JSON
// or YAML.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/reconcile"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"
)

// Format selects how a report is written.
type Format string

// Supported formats.
const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Formats lists every supported format.
var Formats = []Format{FormatTable, FormatCSV, FormatJSON, FormatYAML}

// ParseFormat converts a flag value into a Format.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "yml" {
		return FormatYAML, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", common.InvalidArgumentf("unknown report format %q (want table, csv, json or yaml)", s)
}

// Document is the serialized form of a reconcile.Report. Money is written
// as decimal strings with at least two places and no rounding.
type Document struct {
	StartedAt  time.Time `json:"startedAt" yaml:"started_at"`
	FinishedAt time.Time `json:"finishedAt" yaml:"finished_at"`
	OwnerID    string    `json:"ownerId,omitempty" yaml:"owner_id,omitempty"`
	Accounts   []Row     `json:"accounts" yaml:"accounts"`
	Summary    Summary   `json:"summary" yaml:"summary"`
	DryRun     bool      `json:"dryRun" yaml:"dry_run"`
	// Interrupted marks a run that stopped before visiting every account.
	Interrupted bool `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`
}

// Summary counts batch outcomes.
type Summary struct {
	Total   int `json:"total" yaml:"total"`
	Derived int `json:"derived" yaml:"derived"`
	Skipped int `json:"skipped" yaml:"skipped"`
	Failed  int `json:"failed" yaml:"failed"`
}

// Row is one account in a Document.
type Row struct {
	AccountID         string `json:"accountId" yaml:"account_id"`
	Name              string `json:"name" yaml:"name"`
	Currency          string `json:"currency" yaml:"currency"`
	Status            string `json:"status" yaml:"status"`
	Before            string `json:"initialBalanceBefore" yaml:"initial_balance_before"`
	After             string `json:"initialBalanceAfter" yaml:"initial_balance_after"`
	Balance           string `json:"balance" yaml:"balance"`
	TransactionSum    string `json:"transactionSum" yaml:"transaction_sum"`
	CalculatedBalance string `json:"calculatedBalance" yaml:"calculated_balance"`
	Error             string `json:"error,omitempty" yaml:"error,omitempty"`
	TransactionCount  int    `json:"transactionCount" yaml:"transaction_count"`
	UnsignedCount     int    `json:"unsignedCount" yaml:"unsigned_count"`
}

// Header is the column order shared by CSV, tables and spreadsheets.
var Header = []string{
	"Account ID", "Name", "Currency", "Status",
	"Initial Before", "Initial After", "Balance", "Transaction Sum", "Calculated Balance",
	"Transactions", "Unsigned", "Error",
}

// Values returns the row's cells in Header order.
func (r *Row) Values() []string {
	return []string{
		r.AccountID, r.Name, r.Currency, r.Status,
		r.Before, r.After, r.Balance, r.TransactionSum, r.CalculatedBalance,
		strconv.Itoa(r.TransactionCount), strconv.Itoa(r.UnsignedCount), r.Error,
	}
}

// NewDocument converts a report into its serialized form.
func NewDocument(rep *reconcile.Report) Document {
	s := rep.Summary()
	doc := Document{
		StartedAt:   rep.StartedAt,
		FinishedAt:  rep.FinishedAt,
		OwnerID:     rep.OwnerID,
		DryRun:      rep.DryRun,
		Interrupted: rep.Interrupted,
		Summary:     Summary{Total: s.Total, Derived: s.Derived, Skipped: s.Skipped, Failed: s.Failed},
		Accounts:    make([]Row, 0, len(rep.Accounts)),
	}
	for i := range rep.Accounts {
		doc.Accounts = append(doc.Accounts, NewRow(&rep.Accounts[i]))
	}
	return doc
}

// NewRow converts one account entry.
func NewRow(a *reconcile.AccountReport) Row {
	row := Row{
		AccountID:         a.AccountID,
		Name:              a.Name,
		Currency:          a.Currency,
		Status:            string(a.Status),
		Before:            model.FormatAmount(a.Before),
		After:             model.FormatAmount(a.After),
		Balance:           model.FormatAmount(a.Balance),
		TransactionSum:    model.FormatAmount(a.TransactionSum),
		CalculatedBalance: model.FormatAmount(a.CalculatedBalance),
		TransactionCount:  a.TransactionCount,
		UnsignedCount:     a.UnsignedCount,
	}
	if a.Err != nil {
		row.Error = a.Err.Error()
	}
	return row
}

// Write renders rep to w in the given format.
func Write(w io.Writer, rep *reconcile.Report, format Format) error {
	doc := NewDocument(rep)

	switch format {
	case FormatTable, "":
		return writeTable(w, &doc)
	case FormatCSV:
		return writeCSV(w, &doc)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return common.InvalidArgumentf("unknown report format %q", format)
	}
}

func writeCSV(w io.Writer, doc *Document) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for i := range doc.Accounts {
		if err := cw.Write(doc.Accounts[i].Values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	numberStyle  = cellStyle.Align(lipgloss.Right)
	derivedStyle = cellStyle.Foreground(lipgloss.Color("#4ECDC4"))
	failedStyle  = cellStyle.Foreground(lipgloss.Color("#FF6B6B"))
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
)

// tableColumns are the Header indexes shown in the terminal table.
var tableColumns = []int{1, 3, 4, 5, 6, 7, 9}

func writeTable(w io.Writer, doc *Document) error {
	headers := make([]string, 0, len(tableColumns))
	for _, c := range tableColumns {
		headers = append(headers, Header[c])
	}

	rows := make([][]string, 0, len(doc.Accounts))
	for i := range doc.Accounts {
		values := doc.Accounts[i].Values()
		row := make([]string, 0, len(tableColumns))
		for _, c := range tableColumns {
			row = append(row, values[c])
		}
		rows = append(rows, row)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 && row >= 0 && row < len(doc.Accounts) {
				switch reconcile.Status(doc.Accounts[row].Status) {
				case reconcile.StatusDerived:
					return derivedStyle
				case reconcile.StatusFailed:
					return failedStyle
				}
			}
			if col >= 2 {
				return numberStyle
			}
			return cellStyle
		})

	mode := ""
	if doc.DryRun {
		mode = " (dry run)"
	}
	if doc.Interrupted {
		mode += " (interrupted)"
	}
	footer := fmt.Sprintf("%d accounts%s: %d derived, %d skipped, %d failed",
		doc.Summary.Total, mode, doc.Summary.Derived, doc.Summary.Skipped, doc.Summary.Failed)

	_, err := fmt.Fprintf(w, "%s\n%s\n", t.Render(), footer)
	return err
}
