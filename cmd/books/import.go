package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/Veraticus/the-books-must-balance/internal/ingest"
	"github.com/Veraticus/the-books-must-balance/internal/reconcile"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/spf13/cobra"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import statements from files",
	}

	cmd.AddCommand(importOFXCmd())

	return cmd
}

func importOFXCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ofx [files...]",
		Short: "Import transactions from OFX/QFX files",
		Long: `Import accounts and transactions from OFX or QFX (Quicken) files exported
from your bank.

Each statement creates or refreshes the account it belongs to, using the
statement's ledger balance. Transactions already imported are skipped. New
accounts start without an opening balance; pass --reconcile to derive one
right away.`,
		Example: `  # Import single file
  books import ofx ~/Downloads/chase_jan_2024.qfx

  # Import every QFX file in a directory and reconcile the touched accounts
  books import ofx ~/Downloads/*.qfx --reconcile`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImportOFX,
	}

	cmd.Flags().String("owner", "", "Owner stamped on newly created accounts")
	cmd.Flags().Bool("reconcile", false, "Reconcile every imported account afterwards")

	return cmd
}

func runImportOFX(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	owner, _ := cmd.Flags().GetString("owner")
	doReconcile, _ := cmd.Flags().GetBool("reconcile")

	files, err := expandFiles(args)
	if err != nil {
		return err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	importer := ingest.NewImporter(store, strings.TrimSpace(owner), slog.Default())

	var all []service.ImportResult
	failed := 0
	for _, path := range files {
		results, err := importFile(ctx, importer, path)
		if err != nil {
			failed++
			fmt.Fprintln(out, cli.FormatError(fmt.Sprintf("%s: %v", filepath.Base(path), err)))
			continue
		}
		inserted := 0
		for _, r := range results {
			inserted += r.TransactionsInserted
		}
		fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("%s: %d statement(s), %d new transaction(s)",
			filepath.Base(path), len(results), inserted)))
		all = append(all, results...)
	}

	if doReconcile && len(all) > 0 {
		if err := reconcileImported(ctx, out, reconcile.New(store, slog.Default()), all); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to import", failed, len(files))
	}
	return nil
}

func importFile(ctx context.Context, importer *ingest.Importer, path string) ([]service.ImportResult, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return importer.ImportOFX(ctx, f)
}

// expandFiles resolves globs, keeping literal paths that exist.
func expandFiles(patterns []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(pattern); err != nil {
				slog.Warn("No files found matching pattern", "pattern", pattern)
				continue
			}
			matches = []string{pattern}
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files found to import")
	}
	return files, nil
}

// reconcileImported runs the single-account path once per touched account.
func reconcileImported(ctx context.Context, w io.Writer, reconciler *reconcile.Reconciler, results []service.ImportResult) error {
	done := make(map[string]bool)
	var failures int
	for _, r := range results {
		if done[r.AccountID] {
			continue
		}
		done[r.AccountID] = true

		result, err := reconciler.ReconcileAccount(ctx, r.AccountID, reconcile.Options{})
		if err != nil {
			failures++
			fmt.Fprintln(w, cli.FormatError(fmt.Sprintf("reconcile %s: %v", r.AccountID, err)))
			continue
		}
		fmt.Fprintln(w, cli.FormatInfo(fmt.Sprintf("%s: %s, opening balance %s",
			r.AccountID, result.Action, result.InitialBalance.StringFixed(2))))
	}
	if failures > 0 {
		return fmt.Errorf("%d imported accounts failed to reconcile", failures)
	}
	return nil
}
