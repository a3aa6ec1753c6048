package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/config"
	"github.com/Veraticus/the-books-must-balance/internal/reconcile"
	"github.com/Veraticus/the-books-must-balance/internal/report"
	"github.com/Veraticus/the-books-must-balance/internal/sheets"
	"github.com/Veraticus/the-books-must-balance/internal/storage"
	"github.com/Veraticus/the-books-must-balance/internal/tui"
	"github.com/Veraticus/the-books-must-balance/internal/tui/themes"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile opening balances with transaction history",
		Long: `Reconcile keeps every account's opening balance consistent with its
current balance and the signed sum of its transactions:

  initial balance + sum of transactions = balance

Accounts created before opening balances were recorded have an opening
balance of zero. Reconciling them derives the opening balance from the
current balance and the transaction history.`,
	}

	cmd.AddCommand(reconcileAllCmd())
	cmd.AddCommand(reconcileAccountCmd())

	return cmd
}

func reconcileAllCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "all",
		Short: "Derive opening balances for every legacy account",
		Long: `Run the derivation over every account (or one owner's accounts).

Accounts that already have an opening balance, or that have nothing to
derive, are skipped. A failure on one account does not stop the run; the
command exits non-zero if any account failed. Running it again is safe.`,
		Example: `  # Preview what would change
  books reconcile all --dry-run

  # Reconcile one owner's accounts and keep a CSV of the result
  books reconcile all --owner alice --format csv --output reconcile.csv

  # Browse the report interactively and publish it to Google Sheets
  books reconcile all --interactive --sheets`,
		Args: cobra.NoArgs,
		RunE: runReconcileAll,
	}

	cmd.Flags().String("owner", "", "Only reconcile accounts belonging to this owner")
	cmd.Flags().BoolP("dry-run", "n", false, "Compute the report without writing anything")
	cmd.Flags().StringP("format", "f", string(report.FormatTable), "Report format (table, csv, json, yaml)")
	cmd.Flags().StringP("output", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().BoolP("interactive", "i", false, "Browse the report in an interactive viewer")
	cmd.Flags().String("theme", "", "Viewer theme for --interactive (default, mono)")
	_ = viper.BindPFlag("tui.theme", cmd.Flags().Lookup("theme"))
	cmd.Flags().Bool("sheets", false, "Publish the report to Google Sheets")
	cmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation before writing")
	cmd.Flags().Bool("no-snapshot", false, "Skip the automatic database snapshot before writing")

	return cmd
}

type reconcileAllOptions struct {
	owner       string
	output      string
	format      report.Format
	theme       themes.Theme
	dryRun      bool
	interactive bool
	sheets      bool
	yes         bool
	noSnapshot  bool
}

func parseReconcileAllFlags(cmd *cobra.Command) (reconcileAllOptions, error) {
	var opts reconcileAllOptions
	opts.owner, _ = cmd.Flags().GetString("owner")
	opts.output, _ = cmd.Flags().GetString("output")
	opts.dryRun, _ = cmd.Flags().GetBool("dry-run")
	opts.interactive, _ = cmd.Flags().GetBool("interactive")
	opts.sheets, _ = cmd.Flags().GetBool("sheets")
	opts.yes, _ = cmd.Flags().GetBool("yes")
	opts.noSnapshot, _ = cmd.Flags().GetBool("no-snapshot")

	rawFormat, _ := cmd.Flags().GetString("format")
	format, err := report.ParseFormat(rawFormat)
	if err != nil {
		return opts, common.NewUserError("Invalid --format value", err)
	}
	opts.format = format
	opts.owner = strings.TrimSpace(opts.owner)

	themeName := viper.GetString("tui.theme")
	if themeName == "" && os.Getenv("NO_COLOR") != "" {
		themeName = "mono"
	}
	opts.theme, err = themes.ByName(themeName)
	if err != nil {
		return opts, common.NewUserError("Invalid --theme value", err)
	}
	return opts, nil
}

func runReconcileAll(cmd *cobra.Command, _ []string) error {
	opts, err := parseReconcileAllFlags(cmd)
	if err != nil {
		return err
	}

	// Load publishing config up front so a bad config fails before any write.
	var sheetsConfig *sheets.Config
	if opts.sheets {
		sheetsConfig, err = config.LoadSheetsConfig()
		if err != nil {
			return common.NewUserError("Google Sheets is not configured; run 'books auth sheets' first", err)
		}
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	reconciler := reconcile.New(store, slog.Default())

	if !opts.dryRun {
		proceed, err := confirmReconcileAll(ctx, cmd, reconciler, opts)
		if err != nil {
			return err
		}
		if !proceed {
			fmt.Fprintln(out, cli.FormatInfo("Nothing written"))
			return nil
		}

		if !opts.noSnapshot {
			if err := snapshotBeforeWrite(ctx, store, errOut); err != nil {
				return err
			}
		}
	}

	handler := cli.NewInterruptHandler(errOut, "Reconciliation")
	runCtx := handler.HandleInterrupts(ctx, "Run 'books reconcile all' again; reconciled accounts are skipped.")
	defer handler.Stop()

	progress := cli.NewBatchProgress(errOut, 0)
	rep, runErr := reconciler.ReconcileAll(runCtx, reconcile.BatchOptions{
		OwnerID:  opts.owner,
		DryRun:   opts.dryRun,
		Start:    progress.Start,
		Progress: progress.Observe,
	})
	progress.Finish()

	if rep == nil {
		return runErr
	}
	if handler.WasInterrupted() || rep.Interrupted {
		// Show what was done before the interrupt.
		_ = writeReport(out, rep, opts)
		return runErr
	}

	if err := writeReport(out, rep, opts); err != nil {
		return err
	}

	if opts.sheets {
		if err := publishReport(ctx, out, *sheetsConfig, rep); err != nil {
			return err
		}
	}

	if opts.interactive {
		if err := tui.Run(ctx, rep, tui.WithTheme(opts.theme)); err != nil {
			return fmt.Errorf("interactive viewer failed: %w", err)
		}
	}

	if summary := rep.Summary(); summary.Failed > 0 {
		return fmt.Errorf("%d of %d accounts failed to reconcile: %w", summary.Failed, summary.Total, runErr)
	}
	return nil
}

// confirmReconcileAll previews how many accounts a run would change and asks
// before writing.
func confirmReconcileAll(ctx context.Context, cmd *cobra.Command, reconciler *reconcile.Reconciler, opts reconcileAllOptions) (bool, error) {
	if opts.yes {
		return true, nil
	}

	preview, err := reconciler.ReconcileAll(ctx, reconcile.BatchOptions{OwnerID: opts.owner, DryRun: true})
	if preview == nil {
		return false, err
	}
	summary := preview.Summary()
	if summary.Derived == 0 {
		return true, nil
	}

	confirmer := cli.NewConfirmer(cmd.InOrStdin(), cmd.OutOrStdout())
	return confirmer.Confirm(ctx, fmt.Sprintf("Derive opening balances for %d of %d accounts?", summary.Derived, summary.Total))
}

func snapshotBeforeWrite(ctx context.Context, store *storage.SQLiteStorage, w io.Writer) error {
	snap, err := autoSnapshot(ctx, store, "reconcile")
	if errors.Is(err, storage.ErrSnapshotInMemory) {
		return nil
	}
	if err != nil {
		return common.NewUserError("Could not snapshot the database before writing (use --no-snapshot to skip)", err)
	}
	fmt.Fprintln(w, cli.FormatInfo("Snapshot "+snap.ID+" saved; restore with 'books snapshot restore "+snap.ID+"'"))
	return nil
}

func writeReport(stdout io.Writer, rep *reconcile.Report, opts reconcileAllOptions) error {
	if opts.output == "" {
		return report.Write(stdout, rep, opts.format)
	}

	f, err := os.Create(config.ExpandPath(opts.output))
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := report.Write(f, rep, opts.format); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	summary := rep.Summary()
	fmt.Fprintln(stdout, cli.FormatSuccess(fmt.Sprintf("Report written to %s (%d derived, %d skipped, %d failed)",
		opts.output, summary.Derived, summary.Skipped, summary.Failed)))
	return nil
}

func publishReport(ctx context.Context, w io.Writer, cfg sheets.Config, rep *reconcile.Report) error {
	writer, err := sheets.NewWriter(ctx, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to connect to Google Sheets: %w", err)
	}
	return publishWith(ctx, w, writer, rep)
}

func publishWith(ctx context.Context, w io.Writer, writer sheets.ReportWriter, rep *reconcile.Report) error {
	result, err := writer.Write(ctx, rep)
	if err != nil {
		return fmt.Errorf("failed to publish report: %w", err)
	}
	fmt.Fprintln(w, cli.FormatSuccess(fmt.Sprintf("Published %d rows to %s", result.Rows, result.URL)))
	return nil
}

func reconcileAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account <id>",
		Short: "Reconcile a single account",
		Long: `Pick the opening balance for one account and save it.

With --initial-balance the given value is stored as is. Without it, a legacy
account (opening balance zero, balance non-zero) gets its opening balance
derived from its transactions; any other account keeps its current value.`,
		Example: `  books reconcile account 01J9ZK3V7Q8M4T6W2X5Y0A1B2C
  books reconcile account 01J9ZK3V7Q8M4T6W2X5Y0A1B2C --initial-balance 250.00`,
		Args: cobra.ExactArgs(1),
		RunE: runReconcileAccount,
	}

	cmd.Flags().String("initial-balance", "", "Store this opening balance instead of deriving one")
	cmd.Flags().Bool("no-snapshot", false, "Skip the automatic database snapshot before writing")

	return cmd
}

func runReconcileAccount(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	var opts reconcile.Options
	if cmd.Flags().Changed("initial-balance") {
		raw, _ := cmd.Flags().GetString("initial-balance")
		value, err := reconcile.ParseInitialBalance(raw)
		if err != nil {
			return common.NewUserError("Invalid --initial-balance value", err)
		}
		opts.InitialBalance = &value
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	account, err := store.FindAccount(ctx, args[0])
	if err != nil {
		return err
	}

	if noSnapshot, _ := cmd.Flags().GetBool("no-snapshot"); !noSnapshot {
		if err := snapshotBeforeWrite(ctx, store, cmd.ErrOrStderr()); err != nil {
			return err
		}
	}

	result, err := reconcile.New(store, slog.Default()).ReconcileAccount(ctx, account.ID, opts)
	if err != nil {
		return err
	}

	lines := []string{
		fmt.Sprintf("Account:            %s (%s)", account.Name, account.ID),
		fmt.Sprintf("Action:             %s", result.Action),
		fmt.Sprintf("Initial balance:    %s -> %s",
			formatMoney(result.PreviousInitial, account.Currency), formatMoney(result.InitialBalance, account.Currency)),
		fmt.Sprintf("Transaction sum:    %s (%d transactions)",
			formatMoney(result.TransactionSum, account.Currency), result.TransactionCount),
		fmt.Sprintf("Calculated balance: %s", formatMoney(result.CalculatedBalance, account.Currency)),
		fmt.Sprintf("Balance:            %s", formatMoney(result.Balance, account.Currency)),
	}
	fmt.Fprintln(out, cli.RenderBox("Reconciled", strings.Join(lines, "\n")))

	if drift := result.Drift(); !drift.IsZero() {
		fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("Calculated balance differs from the stored balance by %s", formatMoney(drift, account.Currency))))
	}
	if result.UnsignedCount > 0 {
		fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("%d transaction(s) have a type without a balance sign and were not counted", result.UnsignedCount)))
	}
	return nil
}
