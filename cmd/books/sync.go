package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/config"
	"github.com/Veraticus/the-books-must-balance/internal/ingest"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/plaid"
	"github.com/Veraticus/the-books-must-balance/internal/reconcile"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/Veraticus/the-books-must-balance/internal/simplefin"
	"github.com/spf13/cobra"
)

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync accounts from connected institutions",
	}

	cmd.AddCommand(syncPlaidCmd())
	cmd.AddCommand(syncSimpleFINCmd())

	return cmd
}

func syncPlaidCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plaid",
		Short: "Sync accounts and transactions from Plaid",
		Long: `Fetch accounts and posted transactions from Plaid.

Accounts are matched by their Plaid account id. Balances come from Plaid's
current balance; pending transactions are skipped until they post.

Configure plaid.client_id, plaid.secret, plaid.environment and
plaid.access_token in the config file, or set PLAID_CLIENT_ID, PLAID_SECRET,
PLAID_ENV and PLAID_ACCESS_TOKEN.`,
		Args: cobra.NoArgs,
		RunE: runSyncPlaid,
	}

	cmd.Flags().String("since", "", "Earliest transaction date, YYYY-MM-DD (default: 90 days ago)")
	cmd.Flags().String("owner", "", "Owner stamped on newly created accounts")
	cmd.Flags().Bool("reconcile", false, "Reconcile every synced account afterwards")

	return cmd
}

func runSyncPlaid(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	since, err := sinceFlag(cmd)
	if err != nil {
		return err
	}
	owner, _ := cmd.Flags().GetString("owner")

	plaidConfig, err := config.LoadPlaidConfig()
	if err != nil {
		return common.NewUserError("Plaid is not configured", err)
	}
	client, err := plaid.NewClient(plaidConfig)
	if err != nil {
		return fmt.Errorf("failed to create Plaid client: %w", err)
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	importer := ingest.NewImporter(store, strings.TrimSpace(owner), slog.Default())
	results, err := importer.SyncPlaid(ctx, client, since)
	return reportSync(cmd, store, results, err)
}

func syncSimpleFINCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simplefin",
		Short: "Sync accounts and transactions from a SimpleFIN Bridge",
		Long: `Fetch accounts and posted transactions from a SimpleFIN Bridge.

The first run claims the setup token from simplefin.token (or
SIMPLEFIN_TOKEN) and saves the resulting access URL next to the database.
Setup tokens can only be claimed once; later runs reuse the saved URL.
Set simplefin.access_url to skip claiming entirely.`,
		Args: cobra.NoArgs,
		RunE: runSyncSimpleFIN,
	}

	cmd.Flags().String("since", "", "Earliest transaction date, YYYY-MM-DD (default: 90 days ago)")
	cmd.Flags().String("owner", "", "Owner stamped on newly created accounts")
	cmd.Flags().Bool("reconcile", false, "Reconcile every synced account afterwards")

	return cmd
}

func runSyncSimpleFIN(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	since, err := sinceFlag(cmd)
	if err != nil {
		return err
	}
	owner, _ := cmd.Flags().GetString("owner")

	cfg := config.LoadSimpleFINConfig()
	accessURL := cfg.AccessURL
	if accessURL == "" {
		auth, err := simplefin.LoadOrClaimAuth(ctx, cfg.StateFile, cfg.Token, nil, slog.Default())
		if err != nil {
			return common.NewUserError("SimpleFIN is not configured", err)
		}
		accessURL = auth.AccessURL
	}

	client, err := simplefin.NewClient(accessURL, slog.Default())
	if err != nil {
		return common.NewUserError("SimpleFIN access URL is invalid", err)
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	importer := ingest.NewImporter(store, strings.TrimSpace(owner), slog.Default())
	results, err := importer.SyncSimpleFIN(ctx, client, since)
	return reportSync(cmd, store, results, err)
}

func sinceFlag(cmd *cobra.Command) (time.Time, error) {
	raw, _ := cmd.Flags().GetString("since")
	if raw == "" {
		return time.Now().AddDate(0, 0, -90), nil
	}
	since, err := time.Parse(model.DateLayout, raw)
	if err != nil {
		return time.Time{}, common.NewUserError("--since must be YYYY-MM-DD", err)
	}
	return since, nil
}

// reportSync prints per-account results, then reconciles them when
// --reconcile is set. A sync error is returned after printing what did land.
func reportSync(cmd *cobra.Command, store reconcile.Store, results []service.ImportResult, syncErr error) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	for _, r := range results {
		status := "refreshed"
		if r.AccountCreated {
			status = "created"
		}
		fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("%s %s: %d of %d transactions new",
			r.AccountID, status, r.TransactionsInserted, r.TransactionsSeen)))
	}
	if syncErr != nil {
		return syncErr
	}

	if doReconcile, _ := cmd.Flags().GetBool("reconcile"); doReconcile && len(results) > 0 {
		return reconcileImported(ctx, out, reconcile.New(store, slog.Default()), results)
	}
	return nil
}
