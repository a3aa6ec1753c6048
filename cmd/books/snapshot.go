package main

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/Veraticus/the-books-must-balance/internal/config"
	"github.com/Veraticus/the-books-must-balance/internal/storage"
	"github.com/spf13/cobra"
)

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage database snapshots",
		Long: `Create, list, restore, and delete database snapshots.

Reconciliation takes an automatic snapshot before it writes; the five most
recent automatic snapshots are kept.`,
		Example: `  # Snapshot before a large import
  books snapshot create --id pre-2024-import

  # Undo the last reconcile run
  books snapshot list
  books snapshot restore auto-reconcile-01j9zk3v7q8m4t6w2x5y0a1b2c`,
	}

	cmd.AddCommand(snapshotCreateCmd())
	cmd.AddCommand(snapshotListCmd())
	cmd.AddCommand(snapshotRestoreCmd())
	cmd.AddCommand(snapshotDeleteCmd())

	return cmd
}

func snapshotCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Snapshot the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			id, _ := cmd.Flags().GetString("id")
			reason, _ := cmd.Flags().GetString("reason")

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			manager, err := store.Snapshots(slog.Default())
			if err != nil {
				return err
			}
			snap, err := manager.Create(ctx, id, reason)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s Created snapshot %s (%s, %d accounts, %d not reconciled)\n",
				cli.SuccessStyle.Render(cli.SuccessIcon),
				cli.InfoStyle.Render(snap.ID),
				formatFileSize(snap.FileSize),
				snap.Accounts,
				snap.LegacyAccounts)
			return nil
		},
	}

	cmd.Flags().String("id", "", "Snapshot id (generated if empty)")
	cmd.Flags().String("reason", "", "Why the snapshot was taken")

	return cmd
}

func snapshotListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			manager, err := store.Snapshots(slog.Default())
			if err != nil {
				return err
			}
			snaps, err := manager.List(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(snaps) == 0 {
				fmt.Fprintln(out, cli.FormatInfo("No snapshots found"))
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tSIZE\tACCOUNTS\tNOT RECONCILED\tREASON")
			for _, s := range snaps {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
					s.ID,
					s.CreatedAt.Local().Format("2006-01-02 15:04"),
					formatFileSize(s.FileSize),
					s.Accounts,
					s.LegacyAccounts,
					s.Reason)
			}
			return w.Flush()
		},
	}
}

func snapshotRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <id>",
		Short: "Replace the database with a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				ok, err := cli.NewConfirmer(cmd.InOrStdin(), out).Confirm(ctx,
					fmt.Sprintf("Replace the current database with snapshot %s?", args[0]))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, cli.FormatInfo("Restore cancelled"))
					return nil
				}
			}

			dbPath := config.DatabasePath()
			if err := storage.RestoreSnapshot(dbPath, args[0]); err != nil {
				return err
			}

			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Restored %s; the previous database was kept at %s.restore-backup", args[0], dbPath)))
			return nil
		},
	}

	cmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	return cmd
}

func snapshotDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			manager, err := store.Snapshots(slog.Default())
			if err != nil {
				return err
			}
			if err := manager.Delete(ctx, args[0]); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted snapshot "+args[0]))
			return nil
		},
	}
}

func formatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
