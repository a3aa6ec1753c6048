package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/reconcile"
	"github.com/Veraticus/the-books-must-balance/internal/report"
	"github.com/Veraticus/the-books-must-balance/internal/sheets"
	"github.com/Veraticus/the-books-must-balance/internal/storage"
	"github.com/Veraticus/the-books-must-balance/internal/testutil/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileAll_DryRunWritesNothing(t *testing.T) {
	dbPath, accounts := setupDatabase(t)

	res := runCommand(t, reconcileCmd(), "", "all", "--dry-run", "--format", "json")
	require.NoError(t, res.err, res.stderr)

	var doc report.Document
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &doc), res.stdout)
	assert.True(t, doc.DryRun)
	assert.Equal(t, report.Summary{Total: 3, Derived: 1, Skipped: 2}, doc.Summary)

	store := openDatabase(t, dbPath)
	legacy, err := store.FindAccount(context.Background(), accounts.MustFind(t, ledger.AccountLegacyChecking).ID)
	require.NoError(t, err)
	assert.True(t, legacy.InitialBalance.IsZero())

	_, err = os.Stat(storage.SnapshotDir(dbPath))
	assert.True(t, os.IsNotExist(err), "dry run must not snapshot")
}

func TestReconcileAll_Writes(t *testing.T) {
	dbPath, accounts := setupDatabase(t)

	res := runCommand(t, reconcileCmd(), "", "all", "--yes", "--format", "csv")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, strings.Join(report.Header[:4], ","))
	assert.Contains(t, res.stdout, "derived")

	store := openDatabase(t, dbPath)
	legacy, err := store.FindAccount(context.Background(), accounts.MustFind(t, ledger.AccountLegacyChecking).ID)
	require.NoError(t, err)
	assert.Equal(t, "200", legacy.InitialBalance.String())

	snaps, err := filepath.Glob(filepath.Join(storage.SnapshotDir(dbPath), "auto-reconcile-*.db"))
	require.NoError(t, err)
	assert.Len(t, snaps, 1)

	// A second run has nothing left to derive.
	res = runCommand(t, reconcileCmd(), "", "all", "--yes", "--no-snapshot", "--format", "json")
	require.NoError(t, res.err, res.stderr)
	var doc report.Document
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &doc))
	assert.Equal(t, 0, doc.Summary.Derived)
}

func TestReconcileAll_DeclinedConfirmation(t *testing.T) {
	dbPath, accounts := setupDatabase(t)

	res := runCommand(t, reconcileCmd(), "n\n", "all")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Derive opening balances for 1 of 3 accounts?")
	assert.Contains(t, res.stdout, "Nothing written")

	store := openDatabase(t, dbPath)
	legacy, err := store.FindAccount(context.Background(), accounts.MustFind(t, ledger.AccountLegacyChecking).ID)
	require.NoError(t, err)
	assert.True(t, legacy.InitialBalance.IsZero())
}

func TestReconcileAll_OutputFile(t *testing.T) {
	setupDatabase(t)
	output := filepath.Join(t.TempDir(), "report.yaml")

	res := runCommand(t, reconcileCmd(), "", "all", "--dry-run", "--format", "yaml", "--output", output)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Report written to "+output)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "dry_run: true")
}

func TestReconcileAll_InvalidFormat(t *testing.T) {
	setupDatabase(t)

	res := runCommand(t, reconcileCmd(), "", "all", "--dry-run", "--format", "xml")
	require.Error(t, res.err)

	var userErr *common.UserError
	assert.True(t, errors.As(res.err, &userErr))
	assert.ErrorIs(t, res.err, common.ErrInvalidArgument)
}

func TestReconcileAll_InvalidTheme(t *testing.T) {
	setupDatabase(t)

	res := runCommand(t, reconcileCmd(), "", "all", "--dry-run", "--theme", "neon")
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, common.ErrInvalidArgument)
	assert.Contains(t, res.err.Error(), "Invalid --theme value")
}

func TestReconcileAccount(t *testing.T) {
	tests := []struct {
		name        string
		account     ledger.AccountName
		args        []string
		wantErr     error
		wantOut     string
		wantInitial string
	}{
		{
			name:        "derives legacy account",
			account:     ledger.AccountLegacyChecking,
			wantOut:     "derived",
			wantInitial: "200",
		},
		{
			name:        "override wins",
			account:     ledger.AccountLegacyChecking,
			args:        []string{"--initial-balance", "300"},
			wantOut:     "overridden",
			wantInitial: "300",
		},
		{
			name:        "reconciled account unchanged",
			account:     ledger.AccountReconciledSavings,
			wantOut:     "unchanged",
			wantInitial: "250",
		},
		{
			name:    "invalid override",
			account: ledger.AccountLegacyChecking,
			args:    []string{"--initial-balance", "abc"},
			wantErr: common.ErrInvalidArgument,
		},
		{
			name:    "unknown account",
			wantErr: common.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbPath, accounts := setupDatabase(t)

			id := "missing"
			if tt.account != "" {
				id = accounts.MustFind(t, tt.account).ID
			}

			args := append([]string{"account", id, "--no-snapshot"}, tt.args...)
			res := runCommand(t, reconcileCmd(), "", args...)
			if tt.wantErr != nil {
				assert.ErrorIs(t, res.err, tt.wantErr)
				return
			}
			require.NoError(t, res.err, res.stderr)
			assert.Contains(t, res.stdout, tt.wantOut)

			store := openDatabase(t, dbPath)
			got, err := store.FindAccount(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(t, tt.wantInitial, got.InitialBalance.String())
		})
	}
}

func TestPublishWith(t *testing.T) {
	writer := sheets.NewMockWriter()
	writer.WriteFunc = func(_ context.Context, rep *reconcile.Report) (*sheets.Result, error) {
		return &sheets.Result{URL: "https://example.test/sheet", Rows: len(rep.Accounts)}, nil
	}
	rep := &reconcile.Report{Accounts: []reconcile.AccountReport{{AccountID: "a"}, {AccountID: "b"}}}

	var out strings.Builder
	require.NoError(t, publishWith(context.Background(), &out, writer, rep))
	assert.Contains(t, out.String(), "Published 2 rows to https://example.test/sheet")
	assert.Same(t, rep, writer.LastReport)

	writer.SetWriteError(errors.New("quota exceeded"))
	err := publishWith(context.Background(), &out, writer, rep)
	assert.ErrorContains(t, err, "quota exceeded")
	assert.Equal(t, 2, writer.WriteCallCount)
}
