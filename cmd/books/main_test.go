package main

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Veraticus/the-books-must-balance/internal/storage"
	"github.com/Veraticus/the-books-must-balance/internal/testutil/ledger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

// setupDatabase seeds a file-backed database with the mixed fixture and
// points database.path at it.
func setupDatabase(t *testing.T) (string, ledger.Accounts) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "books.db")
	ctx := context.Background()

	store, err := storage.NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))

	accounts, err := ledger.NewBuilder(t).WithFixture(ledger.FixtureMixed).Build(ctx, store)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	viper.Set("database.path", dbPath)
	t.Cleanup(viper.Reset)

	return dbPath, accounts
}

func openDatabase(t *testing.T, dbPath string) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type commandResult struct {
	err    error
	stdout string
	stderr string
}

func runCommand(t *testing.T, cmd *cobra.Command, stdin string, args ...string) commandResult {
	t.Helper()

	var stdout, stderr bytes.Buffer
	var in io.Reader = strings.NewReader(stdin)
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(in)

	err := cmd.ExecuteContext(context.Background())
	return commandResult{err: err, stdout: stdout.String(), stderr: stderr.String()}
}
