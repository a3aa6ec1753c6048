package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Snapshot errors.
var (
	ErrSnapshotNotFound  = errors.New("snapshot not found")
	ErrSnapshotExists    = errors.New("snapshot already exists")
	ErrSnapshotInMemory  = errors.New("in-memory databases cannot be snapshotted")
	ErrInvalidSnapshotID = errors.New("invalid snapshot id")
)

// maxAutoSnapshots is how many automatic snapshots are kept.
const maxAutoSnapshots = 5

// Snapshot describes one copy of the database taken before a risky write.
type Snapshot struct {
	CreatedAt      time.Time `json:"created_at"`
	ID             string    `json:"id"`
	Reason         string    `json:"reason"`
	FileSize       int64     `json:"file_size"`
	Accounts       int       `json:"accounts"`
	Transactions   int       `json:"transactions"`
	LegacyAccounts int       `json:"legacy_accounts"`
	SchemaVersion  int       `json:"schema_version"`
	Auto           bool      `json:"auto"`
}

// SnapshotManager creates and lists database snapshots stored next to the
// database file.
type SnapshotManager struct {
	store  *SQLiteStorage
	logger *slog.Logger
	dir    string
}

// Snapshots returns the snapshot manager for this database.
func (s *SQLiteStorage) Snapshots(logger *slog.Logger) (*SnapshotManager, error) {
	if isInMemory(s.dbPath) {
		return nil, ErrSnapshotInMemory
	}
	if logger == nil {
		logger = slog.Default()
	}

	dir := SnapshotDir(s.dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create snapshots directory: %w", err)
	}

	return &SnapshotManager{
		store:  s,
		dir:    dir,
		logger: logger.With("component", "snapshots"),
	}, nil
}

// SnapshotDir is where snapshots of the database at dbPath live.
func SnapshotDir(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), "snapshots")
}

// Create copies the database into a new snapshot. An empty id gets a
// timestamped one.
func (m *SnapshotManager) Create(ctx context.Context, id, reason string) (*Snapshot, error) {
	if id == "" {
		id = "snapshot-" + m.store.now().Format("20060102-150405")
	}
	if err := validateSnapshotID(id); err != nil {
		return nil, err
	}

	path := m.dbFile(id)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotExists, id)
	}

	snap := Snapshot{
		ID:        id,
		Reason:    reason,
		CreatedAt: m.store.now(),
	}

	version, err := m.store.SchemaVersion(ctx)
	if err != nil {
		return nil, err
	}
	snap.SchemaVersion = version

	if err := m.collectCounts(ctx, &snap); err != nil {
		return nil, fmt.Errorf("failed to collect row counts: %w", err)
	}

	// VACUUM INTO writes a consistent copy even while WAL frames are pending.
	if _, err := m.store.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to copy database: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat snapshot: %w", err)
	}
	snap.FileSize = info.Size()

	if err := m.saveMetadata(&snap); err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	m.logger.Info("Created snapshot",
		"id", snap.ID,
		"reason", snap.Reason,
		"accounts", snap.Accounts,
		"legacy_accounts", snap.LegacyAccounts,
		"size", snap.FileSize)

	return &snap, nil
}

// Auto takes a snapshot before an automated write and prunes older
// automatic snapshots.
func (m *SnapshotManager) Auto(ctx context.Context, operation string) (*Snapshot, error) {
	id := fmt.Sprintf("auto-%s-%s", operation, strings.ToLower(ulid.Make().String()))

	snap, err := m.Create(ctx, id, "automatic snapshot before "+operation)
	if err != nil {
		return nil, fmt.Errorf("failed to create automatic snapshot: %w", err)
	}
	snap.Auto = true
	if err := m.saveMetadata(snap); err != nil {
		return nil, err
	}

	if err := m.prune(ctx); err != nil {
		m.logger.Warn("Failed to prune automatic snapshots", "error", err)
	}
	return snap, nil
}

// List returns every snapshot, newest first.
func (m *SnapshotManager) List(_ context.Context) ([]Snapshot, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshots directory: %w", err)
	}

	var snaps []Snapshot
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".meta.json") {
			continue
		}
		snap, err := m.loadMetadata(filepath.Join(m.dir, name))
		if err != nil {
			m.logger.Warn("Skipping unreadable snapshot metadata", "file", name, "error", err)
			continue
		}
		snaps = append(snaps, *snap)
	}

	sort.Slice(snaps, func(i, j int) bool {
		if !snaps[i].CreatedAt.Equal(snaps[j].CreatedAt) {
			return snaps[i].CreatedAt.After(snaps[j].CreatedAt)
		}
		return snaps[i].ID > snaps[j].ID
	})
	return snaps, nil
}

// Get returns one snapshot's metadata.
func (m *SnapshotManager) Get(_ context.Context, id string) (*Snapshot, error) {
	if err := validateSnapshotID(id); err != nil {
		return nil, err
	}
	snap, err := m.loadMetadata(m.metaFile(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	return snap, err
}

// Delete removes a snapshot and its metadata.
func (m *SnapshotManager) Delete(ctx context.Context, id string) error {
	if _, err := m.Get(ctx, id); err != nil {
		return err
	}
	if err := os.Remove(m.dbFile(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove snapshot: %w", err)
	}
	if err := os.Remove(m.metaFile(id)); err != nil {
		return fmt.Errorf("failed to remove snapshot metadata: %w", err)
	}
	return nil
}

func (m *SnapshotManager) prune(ctx context.Context) error {
	snaps, err := m.List(ctx)
	if err != nil {
		return err
	}

	kept := 0
	for _, snap := range snaps {
		if !snap.Auto {
			continue
		}
		kept++
		if kept <= maxAutoSnapshots {
			continue
		}
		if err := m.Delete(ctx, snap.ID); err != nil {
			m.logger.Debug("Failed to delete old snapshot", "id", snap.ID, "error", err)
		}
	}
	return nil
}

func (m *SnapshotManager) collectCounts(ctx context.Context, snap *Snapshot) error {
	queries := []struct {
		dst   *int
		query string
	}{
		{&snap.Accounts, `SELECT COUNT(*) FROM accounts`},
		{&snap.Transactions, `SELECT COUNT(*) FROM transactions`},
		{&snap.LegacyAccounts, `SELECT COUNT(*) FROM accounts
			WHERE CAST(initial_balance AS REAL) = 0 AND CAST(balance AS REAL) != 0`},
	}
	for _, q := range queries {
		if err := m.store.db.QueryRowContext(ctx, q.query).Scan(q.dst); err != nil {
			return err
		}
	}
	return nil
}

func (m *SnapshotManager) saveMetadata(snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot metadata: %w", err)
	}
	if err := os.WriteFile(m.metaFile(snap.ID), data, 0600); err != nil {
		return fmt.Errorf("failed to write snapshot metadata: %w", err)
	}
	return nil
}

func (m *SnapshotManager) loadMetadata(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is built from a validated id
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot metadata: %w", err)
	}
	return &snap, nil
}

func (m *SnapshotManager) dbFile(id string) string {
	return filepath.Join(m.dir, id+".db")
}

func (m *SnapshotManager) metaFile(id string) string {
	return filepath.Join(m.dir, id+".meta.json")
}

// RestoreSnapshot replaces the database at dbPath with snapshot id. The
// database must not be open. The replaced file is kept as dbPath plus
// ".restore-backup".
func RestoreSnapshot(dbPath, id string) error {
	if err := validateSnapshotID(id); err != nil {
		return err
	}

	src := filepath.Join(SnapshotDir(dbPath), id+".db")
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
		}
		return fmt.Errorf("failed to stat snapshot: %w", err)
	}

	backup := dbPath + ".restore-backup"
	if err := copyFile(dbPath, backup); err != nil {
		return fmt.Errorf("failed to back up current database: %w", err)
	}
	if err := copyFile(src, dbPath); err != nil {
		if restoreErr := copyFile(backup, dbPath); restoreErr != nil {
			return fmt.Errorf("restore failed (%w) and rollback failed: %w", err, restoreErr)
		}
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}

	// Stale WAL files from the replaced database must not be replayed.
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(dbPath + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s file: %w", suffix, err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(filepath.Clean(dst), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func validateSnapshotID(id string) error {
	if strings.TrimSpace(id) == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidSnapshotID, id)
	}
	return nil
}

func isInMemory(dbPath string) bool {
	return dbPath == ":memory:" || strings.HasPrefix(dbPath, "file::memory:")
}
