package storage

import (
	"context"
	"database/sql"
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

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/google/uuid"
)

// maxAutoSnapshots is how many automatic snapshots are kept.
const maxAutoSnapshots = 5

// snapshotTables are counted into each snapshot's metadata.
var snapshotTables = []string{
	"transactions",
	"categories",
	"categorization_rules",
	"transaction_reviews",
}

// Snapshot errors.
var (
	ErrSnapshotNotFound  = errors.New("snapshot not found")
	ErrSnapshotExists    = errors.New("snapshot already exists")
	ErrSnapshotCorrupted = errors.New("snapshot integrity check failed")
)

// Snapshot describes a point-in-time copy of the whole database.
type Snapshot struct {
	CreatedAt     time.Time      `json:"created_at"`
	RowCounts     map[string]int `json:"row_counts"`
	ID            string         `json:"id"`
	Description   string         `json:"description"`
	FileSize      int64          `json:"file_size"`
	SchemaVersion int            `json:"schema_version"`
	IsAuto        bool           `json:"is_auto"`
}

// SnapshotDir returns the directory snapshots of dbPath are kept in.
func SnapshotDir(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), "snapshots")
}

// CreateSnapshot copies the database into the snapshot directory. An empty
// id is generated from the current time.
func (s *SQLiteStorage) CreateSnapshot(ctx context.Context, id, description string) (*Snapshot, error) {
	return s.createSnapshot(ctx, id, description, false)
}

// AutoSnapshot takes a snapshot before an operation and prunes automatic
// snapshots beyond the most recent few.
func (s *SQLiteStorage) AutoSnapshot(ctx context.Context, operation string) (*Snapshot, error) {
	id := fmt.Sprintf("auto-%s-%s-%s", operation, time.Now().Format("20060102-150405"), uuid.NewString()[:8])
	snap, err := s.createSnapshot(ctx, id, "Automatic snapshot before "+operation, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create automatic snapshot: %w", err)
	}

	if err := pruneAutoSnapshots(s.dbPath); err != nil {
		slog.Warn("failed to prune automatic snapshots", "error", err)
	}
	return snap, nil
}

func (s *SQLiteStorage) createSnapshot(ctx context.Context, id, description string, auto bool) (*Snapshot, error) {
	if s.dbPath == ":memory:" {
		return nil, fmt.Errorf("%w: in-memory databases cannot be snapshotted", common.ErrInvalidConfig)
	}
	if id == "" {
		id = "snapshot-" + time.Now().Format("20060102-150405")
	}
	if err := validateSnapshotID(id); err != nil {
		return nil, err
	}

	dir := SnapshotDir(s.dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	dbFile := filepath.Join(dir, id+".db")
	if _, err := os.Stat(dbFile); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotExists, id)
	}

	version, err := s.SchemaVersion(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.rowCounts(ctx)
	if err != nil {
		return nil, err
	}

	// VACUUM INTO writes a consistent copy, including pages still in the WAL.
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", dbFile); err != nil {
		return nil, fmt.Errorf("failed to copy database: %w", err)
	}

	info, err := os.Stat(dbFile)
	if err != nil {
		return nil, fmt.Errorf("failed to stat snapshot: %w", err)
	}

	snap := &Snapshot{
		ID:            id,
		CreatedAt:     time.Now().UTC(),
		Description:   description,
		FileSize:      info.Size(),
		RowCounts:     counts,
		SchemaVersion: version,
		IsAuto:        auto,
	}
	if err := writeSnapshotMeta(dir, snap); err != nil {
		if rmErr := os.Remove(dbFile); rmErr != nil {
			slog.Error("failed to remove snapshot after metadata failure", "error", rmErr)
		}
		return nil, err
	}

	slog.Info("Created snapshot", "id", id, "size", snap.FileSize)
	return snap, nil
}

func (s *SQLiteStorage) rowCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(snapshotTables))
	for _, table := range snapshotTables {
		var n int
		// Table names come from snapshotTables, never from input.
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

// ListSnapshots returns the snapshots of dbPath, newest first.
func ListSnapshots(dbPath string) ([]Snapshot, error) {
	dir := SnapshotDir(dbPath)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	var snapshots []Snapshot
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".meta.json") {
			continue
		}
		snap, err := readSnapshotMeta(filepath.Join(dir, entry.Name()))
		if err != nil {
			slog.Debug("skipping unreadable snapshot metadata", "file", entry.Name(), "error", err)
			continue
		}
		snapshots = append(snapshots, *snap)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.After(snapshots[j].CreatedAt)
	})
	return snapshots, nil
}

// RestoreSnapshot replaces the database at dbPath with a snapshot. No
// connection to dbPath may be open.
func RestoreSnapshot(dbPath, id string) error {
	if err := validateSnapshotID(id); err != nil {
		return err
	}
	snapFile := filepath.Join(SnapshotDir(dbPath), id+".db")
	if _, err := os.Stat(snapFile); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
		}
		return fmt.Errorf("failed to access snapshot: %w", err)
	}
	if err := verifyIntegrity(snapFile); err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshotCorrupted, err)
	}

	backup := dbPath + ".restore-backup"
	if err := copyFile(dbPath, backup); err != nil {
		return fmt.Errorf("failed to back up current database: %w", err)
	}

	if err := copyFile(snapFile, dbPath); err != nil {
		if restoreErr := copyFile(backup, dbPath); restoreErr != nil {
			slog.Error("failed to put back the original database", "error", restoreErr)
		}
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}

	// Stale WAL frames would be replayed over the restored file.
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(dbPath + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to remove sqlite sidecar file", "file", dbPath+suffix, "error", err)
		}
	}
	if err := os.Remove(backup); err != nil {
		slog.Warn("failed to remove restore backup", "error", err)
	}
	return nil
}

// DeleteSnapshot removes a snapshot and its metadata.
func DeleteSnapshot(dbPath, id string) error {
	if err := validateSnapshotID(id); err != nil {
		return err
	}
	dir := SnapshotDir(dbPath)
	if err := os.Remove(filepath.Join(dir, id+".db")); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
		}
		return fmt.Errorf("failed to remove snapshot: %w", err)
	}
	if err := os.Remove(filepath.Join(dir, id+".meta.json")); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Debug("failed to remove snapshot metadata", "id", id, "error", err)
	}
	return nil
}

func pruneAutoSnapshots(dbPath string) error {
	snapshots, err := ListSnapshots(dbPath)
	if err != nil {
		return err
	}
	kept := 0
	for _, snap := range snapshots {
		if !snap.IsAuto {
			continue
		}
		kept++
		if kept > maxAutoSnapshots {
			if err := DeleteSnapshot(dbPath, snap.ID); err != nil {
				slog.Debug("failed to delete old automatic snapshot", "id", snap.ID, "error", err)
			}
		}
	}
	return nil
}

func validateSnapshotID(id string) error {
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") || strings.TrimSpace(id) == "" {
		return common.NewValidationError("snapshot", fmt.Sprintf("invalid snapshot id %q", id))
	}
	return nil
}

func writeSnapshotMeta(dir string, snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot metadata: %w", err)
	}
	path := filepath.Join(dir, snap.ID+".meta.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write snapshot metadata: %w", err)
	}
	return os.Rename(tmp, path)
}

func readSnapshotMeta(path string) (*Snapshot, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func verifyIntegrity(path string) error {
	db, err := sql.Open("sqlite3", path+"?mode=ro")
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return errors.New(result)
	}
	return nil
}

// copyFile writes src to dst through a temporary file and a rename.
func copyFile(src, dst string) error {
	source, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}
	defer func() { _ = source.Close() }()

	tmp := dst + ".tmp"
	destination, err := os.Create(filepath.Clean(tmp))
	if err != nil {
		return err
	}
	if _, err := io.Copy(destination, source); err != nil {
		_ = destination.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := destination.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
