package checkpoint

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/syncpair/syncpair/internal/db"
)

const sidecarSchema = `
CREATE TABLE IF NOT EXISTS checkpoints (
    instance_key TEXT PRIMARY KEY,
    last_sync_ticks INTEGER NOT NULL, -- UTC nanoseconds since epoch
    updated_at TEXT NOT NULL          -- RFC3339, informational only
);
`

// sidecarRow mirrors one checkpoints table row for sqlx scanning.
type sidecarRow struct {
	InstanceKey   string `db:"instance_key"`
	LastSyncTicks int64  `db:"last_sync_ticks"`
	UpdatedAt     string `db:"updated_at"`
}

// SidecarStore keeps checkpoints in a small SQLite database. Any number of
// pairings can share one database; rows are keyed by instance key. It ignores
// the endpoint roots passed to Load/Save/Clear.
type SidecarStore struct {
	db     *sqlx.DB
	dbPath string
}

// NewSidecarStore creates a store backed by the SQLite database at dbPath.
// Use ":memory:" for a throwaway store. Call Open before first use.
func NewSidecarStore(dbPath string) *SidecarStore {
	return &SidecarStore{
		dbPath: dbPath,
	}
}

// Open the store and the underlying database.
func (s *SidecarStore) Open() error {
	if s.db != nil {
		return fmt.Errorf("checkpoint store already open")
	}

	database, err := db.NewSqliteDB(db.WithPath(s.dbPath), db.WithMaxOpenConns(1))
	if err != nil {
		return fmt.Errorf("open checkpoint store: %w", err)
	}

	if _, err := database.Exec(sidecarSchema); err != nil {
		database.Close()
		return fmt.Errorf("initialize checkpoint schema: %w", err)
	}

	s.db = database
	return nil
}

// Close closes the underlying database connection.
func (s *SidecarStore) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close checkpoint store: %w", err)
	}
	s.db = nil
	return nil
}

// Load implements Store.
func (s *SidecarStore) Load(_, _, key string) (time.Time, bool, error) {
	if s.db == nil {
		return time.Time{}, false, fmt.Errorf("checkpoint store not open")
	}

	var row sidecarRow
	err := s.db.Get(&row, "SELECT instance_key, last_sync_ticks, updated_at FROM checkpoints WHERE instance_key = ?", key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("load checkpoint %s: %w", key, err)
	}

	return FromTicks(row.LastSyncTicks), true, nil
}

// Save implements Store.
func (s *SidecarStore) Save(_, _, key string, t time.Time) error {
	if s.db == nil {
		return fmt.Errorf("checkpoint store not open")
	}

	row := sidecarRow{
		InstanceKey:   key,
		LastSyncTicks: Ticks(t),
		UpdatedAt:     time.Now().UTC().Format(time.RFC3339),
	}

	query := `INSERT OR REPLACE INTO checkpoints (instance_key, last_sync_ticks, updated_at)
	          VALUES (:instance_key, :last_sync_ticks, :updated_at)`
	if _, err := s.db.NamedExec(query, row); err != nil {
		return fmt.Errorf("save checkpoint %s: %w", key, err)
	}

	slog.Debug("checkpoint saved", "key", key, "lastSync", t.UTC())
	return nil
}

// Clear implements Store.
func (s *SidecarStore) Clear(_, _, key string) error {
	if s.db == nil {
		return fmt.Errorf("checkpoint store not open")
	}
	if _, err := s.db.Exec("DELETE FROM checkpoints WHERE instance_key = ?", key); err != nil {
		return fmt.Errorf("clear checkpoint %s: %w", key, err)
	}
	return nil
}

// Count returns the number of pairings with a recorded checkpoint.
func (s *SidecarStore) Count() (int, error) {
	if s.db == nil {
		return 0, fmt.Errorf("checkpoint store not open")
	}
	var count int
	if err := s.db.Get(&count, "SELECT COUNT(*) FROM checkpoints"); err != nil {
		return 0, fmt.Errorf("count checkpoints: %w", err)
	}
	return count, nil
}
