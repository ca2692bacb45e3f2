package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/panelworks/sicp-core/internal/infrastructure/database"
	"github.com/panelworks/sicp-core/internal/sicp"
)

const (
	defaultRecentLimit = 50

	// recordTimeout bounds the insert performed by the state listener,
	// which runs without a caller-supplied context.
	recordTimeout = 5 * time.Second
)

// Logger is the minimal logging interface the store needs. It matches the
// signatures of the infrastructure logger so wiring is a one-liner.
type Logger interface {
	Error(msg string, keysAndValues ...any)
}

// Entry is a single recorded panel state change.
type Entry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// PanelID is the identifier of the panel the snapshot belongs to.
	PanelID string `json:"panel_id"`

	// State is the full state snapshot at the time of the change.
	State sicp.DeviceState `json:"state"`

	// CreatedAt is the timestamp of the change (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// Store persists panel state changes to SQLite.
//
// All methods are safe for concurrent use; the underlying connection pool
// is limited to a single connection, so writes serialize in the driver.
type Store struct {
	db    *database.DB
	limit int

	loggerMu sync.RWMutex
	logger   Logger
}

// New creates a history store on top of an open database connection.
// historyLimit caps how many entries Recent may return in one call; values
// below 1 fall back to the default.
func New(db *database.DB, historyLimit int) *Store {
	if historyLimit < 1 {
		historyLimit = defaultRecentLimit
	}
	return &Store{db: db, limit: historyLimit}
}

// SetLogger installs a logger for errors raised inside the state listener.
// Without one, listener errors are dropped.
func (s *Store) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

// Init creates the history table and its lookup index if they do not
// already exist. It must be called once before Record or Recent.
func (s *Store) Init(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS panel_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			panel_id TEXT NOT NULL,
			state TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		);
		CREATE INDEX IF NOT EXISTS idx_panel_history_panel_created
			ON panel_history (panel_id, created_at DESC);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating panel_history schema: %w", err)
	}
	return nil
}

// Record inserts a state snapshot for a panel.
func (s *Store) Record(ctx context.Context, panelID string, state sicp.DeviceState) error {
	if panelID == "" {
		return fmt.Errorf("panel id is required")
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO panel_history (panel_id, state) VALUES (?, ?)",
		panelID,
		string(stateJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting panel history: %w", err)
	}

	return nil
}

// Recent returns recent history entries for a panel, ordered newest first.
// A limit below 1 uses the default; limits above the configured cap are
// clamped.
func (s *Store) Recent(ctx context.Context, panelID string, limit int) ([]Entry, error) {
	if panelID == "" {
		return nil, fmt.Errorf("panel id is required")
	}
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > s.limit {
		limit = s.limit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, panel_id, state, created_at
		 FROM panel_history
		 WHERE panel_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		panelID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying panel history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var entry Entry
		var stateJSON string
		var createdAt string

		if err := rows.Scan(&entry.ID, &entry.PanelID, &stateJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning panel history: %w", err)
		}

		if err := json.Unmarshal([]byte(stateJSON), &entry.State); err != nil {
			return nil, fmt.Errorf("unmarshalling state: %w", err)
		}

		timestamp, err := parseTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = timestamp

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating panel history: %w", err)
	}

	return entries, nil
}

// Prune deletes entries older than the given duration and reports how many
// rows were removed.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format("2006-01-02T15:04:05Z")
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM panel_history WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting panel history: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

// Listener adapts the store to the device manager's listener signature.
// Insert failures are logged, never propagated; a flaky disk must not
// disturb panel control.
func (s *Store) Listener() sicp.StateListener {
	return func(deviceID string, state sicp.DeviceState) {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()

		if err := s.Record(ctx, deviceID, state); err != nil {
			s.loggerMu.RLock()
			logger := s.logger
			s.loggerMu.RUnlock()
			if logger != nil {
				logger.Error("recording panel history", "panel_id", deviceID, "error", err)
			}
		}
	}
}

// parseTimestamp parses a timestamp stored in SQLite.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}

	timestamp, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return timestamp, nil
	}

	fallback, fallbackErr := time.Parse("2006-01-02T15:04:05Z", value)
	if fallbackErr == nil {
		return fallback, nil
	}

	return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
}
