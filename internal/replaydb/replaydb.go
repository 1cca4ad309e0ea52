package replaydb

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/kitti.replay/internal/version"
)

// migrationsFS holds the catalog schema, one numbered up/down pair per
// change.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUnknownSession is returned for session ids the catalog has never seen.
var ErrUnknownSession = errors.New("unknown replay session")

// ReplayDB is the run catalog: one row per replay session and one per
// emitted message.
type ReplayDB struct {
	*sql.DB
}

// Open opens (creating if needed) the catalog at path and migrates it to
// the latest schema. ":memory:" gives a private in-memory catalog.
func Open(path string) (*ReplayDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite serialises writers; a single connection also keeps ":memory:"
	// catalogs on one database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	rdb := &ReplayDB{db}
	if err := rdb.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	log.Println("initialized replay catalog schema")
	return rdb, nil
}

func (db *ReplayDB) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	// m is not closed: that would close the shared connection.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied migration version.
func (db *ReplayDB) SchemaVersion() (uint, error) {
	var v uint
	err := db.QueryRow(`SELECT version FROM schema_migrations LIMIT 1`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// migrateLogger implements migrate.Logger interface
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// SessionStats is the outcome of a replay as stored on its session row.
type SessionStats struct {
	Emitted        int
	Handled        int
	Discarded      int
	Sequences      int
	LoadErrors     int
	FirstTimestamp int64
	LastTimestamp  int64
	Elapsed        time.Duration
}

// Session is a stored replay session.
type Session struct {
	ID             string   `json:"session_id"`
	Root           string   `json:"root"`
	Speed          float64  `json:"speed"`
	AppVersion     string   `json:"app_version"`
	StartTimestamp float64  `json:"start_timestamp"`
	EndTimestamp   *float64 `json:"end_timestamp,omitempty"`
	Stats          SessionStats
}

// MessageRecord is one emitted message as indexed by the catalog.
type MessageRecord struct {
	ID          int64  `json:"message_id"`
	Kind        string `json:"kind"`
	Sequence    string `json:"sequence"`
	Index       int    `json:"sample_index"`
	TimestampMs int64  `json:"timestamp_ms"`
}

// StartSession creates a session row for a replay of root and returns its
// id.
func (db *ReplayDB) StartSession(root string, speed float64) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec(`
		INSERT INTO replay_sessions (session_id, root, speed, app_version)
		VALUES (?, ?, ?, ?)
	`, id, root, speed, version.String())
	if err != nil {
		return "", fmt.Errorf("failed to start replay session: %w", err)
	}
	return id, nil
}

// RecordMessage appends one emitted message to a session.
func (db *ReplayDB) RecordMessage(sessionID, kind, sequence string, index int, timestampMs int64) error {
	_, err := db.Exec(`
		INSERT INTO replay_messages (session_id, kind, sequence, sample_index, timestamp_ms)
		VALUES (?, ?, ?, ?, ?)
	`, sessionID, kind, sequence, index, timestampMs)
	if err != nil {
		return fmt.Errorf("failed to record message: %w", err)
	}
	return nil
}

// EndSession stamps the end time and stores the run statistics.
func (db *ReplayDB) EndSession(sessionID string, stats SessionStats) error {
	res, err := db.Exec(`
		UPDATE replay_sessions
		SET
			end_timestamp = UNIXEPOCH('subsec'),
			emitted = ?,
			handled = ?,
			discarded = ?,
			sequences = ?,
			load_errors = ?,
			first_timestamp = ?,
			last_timestamp = ?,
			elapsed_ms = ?
		WHERE session_id = ?
	`, stats.Emitted, stats.Handled, stats.Discarded, stats.Sequences, stats.LoadErrors,
		stats.FirstTimestamp, stats.LastTimestamp, stats.Elapsed.Milliseconds(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to end replay session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	return nil
}

// GetSession loads one session row.
func (db *ReplayDB) GetSession(sessionID string) (*Session, error) {
	var (
		s                   Session
		first, last, millis sql.NullInt64
	)
	err := db.QueryRow(`
		SELECT session_id, root, speed, app_version, start_timestamp, end_timestamp,
			emitted, handled, discarded, sequences, load_errors,
			first_timestamp, last_timestamp, elapsed_ms
		FROM replay_sessions
		WHERE session_id = ?
	`, sessionID).Scan(&s.ID, &s.Root, &s.Speed, &s.AppVersion, &s.StartTimestamp, &s.EndTimestamp,
		&s.Stats.Emitted, &s.Stats.Handled, &s.Stats.Discarded, &s.Stats.Sequences, &s.Stats.LoadErrors,
		&first, &last, &millis)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load replay session: %w", err)
	}
	s.Stats.FirstTimestamp = first.Int64
	s.Stats.LastTimestamp = last.Int64
	s.Stats.Elapsed = time.Duration(millis.Int64) * time.Millisecond
	return &s, nil
}

// SessionMessages returns a session's messages in emission order.
func (db *ReplayDB) SessionMessages(sessionID string) ([]MessageRecord, error) {
	rows, err := db.Query(`
		SELECT message_id, kind, sequence, sample_index, timestamp_ms
		FROM replay_messages
		WHERE session_id = ?
		ORDER BY message_id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query session messages: %w", err)
	}
	defer rows.Close()

	var out []MessageRecord
	for rows.Next() {
		var r MessageRecord
		if err := rows.Scan(&r.ID, &r.Kind, &r.Sequence, &r.Index, &r.TimestampMs); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
