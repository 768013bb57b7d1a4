// Package auditstore archives gateway audit entries in SQLite so they
// survive a restart. The in-memory ring in the gateway stays authoritative
// for stats and export.
package auditstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/computerscienceiscool/code-animator/pkg/gateway"
	_ "github.com/mattn/go-sqlite3"
)

// Store is a SQLite-backed gateway.AuditSink
type Store struct {
	db        *sql.DB
	sessionID string
}

// StoredEntry is an archived audit entry
type StoredEntry struct {
	ID        int64
	SessionID string
	gateway.AuditEntry
}

// Open opens (and creates if needed) the archive at dbPath
func Open(dbPath, sessionID string) (*Store, error) {
	// Create directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, sessionID: sessionID}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}
	return s, nil
}

// initialize sets up database tables
func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		type TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		uptime_ms INTEGER NOT NULL,
		data TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_audit_session ON audit_entries(session_id);
	CREATE INDEX IF NOT EXISTS idx_audit_type ON audit_entries(type);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record archives one entry
func (s *Store) Record(entry gateway.AuditEntry) error {
	data, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("failed to encode audit data: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO audit_entries (session_id, type, timestamp, uptime_ms, data)
		VALUES (?, ?, ?, ?, ?)
	`, s.sessionID, entry.Type, entry.Timestamp, entry.Uptime, string(data))
	return err
}

// Recent returns up to limit entries, newest first. An empty sessionID
// returns entries from every session.
func (s *Store) Recent(sessionID string, limit int) ([]StoredEntry, error) {
	query := `
		SELECT id, session_id, type, timestamp, uptime_ms, data
		FROM audit_entries
		WHERE (? = '' OR session_id = ?)
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := s.db.Query(query, sessionID, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []StoredEntry
	for rows.Next() {
		var e StoredEntry
		var data sql.NullString
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Type, &e.Timestamp, &e.Uptime, &data); err != nil {
			return nil, err
		}
		if data.Valid && data.String != "" {
			if err := json.Unmarshal([]byte(data.String), &e.Data); err != nil {
				return nil, fmt.Errorf("failed to decode audit data for entry %d: %w", e.ID, err)
			}
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Counts returns the number of archived entries per operation type
func (s *Store) Counts() (map[string]int64, error) {
	rows, err := s.db.Query("SELECT type, COUNT(*) FROM audit_entries GROUP BY type")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var typ string
		var n int64
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		counts[typ] = n
	}
	return counts, rows.Err()
}

// Close closes the database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
