// Package sqlite provides a StateStore backed by an embedded SQLite
// database, so job state genuinely survives process restarts between
// invocations.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/sanneemmanuel/turnstatic/internal/export"
)

// Store persists job state and download tickets in two tables keyed by
// job ID and token. Expiry is stored as a unix timestamp and enforced on
// read, mirroring the memory backend's lazy reclamation.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New opens (creating if needed) the database at path.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// The store is single-writer per job; one connection avoids
	// SQLITE_BUSY churn from the shared file.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS export_states (
			job_id     TEXT PRIMARY KEY,
			state      BLOB NOT NULL,
			expires_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS download_tickets (
			token        TEXT PRIMARY KEY,
			archive_path TEXT NOT NULL,
			expires_at   INTEGER NOT NULL
		);
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// PutState upserts the job's serialized state; last write wins.
func (s *Store) PutState(ctx context.Context, state export.State, ttl time.Duration) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO export_states (job_id, state, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET state = excluded.state, expires_at = excluded.expires_at
	`, state.JobID, payload, s.now().Add(ttl).Unix())
	if err != nil {
		return fmt.Errorf("put state: %w", err)
	}
	return nil
}

// GetState fetches and unmarshals the job's state, enforcing expiry.
func (s *Store) GetState(ctx context.Context, jobID string) (export.State, error) {
	var payload []byte
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT state, expires_at FROM export_states WHERE job_id = ?`, jobID,
	).Scan(&payload, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return export.State{}, export.ErrSessionExpired
	}
	if err != nil {
		return export.State{}, fmt.Errorf("get state: %w", err)
	}
	if s.now().Unix() > expiresAt {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM export_states WHERE job_id = ?`, jobID)
		return export.State{}, export.ErrSessionExpired
	}
	var state export.State
	if err := json.Unmarshal(payload, &state); err != nil {
		return export.State{}, fmt.Errorf("unmarshal state: %w", err)
	}
	if state.Errors == nil {
		state.Errors = map[string]string{}
	}
	return state, nil
}

// DeleteState removes the job's record; missing rows are not an error.
func (s *Store) DeleteState(ctx context.Context, jobID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM export_states WHERE job_id = ?`, jobID); err != nil {
		return fmt.Errorf("delete state: %w", err)
	}
	return nil
}

// PutTicket maps a download token to an archive path for ttl.
func (s *Store) PutTicket(ctx context.Context, token, archivePath string, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO download_tickets (token, archive_path, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(token) DO UPDATE SET archive_path = excluded.archive_path, expires_at = excluded.expires_at
	`, token, archivePath, s.now().Add(ttl).Unix())
	if err != nil {
		return fmt.Errorf("put ticket: %w", err)
	}
	return nil
}

// TakeTicket consumes a token inside one transaction so concurrent
// downloads cannot both succeed.
func (s *Store) TakeTicket(ctx context.Context, token string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var archivePath string
	var expiresAt int64
	err = tx.QueryRowContext(ctx,
		`SELECT archive_path, expires_at FROM download_tickets WHERE token = ?`, token,
	).Scan(&archivePath, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", export.ErrTicketNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get ticket: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM download_tickets WHERE token = ?`, token); err != nil {
		return "", fmt.Errorf("consume ticket: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if s.now().Unix() > expiresAt {
		return "", export.ErrTicketNotFound
	}
	return archivePath, nil
}
