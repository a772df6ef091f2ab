package offline

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"crossdock/internal/config"
	"crossdock/internal/scan"
	"crossdock/internal/token"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Store manages offline scan persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the offline queue database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.DataDir, "offline.db"))
}

// OpenPath opens an offline queue database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return tx.Commit()
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

// Enqueue appends a scan to the tail of the pending queue.
func (s *Store) Enqueue(ctx context.Context, awb string, mode scan.Mode, manifestCode string, source token.Source) (*QueuedScan, error) {
	if awb == "" {
		return nil, errors.New("awb is required")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO queued_scans (correlation_id, awb, mode, manifest_code, source, status, enqueued_at, attempt_count, last_error)
         VALUES (?, ?, ?, ?, ?, ?, ?, 0, '')`,
		uuid.NewString(), awb, string(mode), manifestCode, string(source), StatusPending,
		now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("enqueue scan: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a queued scan by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*QueuedScan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scanColumns+` FROM queued_scans WHERE id = ?`, id)
	entry, err := scanQueued(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get queued scan: %w", err)
	}
	return entry, nil
}

// NextPending returns the oldest pending scan, or nil when the queue is
// drained. Ordering follows insert order, so requeued entries land at the
// tail.
func (s *Store) NextPending(ctx context.Context) (*QueuedScan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+scanColumns+` FROM queued_scans WHERE status = ? ORDER BY id LIMIT 1`, StatusPending)
	entry, err := scanQueued(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pending: %w", err)
	}
	return entry, nil
}

// Remove deletes a queued scan after successful replay.
func (s *Store) Remove(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM queued_scans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove queued scan: %w", err)
	}
	return nil
}

// Requeue moves an entry to the tail with an incremented attempt counter.
// The original enqueue time and correlation ID survive the move.
func (s *Store) Requeue(ctx context.Context, entry *QueuedScan, lastError string) (*QueuedScan, error) {
	if entry == nil {
		return nil, errors.New("entry is nil")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin requeue tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM queued_scans WHERE id = ?`, entry.ID); err != nil {
		return nil, fmt.Errorf("drop requeued entry: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO queued_scans (correlation_id, awb, mode, manifest_code, source, status, enqueued_at, attempt_count, last_error)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.CorrelationID, entry.AWB, string(entry.Mode), entry.ManifestCode, string(entry.Source),
		StatusPending, entry.EnqueuedAt.UTC().Format(time.RFC3339Nano), entry.AttemptCount+1, lastError)
	if err != nil {
		return nil, fmt.Errorf("reinsert requeued entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit requeue: %w", err)
	}
	return s.GetByID(ctx, id)
}

// MarkFailed moves an entry to the failed set with its final attempt count.
func (s *Store) MarkFailed(ctx context.Context, entry *QueuedScan, lastError string) error {
	if entry == nil {
		return errors.New("entry is nil")
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE queued_scans SET status = ?, attempt_count = ?, last_error = ? WHERE id = ?`,
		StatusFailed, entry.AttemptCount+1, lastError, entry.ID)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// List returns queued scans filtered by status (or all when none given),
// in queue order.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*QueuedScan, error) {
	baseQuery := `SELECT ` + scanColumns + ` FROM queued_scans`
	orderClause := ` ORDER BY id`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list queued scans: %w", err)
	}
	defer rows.Close()

	var entries []*QueuedScan
	for rows.Next() {
		entry, err := scanQueued(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// RetryFailed moves failed entries back to pending with a fresh attempt
// counter. Empty ids retries everything in the failed set.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		res, err := s.db.ExecContext(ctx,
			`UPDATE queued_scans SET status = ?, attempt_count = 0, last_error = '' WHERE status = ?`,
			StatusPending, StatusFailed)
		if err != nil {
			return 0, fmt.Errorf("retry failed scans: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, StatusPending, StatusFailed)
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE queued_scans SET status = ?, attempt_count = 0, last_error = '' WHERE status = ? AND id IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected scans: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed entries.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM queued_scans WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all entries.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM queued_scans`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns pending/failed counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM queued_scans GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, err
		}
		switch status {
		case StatusPending:
			stats.Pending = count
		case StatusFailed:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}

const scanColumns = "id, correlation_id, awb, mode, manifest_code, source, status, enqueued_at, attempt_count, last_error"

func scanQueued(scanner interface{ Scan(dest ...any) error }) (*QueuedScan, error) {
	var (
		entry       QueuedScan
		modeStr     string
		sourceStr   string
		statusStr   string
		enqueuedRaw string
	)
	if err := scanner.Scan(
		&entry.ID,
		&entry.CorrelationID,
		&entry.AWB,
		&modeStr,
		&entry.ManifestCode,
		&sourceStr,
		&statusStr,
		&enqueuedRaw,
		&entry.AttemptCount,
		&entry.LastError,
	); err != nil {
		return nil, err
	}
	entry.Mode = scan.Mode(modeStr)
	entry.Source = token.Source(sourceStr)
	entry.Status = Status(statusStr)
	if enqueued, err := time.Parse(time.RFC3339Nano, enqueuedRaw); err == nil {
		entry.EnqueuedAt = enqueued
	}
	return &entry, nil
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
