package records

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
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the records database.
func Open(cfg *config.Config) (*SQLiteStore, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.DataDir, "records.db"))
}

// OpenPath opens a records database at an explicit location.
func OpenPath(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLiteStore{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
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

// FindShipmentByAWB returns the shipment with the given AWB, or nil when absent.
func (s *SQLiteStore) FindShipmentByAWB(ctx context.Context, awb string) (*Shipment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, awb, status, created_at, updated_at FROM shipments WHERE awb = ?`, awb)
	shipment, err := scanShipment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find shipment: %w", err)
	}
	return shipment, nil
}

// UpdateShipmentStatus persists a status transition for a shipment.
func (s *SQLiteStore) UpdateShipmentStatus(ctx context.Context, id int64, status ShipmentStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE shipments SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("update shipment status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update shipment status: no shipment with id %d", id)
	}
	return nil
}

// FindManifestByCode returns the manifest with the given code, or nil when absent.
func (s *SQLiteStore) FindManifestByCode(ctx context.Context, code string) (*Manifest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, code, origin_hub, dest_hub, status FROM manifests WHERE code = ?`, code)
	var m Manifest
	var status string
	err := row.Scan(&m.ID, &m.Code, &m.OriginHubID, &m.DestHubID, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find manifest: %w", err)
	}
	m.Status = ManifestStatus(status)
	return &m, nil
}

// IsShipmentInManifest reports whether the shipment is a member of the manifest.
func (s *SQLiteStore) IsShipmentInManifest(ctx context.Context, manifestID, shipmentID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM manifest_shipments WHERE manifest_id = ? AND shipment_id = ?`,
		manifestID, shipmentID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return count > 0, nil
}

// AddShipmentToManifest inserts a membership row. The UNIQUE constraint
// makes the insert idempotent so offline replay cannot double-insert.
func (s *SQLiteStore) AddShipmentToManifest(ctx context.Context, manifestID, shipmentID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO manifest_shipments (manifest_id, shipment_id, added_at) VALUES (?, ?, ?)`,
		manifestID, shipmentID, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("add membership: %w", err)
	}
	return nil
}

// CreateException records an operational anomaly.
func (s *SQLiteStore) CreateException(ctx context.Context, exc Exception) error {
	if exc.ID == "" {
		exc.ID = uuid.NewString()
	}
	if exc.CreatedAt.IsZero() {
		exc.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exceptions (id, shipment_id, cn_number, type, severity, description, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		exc.ID, exc.ShipmentID, exc.CNNumber, exc.Type, exc.Severity, exc.Description,
		exc.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("create exception: %w", err)
	}
	return nil
}

// CreateShipment inserts a new shipment. Used by seeding tools and tests.
func (s *SQLiteStore) CreateShipment(ctx context.Context, awb string, status ShipmentStatus) (*Shipment, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO shipments (awb, status, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		awb, string(status), now, now)
	if err != nil {
		return nil, fmt.Errorf("insert shipment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.findShipmentByID(ctx, id)
}

// CreateManifest inserts a new manifest. Used by seeding tools and tests.
func (s *SQLiteStore) CreateManifest(ctx context.Context, code, originHub, destHub string, status ManifestStatus) (*Manifest, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO manifests (code, origin_hub, dest_hub, status) VALUES (?, ?, ?, ?)`,
		code, originHub, destHub, string(status))
	if err != nil {
		return nil, fmt.Errorf("insert manifest: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, code, origin_hub, dest_hub, status FROM manifests WHERE id = ?`, id)
	var m Manifest
	var statusStr string
	if err := row.Scan(&m.ID, &m.Code, &m.OriginHubID, &m.DestHubID, &statusStr); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m.Status = ManifestStatus(statusStr)
	return &m, nil
}

// ManifestMembers returns the shipment IDs assigned to a manifest in insert order.
func (s *SQLiteStore) ManifestMembers(ctx context.Context, manifestID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT shipment_id FROM manifest_shipments WHERE manifest_id = ? ORDER BY rowid`, manifestID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ExceptionsForShipment returns recorded exceptions for a shipment, newest first.
func (s *SQLiteStore) ExceptionsForShipment(ctx context.Context, shipmentID int64) ([]Exception, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, shipment_id, cn_number, type, severity, description, created_at
         FROM exceptions WHERE shipment_id = ? ORDER BY created_at DESC`, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("list exceptions: %w", err)
	}
	defer rows.Close()

	var excs []Exception
	for rows.Next() {
		var exc Exception
		var createdRaw string
		if err := rows.Scan(&exc.ID, &exc.ShipmentID, &exc.CNNumber, &exc.Type, &exc.Severity, &exc.Description, &createdRaw); err != nil {
			return nil, err
		}
		if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
			exc.CreatedAt = created
		}
		excs = append(excs, exc)
	}
	return excs, rows.Err()
}

func (s *SQLiteStore) findShipmentByID(ctx context.Context, id int64) (*Shipment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, awb, status, created_at, updated_at FROM shipments WHERE id = ?`, id)
	shipment, err := scanShipment(row)
	if err != nil {
		return nil, fmt.Errorf("read shipment: %w", err)
	}
	return shipment, nil
}

func scanShipment(row *sql.Row) (*Shipment, error) {
	var (
		shipment   Shipment
		status     string
		createdRaw string
		updatedRaw string
	)
	if err := row.Scan(&shipment.ID, &shipment.AWB, &status, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	shipment.Status = ShipmentStatus(status)
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		shipment.CreatedAt = created
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		shipment.UpdatedAt = updated
	}
	return &shipment, nil
}
