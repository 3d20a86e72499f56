package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// defaultQueryTimeout bounds each store operation when none is configured.
const defaultQueryTimeout = 5 * time.Second

// Logger defines the logging interface used by the store and query service.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store defines the interface for device record persistence.
// This abstraction allows for different implementations (SQL, mock, etc.)
// and enables unit testing without database dependencies.
type Store interface {
	// Upsert inserts the record if device_id is new, otherwise fully
	// replaces the stored fields. It returns the stored record including
	// the store-managed id and timestamps.
	Upsert(ctx context.Context, rec Record) (Record, error)

	// Get retrieves the record for a device_id.
	// Returns ErrDeviceNotFound if the device has never reported.
	Get(ctx context.Context, deviceID string) (Record, error)

	// List retrieves all records ordered by device_id.
	List(ctx context.Context) ([]Record, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
}

// SQLStore implements Store using database/sql.
//
// Queries use $N placeholders and portable SQL so the same statements run
// on SQLite and PostgreSQL. Upserts for one device_id are serialised by an
// in-process keyed lock; upserts for different device_ids proceed
// independently at this layer.
type SQLStore struct {
	db      *sql.DB
	timeout time.Duration
	locks   *keyedMutex
	logger  Logger
	now     func() time.Time
}

// NewSQLStore creates a store over an open, migrated database.
// A non-positive timeout selects the default of 5 seconds.
func NewSQLStore(db *sql.DB, timeout time.Duration) *SQLStore {
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &SQLStore{
		db:      db,
		timeout: timeout,
		locks:   newKeyedMutex(),
		logger:  noopLogger{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger sets the logger for the store.
func (s *SQLStore) SetLogger(logger Logger) {
	s.logger = logger
}

const upsertQuery = `
	INSERT INTO devices (
		id, device_id, status, battery, sensor, error_rate, last_error,
		created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (device_id) DO UPDATE SET
		status = excluded.status,
		battery = excluded.battery,
		sensor = excluded.sensor,
		error_rate = excluded.error_rate,
		last_error = excluded.last_error,
		updated_at = excluded.updated_at
	RETURNING id, created_at, updated_at`

const selectColumns = `
	SELECT id, device_id, status, battery, sensor, error_rate, last_error,
		created_at, updated_at
	FROM devices`

// Upsert stores rec as the latest state of rec.DeviceID.
// The id and created_at of an existing row are preserved.
func (s *SQLStore) Upsert(ctx context.Context, rec Record) (Record, error) {
	if rec.DeviceID == "" {
		return Record{}, &ValidationError{Fields: []FieldError{{Field: "device_id", Message: "is required"}}}
	}

	unlock := s.locks.Lock(rec.DeviceID)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now()
	var lastError sql.NullString
	if rec.LastError != nil {
		lastError = sql.NullString{String: *rec.LastError, Valid: true}
	}

	var id, createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, upsertQuery,
		uuid.NewString(),
		rec.DeviceID,
		string(rec.Status),
		rec.Battery,
		rec.Sensor,
		rec.ErrorRate,
		lastError,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	).Scan(&id, &createdAt, &updatedAt)
	if err != nil {
		return Record{}, fmt.Errorf("%w: upserting device %s: %w", ErrStorage, rec.DeviceID, err)
	}

	rec.ID = id
	if rec.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return Record{}, fmt.Errorf("%w: parsing created_at: %w", ErrStorage, err)
	}
	if rec.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return Record{}, fmt.Errorf("%w: parsing updated_at: %w", ErrStorage, err)
	}

	s.logger.Debug("device record upserted",
		"device_id", rec.DeviceID,
		"status", rec.Status,
		"created", rec.CreatedAt.Equal(rec.UpdatedAt),
	)
	return rec, nil
}

// Get retrieves the record for a device_id.
func (s *SQLStore) Get(ctx context.Context, deviceID string) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE device_id = $1`, deviceID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrDeviceNotFound
		}
		return Record{}, fmt.Errorf("%w: querying device %s: %w", ErrStorage, deviceID, err)
	}
	return rec, nil
}

// List retrieves all records in a single query, ordered by device_id.
func (s *SQLStore) List(ctx context.Context) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY device_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: querying devices: %w", ErrStorage, err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning device row: %w", ErrStorage, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating devices: %w", ErrStorage, err)
	}
	return records, nil
}

// Count returns the number of stored records.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM devices`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: counting devices: %w", ErrStorage, err)
	}
	return n, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord scans a row or rows result into a Record.
func scanRecord(scanner rowScanner) (Record, error) {
	var rec Record
	var status string
	var lastError sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&rec.ID,
		&rec.DeviceID,
		&status,
		&rec.Battery,
		&rec.Sensor,
		&rec.ErrorRate,
		&lastError,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return Record{}, err
	}

	rec.Status = Status(status)
	if lastError.Valid {
		rec.LastError = &lastError.String
	}

	if rec.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return Record{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if rec.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return Record{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return rec, nil
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
