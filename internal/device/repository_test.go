package device

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/devicehealth/internal/infrastructure/database"
	_ "github.com/nerrad567/devicehealth/migrations"
)

// setupTestStore opens a temporary SQLite database with the real schema.
func setupTestStore(t *testing.T) (*SQLStore, *database.DB) {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "devices.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // Test cleanup
	})

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return NewSQLStore(db.DB, time.Second), db
}

func testRecord(id string, status Status, battery float64) Record {
	return Record{
		DeviceID: id,
		Status:   status,
		Battery:  battery,
		Sensor:   22.5,
	}
}

func TestSQLStore_UpsertNewDevice(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	saved, err := store.Upsert(ctx, testRecord("sensor-001", StatusOnline, 95.2))
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if saved.ID == "" {
		t.Error("Upsert() should assign an id")
	}
	if saved.CreatedAt.IsZero() || saved.UpdatedAt.IsZero() {
		t.Error("Upsert() should set timestamps")
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}

	got, err := store.Get(ctx, "sensor-001")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != saved.ID || got.Battery != 95.2 || got.Status != StatusOnline {
		t.Errorf("Get() = %+v, want stored record %+v", got, saved)
	}
}

func TestSQLStore_UpsertExistingDevice(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	first, err := store.Upsert(ctx, testRecord("sensor-001", StatusOnline, 95.2))
	if err != nil {
		t.Fatalf("first Upsert() error = %v", err)
	}

	second, err := store.Upsert(ctx, testRecord("sensor-001", StatusOffline, 40))
	if err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("id changed on update: %q -> %q", first.ID, second.ID)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("created_at changed on update: %v -> %v", first.CreatedAt, second.CreatedAt)
	}
	if second.UpdatedAt.Before(first.UpdatedAt) {
		t.Errorf("updated_at went backwards: %v -> %v", first.UpdatedAt, second.UpdatedAt)
	}

	count, _ := store.Count(ctx) //nolint:errcheck // checked via value
	if count != 1 {
		t.Errorf("Count() = %d, want 1 after repeat upsert", count)
	}

	got, err := store.Get(ctx, "sensor-001")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusOffline || got.Battery != 40 {
		t.Errorf("Get() = %+v, want latest values", got)
	}
}

func TestSQLStore_UpsertReplacesOptionalFields(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	withError := testRecord("sensor-004", StatusOffline, 56.4)
	withError.ErrorRate = 0.1
	withError.LastError = ptr("NO_RESPONSE")
	if _, err := store.Upsert(ctx, withError); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if _, err := store.Upsert(ctx, testRecord("sensor-004", StatusOnline, 56.4)); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := store.Get(ctx, "sensor-004")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ErrorRate != 0 {
		t.Errorf("ErrorRate = %v, want default 0 after replacement", got.ErrorRate)
	}
	if got.LastError != nil {
		t.Errorf("LastError = %q, want nil after replacement", *got.LastError)
	}
}

func TestSQLStore_RoundTrip(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	rec := Record{
		DeviceID:  "sensor-003",
		Status:    StatusError,
		Battery:   80.7,
		Sensor:    21.9,
		ErrorRate: 0.45,
		LastError: ptr("SENSOR_FAIL"),
	}
	if _, err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := store.Get(ctx, "sensor-003")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusError || got.Battery != 80.7 || got.Sensor != 21.9 ||
		got.ErrorRate != 0.45 || got.LastErrorString() != "SENSOR_FAIL" {
		t.Errorf("Get() = %+v, want exact round trip of %+v", got, rec)
	}
}

func TestSQLStore_GetNotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.Get(context.Background(), "never-reported")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Get() error = %v, want ErrDeviceNotFound", err)
	}
	if errors.Is(err, ErrStorage) {
		t.Error("not found must not be reported as a storage failure")
	}
}

func TestSQLStore_ListOrdered(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"sensor-003", "sensor-001", "sensor-002"} {
		if _, err := store.Upsert(ctx, testRecord(id, StatusOnline, 50)); err != nil {
			t.Fatalf("Upsert(%s) error = %v", id, err)
		}
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("List() returned %d records, want 3", len(records))
	}
	for i, want := range []string{"sensor-001", "sensor-002", "sensor-003"} {
		if records[i].DeviceID != want {
			t.Errorf("records[%d].DeviceID = %q, want %q", i, records[i].DeviceID, want)
		}
	}
}

func TestSQLStore_ListEmpty(t *testing.T) {
	store, _ := setupTestStore(t)

	records, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("List() = %v, want empty non-nil slice", records)
	}
}

func TestSQLStore_StorageFailure(t *testing.T) {
	store, db := setupTestStore(t)
	db.Close() //nolint:errcheck // Forcing failure

	_, err := store.Upsert(context.Background(), testRecord("sensor-001", StatusOnline, 90))
	if !errors.Is(err, ErrStorage) {
		t.Errorf("Upsert() error = %v, want ErrStorage", err)
	}
	if _, err := store.List(context.Background()); !errors.Is(err, ErrStorage) {
		t.Errorf("List() error = %v, want ErrStorage", err)
	}
}

func TestSQLStore_UpsertRequiresDeviceID(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.Upsert(context.Background(), Record{Status: StatusOnline})
	if !errors.Is(err, ErrInvalidReport) {
		t.Errorf("Upsert() error = %v, want ErrInvalidReport", err)
	}
}

func TestSQLStore_ConcurrentSameKey(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := store.Upsert(ctx, testRecord("sensor-001", StatusOnline, float64(i))); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Upsert() error = %v", err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want exactly 1 record for one device_id", count)
	}
	if n := store.locks.size(); n != 0 {
		t.Errorf("keyed locks left behind: %d", n)
	}
}

func TestSQLStore_ConcurrentDistinctKeys(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	const devices = 10
	var wg sync.WaitGroup
	for i := 0; i < devices; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("sensor-%03d", i)
			if _, err := store.Upsert(ctx, testRecord(id, StatusOnline, 50)); err != nil {
				t.Errorf("Upsert(%s) error = %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != devices {
		t.Errorf("Count() = %d, want %d", count, devices)
	}
}
