package ingest

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/devicehealth/internal/alert"
	"github.com/nerrad567/devicehealth/internal/device"
	"github.com/nerrad567/devicehealth/internal/infrastructure/database"
	_ "github.com/nerrad567/devicehealth/migrations"
)

func ptr[T any](v T) *T { return &v }

func setupStore(t *testing.T) *device.SQLStore {
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
	return device.NewSQLStore(db.DB, time.Second)
}

// recordingDispatcher captures dispatched events.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []alert.Event
	reject bool
}

func (r *recordingDispatcher) Dispatch(e alert.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reject {
		return false
	}
	r.events = append(r.events, e)
	return true
}

func (r *recordingDispatcher) Events() []alert.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]alert.Event(nil), r.events...)
}

func report(id, status string, battery, sensor float64) device.Report {
	return device.Report{
		DeviceID: id,
		Status:   status,
		Battery:  ptr(battery),
		Sensor:   ptr(sensor),
	}
}
