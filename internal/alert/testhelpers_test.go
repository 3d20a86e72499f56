package alert

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/devicehealth/internal/device"
)

func testEvent(deviceID string, issue Issue) Event {
	lastError := "SENSOR_FAIL"
	return NewEvent(issue, device.Record{
		ID:        "rec-1",
		DeviceID:  deviceID,
		Status:    device.StatusError,
		Battery:   80.7,
		Sensor:    21.9,
		ErrorRate: 0.45,
		LastError: &lastError,
	}, time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC))
}

// recordingNotifier records delivered events and can be made to fail or block.
type recordingNotifier struct {
	name  string
	err   error
	block chan struct{}

	mu     sync.Mutex
	events []Event
	seen   chan Event
}

func newRecordingNotifier(name string) *recordingNotifier {
	return &recordingNotifier{name: name, seen: make(chan Event, 100)}
}

func (n *recordingNotifier) Name() string { return n.name }

func (n *recordingNotifier) Notify(ctx context.Context, e Event) error {
	if n.block != nil {
		select {
		case <-n.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	n.mu.Lock()
	n.events = append(n.events, e)
	n.mu.Unlock()
	n.seen <- e
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}
