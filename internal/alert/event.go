package alert

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/devicehealth/internal/device"
)

// ErrNotificationFailed wraps every error returned by a Notifier.
var ErrNotificationFailed = errors.New("alert: notification failed")

// Issue names the condition that raised an alert.
type Issue string

// Issues in classification priority order.
const (
	IssueErrorState      Issue = "Error State"
	IssueDeviceOffline   Issue = "Device Offline"
	IssueBatteryCritical Issue = "Battery Critically Low"
)

// Event is one alert raised by one accepted report.
// Record is a copy of the stored record after the upsert.
type Event struct {
	ID       string        `json:"id"`
	DeviceID string        `json:"device_id"`
	Issue    Issue         `json:"issue"`
	Record   device.Record `json:"record"`
	RaisedAt time.Time     `json:"raised_at"`
}

// NewEvent builds an Event for rec.
func NewEvent(issue Issue, rec device.Record, raisedAt time.Time) Event {
	return Event{
		ID:       uuid.NewString(),
		DeviceID: rec.DeviceID,
		Issue:    issue,
		Record:   rec,
		RaisedAt: raisedAt.UTC(),
	}
}
