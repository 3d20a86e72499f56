package device

import "time"

// Status is the self-reported operational state of a device.
type Status string

// Status values.
const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusError   Status = "error"
)

// AllStatuses returns every valid Status in display order.
func AllStatuses() []Status {
	return []Status{StatusOnline, StatusOffline, StatusError}
}

// Record is the latest known health state of one device.
// This matches the devices table in migrations/20261014_120000_initial_schema.up.sql.
//
// A Record is fully replaced by each accepted report: optional fields that
// a report omits fall back to their defaults, never to the stored value.
type Record struct {
	// ID is a surrogate key assigned on first insert. It never changes.
	ID string `json:"id"`

	DeviceID  string  `json:"device_id"`
	Status    Status  `json:"status"`
	Battery   float64 `json:"battery"`
	Sensor    float64 `json:"sensor"`
	ErrorRate float64 `json:"error_rate"`
	LastError *string `json:"last_error"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LastErrorString returns LastError or "" when absent.
func (r Record) LastErrorString() string {
	if r.LastError == nil {
		return ""
	}
	return *r.LastError
}

// Report is the payload a device agent submits.
//
// Numeric fields are pointers so a missing value can be told apart from
// zero. Status is accepted in any letter case.
type Report struct {
	DeviceID  string   `json:"device_id"`
	Status    string   `json:"status"`
	Battery   *float64 `json:"battery"`
	Sensor    *float64 `json:"sensor"`
	ErrorRate *float64 `json:"error_rate,omitempty"`
	LastError *string  `json:"last_error,omitempty"`
}
