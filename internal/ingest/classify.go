package ingest

import (
	"github.com/nerrad567/devicehealth/internal/alert"
	"github.com/nerrad567/devicehealth/internal/device"
)

// LowBatteryThreshold is the battery level (percent) below which an online
// device raises a critically-low alert. A reading equal to it does not.
const LowBatteryThreshold = 20.0

// Classify returns the single issue rec raises, in priority order:
// error status, then offline status, then low battery. It returns false
// when the record raises nothing.
func Classify(rec device.Record) (alert.Issue, bool) {
	switch {
	case rec.Status == device.StatusError:
		return alert.IssueErrorState, true
	case rec.Status == device.StatusOffline:
		return alert.IssueDeviceOffline, true
	case rec.Battery < LowBatteryThreshold:
		return alert.IssueBatteryCritical, true
	default:
		return "", false
	}
}
