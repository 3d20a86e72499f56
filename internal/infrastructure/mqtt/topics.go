package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is the root of every device health topic.
const DefaultTopicPrefix = "devicehealth"

// Topics provides builders for device health MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
// Hierarchy (prefix "devicehealth"):
//
//	devicehealth/devices/{device_id}/report   inbound health reports
//	devicehealth/devices/{device_id}/state    latest record (retained)
//	devicehealth/alerts/{device_id}           alert events
//	devicehealth/system/status                service online/offline (retained, LWT)
//
// The zero value uses DefaultTopicPrefix.
type Topics struct {
	Prefix string
}

// NewTopics returns topic builders rooted at prefix.
func NewTopics(prefix string) Topics {
	return Topics{Prefix: strings.TrimSuffix(prefix, "/")}
}

func (t Topics) root() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// DeviceReport returns the topic a device publishes its health report on.
//
// Example: devicehealth/devices/sensor-001/report
func (t Topics) DeviceReport(deviceID string) string {
	return fmt.Sprintf("%s/devices/%s/report", t.root(), deviceID)
}

// DeviceState returns the retained topic carrying a device's latest record.
//
// Example: devicehealth/devices/sensor-001/state
func (t Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/devices/%s/state", t.root(), deviceID)
}

// Alert returns the topic for alert events raised for a device.
//
// Example: devicehealth/alerts/sensor-001
func (t Topics) Alert(deviceID string) string {
	return fmt.Sprintf("%s/alerts/%s", t.root(), deviceID)
}

// SystemStatus returns the service status topic.
//
// Example: devicehealth/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.root())
}

// AllDeviceReports returns a pattern matching every device report.
//
// Pattern: devicehealth/devices/+/report
func (t Topics) AllDeviceReports() string {
	return fmt.Sprintf("%s/devices/+/report", t.root())
}

// AllAlerts returns a pattern matching every alert event.
//
// Pattern: devicehealth/alerts/+
func (t Topics) AllAlerts() string {
	return fmt.Sprintf("%s/alerts/+", t.root())
}

// ParseDeviceReport extracts the device_id from a report topic.
// It returns false if topic is not a report topic under this prefix.
func (t Topics) ParseDeviceReport(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.root()+"/devices/")
	if !ok {
		return "", false
	}
	deviceID, ok := strings.CutSuffix(rest, "/report")
	if !ok || deviceID == "" || strings.Contains(deviceID, "/") {
		return "", false
	}
	return deviceID, true
}
