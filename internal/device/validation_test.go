package device

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func ptr[T any](v T) *T { return &v }

func validReport() Report {
	return Report{
		DeviceID: "sensor-001",
		Status:   "online",
		Battery:  ptr(95.2),
		Sensor:   ptr(22.8),
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		input   string
		want    Status
		wantErr bool
	}{
		{"online", StatusOnline, false},
		{"OFFLINE", StatusOffline, false},
		{"  Error ", StatusError, false},
		{"degraded", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseStatus(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStatus(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseStatus(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateReport(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Report)
		wantField string // empty means valid
	}{
		{
			name:   "valid minimal report",
			mutate: func(*Report) {},
		},
		{
			name:   "battery at lower bound",
			mutate: func(r *Report) { r.Battery = ptr(0.0) },
		},
		{
			name:   "battery at upper bound",
			mutate: func(r *Report) { r.Battery = ptr(100.0) },
		},
		{
			name:   "negative sensor is allowed",
			mutate: func(r *Report) { r.Sensor = ptr(-12.5) },
		},
		{
			name:   "error rate at upper bound",
			mutate: func(r *Report) { r.ErrorRate = ptr(1.0) },
		},
		{
			name:      "missing device id",
			mutate:    func(r *Report) { r.DeviceID = "" },
			wantField: "device_id",
		},
		{
			name:      "whitespace device id",
			mutate:    func(r *Report) { r.DeviceID = "   " },
			wantField: "device_id",
		},
		{
			name:      "device id too long",
			mutate:    func(r *Report) { r.DeviceID = strings.Repeat("x", maxDeviceIDLength+1) },
			wantField: "device_id",
		},
		{
			name:      "device id with slash",
			mutate:    func(r *Report) { r.DeviceID = "a/b" },
			wantField: "device_id",
		},
		{
			name:      "device id with topic wildcard",
			mutate:    func(r *Report) { r.DeviceID = "sensor+1" },
			wantField: "device_id",
		},
		{
			name:      "device id with multi-level wildcard",
			mutate:    func(r *Report) { r.DeviceID = "sensor#" },
			wantField: "device_id",
		},
		{
			name:      "device id with control character",
			mutate:    func(r *Report) { r.DeviceID = "sensor\x00" },
			wantField: "device_id",
		},
		{
			name:   "device id with dots and percent",
			mutate: func(r *Report) { r.DeviceID = "export.csv%20" },
		},
		{
			name:      "missing status",
			mutate:    func(r *Report) { r.Status = "" },
			wantField: "status",
		},
		{
			name:      "unknown status",
			mutate:    func(r *Report) { r.Status = "sleeping" },
			wantField: "status",
		},
		{
			name:      "missing battery",
			mutate:    func(r *Report) { r.Battery = nil },
			wantField: "battery",
		},
		{
			name:      "battery above range",
			mutate:    func(r *Report) { r.Battery = ptr(100.1) },
			wantField: "battery",
		},
		{
			name:      "battery below range",
			mutate:    func(r *Report) { r.Battery = ptr(-0.1) },
			wantField: "battery",
		},
		{
			name:      "battery NaN",
			mutate:    func(r *Report) { r.Battery = ptr(math.NaN()) },
			wantField: "battery",
		},
		{
			name:      "missing sensor",
			mutate:    func(r *Report) { r.Sensor = nil },
			wantField: "sensor",
		},
		{
			name:      "sensor infinite",
			mutate:    func(r *Report) { r.Sensor = ptr(math.Inf(1)) },
			wantField: "sensor",
		},
		{
			name:      "error rate above range",
			mutate:    func(r *Report) { r.ErrorRate = ptr(1.5) },
			wantField: "error_rate",
		},
		{
			name:      "last error too long",
			mutate:    func(r *Report) { r.LastError = ptr(strings.Repeat("e", maxLastErrorLength+1)) },
			wantField: "last_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validReport()
			tt.mutate(&r)

			_, err := ValidateReport(r)
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("ValidateReport() = %v, want nil", err)
				}
				return
			}

			if !errors.Is(err, ErrInvalidReport) {
				t.Fatalf("ValidateReport() = %v, want ErrInvalidReport", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("ValidateReport() error is %T, want *ValidationError", err)
			}
			if len(verr.Fields) != 1 || verr.Fields[0].Field != tt.wantField {
				t.Errorf("ValidateReport() fields = %+v, want only %q", verr.Fields, tt.wantField)
			}
		})
	}
}

func TestValidateReport_ListsEveryField(t *testing.T) {
	_, err := ValidateReport(Report{Status: "bogus", Battery: ptr(150.0)})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("ValidateReport() error = %v, want *ValidationError", err)
	}

	got := make(map[string]bool)
	for _, f := range verr.Fields {
		got[f.Field] = true
	}
	for _, want := range []string{"device_id", "status", "battery", "sensor"} {
		if !got[want] {
			t.Errorf("missing problem for %q in %v", want, err)
		}
	}
}

func TestValidateReport_Normalises(t *testing.T) {
	r := Report{
		DeviceID:  "  sensor-003 ",
		Status:    "ERROR",
		Battery:   ptr(80.7),
		Sensor:    ptr(21.9),
		ErrorRate: ptr(0.45),
		LastError: ptr(" SENSOR_FAIL "),
	}

	rec, err := ValidateReport(r)
	if err != nil {
		t.Fatalf("ValidateReport() error = %v", err)
	}
	if rec.DeviceID != "sensor-003" {
		t.Errorf("DeviceID = %q, want %q", rec.DeviceID, "sensor-003")
	}
	if rec.Status != StatusError {
		t.Errorf("Status = %q, want %q", rec.Status, StatusError)
	}
	if rec.Battery != 80.7 || rec.Sensor != 21.9 || rec.ErrorRate != 0.45 {
		t.Errorf("numbers = %v/%v/%v, want 80.7/21.9/0.45", rec.Battery, rec.Sensor, rec.ErrorRate)
	}
	if rec.LastErrorString() != "SENSOR_FAIL" {
		t.Errorf("LastError = %q, want %q", rec.LastErrorString(), "SENSOR_FAIL")
	}
}

func TestValidateReport_Defaults(t *testing.T) {
	r := validReport()
	r.LastError = ptr("   ")

	rec, err := ValidateReport(r)
	if err != nil {
		t.Fatalf("ValidateReport() error = %v", err)
	}
	if rec.ErrorRate != 0 {
		t.Errorf("ErrorRate = %v, want 0 when omitted", rec.ErrorRate)
	}
	if rec.LastError != nil {
		t.Errorf("LastError = %q, want nil for blank input", *rec.LastError)
	}
	if rec.ID != "" || !rec.CreatedAt.IsZero() {
		t.Error("store-managed fields should be left zero")
	}
}
