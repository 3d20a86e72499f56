package device

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
)

func TestWriteCSV(t *testing.T) {
	records := fixtureRecords()
	records[2].ErrorRate = 0.45
	records[2].LastError = ptr("SENSOR_FAIL")

	var buf bytes.Buffer
	if err := WriteCSV(&buf, records); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(rows) != len(records)+1 {
		t.Fatalf("got %d rows, want header + %d", len(rows), len(records))
	}
	if got := strings.Join(rows[0], ","); got != "device_id,status,battery,sensor,error_rate,last_error" {
		t.Errorf("header = %q", got)
	}

	want := []string{"sensor-003", "error", "80.7", "22.5", "0.45", "SENSOR_FAIL"}
	for i, cell := range rows[3] {
		if cell != want[i] {
			t.Errorf("row 3 column %s = %q, want %q", CSVHeader[i], cell, want[i])
		}
	}
	if rows[1][5] != "" {
		t.Errorf("absent last_error should be empty, got %q", rows[1][5])
	}
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != strings.Join(CSVHeader, ",") {
		t.Errorf("WriteCSV(nil) = %q, want header only", got)
	}
}

func TestWriteCSV_QuotesSpecialCharacters(t *testing.T) {
	rec := testRecord("sensor,odd", StatusOnline, 50)
	rec.LastError = ptr(`said "hi"`)

	var buf bytes.Buffer
	if err := WriteCSV(&buf, []Record{rec}); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if rows[1][0] != "sensor,odd" || rows[1][5] != `said "hi"` {
		t.Errorf("row = %v, want quoted values preserved", rows[1])
	}
}
