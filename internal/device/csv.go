package device

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// CSVHeader is the header row of a CSV export, in Record field order.
var CSVHeader = []string{"device_id", "status", "battery", "sensor", "error_rate", "last_error"}

// WriteCSV writes records as CSV: a header row then one row per record.
// An absent last_error is written as an empty cell.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			rec.DeviceID,
			string(rec.Status),
			formatFloat(rec.Battery),
			formatFloat(rec.Sensor),
			formatFloat(rec.ErrorRate),
			rec.LastErrorString(),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row for %s: %w", rec.DeviceID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

// formatFloat prints the shortest representation that round-trips.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
