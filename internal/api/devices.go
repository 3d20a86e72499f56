package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/devicehealth/internal/alert"
	"github.com/nerrad567/devicehealth/internal/device"
)

// ingestResponse is the body returned for an accepted report.
type ingestResponse struct {
	Msg   string        `json:"msg"`
	Data  device.Record `json:"data"`
	Alert *alert.Event  `json:"alert"`
}

// handleIngestReport accepts one device health report.
//
// The record is stored before the response is written; any alert is
// queued for delivery and returned in the body without waiting for it.
func (s *Server) handleIngestReport(w http.ResponseWriter, r *http.Request) {
	var report device.Report
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		if verr := fieldTypeError(err); verr != nil {
			writeValidationError(w, verr)
			return
		}
		writeError(w, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	res, err := s.ingest.Ingest(r.Context(), report)
	if err != nil {
		var verr *device.ValidationError
		switch {
		case errors.As(err, &verr):
			writeValidationError(w, verr)
		case errors.Is(err, device.ErrStorage):
			writeError(w, ErrCodeStorage, "failed to store report")
		default:
			s.logger.Error("ingesting report failed", "device_id", report.DeviceID, "error", err)
			writeInternalError(w, "failed to ingest report")
		}
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		Msg:   fmt.Sprintf("Device %s updated", res.Record.DeviceID),
		Data:  res.Record,
		Alert: res.Alert,
	})
}

// fieldTypeError reports a well-formed body whose field holds the wrong
// kind of value, or a number too large for it, as a validation failure.
func fieldTypeError(err error) *device.ValidationError {
	var te *json.UnmarshalTypeError
	if !errors.As(err, &te) || te.Field == "" || te.Type == nil {
		return nil
	}

	t := te.Type
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	msg := "has the wrong type"
	switch t.Kind() {
	case reflect.Float32, reflect.Float64:
		msg = "must be a number"
		if strings.HasPrefix(te.Value, "number") {
			msg = "is out of range"
		}
	case reflect.String:
		msg = "must be a string"
	}
	return &device.ValidationError{Fields: []device.FieldError{{Field: te.Field, Message: msg}}}
}

// handleListDevices returns all records as a JSON array.
//
// Query parameters (comma-separated or repeated):
//   - status: online, offline, error
//   - device_id: exact device identifiers
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, ErrCodeBadRequest, err.Error())
		return
	}

	records, err := s.query.ListAll(r.Context(), filter)
	if err != nil {
		writeError(w, ErrCodeStorage, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// handleGetDevice returns the record for one device_id.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, err := deviceIDParam(r)
	if err != nil {
		writeError(w, ErrCodeBadRequest, "malformed device id")
		return
	}

	rec, err := s.query.GetOne(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeError(w, ErrCodeNotFound, fmt.Sprintf("device %s not found", id))
			return
		}
		writeError(w, ErrCodeStorage, "failed to get device")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleDeviceSummary returns per-status counts for the filtered listing.
func (s *Server) handleDeviceSummary(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, ErrCodeBadRequest, err.Error())
		return
	}

	summary, err := s.query.Summary(r.Context(), filter)
	if err != nil {
		writeError(w, ErrCodeStorage, "failed to summarise devices")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleExportCSV downloads the filtered listing as CSV.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, ErrCodeBadRequest, err.Error())
		return
	}

	records, err := s.query.ListAll(r.Context(), filter)
	if err != nil {
		writeError(w, ErrCodeStorage, "failed to list devices")
		return
	}

	// Render fully before writing headers so a failure can still be a 500.
	var buf bytes.Buffer
	if err := device.WriteCSV(&buf, records); err != nil {
		s.logger.Error("rendering csv export failed", "error", err)
		writeInternalError(w, "failed to render csv")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="devices.csv"`)
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(buf.Bytes())
}

// deviceIDParam returns the unescaped {id} segment. chi matches on the raw
// path when the request carries escapes, so the parameter may still hold them.
func deviceIDParam(r *http.Request) (string, error) {
	id := chi.URLParam(r, "id")
	if r.URL.RawPath == "" {
		return id, nil
	}
	return url.PathUnescape(id)
}

// parseFilter reads the status and device_id query parameters.
func parseFilter(r *http.Request) (*device.Filter, error) {
	q := r.URL.Query()
	filter := &device.Filter{
		DeviceIDs: splitList(q["device_id"]),
	}

	for _, raw := range splitList(q["status"]) {
		st, err := device.ParseStatus(raw)
		if err != nil {
			return nil, fmt.Errorf("status %q: %w", raw, err)
		}
		filter.Statuses = append(filter.Statuses, st)
	}

	return filter, nil
}

// splitList flattens repeated and comma-separated values, dropping blanks.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
