package device

import (
	"errors"
	"math"
	"strings"
	"unicode"
)

// Validation constants.
const (
	maxDeviceIDLength  = 128
	maxLastErrorLength = 256

	minBattery   = 0.0
	maxBattery   = 100.0
	minErrorRate = 0.0
	maxErrorRate = 1.0
)

// Pre-computed validation set for O(1) status lookups.
var validStatuses map[Status]struct{}

func init() {
	validStatuses = make(map[Status]struct{}, len(AllStatuses()))
	for _, s := range AllStatuses() {
		validStatuses[s] = struct{}{}
	}
}

// ParseStatus normalises s (trimmed, lower case) and checks it is a known Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := validStatuses[st]; !ok {
		return "", errors.New("must be one of online, offline, error")
	}
	return st, nil
}

// ValidateReport checks a report and converts it to a Record ready for Upsert.
//
// Every failing field is reported in the returned *ValidationError, which
// matches ErrInvalidReport. On success the Record has a trimmed device_id,
// a lower-case status, error_rate defaulted to 0 and an empty last_error
// normalised to nil. Store-managed fields are left zero.
func ValidateReport(r Report) (Record, error) {
	verr := &ValidationError{}
	var rec Record

	rec.DeviceID = strings.TrimSpace(r.DeviceID)
	switch {
	case rec.DeviceID == "":
		verr.add("device_id", "is required")
	case len(rec.DeviceID) > maxDeviceIDLength:
		verr.add("device_id", "exceeds maximum length")
	case !isSegment(rec.DeviceID):
		verr.add("device_id", "must not contain '/', '+', '#' or control characters")
	}

	if r.Status == "" {
		verr.add("status", "is required")
	} else if st, err := ParseStatus(r.Status); err != nil {
		verr.add("status", err.Error())
	} else {
		rec.Status = st
	}

	if v, msg := checkNumber(r.Battery, true, minBattery, maxBattery); msg != "" {
		verr.add("battery", msg)
	} else {
		rec.Battery = v
	}

	if v, msg := checkNumber(r.Sensor, true, math.Inf(-1), math.Inf(1)); msg != "" {
		verr.add("sensor", msg)
	} else {
		rec.Sensor = v
	}

	if v, msg := checkNumber(r.ErrorRate, false, minErrorRate, maxErrorRate); msg != "" {
		verr.add("error_rate", msg)
	} else {
		rec.ErrorRate = v
	}

	if r.LastError != nil {
		le := strings.TrimSpace(*r.LastError)
		switch {
		case le == "":
			// absent
		case len(le) > maxLastErrorLength:
			verr.add("last_error", "exceeds maximum length")
		default:
			rec.LastError = &le
		}
	}

	if len(verr.Fields) > 0 {
		return Record{}, verr
	}
	return rec, nil
}

// isSegment reports whether id can stand alone as one URL path segment
// and one MQTT topic level.
func isSegment(id string) bool {
	return !strings.ContainsFunc(id, func(r rune) bool {
		return r == '/' || r == '+' || r == '#' || unicode.IsControl(r)
	})
}

// checkNumber returns the value of p, or a problem description.
// A nil optional value yields 0.
func checkNumber(p *float64, required bool, lo, hi float64) (float64, string) {
	if p == nil {
		if required {
			return 0, "is required"
		}
		return 0, ""
	}
	v := *p
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, "must be a finite number"
	}
	if v < lo || v > hi {
		return 0, "is out of range"
	}
	return v, ""
}
