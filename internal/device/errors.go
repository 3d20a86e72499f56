package device

import (
	"errors"
	"strings"
)

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID has never reported.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidReport is returned when a report fails validation.
	// The concrete error is a *ValidationError listing every problem.
	ErrInvalidReport = errors.New("device: invalid report")

	// ErrStorage is returned when the backing store fails.
	ErrStorage = errors.New("device: storage failure")
)

// FieldError describes one invalid field of a report.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects all field problems found in a report.
// It matches ErrInvalidReport with errors.Is.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return ErrInvalidReport.Error() + ": " + strings.Join(parts, "; ")
}

// Is reports whether target is ErrInvalidReport.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidReport
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}
