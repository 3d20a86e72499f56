package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/devicehealth/internal/device"
)

// Error is the body of every non-2xx JSON response.
type Error struct {
	Status  int                 `json:"status"`
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  []device.FieldError `json:"fields,omitempty"`
}

// Error codes returned in Error.Code.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeInternal       = "internal_error"
	ErrCodeStorage        = "storage_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

var codeStatus = map[string]int{
	ErrCodeBadRequest:     http.StatusBadRequest,
	ErrCodeNotFound:       http.StatusNotFound,
	ErrCodeInternal:       http.StatusInternalServerError,
	ErrCodeStorage:        http.StatusInternalServerError,
	ErrCodeValidation:     http.StatusUnprocessableEntity,
	ErrCodeMethodNotAllow: http.StatusMethodNotAllowed,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone
}

// writeError sends an Error whose HTTP status follows from code.
func writeError(w http.ResponseWriter, code, message string) {
	status, ok := codeStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, ErrCodeInternal, message)
}

// writeValidationError sends a 422 naming every rejected field.
func writeValidationError(w http.ResponseWriter, verr *device.ValidationError) {
	status := codeStatus[ErrCodeValidation]
	writeJSON(w, status, Error{
		Status:  status,
		Code:    ErrCodeValidation,
		Message: verr.Error(),
		Fields:  verr.Fields,
	})
}
