package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/feedbackhq/feedback/internal/logger"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// Error codes clients can switch on.
const (
	CodeNotFound        = "not_found"
	CodeConflict        = "conflict"
	CodeInvalidID       = "invalid_id"
	CodeInvalidSort     = "invalid_sort"
	CodeInvalidBody     = "invalid_body"
	CodeValidation      = "validation_error"
	CodeSweepInProgress = "sweep_in_progress"
	CodeInternal        = "internal_error"
)

// RespondJSON encodes data and writes it with status. The body is encoded
// before the header is sent, so a value that cannot be encoded becomes a 500.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	if data == nil {
		w.WriteHeader(status)
		return
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		logger.L().Error("Failed to encode JSON response", zap.Int("status", status), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to encode response","code":"` + CodeInternal + `"}` + "\n"))
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// RespondError writes an error without a code
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorResponse{Error: message})
}

// RespondErrorWithCode writes an error carrying a machine-readable code
func RespondErrorWithCode(w http.ResponseWriter, status int, code, message string) {
	RespondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// RespondBodyError reports a request body DecodeJSON rejected as a 400.
func RespondBodyError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error(), Code: CodeInvalidBody}
	var bodyErr *BodyError
	if errors.As(err, &bodyErr) && bodyErr.Field != "" {
		resp.Details = map[string]string{bodyErr.Field: bodyErr.Reason}
	}
	RespondJSON(w, http.StatusBadRequest, resp)
}

// RespondValidationError writes per-field validation failures as a 422
func RespondValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	RespondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "Validation failed",
		Code:    CodeValidation,
		Details: fieldErrors,
	})
}
