// internal/api/response/response.go
package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/newthinker/stonks/internal/core"
)

// Meta contains response metadata.
type Meta struct {
	Timestamp time.Time `json:"timestamp"`
}

// SuccessResponse is the standard success response format.
type SuccessResponse struct {
	Data any  `json:"data"`
	Meta Meta `json:"meta"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// statusByCode maps error codes onto HTTP statuses. Unlisted codes are 500.
var statusByCode = map[string]int{
	core.ErrInvalidInput.Code:      http.StatusBadRequest,
	core.ErrUnsupportedMethod.Code: http.StatusBadRequest,
	core.ErrUnknownStrategy.Code:   http.StatusBadRequest,
	core.ErrUnknownPredictor.Code:  http.StatusBadRequest,
	core.ErrUnknownSource.Code:     http.StatusBadRequest,
	core.ErrConfigInvalid.Code:     http.StatusBadRequest,
	core.ErrJobNotFound.Code:       http.StatusNotFound,
	core.ErrComputation.Code:       http.StatusUnprocessableEntity,
	core.ErrSourceUnavailable.Code: http.StatusBadGateway,
	core.ErrNoData.Code:            http.StatusNotFound,
	core.ErrInvalidCredential.Code: http.StatusBadGateway,
	core.ErrRateLimited.Code:       http.StatusBadGateway,
	core.ErrMalformedResponse.Code: http.StatusBadGateway,
}

// StatusFor picks the HTTP status for err.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 499
	}
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		if status, ok := statusByCode[coreErr.Code]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

// JSON writes a success response with data.
func JSON(w http.ResponseWriter, status int, data any) {
	resp := SuccessResponse{
		Data: data,
		Meta: Meta{Timestamp: time.Now().UTC()},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// Error writes an error response.
func Error(w http.ResponseWriter, status int, err error) {
	detail := ErrorDetail{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
	}

	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		detail.Code = coreErr.Code
		detail.Message = coreErr.Message
		if coreErr.Cause != nil {
			detail.Cause = coreErr.Cause.Error()
		}
	}

	resp := ErrorResponse{Error: detail}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// Fail writes err with the status StatusFor chooses.
func Fail(w http.ResponseWriter, err error) {
	Error(w, StatusFor(err), err)
}
