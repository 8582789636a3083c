package output

import (
	"encoding/json"
	"io"
	"net/http"
)

// ErrorCode represents a machine-readable error classification.
type ErrorCode string

// Error code constants.
const (
	ErrGeneral    ErrorCode = "GENERAL_ERROR"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrValidation ErrorCode = "VALIDATION_ERROR"
	ErrConflict   ErrorCode = "CONFLICT"
	// ErrPartial reports an import that applied some statements and
	// recorded errors for others.
	ErrPartial     ErrorCode = "PARTIAL_IMPORT"
	ErrUnavailable ErrorCode = "DATABASE_UNAVAILABLE"
	ErrForbidden   ErrorCode = "FORBIDDEN"
	ErrRateLimited ErrorCode = "RATE_LIMITED"
	ErrUnsupported ErrorCode = "UNSUPPORTED_STEP"
)

// Exit code constants.
const (
	ExitSuccess     = 0
	ExitGeneral     = 1
	ExitNotFound    = 2
	ExitValidation  = 3
	ExitConflict    = 4
	ExitPartial     = 5
	ExitUnavailable = 6
	ExitForbidden   = 7
)

// ExitCodeForError maps an ErrorCode to its corresponding exit code.
func ExitCodeForError(code ErrorCode) int {
	switch code {
	case ErrNotFound:
		return ExitNotFound
	case ErrValidation:
		return ExitValidation
	case ErrConflict:
		return ExitConflict
	case ErrPartial:
		return ExitPartial
	case ErrUnavailable:
		return ExitUnavailable
	case ErrForbidden:
		return ExitForbidden
	default:
		return ExitGeneral
	}
}

// HTTPStatus maps an ErrorCode to the status the wizard endpoints answer
// with. A partial import is still a 200: the wizard reads success=false.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrValidation:
		return http.StatusBadRequest
	case ErrConflict:
		return http.StatusConflict
	case ErrPartial:
		return http.StatusOK
	case ErrUnavailable:
		return http.StatusServiceUnavailable
	case ErrForbidden:
		return http.StatusForbidden
	case ErrRateLimited:
		return http.StatusTooManyRequests
	case ErrUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// Envelope is the JSON document written by every command in --json mode and
// by the import wizard endpoints. A failed envelope still carries the data
// produced before the failure, such as a partial import result.
type Envelope struct {
	Success bool     `json:"success"`
	Data    any      `json:"data,omitempty"`
	Message string   `json:"message,omitempty"`
	Error   *Failure `json:"error,omitempty"`
}

// Failure describes why an envelope is unsuccessful.
type Failure struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// Succeeded builds a success envelope.
func Succeeded(data any, message string) Envelope {
	return Envelope{Success: true, Data: data, Message: message}
}

// Failed builds an error envelope.
func Failed(err error, code ErrorCode, data any) Envelope {
	return Envelope{
		Success: false,
		Data:    data,
		Error:   &Failure{Code: code, Message: err.Error()},
	}
}

// Encode writes the envelope as one line of JSON. HTML is not escaped so
// URLs and post content stay readable.
func (e Envelope) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(e)
}
