package cli

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/tgienger/tasktrack/internal/api"
	"github.com/tgienger/tasktrack/internal/config"
	"github.com/tgienger/tasktrack/internal/controller"
)

// Error codes, stable for scripts reading --json output
const (
	InvalidInput    = "INVALID_INPUT"
	NotFound        = "NOT_FOUND"
	ConfirmationReq = "CONFIRMATION_REQUIRED"
	BackendError    = "BACKEND_ERROR"
	Unreachable     = "BACKEND_UNREACHABLE"
	InternalError   = "INTERNAL_ERROR"
)

// Error is a command failure with a machine-readable code
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// ExitCode returns 2 for InternalError, 1 for all others.
func (e *Error) ExitCode() int {
	if e.Code == InternalError {
		return 2
	}
	return 1
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func errorf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// classify maps any error returned by a command to an *Error
func classify(err error) *Error {
	var (
		ce *Error
		ve *controller.ValidationError
		fe *api.FilterError
		he *api.HTTPError
		te *api.TransportError
		de *api.DecodeError
	)
	switch {
	case errors.As(err, &ce):
		return ce
	case errors.As(err, &ve), errors.As(err, &fe), errors.Is(err, config.ErrInvalid):
		return &Error{Code: InvalidInput, Message: api.Message(err), Err: err}
	case errors.As(err, &he):
		code := BackendError
		if he.StatusCode == http.StatusNotFound {
			code = NotFound
		}
		return &Error{Code: code, Message: api.Message(err), Err: err}
	case errors.As(err, &te):
		return &Error{Code: Unreachable, Message: api.Message(err), Err: err}
	case errors.As(err, &de):
		return &Error{Code: BackendError, Message: api.Message(err), Err: err}
	}
	return &Error{Code: InternalError, Message: err.Error(), Err: err}
}

// parseID parses a positional numeric id
func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errorf(InvalidInput, "invalid %s id %q", kind, s)
	}
	return id, nil
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// report prints err and returns the process exit code
func report(w io.Writer, err error, jsonMode bool) int {
	if err == nil {
		return 0
	}
	ce := classify(err)
	if jsonMode {
		_ = writeJSON(w, errorResponse{Error: ce.Message, Code: ce.Code})
	} else {
		fmt.Fprintln(w, "Error:", ce.Message)
	}
	return ce.ExitCode()
}
