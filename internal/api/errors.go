package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	xansi "github.com/charmbracelet/x/ansi"
)

// TransportError is a failure before any HTTP response arrived:
// dial errors, timeouts, cancellation
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: network error: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response. Message comes from the JSON error body when
// the server sent one, otherwise from the raw response text.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// DecodeError is a 2xx response whose body was not the JSON we expected
type DecodeError struct {
	Method      string
	Path        string
	ContentType string
	Err         error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s %s: malformed response (%s): %v", e.Method, e.Path, e.ContentType, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// FilterError rejects a task filter before it is sent
type FilterError struct {
	Field string
	Value string
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("invalid %s filter %q", e.Field, e.Value)
}

// IsNotFound reports whether err is a 404 from the backend
func IsNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == http.StatusNotFound
}

// Message turns any client error into the text shown to the user
func Message(err error) string {
	if err == nil {
		return ""
	}
	var (
		he *HTTPError
		te *TransportError
		de *DecodeError
		fe *FilterError
	)
	switch {
	case errors.As(err, &he):
		if he.Message != "" {
			return he.Message
		}
		return fmt.Sprintf("server returned %d %s", he.StatusCode, http.StatusText(he.StatusCode))
	case errors.As(err, &te):
		return "cannot reach server: " + te.Err.Error()
	case errors.As(err, &de):
		return "unexpected response from server (" + de.ContentType + ")"
	case errors.As(err, &fe):
		return fe.Error()
	}
	return err.Error()
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// maxMessageWidth bounds raw error text shown to the user
const maxMessageWidth = 300

// errorMessage extracts the user-facing message from an error response body
func errorMessage(contentType string, body []byte) string {
	if isJSON(contentType) {
		var payload struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body, &payload); err == nil {
			if payload.Error != "" {
				return payload.Error
			}
			if payload.Message != "" {
				return payload.Message
			}
		}
	}
	return xansi.Truncate(strings.TrimSpace(string(body)), maxMessageWidth, "…")
}
