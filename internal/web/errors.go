package web

import (
	"errors"
	"fmt"
	"net/http"

	appLog "tripcal/internal/log"
)

// AppError is an error with an HTTP status and a client-safe message.
type AppError struct {
	// Code is the HTTP status code.
	Code int `json:"-"`

	// Type is a machine-readable classifier, e.g. "bad_request".
	Type string `json:"type"`

	// Message is safe to show to the client.
	Message string `json:"message"`

	// Internal is logged, never sent.
	Internal error `json:"-"`
}

func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Internal
}

func errBadRequest(message string, cause error) *AppError {
	return &AppError{Code: http.StatusBadRequest, Type: "bad_request", Message: message, Internal: cause}
}

func errNotFound(message string) *AppError {
	return &AppError{Code: http.StatusNotFound, Type: "not_found", Message: message}
}

func errInternal(cause error) *AppError {
	return &AppError{
		Code:     http.StatusInternalServerError,
		Type:     "internal_error",
		Message:  "an unexpected error occurred",
		Internal: cause,
	}
}

// writeError renders err as {"type","message"}. Anything that is not an
// AppError is treated as internal.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = errInternal(err)
	}
	if appErr.Code >= http.StatusInternalServerError {
		appLog.Error("http request failed", appErr.Internal, "method", r.Method, "path", r.URL.Path)
	} else {
		appLog.Debug("http request rejected", "method", r.Method, "path", r.URL.Path, "reason", appErr.Error())
	}
	writeJSON(w, appErr.Code, appErr)
}
