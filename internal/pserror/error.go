package pserror

import "net/http"

type (
	// A PSError represents the error format rendered by the pastry server.
	PSError struct {
		HTTPCode   int `json:"-"`
		FieldError err `json:"error"`
	}

	err struct {
		Tag     string `json:"tag,omitempty"`
		Message string `json:"message"`
	}
)

// StatusCode returns the HTTP status code.
func StatusCode(err error) int {
	if pserr, ok := err.(*PSError); ok && pserr.HTTPCode != 0 {
		return pserr.HTTPCode
	}
	return http.StatusInternalServerError
}

// New returns a new PSError with the given message.
func New(message string) *PSError {
	return &PSError{FieldError: err{Message: message}}
}

// NewWithTagCode returns a new PSError with the given code, tag and message.
func NewWithTagCode(code int, tag, message string) *PSError {
	return &PSError{HTTPCode: code, FieldError: err{Tag: tag, Message: message}}
}

// Error implements error interface.
func (e *PSError) Error() string {
	return e.FieldError.Message
}
