package filter

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is the only failure kind of the filter: the document
// cannot be traversed as a node tree. Check with errors.Is.
var ErrInvalidInput = errors.New("invalid input")

// InvalidInputError describes where traversal failed.
type InvalidInputError struct {
	Path string // Location in the document, e.g. "document.children[2]"
	Msg  string // Deterministic error message
	Err  error  // Optional underlying error (e.g., from JSON decoding)
}

func (e *InvalidInputError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Path != "" && msg != "":
		return fmt.Sprintf("%s: %s: %s", ErrInvalidInput.Error(), e.Path, msg)
	case msg != "":
		return fmt.Sprintf("%s: %s", ErrInvalidInput.Error(), msg)
	default:
		return ErrInvalidInput.Error()
	}
}

// Unwrap exposes both ErrInvalidInput and the underlying cause.
func (e *InvalidInputError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidInput}
	}
	return []error{ErrInvalidInput, e.Err}
}

func invalid(path, format string, args ...interface{}) error {
	return &InvalidInputError{Path: path, Msg: fmt.Sprintf(format, args...)}
}
