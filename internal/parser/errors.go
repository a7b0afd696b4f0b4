package parser

import "errors"

// InvalidInputError means the document itself is unacceptable: wrong format,
// oversize, too many pages, or no extractable text. Terminal, never retried.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Reason
}

// ParseError wraps structural parse failures (corrupted or unexpected
// internals). Transient from the pipeline's point of view.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "failed to parse PDF: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsInvalidInput reports whether err is a terminal validation failure.
func IsInvalidInput(err error) bool {
	var ie *InvalidInputError
	return errors.As(err, &ie)
}
