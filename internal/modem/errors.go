package modem

import (
	"errors"
	"fmt"
)

// ErrNoMatch is returned by the detector when no registered parser
// recognized the fetched content.
var ErrNoMatch = errors.New("no parser matched the device content")

// FetchError wraps a transport-level failure. The core never resolves these;
// they are propagated (or, during detection, treated as "did not match" for
// the affected candidate).
type FetchError struct {
	Path string
	Auth AuthMethod
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (auth=%s): %v", e.Path, e.Auth, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError means expected structural markers were absent or malformed in
// otherwise-fetched content. Partial carries whatever top-level fields were
// decoded before the failure, for diagnostics.
type ParseError struct {
	Parser  string
	Reason  string
	Partial []string
}

func (e *ParseError) Error() string {
	if len(e.Partial) > 0 {
		return fmt.Sprintf("%s: parse failed: %s (partially parsed: %v)", e.Parser, e.Reason, e.Partial)
	}
	return fmt.Sprintf("%s: parse failed: %s", e.Parser, e.Reason)
}

// NewParseError builds a ParseError for the named parser.
func NewParseError(parser, reason string, partial ...string) *ParseError {
	return &ParseError{Parser: parser, Reason: reason, Partial: partial}
}

// ValidationError means decoded channel values violated a numeric or count
// constraint. Validation failures fail the cycle; they are not advisory.
type ValidationError struct {
	Parser     string
	Constraint string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation failed: %s", e.Parser, e.Constraint)
}
