package chunk

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRecord matches every *RecordError.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrIO wraps failures of the underlying reader.
	ErrIO = errors.New("io error")

	ErrMissingSeparator = errors.New("missing separator")
	ErrEmptyName        = errors.New("empty station name")
	ErrLineTooLong      = errors.New("line too long")
)

// RecordError reports a line that violates the station;temperature grammar.
type RecordError struct {
	Offset int64  // absolute offset of the line start
	Line   string // offending line, truncated
	Err    error  // cause, e.g. ErrMissingSeparator or fixed.ErrInvalidNumber
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("malformed record at offset %d: %q: %v", e.Offset, e.Line, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

func (e *RecordError) Is(target error) bool { return target == ErrMalformedRecord }
