package storage

import (
	"errors"
	"fmt"

	"github.com/ivan-cunha/feather-format/internal/schema"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrCorruptFile is matched by every *CorruptFileError.
	ErrCorruptFile = errors.New("corrupt file")

	// ErrEncodingOverflow is returned by the encoder when a payload does not
	// fit the requested offset width. The writer recovers from it by
	// re-encoding the column with 64-bit offsets.
	ErrEncodingOverflow = errors.New("payload exceeds offset width")

	ErrColumnNotFound = schema.ErrColumnNotFound
)

// ValidationError reports a table, option or request that cannot be
// written or served. It is always returned before any byte is written.
type ValidationError struct {
	Column string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Column != "" {
		return fmt.Sprintf("%v: column %q: %s", ErrValidation, e.Column, msg)
	}
	return fmt.Sprintf("%v: %s", ErrValidation, msg)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) Unwrap() error { return e.Err }

// CorruptFileError reports a file whose bytes violate the format.
type CorruptFileError struct {
	Column string
	Reason string
	Err    error
}

func (e *CorruptFileError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Column != "" {
		return fmt.Sprintf("%v: column %q: %s", ErrCorruptFile, e.Column, msg)
	}
	return fmt.Sprintf("%v: %s", ErrCorruptFile, msg)
}

func (e *CorruptFileError) Is(target error) bool { return target == ErrCorruptFile }

func (e *CorruptFileError) Unwrap() error { return e.Err }

// IOError wraps a failure of the underlying file or stream.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func corruptf(column, format string, args ...any) error {
	return &CorruptFileError{Column: column, Reason: fmt.Sprintf(format, args...)}
}

func invalidf(column, format string, args ...any) error {
	return &ValidationError{Column: column, Reason: fmt.Sprintf(format, args...)}
}

// validationFromSchema converts a schema error into a *ValidationError,
// keeping the offending column name.
func validationFromSchema(err error) error {
	var ce *schema.ColumnError
	if errors.As(err, &ce) {
		return &ValidationError{Column: ce.Column, Err: ce.Err}
	}
	return &ValidationError{Err: err}
}
