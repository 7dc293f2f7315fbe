package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrExtraction          = errors.New("text extraction failed")
	ErrRemoteService       = errors.New("remote service failure")
	ErrTemporary           = errors.New("temporary failure")
	ErrNotFound            = errors.New("not found")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// DecodeError carries a human-readable decode message that is safe to return to
// API clients, e.g. a malformed DOCX archive.
type DecodeError struct {
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return "decode error"
	}
	return fmt.Sprintf("error reading %s file: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
