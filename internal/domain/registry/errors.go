package registry

import (
	"errors"
	"fmt"
)

// Error classes. Use errors.Is against these to decide how a failure is reported.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrStorage    = errors.New("storage fault")
)

var (
	// ErrPackageNotFound is returned when no package has the requested name.
	ErrPackageNotFound = &Error{Kind: ErrNotFound, Message: "Package not found"}
	// ErrVersionNotFound is returned when the package exists but lacks the version.
	ErrVersionNotFound = &Error{Kind: ErrNotFound, Message: "Package version not found"}
	// ErrTarballNotFound is returned when an indexed version has no blob on disk.
	ErrTarballNotFound = &Error{Kind: ErrNotFound, Message: "Package tarball not found"}
)

// Error is a classified registry failure.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func validationError(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

func storageError(msg string, err error) error {
	return &Error{Kind: ErrStorage, Message: msg, Err: err}
}

// Message returns the human-readable message of err, without wrapped causes.
func Message(err error) string {
	var re *Error
	if errors.As(err, &re) {
		return re.Message
	}
	return err.Error()
}
