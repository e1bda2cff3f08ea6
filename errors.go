package v6fs

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// DriverError is the error type returned by every public operation in this
// module. Each one descends from one of the sentinel errors below, so callers
// can classify a failure with [errors.Is] regardless of how much context was
// attached on the way up.
type DriverError interface {
	error
	WithMessage(message string) DriverError
	Wrap(err error) DriverError
}

type baseDriverError string

const rootError = baseDriverError("")

// Inode exists but fails an allocation or type precondition.
var ErrNotAllocated = rootError.WithMessage("Inode not allocated")
var ErrNotADirectory = rootError.WithMessage("Not a directory")
var ErrIsADirectory = rootError.WithMessage("Is a directory")

// A named directory entry or path component doesn't exist.
var ErrNotFound = rootError.WithMessage("No such file or directory")

// A logical block index can't be represented by the inode's addressing mode.
var ErrOutOfRange = rootError.WithMessage("Numerical result out of range")

// The sector device didn't transfer a full sector.
var ErrIOFailed = rootError.WithMessage("Input/output error")

// On-disk structures violate an invariant of the file system.
var ErrFileSystemCorrupted = rootError.WithMessage("Structure needs cleaning")

var ErrInvalidArgument = rootError.WithMessage("Invalid argument")
var ErrInvalidFileSystem = rootError.WithMessage("Wrong medium type")
var ErrNameTooLong = rootError.WithMessage("File name too long")
var ErrReadOnlyFileSystem = rootError.WithMessage("Read-only file system")

func (e baseDriverError) Error() string {
	return string(e)
}

func (e baseDriverError) WithMessage(message string) DriverError {
	return customDriverError{
		message:       message,
		originalError: e,
	}
}

func (e baseDriverError) Wrap(err error) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

// -----------------------------------------------------------------------------

type customDriverError struct {
	message       string
	originalError error
}

// Error implements the `error` object interface. When called, it returns a string
// describing the error.
func (e customDriverError) Error() string {
	return e.message
}

func (e customDriverError) WithMessage(message string) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", e.message, message),
		originalError: e,
	}
}

func (e customDriverError) Wrap(err error) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

func (e customDriverError) Unwrap() error {
	return e.originalError
}

// CastToDriverError converts an arbitrary error into a [DriverError]. Errors
// that already are one are returned unchanged; anything else is treated as an
// I/O failure, since that's the only place foreign errors come from.
func CastToDriverError(err error) DriverError {
	if err == nil {
		return nil
	}
	if driverErr, ok := err.(DriverError); ok {
		return driverErr
	}
	return ErrIOFailed.Wrap(err)
}
