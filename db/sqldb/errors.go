package sqldb

import (
	"errors"
	"strconv"
)

var (
	// ErrUnsupported is returned by operations a driver cannot perform.
	ErrUnsupported = errors.New("operation not supported")
	ErrEscape      = errors.New("failed to escape the string")
)

// Error is a database error carrying the server's (or client's) error number.
type Error struct {
	Code    int
	Message string
	Err     error // underlying driver error, if any
}

func (e *Error) Error() string {
	return e.Message + " (" + strconv.Itoa(e.Code) + ")"
}

func (e *Error) Unwrap() error { return e.Err }

// Describe extracts code and message from err, falling back to code 0 and
// err.Error() for errors that are not *Error.
func Describe(err error) (int, string) {
	if err == nil {
		return 0, ""
	}
	var dbErr *Error
	if errors.As(err, &dbErr) {
		return dbErr.Code, dbErr.Message
	}
	return 0, err.Error()
}
