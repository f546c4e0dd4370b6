package script

import (
	"errors"
	"fmt"
)

var (
	ErrNoSuchFunction = errors.New("no such function")
	ErrNoSuchProperty = errors.New("no such property")
	ErrNoSuchClass    = errors.New("no such class")
	ErrReleased       = errors.New("object has been released")
	ErrWrongClass     = errors.New("object is of the wrong class")
	ErrNoThis         = errors.New("function requires an object receiver")
)

// ArgumentError reports a missing or mistyped argument.
type ArgumentError struct {
	Index int
	Want  Kind
	Got   Kind
	// Missing is set when fewer than Index+1 arguments were passed.
	Missing bool
}

func (e *ArgumentError) Error() string {
	if e.Missing {
		return fmt.Sprintf("argument %d: expected %s, got nothing", e.Index+1, e.Want)
	}
	return fmt.Sprintf("argument %d: expected %s, got %s", e.Index+1, e.Want, e.Got)
}
