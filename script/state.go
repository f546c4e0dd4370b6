package script

import (
	"fmt"
	"math"
)

// State is one native call in flight: its receiver, arguments and return slot.
type State struct {
	this *Object
	args []Value
	ret  Value
}

func NewState(this *Object, args []Value) *State {
	return &State{this: this, args: args}
}

func (s *State) NumArgs() int { return len(s.args) }

// Arg returns argument i, or Null when it was not passed.
func (s *State) Arg(i int) Value {
	if i < 0 || i >= len(s.args) || s.args[i] == nil {
		return Null{}
	}
	return s.args[i]
}

// Args returns arguments from index i on.
func (s *State) Args(i int) []Value {
	if i >= len(s.args) {
		return nil
	}
	return s.args[i:]
}

func (s *State) check(i int, want Kind) (Value, error) {
	if i >= len(s.args) {
		return nil, &ArgumentError{Index: i, Want: want, Missing: true}
	}
	v := s.args[i]
	if got := KindOf(v); got != want {
		return nil, &ArgumentError{Index: i, Want: want, Got: got}
	}
	return v, nil
}

func (s *State) CheckString(i int) (string, error) {
	v, err := s.check(i, KindString)
	if err != nil {
		return "", err
	}
	return string(v.(String)), nil
}

func (s *State) CheckNumber(i int) (float64, error) {
	v, err := s.check(i, KindNumber)
	if err != nil {
		return 0, err
	}
	return float64(v.(Number)), nil
}

// CheckInt accepts only numbers with no fractional part.
func (s *State) CheckInt(i int) (int, error) {
	f, err := s.CheckNumber(i)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("argument %d: expected an integer, got %v", i+1, f)
	}
	return int(f), nil
}

func (s *State) This() *Object { return s.this }

// Return sets the value handed back to the script. Nil means Null.
func (s *State) Return(v Value) {
	if v == nil {
		v = Null{}
	}
	s.ret = v
}

// Result is the returned value, Null if none was set.
func (s *State) Result() Value {
	if s.ret == nil {
		return Null{}
	}
	return s.ret
}

// CheckThis returns the native value behind the receiver, which must be a
// live instance of class.
func CheckThis[T any](s *State, class *Class) (T, error) {
	var zero T
	if s.this == nil {
		return zero, ErrNoThis
	}
	if s.this.class != class {
		return zero, fmt.Errorf("%w: want %s, got %s", ErrWrongClass, class.name, s.this.class.name)
	}
	if s.this.Released() {
		return zero, ErrReleased
	}
	n, ok := s.this.native.(T)
	if !ok {
		return zero, fmt.Errorf("%w: unexpected native %T", ErrWrongClass, s.this.native)
	}
	return n, nil
}
