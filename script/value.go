package script

import (
	"fmt"
	"math"
	"strconv"
)

// Kind tags the dynamic type of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindDictionary
	KindObject
)

var kindNames = [...]string{
	KindNull:       "null",
	KindBool:       "boolean",
	KindNumber:     "number",
	KindString:     "string",
	KindArray:      "array",
	KindDictionary: "dictionary",
	KindObject:     "object",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// Value is anything a script can hold.
type Value interface {
	Kind() Kind
}

type Null struct{}

func (Null) Kind() Kind     { return KindNull }
func (Null) String() string { return "null" }

type Bool bool

func (Bool) Kind() Kind { return KindBool }

type Number float64

func (Number) Kind() Kind { return KindNumber }

func (n Number) String() string {
	return strconv.FormatFloat(float64(n), 'g', -1, 64)
}

type String string

func (String) Kind() Kind { return KindString }

type Array []Value

func (Array) Kind() Kind { return KindArray }

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	return v.Kind() == KindNull
}

// KindOf is v.Kind() with nil treated as Null.
func KindOf(v Value) Kind {
	if v == nil {
		return KindNull
	}
	return v.Kind()
}

// FromGo converts plain Go values into script values.
// Unsupported types produce an error.
func FromGo(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case []byte:
		return String(t), nil
	case int:
		return Number(t), nil
	case int32:
		return Number(t), nil
	case int64:
		return Number(t), nil
	case uint32:
		return Number(t), nil
	case uint64:
		return Number(t), nil
	case float32:
		return Number(t), nil
	case float64:
		return Number(t), nil
	case []any:
		arr := make(Array, 0, len(t))
		for _, e := range t {
			v, err := FromGo(e)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	}
	return nil, fmt.Errorf("script: unsupported go type %T", x)
}

// ToGo converts a script value into a bind-friendly Go value.
// Objects and dictionaries have no Go counterpart and produce an error.
func ToGo(v Value) (any, error) {
	switch t := v.(type) {
	case nil, Null:
		return nil, nil
	case Bool:
		return bool(t), nil
	case Number:
		f := float64(t)
		if f == math.Trunc(f) && math.Abs(f) <= 1<<53 {
			return int64(f), nil
		}
		return f, nil
	case String:
		return string(t), nil
	case Array:
		out := make([]any, 0, len(t))
		for _, e := range t {
			g, err := ToGo(e)
			if err != nil {
				return nil, err
			}
			out = append(out, g)
		}
		return out, nil
	}
	return nil, fmt.Errorf("script: cannot convert %s to a go value", KindOf(v))
}
