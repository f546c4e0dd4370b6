package script

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

// Wire keys used for objects and raw bytes crossing the host boundary.
const (
	HandleKey = "$handle"
	ClassKey  = "$class"
	BytesKey  = "$bytes"
)

// Handles maps objects to the opaque ids the host holds on to.
type Handles interface {
	Register(o *Object) string
	Lookup(id string) (*Object, bool)
}

var ErrUnknownHandle = errors.New("unknown object handle")

// EncodeValue renders v as JSON. Dictionaries keep their key order and
// objects are registered in h and written as {"$class":..., "$handle":...}.
// Strings that are not valid UTF-8 are written as {"$bytes": base64}.
func EncodeValue(v Value, h Handles) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v, h); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v Value, h Handles) error {
	switch t := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Number:
		f := float64(t)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("script: cannot encode %v", f)
		}
		b, _ := json.Marshal(f)
		buf.Write(b)
	case String:
		if !utf8.ValidString(string(t)) {
			buf.WriteString(`{"` + BytesKey + `":"`)
			buf.WriteString(base64.StdEncoding.EncodeToString([]byte(t)))
			buf.WriteString(`"}`)
			return nil
		}
		writeJSONString(buf, string(t))
	case Array:
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, e, h); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case *Dictionary:
		buf.WriteByte('{')
		var err error
		i := 0
		t.Range(func(k string, e Value) bool {
			if i > 0 {
				buf.WriteByte(',')
			}
			i++
			writeJSONString(buf, k)
			buf.WriteByte(':')
			err = encodeValue(buf, e, h)
			return err == nil
		})
		if err != nil {
			return err
		}
		buf.WriteByte('}')
	case *Object:
		if h == nil {
			return errors.New("script: object without a handle table")
		}
		id := h.Register(t)
		buf.WriteString(`{"` + ClassKey + `":`)
		writeJSONString(buf, t.class.name)
		buf.WriteString(`,"` + HandleKey + `":`)
		writeJSONString(buf, id)
		buf.WriteByte('}')
	default:
		return fmt.Errorf("script: cannot encode %T", v)
	}
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) {
	// json.Marshal on a string never fails; invalid UTF-8 becomes U+FFFD.
	b, _ := json.Marshal(s)
	buf.Write(b)
}

// DecodeValue parses one JSON document into a Value. A {"$handle": id}
// object resolves through h and a {"$bytes": base64} object becomes a String.
func DecodeValue(data []byte, h Handles) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeNext(dec, h)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("script: trailing data after value")
	}
	return v, nil
}

// DecodeValues parses a JSON array into a list of arguments.
func DecodeValues(data []byte, h Handles) ([]Value, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	v, err := DecodeValue(data, h)
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case Null:
		return nil, nil
	case Array:
		return t, nil
	}
	return nil, fmt.Errorf("script: arguments must be an array, got %s", KindOf(v))
}

func decodeNext(dec *json.Decoder, h Handles) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return Number(f), nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '[':
			arr := Array{}
			for dec.More() {
				e, err := decodeNext(dec, h)
				if err != nil {
					return nil, err
				}
				arr = append(arr, e)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		case '{':
			d := NewDictionary()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, _ := kt.(string)
				e, err := decodeNext(dec, h)
				if err != nil {
					return nil, err
				}
				d.Set(key, e)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			if v, ok, err := decodeBytes(d); ok {
				return v, err
			}
			return resolveHandle(d, h)
		}
	}
	return nil, fmt.Errorf("script: unexpected token %v", tok)
}

func decodeBytes(d *Dictionary) (Value, bool, error) {
	if d.Len() != 1 {
		return nil, false, nil
	}
	bv, ok := d.Get(BytesKey)
	if !ok {
		return nil, false, nil
	}
	enc, ok := bv.(String)
	if !ok {
		return nil, true, fmt.Errorf("script: %s must be a string", BytesKey)
	}
	b, err := base64.StdEncoding.DecodeString(string(enc))
	if err != nil {
		return nil, true, fmt.Errorf("script: bad %s: %w", BytesKey, err)
	}
	return String(b), true, nil
}

func resolveHandle(d *Dictionary, h Handles) (Value, error) {
	hv, ok := d.Get(HandleKey)
	if !ok {
		return d, nil
	}
	id, ok := hv.(String)
	if !ok {
		return nil, fmt.Errorf("script: %s must be a string", HandleKey)
	}
	if h == nil {
		return nil, ErrUnknownHandle
	}
	o, ok := h.Lookup(string(id))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, id)
	}
	return o, nil
}
