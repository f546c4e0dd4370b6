package script

// Dictionary is a string-keyed map that remembers insertion order.
type Dictionary struct {
	keys   []string
	values map[string]Value
}

func NewDictionary() *Dictionary {
	return &Dictionary{values: make(map[string]Value)}
}

func (*Dictionary) Kind() Kind { return KindDictionary }

// Set stores v under key. An existing key keeps its position.
func (d *Dictionary) Set(key string, v Value) {
	if v == nil {
		v = Null{}
	}
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = v
}

func (d *Dictionary) Get(key string) (Value, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Keys returns the keys in insertion order. The slice must not be modified.
func (d *Dictionary) Keys() []string { return d.keys }

func (d *Dictionary) Len() int { return len(d.keys) }

// Range calls fn for each entry in order until fn returns false.
func (d *Dictionary) Range(fn func(key string, v Value) bool) {
	for _, k := range d.keys {
		if !fn(k, d.values[k]) {
			return
		}
	}
}
