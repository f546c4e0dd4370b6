package script

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Func is a native function callable from scripts.
type Func func(ctx context.Context, s *State) error

// Class describes an opaque object type: its methods, read-only properties
// and what happens to the native value when the host lets go of it.
type Class struct {
	name      string
	methods   map[string]Func
	props     map[string]Func
	onRelease func(native any)
}

func NewClass(name string) *Class {
	return &Class{
		name:    name,
		methods: make(map[string]Func),
		props:   make(map[string]Func),
	}
}

func (c *Class) Name() string { return c.name }

// RegisterFunction adds a method. Registering the same name twice replaces it.
func (c *Class) RegisterFunction(name string, fn Func) {
	c.methods[name] = fn
}

// AddProperty adds a read-only property computed by fn.
func (c *Class) AddProperty(name string, fn Func) {
	c.props[name] = fn
}

// OnRelease sets the hook run once when an instance is released.
func (c *Class) OnRelease(fn func(native any)) {
	c.onRelease = fn
}

func (c *Class) New(native any) *Object {
	return &Object{class: c, native: native}
}

func (c *Class) Methods() []string    { return sortedKeys(c.methods) }
func (c *Class) Properties() []string { return sortedKeys(c.props) }

// Object is an instance of a Class exposed to scripts.
type Object struct {
	class  *Class
	native any

	mu       sync.Mutex
	released bool
}

func (*Object) Kind() Kind { return KindObject }

func (o *Object) Class() *Class { return o.class }

func (o *Object) Released() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.released
}

// Release drops the object. The class hook runs on the first call only.
func (o *Object) Release() {
	o.mu.Lock()
	if o.released {
		o.mu.Unlock()
		return
	}
	o.released = true
	o.mu.Unlock()
	if o.class.onRelease != nil {
		o.class.onRelease(o.native)
	}
}

func (o *Object) Call(ctx context.Context, method string, args []Value) (Value, error) {
	fn, ok := o.class.methods[method]
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", o.class.name, method, ErrNoSuchFunction)
	}
	if o.Released() {
		return nil, ErrReleased
	}
	s := NewState(o, args)
	if err := fn(ctx, s); err != nil {
		return nil, err
	}
	return s.Result(), nil
}

func (o *Object) Get(ctx context.Context, prop string) (Value, error) {
	fn, ok := o.class.props[prop]
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", o.class.name, prop, ErrNoSuchProperty)
	}
	if o.Released() {
		return nil, ErrReleased
	}
	s := NewState(o, nil)
	if err := fn(ctx, s); err != nil {
		return nil, err
	}
	return s.Result(), nil
}

func sortedKeys(m map[string]Func) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
