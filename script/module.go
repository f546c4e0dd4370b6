package script

import (
	"context"
	"fmt"
	"sort"
)

// Module is a named namespace of native functions and classes that a host
// loads into its scripting environment.
type Module struct {
	name    string
	funcs   map[string]Func
	classes map[string]*Class
}

func NewModule(name string) *Module {
	return &Module{
		name:    name,
		funcs:   make(map[string]Func),
		classes: make(map[string]*Class),
	}
}

func (m *Module) Name() string { return m.name }

func (m *Module) RegisterFunction(name string, fn Func) {
	m.funcs[name] = fn
}

func (m *Module) AddClass(c *Class) {
	m.classes[c.name] = c
}

func (m *Module) Class(name string) (*Class, bool) {
	c, ok := m.classes[name]
	return c, ok
}

// Call invokes a module-level function.
func (m *Module) Call(ctx context.Context, name string, args []Value) (Value, error) {
	fn, ok := m.funcs[name]
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", m.name, name, ErrNoSuchFunction)
	}
	s := NewState(nil, args)
	if err := fn(ctx, s); err != nil {
		return nil, err
	}
	return s.Result(), nil
}

// ClassInfo lists a class's members.
type ClassInfo struct {
	Name       string   `json:"name"`
	Methods    []string `json:"methods"`
	Properties []string `json:"properties"`
}

// ModuleInfo lists what a module registers.
type ModuleInfo struct {
	Name      string      `json:"name"`
	Functions []string    `json:"functions"`
	Classes   []ClassInfo `json:"classes"`
}

func (m *Module) Describe() ModuleInfo {
	info := ModuleInfo{Name: m.name, Functions: sortedKeys(m.funcs)}
	names := make([]string, 0, len(m.classes))
	for n := range m.classes {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		c := m.classes[n]
		info.Classes = append(info.Classes, ClassInfo{
			Name:       c.name,
			Methods:    c.Methods(),
			Properties: c.Properties(),
		})
	}
	return info
}
