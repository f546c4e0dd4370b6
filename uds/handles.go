package uds

import (
	"sync"

	"github.com/google/uuid"
	"github.com/zeptools/gw-dbbridge/script"
)

// HandleTable holds the objects one host connection references.
// An object handed out twice keeps its id.
type HandleTable struct {
	mu      sync.Mutex
	objects map[string]*script.Object
	ids     map[*script.Object]string
}

// Ensure HandleTable implements script.Handles interface
var _ script.Handles = (*HandleTable)(nil)

func NewHandleTable() *HandleTable {
	return &HandleTable{
		objects: make(map[string]*script.Object),
		ids:     make(map[*script.Object]string),
	}
}

func (t *HandleTable) Register(o *script.Object) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.ids[o]; ok {
		return id
	}
	id := uuid.NewString()
	t.objects[id] = o
	t.ids[o] = id
	return id
}

func (t *HandleTable) Lookup(id string) (*script.Object, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.objects[id]
	return o, ok
}

// Release drops id and releases its object.
func (t *HandleTable) Release(id string) bool {
	t.mu.Lock()
	o, ok := t.objects[id]
	if ok {
		delete(t.objects, id)
		delete(t.ids, o)
	}
	t.mu.Unlock()
	if ok {
		o.Release()
	}
	return ok
}

// ReleaseAll releases every object, as a host does when it goes away.
func (t *HandleTable) ReleaseAll() int {
	t.mu.Lock()
	objs := make([]*script.Object, 0, len(t.objects))
	for _, o := range t.objects {
		objs = append(objs, o)
	}
	t.objects = make(map[string]*script.Object)
	t.ids = make(map[*script.Object]string)
	t.mu.Unlock()
	for _, o := range objs {
		o.Release()
	}
	return len(objs)
}

func (t *HandleTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.objects)
}
