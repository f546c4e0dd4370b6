package sqldb

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// SessionFactory is a callback that opens a Session from Conf.
// It is registered with RegisterFactory and called by sqldb.New.
type SessionFactory func(ctx context.Context, conf *Conf) (Session, error)

type registration struct {
	label   string
	factory SessionFactory
}

var (
	registryMu sync.RWMutex
	registry   = map[string]registration{}
)

// RegisterFactory makes a driver available under dbType.
// label is the human name used in error messages, e.g. "MySQL".
func RegisterFactory(dbType string, label string, factory SessionFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[dbType] = registration{label: label, factory: factory}
}

func New(ctx context.Context, conf *Conf) (Session, error) {
	registryMu.RLock()
	reg, ok := registry[conf.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported database type: %s", conf.Type)
	}
	return reg.factory(ctx, conf)
}

// Label returns the display name registered for dbType, or dbType itself.
func Label(dbType string) string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if reg, ok := registry[dbType]; ok {
		return reg.label
	}
	return dbType
}

// Types lists the registered database types in sorted order.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
