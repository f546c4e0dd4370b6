// Package bridge exposes a sqldb driver to scripts as a module with a
// connect function and the Connection and Result classes.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"time"

	"github.com/zeptools/gw-dbbridge/clients"
	"github.com/zeptools/gw-dbbridge/db/sqldb"
	"github.com/zeptools/gw-dbbridge/script"
)

const (
	ConnectionClassName = "Connection"
	ResultClassName     = "Result"
)

type Options struct {
	Type string // registered sqldb type, also the module name
	// Presets are named connection settings for connectNamed.
	Presets map[string]*sqldb.Conf
	// Statements back queryNamed. Nil disables it.
	Statements *sqldb.RawSQLStore
	// QueryTimeout bounds every database round trip. Zero means no bound.
	QueryTimeout time.Duration
	// DenyRawConnect disables connect() so that scripts only reach presets.
	DenyRawConnect bool
}

type binding struct {
	opts        Options
	label       string
	connections *script.Class
	results     *script.Class
}

// NewModule builds the script module for opts.Type.
func NewModule(opts Options) (*script.Module, error) {
	if !slices.Contains(sqldb.Types(), opts.Type) {
		return nil, fmt.Errorf("bridge: database type %q is not registered", opts.Type)
	}
	b := &binding{opts: opts, label: sqldb.Label(opts.Type)}
	b.connections = b.connectionClass()
	b.results = b.resultClass()

	m := script.NewModule(opts.Type)
	m.AddClass(b.connections)
	m.AddClass(b.results)
	m.RegisterFunction("connect", traced("connect", b.connect))
	m.RegisterFunction("connectNamed", traced("connectNamed", b.connectNamed))
	log.Printf("[INFO][bridge] module %q registered (%d presets)", opts.Type, len(opts.Presets))
	return m, nil
}

func (b *binding) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.opts.QueryTimeout > 0 {
		return context.WithTimeout(ctx, b.opts.QueryTimeout)
	}
	return context.WithCancel(ctx)
}

// connect(hostname, username, password, database[, port])
func (b *binding) connect(ctx context.Context, s *script.State) error {
	if b.opts.DenyRawConnect {
		return fmt.Errorf("[%s] connect: raw connections are disabled, use connectNamed", b.label)
	}
	var (
		conf = &sqldb.Conf{Type: b.opts.Type}
		err  error
	)
	if conf.Host, err = s.CheckString(0); err != nil {
		return err
	}
	if conf.User, err = s.CheckString(1); err != nil {
		return err
	}
	if conf.PW, err = s.CheckString(2); err != nil {
		return err
	}
	if conf.DB, err = s.CheckString(3); err != nil {
		return err
	}
	if s.NumArgs() > 4 && !script.IsNull(s.Arg(4)) {
		if conf.Port, err = s.CheckInt(4); err != nil {
			return err
		}
		if conf.Port < 0 || conf.Port > 65535 {
			return fmt.Errorf("argument 5: port %d out of range", conf.Port)
		}
	}
	return b.open(ctx, s, conf)
}

// connectNamed(preset)
func (b *binding) connectNamed(ctx context.Context, s *script.State) error {
	name, err := s.CheckString(0)
	if err != nil {
		return err
	}
	preset, ok := b.opts.Presets[name]
	if !ok {
		return fmt.Errorf("[%s] connect: unknown database %q", b.label, name)
	}
	if host, ok := clients.HostConfFromContext(ctx); ok && !host.Allows(name) {
		log.Printf("[WARN][bridge] host %q denied database %q", host.ID, name)
		return fmt.Errorf("[%s] connect: access to database %q denied", b.label, name)
	}
	conf := preset.Clone()
	if conf.Type == "" {
		conf.Type = b.opts.Type
	}
	if conf.Type != b.opts.Type {
		return fmt.Errorf("[%s] connect: database %q is of type %s", b.label, name, conf.Type)
	}
	return b.open(ctx, s, conf)
}

func (b *binding) open(ctx context.Context, s *script.State, conf *sqldb.Conf) error {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	sess, err := sqldb.New(ctx, conf)
	if err != nil {
		code, msg := sqldb.Describe(err)
		return fmt.Errorf("[%s] connect: %s (%d)", b.label, msg, code)
	}
	s.Return(b.connections.New(&connection{label: b.label, sess: sess}))
	return nil
}

// hostError renders a database failure the way scripts see it.
func hostError(err error) error {
	if err == nil {
		return nil
	}
	var argErr *script.ArgumentError
	if errors.As(err, &argErr) {
		return err
	}
	code, msg := sqldb.Describe(err)
	return fmt.Errorf("%s (%d)", msg, code)
}
