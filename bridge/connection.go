package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zeptools/gw-dbbridge/db/sqldb"
	"github.com/zeptools/gw-dbbridge/script"
)

var errEscape = errors.New("Failed to escape the string")

// connection is the native value behind a Connection object.
// sess is nil once closed.
type connection struct {
	label string
	mu    sync.Mutex
	sess  sqldb.Session
}

func (c *connection) session() (sqldb.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil, fmt.Errorf("%s connection is closed", c.label)
	}
	return c.sess, nil
}

// close reports false when the connection was already closed.
func (c *connection) close() bool {
	c.mu.Lock()
	sess := c.sess
	c.sess = nil
	c.mu.Unlock()
	if sess == nil {
		return false
	}
	sqldb.CloseSession(c.label, sess)
	return true
}

func (b *binding) connectionClass() *script.Class {
	cls := script.NewClass(ConnectionClassName)

	method := func(name string, fn func(ctx context.Context, s *script.State, sess sqldb.Session) error) {
		cls.RegisterFunction(name, traced(ConnectionClassName+"."+name, b.withSession(cls, fn)))
	}
	property := func(name string, fn func(ctx context.Context, s *script.State, sess sqldb.Session) error) {
		cls.AddProperty(name, traced(ConnectionClassName+"."+name, b.withSession(cls, fn)))
	}

	method("query", func(ctx context.Context, s *script.State, sess sqldb.Session) error {
		query, err := s.CheckString(0)
		if err != nil {
			return err
		}
		return b.query(ctx, s, sess, query, s.Args(1), 1)
	})
	method("queryNamed", func(ctx context.Context, s *script.State, sess sqldb.Session) error {
		name, err := s.CheckString(0)
		if err != nil {
			return err
		}
		if b.opts.Statements == nil {
			return fmt.Errorf("unknown statement %q", name)
		}
		query, ok := b.opts.Statements.Get(name)
		if !ok {
			return fmt.Errorf("unknown statement %q", name)
		}
		return b.query(ctx, s, sess, query, s.Args(1), 1)
	})
	cls.RegisterFunction("close", traced(ConnectionClassName+".close", func(ctx context.Context, s *script.State) error {
		c, err := script.CheckThis[*connection](s, cls)
		if err != nil {
			return err
		}
		if !c.close() {
			return fmt.Errorf("%s connection is closed", c.label)
		}
		return nil
	}))
	method("escapeString", func(ctx context.Context, s *script.State, sess sqldb.Session) error {
		str, err := s.CheckString(0)
		if err != nil {
			return err
		}
		escaped, err := sess.EscapeString(str)
		if err != nil {
			return errEscape
		}
		s.Return(script.String(escaped))
		return nil
	})
	method("selectDatabase", func(ctx context.Context, s *script.State, sess sqldb.Session) error {
		name, err := s.CheckString(0)
		if err != nil {
			return err
		}
		ctx, cancel := b.withTimeout(ctx)
		defer cancel()
		return hostError(sess.SelectDatabase(ctx, name))
	})
	method("changeUser", func(ctx context.Context, s *script.State, sess sqldb.Session) error {
		user, err := s.CheckString(0)
		if err != nil {
			return err
		}
		pw, err := s.CheckString(1)
		if err != nil {
			return err
		}
		db, err := s.CheckString(2)
		if err != nil {
			return err
		}
		ctx, cancel := b.withTimeout(ctx)
		defer cancel()
		return hostError(sess.ChangeUser(ctx, user, pw, db))
	})
	method("info", func(ctx context.Context, s *script.State, sess sqldb.Session) error {
		if info, ok := sess.Info(); ok {
			s.Return(script.String(info))
		}
		return nil
	})

	property("ping", func(ctx context.Context, s *script.State, sess sqldb.Session) error {
		ctx, cancel := b.withTimeout(ctx)
		defer cancel()
		s.Return(script.Bool(sess.Ping(ctx) == nil))
		return nil
	})
	property("insertId", func(ctx context.Context, s *script.State, sess sqldb.Session) error {
		s.Return(script.Number(sess.InsertID()))
		return nil
	})
	property("affectedRows", func(ctx context.Context, s *script.State, sess sqldb.Session) error {
		s.Return(script.Number(sess.AffectedRows()))
		return nil
	})
	property("warningCount", func(ctx context.Context, s *script.State, sess sqldb.Session) error {
		ctx, cancel := b.withTimeout(ctx)
		defer cancel()
		n, err := sess.WarningCount(ctx)
		if err != nil {
			return hostError(err)
		}
		s.Return(script.Number(n))
		return nil
	})
	property("errorNum", func(ctx context.Context, s *script.State, sess sqldb.Session) error {
		code, _ := sess.LastError()
		s.Return(script.Number(code))
		return nil
	})
	property("error", func(ctx context.Context, s *script.State, sess sqldb.Session) error {
		_, msg := sess.LastError()
		s.Return(script.String(msg))
		return nil
	})

	cls.OnRelease(func(native any) {
		if c, ok := native.(*connection); ok {
			c.close()
		}
	})
	return cls
}

// withSession resolves the receiver's live session before calling fn.
func (b *binding) withSession(cls *script.Class, fn func(ctx context.Context, s *script.State, sess sqldb.Session) error) script.Func {
	return func(ctx context.Context, s *script.State) error {
		c, err := script.CheckThis[*connection](s, cls)
		if err != nil {
			return err
		}
		sess, err := c.session()
		if err != nil {
			return err
		}
		return fn(ctx, s, sess)
	}
}

func (b *binding) query(ctx context.Context, s *script.State, sess sqldb.Session, query string, args []script.Value, firstIndex int) error {
	bound, err := bindArgs(args, firstIndex)
	if err != nil {
		return err
	}
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	rs, err := sess.Query(ctx, query, bound...)
	if err != nil {
		return hostError(err)
	}
	if rs == nil {
		return nil
	}
	s.Return(b.results.New(&result{label: b.label, rs: rs}))
	return nil
}
