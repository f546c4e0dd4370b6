package bridge

import (
	"context"
	"fmt"

	"github.com/zeptools/gw-dbbridge/db/sqldb"
	"github.com/zeptools/gw-dbbridge/script"
)

// result is the native value behind a Result object.
type result struct {
	label string
	rs    *sqldb.ResultSet
}

func (r *result) set() (*sqldb.ResultSet, error) {
	if r.rs == nil || r.rs.Freed() {
		return nil, fmt.Errorf("%s result is deleted", r.label)
	}
	return r.rs, nil
}

func (b *binding) resultClass() *script.Class {
	cls := script.NewClass(ResultClassName)

	withSet := func(fn func(s *script.State, rs *sqldb.ResultSet) error) script.Func {
		return func(ctx context.Context, s *script.State) error {
			r, err := script.CheckThis[*result](s, cls)
			if err != nil {
				return err
			}
			rs, err := r.set()
			if err != nil {
				return err
			}
			return fn(s, rs)
		}
	}
	method := func(name string, fn func(s *script.State, rs *sqldb.ResultSet) error) {
		cls.RegisterFunction(name, traced(ResultClassName+"."+name, withSet(fn)))
	}
	property := func(name string, fn func(s *script.State, rs *sqldb.ResultSet) error) {
		cls.AddProperty(name, traced(ResultClassName+"."+name, withSet(fn)))
	}

	method("free", func(s *script.State, rs *sqldb.ResultSet) error {
		rs.Free()
		return nil
	})
	method("fetchRow", func(s *script.State, rs *sqldb.ResultSet) error {
		row, ok := rs.Next()
		if !ok || rs.NumFields() == 0 {
			return nil
		}
		s.Return(rowArray(rs.Fields(), row))
		return nil
	})
	method("fetchAssoc", func(s *script.State, rs *sqldb.ResultSet) error {
		row, ok := rs.Next()
		if !ok || rs.NumFields() == 0 {
			return nil
		}
		s.Return(rowDictionary(rs.Fields(), row))
		return nil
	})
	method("seek", func(s *script.State, rs *sqldb.ResultSet) error {
		n, err := s.CheckInt(0)
		if err != nil {
			return err
		}
		if n < 0 || n > rs.NumRows() {
			return fmt.Errorf("row offset %d out of range [0, %d]", n, rs.NumRows())
		}
		rs.Seek(n)
		return nil
	})

	property("numRows", func(s *script.State, rs *sqldb.ResultSet) error {
		s.Return(script.Number(rs.NumRows()))
		return nil
	})
	property("numFields", func(s *script.State, rs *sqldb.ResultSet) error {
		s.Return(script.Number(rs.NumFields()))
		return nil
	})
	property("fields", func(s *script.State, rs *sqldb.ResultSet) error {
		fields := rs.Fields()
		names := make(script.Array, len(fields))
		for i, f := range fields {
			names[i] = script.String(f.Name)
		}
		s.Return(names)
		return nil
	})

	cls.OnRelease(func(native any) {
		if r, ok := native.(*result); ok && r.rs != nil {
			r.rs.Free()
		}
	})
	return cls
}
