package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

var ErrClosed = errors.New("session is closed")

// StdSession implements Session on top of database/sql, pinned to a single
// *sql.Conn so that session state (current database, insert id, warnings)
// survives between statements. Drivers embed it and override what their
// database does differently.
type StdSession struct {
	Status

	LabelName string
	Prefix    byte                            // placeholder prefix, see PlaceholderPrefixForDBType
	Classify  func(ct *sql.ColumnType) TypeTag // column type -> TypeTag
	MapErr    func(err error) error           // driver error -> *Error
	// ExecInfo, when set, decides info() after a statement without a result set.
	ExecInfo func(syn Syntax, query string, affected int64) (string, bool)

	mu     sync.Mutex
	db     *sql.DB
	conn   *sql.Conn
	syntax Syntax
}

// SetSyntax changes the lexical rules used to bind and classify statements.
func (s *StdSession) SetSyntax(syn Syntax) {
	s.mu.Lock()
	s.syntax = syn
	s.mu.Unlock()
}

func (s *StdSession) Syntax() Syntax {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syntax
}

// Attach pins a connection from db and pings it, replacing any connection
// held before. On failure db is closed, the previous connection is kept and
// the driver error is returned as is.
func (s *StdSession) Attach(ctx context.Context, db *sql.DB) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return err
	}
	if err = conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return err
	}
	s.mu.Lock()
	oldDB, oldConn := s.db, s.conn
	s.db, s.conn = db, conn
	s.mu.Unlock()
	if oldConn != nil {
		_ = oldConn.Close()
	}
	if oldDB != nil {
		_ = oldDB.Close()
	}
	return nil
}

func (s *StdSession) mapErr(err error) error {
	if err == nil || s.MapErr == nil {
		return err
	}
	return s.MapErr(err)
}

// WithConn runs fn on the pinned connection while holding the session lock.
func (s *StdSession) WithConn(fn func(conn *sql.Conn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrClosed
	}
	return fn(s.conn)
}

func (s *StdSession) Label() string { return s.LabelName }

func (s *StdSession) Query(ctx context.Context, query string, args ...any) (*ResultSet, error) {
	syn := s.Syntax()
	query, bound, err := syn.Bind(query, s.Prefix, args)
	if err != nil {
		return nil, s.Fail(&Error{Message: err.Error(), Err: err})
	}
	var rs *ResultSet
	err = s.WithConn(func(conn *sql.Conn) error {
		if !syn.ReturnsRows(query) {
			res, err := conn.ExecContext(ctx, query, bound...)
			if err != nil {
				return err
			}
			affected, _ := res.RowsAffected()
			id, _ := res.LastInsertId()
			if s.ExecInfo != nil {
				info, ok := s.ExecInfo(syn, query, affected)
				s.ExecDoneInfo(affected, uint64(id), info, ok)
				return nil
			}
			s.ExecDone(affected, uint64(id))
			return nil
		}
		rows, err := conn.QueryContext(ctx, query, bound...)
		if err != nil {
			return err
		}
		cols, err := rows.ColumnTypes()
		if err != nil {
			_ = rows.Close()
			return err
		}
		if len(cols) == 0 {
			// e.g. CALL of a procedure without a result set
			if err = rows.Close(); err != nil {
				return err
			}
			s.ExecDone(0, 0)
			return nil
		}
		fields := make([]Field, len(cols))
		for i, ct := range cols {
			fields[i] = Field{Name: ct.Name(), DBType: ct.DatabaseTypeName(), Type: TagText}
			if s.Classify != nil {
				fields[i].Type = s.Classify(ct)
			}
		}
		if rs, err = BufferRows(rows, fields); err != nil {
			return err
		}
		s.QueryDone(rs.NumRows())
		return nil
	})
	if err != nil {
		return nil, s.Fail(s.mapErr(err))
	}
	return rs, nil
}

func (s *StdSession) Ping(ctx context.Context) error {
	err := s.WithConn(func(conn *sql.Conn) error {
		return conn.PingContext(ctx)
	})
	if err != nil {
		return s.Fail(s.mapErr(err))
	}
	s.OK()
	return nil
}

func (s *StdSession) EscapeString(str string) (string, error) {
	return EscapeQuotes(str)
}

func (s *StdSession) SelectDatabase(context.Context, string) error {
	return s.Fail(&Error{Message: fmt.Sprintf("selectDatabase is not supported by %s", s.LabelName), Err: ErrUnsupported})
}

func (s *StdSession) ChangeUser(context.Context, string, string, string) error {
	return s.Fail(&Error{Message: fmt.Sprintf("changeUser is not supported by %s", s.LabelName), Err: ErrUnsupported})
}

func (s *StdSession) WarningCount(context.Context) (uint32, error) {
	return 0, nil
}

func (s *StdSession) Close() error {
	s.mu.Lock()
	db, conn := s.db, s.conn
	s.db, s.conn = nil, nil
	s.mu.Unlock()
	if conn == nil {
		return ErrClosed
	}
	err := conn.Close()
	if dbErr := db.Close(); err == nil {
		err = dbErr
	}
	return err
}
