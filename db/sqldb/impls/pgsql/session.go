package pgsql

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/zeptools/gw-dbbridge/db/sqldb"
)

const (
	Label       = "PostgreSQL"
	DefaultPort = 5432
)

var connectTimeout = 10 * time.Second

// Session is a single pgx connection in simple protocol mode, so every cell
// arrives in text format.
type Session struct {
	sqldb.Status

	mu   sync.Mutex
	conn *pgx.Conn
	conf *sqldb.Conf
}

// Ensure pgsql.Session implements sqldb.Session interface
var _ sqldb.Session = (*Session)(nil)

func Open(ctx context.Context, conf *sqldb.Conf) (*Session, error) {
	s := &Session{conf: conf.Clone()}
	conn, err := connect(ctx, s.conf)
	if err != nil {
		return nil, err
	}
	s.conn = conn
	log.Printf("[INFO][pgsql] session opened to %s:%d/%s", conn.Config().Host, conn.Config().Port, conn.Config().Database)
	return s, nil
}

// ConnConfig builds the pgx configuration for conf.
func ConnConfig(conf *sqldb.Conf) (*pgx.ConnConfig, error) {
	var (
		cfg *pgx.ConnConfig
		err error
	)
	if conf.DSN != "" {
		if cfg, err = pgx.ParseConfig(conf.DSN); err != nil {
			return nil, fmt.Errorf("failed to parse pgx config: %w", err)
		}
	} else {
		if cfg, err = pgx.ParseConfig(""); err != nil {
			return nil, fmt.Errorf("failed to parse pgx config: %w", err)
		}
		cfg.Host = conf.Host
		if cfg.Host == "" || cfg.Host == "localhost" {
			cfg.Host = "127.0.0.1"
		}
		cfg.Port = DefaultPort
		if conf.Port != 0 {
			cfg.Port = uint16(conf.Port)
		}
		cfg.User = conf.User
		cfg.Password = conf.PW
		cfg.Database = conf.DB
		cfg.ConnectTimeout = connectTimeout
		// ParseConfig("") may have filled fallbacks from the environment
		cfg.Fallbacks = nil
		if conf.TZ != "" {
			cfg.RuntimeParams["timezone"] = conf.TZ
		}
		for k, v := range conf.Params {
			cfg.RuntimeParams[k] = v
		}
	}
	cfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	return cfg, nil
}

func connect(ctx context.Context, conf *sqldb.Conf) (*pgx.Conn, error) {
	cfg, err := ConnConfig(conf)
	if err != nil {
		return nil, &sqldb.Error{Code: CodeOther, Message: err.Error(), Err: err}
	}
	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, mapConnectErr(err)
	}
	return conn, nil
}

func (s *Session) Label() string { return Label }

func (s *Session) Query(ctx context.Context, query string, args ...any) (*sqldb.ResultSet, error) {
	query, bound, err := sqldb.Bind(query, sqldb.PlaceholderPrefixForDBType["pgsql"], args)
	if err != nil {
		return nil, s.Fail(&sqldb.Error{Code: CodeOther, Message: err.Error(), Err: err})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil, s.Fail(sqldb.ErrClosed)
	}

	rows, err := s.conn.Query(ctx, query, bound...)
	if err != nil {
		return nil, s.Fail(mapErr(err))
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	if len(fds) == 0 {
		rows.Close()
		if err = rows.Err(); err != nil {
			return nil, s.Fail(mapErr(err))
		}
		s.ExecDone(rows.CommandTag().RowsAffected(), 0)
		return nil, nil
	}

	fields := make([]sqldb.Field, len(fds))
	typeMap := s.conn.TypeMap()
	for i, fd := range fds {
		fields[i] = sqldb.Field{Name: fd.Name, Type: classifyOID(fd.DataTypeOID)}
		if t, ok := typeMap.TypeForOID(fd.DataTypeOID); ok {
			fields[i].DBType = t.Name
		}
	}
	var data [][]any
	for rows.Next() {
		raw := rows.RawValues()
		cells := make([]any, len(raw))
		for i, b := range raw {
			if b != nil {
				// RawValues are only valid until the next call to Next
				cells[i] = append([]byte(nil), b...)
			}
		}
		data = append(data, cells)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, s.Fail(mapErr(err))
	}
	s.QueryDone(len(data))
	return sqldb.NewResultSet(fields, data), nil
}

func (s *Session) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return s.Fail(sqldb.ErrClosed)
	}
	if err := s.conn.Ping(ctx); err != nil {
		return s.Fail(mapErr(err))
	}
	s.OK()
	return nil
}

func (s *Session) EscapeString(str string) (string, error) {
	return sqldb.EscapeQuotes(str)
}

// SelectDatabase reconnects, since PostgreSQL binds a session to one database.
func (s *Session) SelectDatabase(ctx context.Context, name string) error {
	s.mu.Lock()
	next := s.conf.Clone()
	s.mu.Unlock()
	next.DB = name
	return s.reconnect(ctx, next)
}

func (s *Session) ChangeUser(ctx context.Context, user, pw, db string) error {
	s.mu.Lock()
	next := s.conf.Clone()
	s.mu.Unlock()
	next.User, next.PW, next.DB = user, pw, db
	return s.reconnect(ctx, next)
}

// reconnect swaps in a new connection for next. On failure the current
// connection stays in place.
func (s *Session) reconnect(ctx context.Context, next *sqldb.Conf) error {
	next.DSN = ""
	conn, err := connect(ctx, next)
	if err != nil {
		return s.Fail(err)
	}
	s.mu.Lock()
	old := s.conn
	s.conn, s.conf = conn, next
	s.mu.Unlock()
	if old != nil {
		closeConn(old)
	}
	s.OK()
	log.Printf("[INFO][pgsql] session reconnected as %q to %q", next.User, next.DB)
	return nil
}

func (s *Session) WarningCount(context.Context) (uint32, error) {
	return 0, nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return sqldb.ErrClosed
	}
	log.Println("[INFO][pgsql] closing session")
	closeConn(conn)
	log.Println("[INFO][pgsql] session closed")
	return nil
}

func closeConn(conn *pgx.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Close(ctx); err != nil {
		log.Printf("[WARN][pgsql] close failed: %v", err)
	}
}
