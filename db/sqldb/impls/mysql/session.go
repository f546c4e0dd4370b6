package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/zeptools/gw-dbbridge/db/sqldb"
)

const (
	Label       = "MySQL"
	DefaultPort = 3306
)

var connectTimeout = 10 * time.Second

type Session struct {
	sqldb.StdSession

	confMu sync.Mutex
	conf   *sqldb.Conf
}

// Ensure mysql.Session implements sqldb.Session interface
var _ sqldb.Session = (*Session)(nil)

// Open connects and pins a session described by conf.
func Open(ctx context.Context, conf *sqldb.Conf) (*Session, error) {
	s := &Session{
		StdSession: sqldb.StdSession{
			LabelName: Label,
			Prefix:    sqldb.PlaceholderPrefixForDBType["mysql"],
			Classify:  classify,
			MapErr:    mapErr,
			ExecInfo:  execInfo,
		},
		conf: conf.Clone(),
	}
	if err := s.attach(ctx, s.conf); err != nil {
		return nil, err
	}
	log.Printf("[INFO][mysql] session opened to %s/%s", addrOf(s.conf), s.conf.DB)
	return s, nil
}

// Config builds the driver configuration for conf. Arguments are
// interpolated client side, so every statement runs in the text protocol.
// The driver still converts numeric cells to int64, uint64, float32 or
// float64, which the bridge marshals by type.
func Config(conf *sqldb.Conf) (*gomysql.Config, error) {
	var (
		cfg *gomysql.Config
		err error
	)
	if conf.DSN != "" {
		if cfg, err = gomysql.ParseDSN(conf.DSN); err != nil {
			return nil, err
		}
	} else {
		cfg = gomysql.NewConfig()
		cfg.User = conf.User
		cfg.Passwd = conf.PW
		cfg.Net = "tcp"
		cfg.Addr = addrOf(conf)
		cfg.DBName = conf.DB
		cfg.Timeout = connectTimeout
		if conf.TZ != "" {
			loc, err := time.LoadLocation(conf.TZ)
			if err != nil {
				return nil, fmt.Errorf("invalid tz %q: %w", conf.TZ, err)
			}
			cfg.Loc = loc
		}
		if len(conf.Params) > 0 {
			cfg.Params = make(map[string]string, len(conf.Params))
			for k, v := range conf.Params {
				cfg.Params[k] = v
			}
		}
	}
	cfg.InterpolateParams = true
	cfg.ParseTime = false
	cfg.MultiStatements = false
	return cfg, nil
}

func addrOf(conf *sqldb.Conf) string {
	host := conf.Host
	if host == "" || host == "localhost" {
		host = "127.0.0.1"
	}
	port := conf.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func (s *Session) attach(ctx context.Context, conf *sqldb.Conf) error {
	cfg, err := Config(conf)
	if err != nil {
		return &sqldb.Error{Code: CRUnknownError, Message: err.Error(), Err: err}
	}
	connector, err := gomysql.NewConnector(cfg)
	if err != nil {
		return &sqldb.Error{Code: CRUnknownError, Message: err.Error(), Err: err}
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1)
	if err = s.Attach(ctx, db); err != nil {
		return mapConnectErr(err, cfg.Addr)
	}
	s.refreshSyntax(ctx)
	return nil
}

// refreshSyntax reads the session's sql_mode. Unreadable modes keep the
// default rules.
func (s *Session) refreshSyntax(ctx context.Context) {
	var mode string
	err := s.WithConn(func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, "SELECT @@SESSION.sql_mode").Scan(&mode)
	})
	if err != nil {
		log.Printf("[WARN][mysql] cannot read sql_mode: %v", err)
		s.SetSyntax(sqldb.SyntaxForDBType["mysql"])
		return
	}
	s.SetSyntax(syntaxForSQLMode(mode))
}

func (s *Session) Query(ctx context.Context, query string, args ...any) (*sqldb.ResultSet, error) {
	rs, err := s.StdSession.Query(ctx, query, args...)
	if err == nil && changesSQLMode(s.Syntax(), query) {
		s.refreshSyntax(ctx)
	}
	return rs, err
}

// EscapeString escapes like mysql_real_escape_string: with backslashes,
// or by doubling quotes under NO_BACKSLASH_ESCAPES.
func (s *Session) EscapeString(str string) (string, error) {
	if s.Syntax().BackslashEscapes {
		return sqldb.EscapeBackslash(str), nil
	}
	// NUL needs no escape without backslash escapes
	return strings.ReplaceAll(str, "'", "''"), nil
}

func (s *Session) SelectDatabase(ctx context.Context, name string) error {
	err := s.WithConn(func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, "USE "+sqldb.QuoteIdentifier(name, '`'))
		return err
	})
	if err != nil {
		return s.Fail(mapErr(err))
	}
	s.confMu.Lock()
	s.conf.DB = name
	s.confMu.Unlock()
	s.OK()
	return nil
}

// ChangeUser re-authenticates by opening a fresh session with the new
// credentials. On failure the current session stays in place.
func (s *Session) ChangeUser(ctx context.Context, user, pw, db string) error {
	s.confMu.Lock()
	next := s.conf.Clone()
	s.confMu.Unlock()
	next.User, next.PW, next.DB = user, pw, db
	next.DSN = ""
	if err := s.attach(ctx, next); err != nil {
		return s.Fail(err)
	}
	s.confMu.Lock()
	s.conf = next
	s.confMu.Unlock()
	s.OK()
	log.Printf("[INFO][mysql] session user changed to %q", user)
	return nil
}

func (s *Session) WarningCount(ctx context.Context) (uint32, error) {
	var n uint32
	err := s.WithConn(func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, "SELECT @@warning_count").Scan(&n)
	})
	if err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}

func (s *Session) Close() error {
	log.Println("[INFO][mysql] closing session")
	if err := s.StdSession.Close(); err != nil {
		return err
	}
	log.Println("[INFO][mysql] session closed")
	return nil
}
