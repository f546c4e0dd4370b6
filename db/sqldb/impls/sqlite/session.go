package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sort"
	"strings"

	"github.com/zeptools/gw-dbbridge/db/sqldb"
	"modernc.org/sqlite"
)

const (
	Label      = "SQLite"
	driverName = "sqlite"
	MemoryPath = ":memory:"
)

// Session is an embedded SQLite database held on one pinned connection.
// Conf.DB is the database file path.
type Session struct {
	sqldb.StdSession
}

// Ensure sqlite.Session implements sqldb.Session interface
var _ sqldb.Session = (*Session)(nil)

func Open(ctx context.Context, conf *sqldb.Conf) (*Session, error) {
	dsn := DSN(conf)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, mapErr(err)
	}
	// a second connection would see a different :memory: database
	db.SetMaxOpenConns(1)

	s := &Session{StdSession: sqldb.StdSession{
		LabelName: Label,
		Prefix:    sqldb.PlaceholderPrefixForDBType["sqlite"],
		Classify:  classify,
		MapErr:    mapErr,
	}}
	if err = s.Attach(ctx, db); err != nil {
		return nil, mapErr(err)
	}
	log.Printf("[INFO][sqlite] session opened on %q", dsn)
	return s, nil
}

// DSN returns the driver data source for conf. Params become _pragma
// entries, in key order.
func DSN(conf *sqldb.Conf) string {
	if conf.DSN != "" {
		return conf.DSN
	}
	path := conf.DB
	if path == "" {
		path = MemoryPath
	}
	if len(conf.Params) == 0 {
		return path
	}
	keys := make([]string, 0, len(conf.Params))
	for k := range conf.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	q := url.Values{}
	for _, k := range keys {
		q.Add("_pragma", fmt.Sprintf("%s(%s)", k, conf.Params[k]))
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "file:" + strings.TrimPrefix(path, "file:") + sep + q.Encode()
}

func (s *Session) Close() error {
	log.Println("[INFO][sqlite] closing session")
	if err := s.StdSession.Close(); err != nil {
		return err
	}
	log.Println("[INFO][sqlite] session closed")
	return nil
}

func mapErr(err error) error {
	if err == nil || errors.Is(err, sqldb.ErrClosed) {
		return err
	}
	var dbErr *sqldb.Error
	if errors.As(err, &dbErr) {
		return err
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		msg := strings.TrimSuffix(liteErr.Error(), fmt.Sprintf(" (%d)", code))
		return &sqldb.Error{Code: code, Message: msg, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &sqldb.Error{Code: CodeInterrupt, Message: "interrupted", Err: err}
	}
	return &sqldb.Error{Code: CodeError, Message: err.Error(), Err: err}
}
