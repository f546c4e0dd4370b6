package sqldb

import (
	"context"
	"log"
)

// Session is one live, stateful connection to a database server.
// Per-statement bookkeeping (insert id, affected rows, last error) follows
// the most recent statement run on the session.
type Session interface {
	Label() string // "MySQL", "PostgreSQL", ...

	// Query runs a statement. Statements that produce a result set return it
	// fully buffered; other statements return a nil *ResultSet.
	Query(ctx context.Context, query string, args ...any) (*ResultSet, error)

	Ping(ctx context.Context) error
	EscapeString(s string) (string, error)
	SelectDatabase(ctx context.Context, name string) error
	ChangeUser(ctx context.Context, user, pw, db string) error

	InsertID() uint64
	AffectedRows() int64 // -1 after a failed statement
	WarningCount(ctx context.Context) (uint32, error)
	Info() (string, bool)
	LastError() (code int, msg string)

	Close() error
}

// CloseSession closes s and logs the outcome.
func CloseSession(name string, s Session) {
	if s == nil {
		log.Printf("[INFO] `%s` Nothing to Close", name)
		return
	}
	if err := s.Close(); err != nil {
		log.Printf("[WARN] Failed to Close `%s`: %v", name, err)
	} else {
		log.Printf("[INFO] `%s` Closed", name)
	}
}
