package pgsql

import (
	"context"
	"errors"
	"net"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/zeptools/gw-dbbridge/db/sqldb"
)

// Error numbers are SQLSTATE codes read as decimal, which works for the
// all-digit classes. Codes with letters report CodeOther.
const (
	CodeOther                  = 1
	CodeConnectionDoesNotExist = 8003 // 08003
	CodeConnectionFailure      = 8006 // 08006
	CodeQueryCanceled          = 57014
)

func sqlstateNumber(code string) int {
	n, err := strconv.Atoi(code)
	if err != nil {
		return CodeOther
	}
	return n
}

func mapErr(err error) error {
	if err == nil || errors.Is(err, sqldb.ErrClosed) {
		return err
	}
	var dbErr *sqldb.Error
	if errors.As(err, &dbErr) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		n := sqlstateNumber(pgErr.Code)
		msg := pgErr.Message
		if n == CodeOther {
			msg += " [SQLSTATE " + pgErr.Code + "]"
		}
		return &sqldb.Error{Code: n, Message: msg, Err: err}
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &sqldb.Error{Code: CodeQueryCanceled, Message: "canceling statement due to timeout", Err: err}
	case pgconn.Timeout(err):
		return &sqldb.Error{Code: CodeQueryCanceled, Message: "canceling statement due to timeout", Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &sqldb.Error{Code: CodeConnectionFailure, Message: err.Error(), Err: err}
	}
	return &sqldb.Error{Code: CodeOther, Message: err.Error(), Err: err}
}

// mapConnectErr is mapErr for errors while establishing a session.
func mapConnectErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapErr(err)
	}
	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return &sqldb.Error{Code: CodeConnectionFailure, Message: err.Error(), Err: err}
	}
	return mapErr(err)
}
