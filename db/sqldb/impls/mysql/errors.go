package mysql

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/zeptools/gw-dbbridge/db/sqldb"
)

// Client-side error numbers, as the C client reports them.
const (
	CRUnknownError    = 2000
	CRConnHostError   = 2003
	CRServerGoneError = 2006
	CRServerLost      = 2013
)

func mapErr(err error) error {
	if err == nil || errors.Is(err, sqldb.ErrClosed) {
		return err
	}
	var dbErr *sqldb.Error
	if errors.As(err, &dbErr) {
		return err
	}
	var myErr *gomysql.MySQLError
	if errors.As(err, &myErr) {
		return &sqldb.Error{Code: int(myErr.Number), Message: myErr.Message, Err: err}
	}
	switch {
	case errors.Is(err, gomysql.ErrInvalidConn), errors.Is(err, driver.ErrBadConn):
		return &sqldb.Error{Code: CRServerGoneError, Message: "MySQL server has gone away", Err: err}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &sqldb.Error{Code: CRServerLost, Message: "Lost connection to MySQL server during query", Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &sqldb.Error{Code: CRServerLost, Message: "Lost connection to MySQL server during query", Err: err}
	}
	return &sqldb.Error{Code: CRUnknownError, Message: err.Error(), Err: err}
}

// mapConnectErr is mapErr for errors while establishing a session: transport
// failures become CR_CONN_HOST_ERROR against addr.
func mapConnectErr(err error, addr string) error {
	var myErr *gomysql.MySQLError
	if errors.As(err, &myErr) {
		return mapErr(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, gomysql.ErrInvalidConn) || errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) {
		return &sqldb.Error{
			Code:    CRConnHostError,
			Message: fmt.Sprintf("Can't connect to MySQL server on '%s' (%v)", addr, err),
			Err:     err,
		}
	}
	return mapErr(err)
}
