package mysql

import (
	"context"

	"github.com/zeptools/gw-dbbridge/db/sqldb"
)

func Register() {
	sqldb.RegisterFactory("mysql", Label, func(ctx context.Context, conf *sqldb.Conf) (sqldb.Session, error) {
		s, err := Open(ctx, conf)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}
