package pgsql

import (
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/zeptools/gw-dbbridge/db/sqldb"
)

func classifyOID(oid uint32) sqldb.TypeTag {
	switch oid {
	case pgtype.Int2OID, pgtype.Int4OID, pgtype.Int8OID, pgtype.OIDOID:
		return sqldb.TagInteger
	case pgtype.Float4OID, pgtype.Float8OID, pgtype.NumericOID:
		return sqldb.TagReal
	case pgtype.BoolOID:
		return sqldb.TagBool
	case pgtype.ByteaOID:
		return sqldb.TagBinary
	}
	return sqldb.TagText
}
