package mysql

import (
	"database/sql"
	"strings"

	"github.com/zeptools/gw-dbbridge/db/sqldb"
)

// classifyTypeName maps the driver's DatabaseTypeName onto a TypeTag.
// go-sql-driver/mysql reports unsigned integers as "UNSIGNED <TYPE>".
func classifyTypeName(name string) sqldb.TypeTag {
	switch strings.TrimPrefix(name, "UNSIGNED ") {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "BIGINT", "YEAR":
		return sqldb.TagInteger
	case "BIT":
		return sqldb.TagBit
	case "DECIMAL", "FLOAT", "DOUBLE":
		return sqldb.TagReal
	case "NULL":
		return sqldb.TagNull
	case "BLOB", "BINARY", "VARBINARY", "GEOMETRY":
		return sqldb.TagBinary
	}
	return sqldb.TagText
}

func classify(ct *sql.ColumnType) sqldb.TypeTag {
	return classifyTypeName(ct.DatabaseTypeName())
}
