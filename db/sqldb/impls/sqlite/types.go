package sqlite

import (
	"database/sql"
	"strings"

	"github.com/zeptools/gw-dbbridge/db/sqldb"
)

// Primary result codes used when the error did not come from the engine.
const (
	CodeError     = 1
	CodeInterrupt = 9
)

func classify(ct *sql.ColumnType) sqldb.TypeTag {
	return classifyDecl(ct.DatabaseTypeName())
}

// classifyDecl follows the column affinity rules applied to the declared type.
// Expression columns have no declared type and keep whatever the driver returns.
func classifyDecl(decl string) sqldb.TypeTag {
	decl = strings.ToUpper(decl)
	switch {
	case decl == "":
		return sqldb.TagText
	case strings.Contains(decl, "INT"):
		return sqldb.TagInteger
	case strings.Contains(decl, "CHAR"), strings.Contains(decl, "CLOB"), strings.Contains(decl, "TEXT"):
		return sqldb.TagText
	case strings.Contains(decl, "BLOB"):
		return sqldb.TagBinary
	case strings.HasPrefix(decl, "BOOL"):
		return sqldb.TagBool
	case strings.Contains(decl, "REAL"), strings.Contains(decl, "FLOA"), strings.Contains(decl, "DOUB"),
		strings.Contains(decl, "NUMERIC"), strings.Contains(decl, "DECIMAL"):
		return sqldb.TagReal
	}
	return sqldb.TagText
}
