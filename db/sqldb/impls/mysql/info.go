package mysql

import (
	"strings"

	"github.com/zeptools/gw-dbbridge/db/sqldb"
)

// execInfo follows mysql_info: only multi-row inserts, INSERT ... SELECT,
// LOAD DATA, ALTER TABLE and UPDATE report a string. The driver drops the
// server's own text from the OK packet, so the affected count stands in.
func execInfo(syn sqldb.Syntax, query string, affected int64) (string, bool) {
	if !reportsInfo(syn, query) {
		return "", false
	}
	return sqldb.AffectedInfo(affected), true
}

func reportsInfo(syn sqldb.Syntax, query string) bool {
	var words []string
	syn.Words(query, func(w string, depth int) bool {
		if depth == 0 && w != "(" {
			words = append(words, w)
		}
		return len(words) < 2
	})
	if len(words) == 0 {
		return false
	}
	switch words[0] {
	case "UPDATE", "LOAD":
		return true
	case "ALTER":
		return len(words) > 1 && words[1] == "TABLE"
	case "INSERT", "REPLACE":
		return insertReportsInfo(syn, query)
	}
	return false
}

// insertReportsInfo reports whether an INSERT or REPLACE reads from a
// SELECT or lists more than one row.
func insertReportsInfo(syn sqldb.Syntax, query string) bool {
	inValues, rows, selects := false, 0, false
	syn.Words(query, func(w string, depth int) bool {
		if depth != 0 {
			return true
		}
		switch {
		case w == "SELECT":
			selects = true
			return false
		case w == "VALUES" || w == "VALUE":
			inValues = true
		case inValues && w == "(":
			rows++
		case inValues && w != "ROW":
			// ON DUPLICATE KEY UPDATE or a row alias ends the list
			return false
		}
		return true
	})
	return selects || rows > 1
}

// syntaxForSQLMode derives the lexical rules of a session from its
// sql_mode.
func syntaxForSQLMode(mode string) sqldb.Syntax {
	syn := sqldb.SyntaxForDBType["mysql"]
	for _, m := range strings.Split(mode, ",") {
		if strings.EqualFold(strings.TrimSpace(m), "NO_BACKSLASH_ESCAPES") {
			syn.BackslashEscapes = false
		}
	}
	return syn
}

// changesSQLMode reports whether query is a SET touching sql_mode.
func changesSQLMode(syn sqldb.Syntax, query string) bool {
	return sqldb.FirstKeyword(query) == "SET" && syn.HasTopLevelWord(query, "SQL_MODE")
}
