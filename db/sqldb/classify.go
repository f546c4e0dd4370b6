package sqldb

import "strings"

// rowKeywords start statements that produce a result set.
var rowKeywords = map[string]struct{}{
	"SELECT":   {},
	"SHOW":     {},
	"DESCRIBE": {},
	"DESC":     {},
	"EXPLAIN":  {},
	"WITH":     {},
	"VALUES":   {},
	"TABLE":    {},
	"CALL":     {},
	"PRAGMA":   {},
	"CHECK":    {},
	"CHECKSUM": {},
	"ANALYZE":  {},
	"OPTIMIZE": {},
	"REPAIR":   {},
	"HELP":     {},
}

// returningKeywords start statements that produce a result set only with
// a RETURNING clause.
var returningKeywords = map[string]struct{}{
	"INSERT":  {},
	"REPLACE": {},
	"UPDATE":  {},
	"DELETE":  {},
}

// ReturnsRows reports whether query is expected to produce a result set,
// judged by its first keyword. Leading whitespace, parentheses and comments
// ("-- ", "#", "/* */") are skipped.
func ReturnsRows(query string) bool {
	return Syntax{HashComments: true}.ReturnsRows(query)
}

// ReturnsRows is like the package-level ReturnsRows and also accepts
// data-modifying statements with a top-level RETURNING clause.
func (syn Syntax) ReturnsRows(query string) bool {
	kw := FirstKeyword(query)
	if _, ok := rowKeywords[kw]; ok {
		return true
	}
	if _, ok := returningKeywords[kw]; ok {
		return syn.HasTopLevelWord(query, "RETURNING")
	}
	return false
}

// FirstKeyword returns the first word of query in upper case.
func FirstKeyword(query string) string {
	s := query
	for {
		s = strings.TrimLeft(s, " \t\r\n(;")
		switch {
		case strings.HasPrefix(s, "--"), strings.HasPrefix(s, "#"):
			i := strings.IndexByte(s, '\n')
			if i < 0 {
				return ""
			}
			s = s[i+1:]
		case strings.HasPrefix(s, "/*"):
			i := strings.Index(s[2:], "*/")
			if i < 0 {
				return ""
			}
			s = s[i+4:]
		default:
			end := 0
			for end < len(s) && isWordByte(s[end]) {
				end++
			}
			return strings.ToUpper(s[:end])
		}
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
