package sqldb

import "strings"

// EscapeBackslash escapes s for use inside a quoted MySQL string literal,
// matching mysql_real_escape_string: NUL, \n, \r, \, ', " and Ctrl-Z.
func EscapeBackslash(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case 0:
			b.WriteString(`\0`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '"':
			b.WriteString(`\"`)
		case 0x1a:
			b.WriteString(`\Z`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// EscapeQuotes escapes s for standard SQL string literals by doubling single
// quotes. NUL bytes cannot be represented and yield ErrEscape.
func EscapeQuotes(s string) (string, error) {
	if strings.IndexByte(s, 0) >= 0 {
		return "", ErrEscape
	}
	return strings.ReplaceAll(s, "'", "''"), nil
}

// QuoteIdentifier wraps name in quote, doubling any quote inside it.
func QuoteIdentifier(name string, quote byte) string {
	q := string(quote)
	return q + strings.ReplaceAll(name, q, q+q) + q
}
