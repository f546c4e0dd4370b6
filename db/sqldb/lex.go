package sqldb

import "strings"

// Syntax holds the lexical rules that differ between dialects.
type Syntax struct {
	HashComments     bool // '#' starts a line comment
	BackslashEscapes bool // '\' escapes the next byte inside quoted text
	DashNeedsSpace   bool // "--" opens a comment only before whitespace
}

var SyntaxForDBType = map[string]Syntax{
	"mysql":  {HashComments: true, BackslashEscapes: true, DashNeedsSpace: true},
	"pgsql":  {},
	"sqlite": {},
}

// syntaxForPrefix is the fallback for callers that only know the
// placeholder prefix.
func syntaxForPrefix(prefix byte) Syntax {
	if prefix == '?' {
		return SyntaxForDBType["mysql"]
	}
	return Syntax{}
}

// skip returns the index just past the quoted literal, quoted identifier or
// comment starting at query[i], or i when none starts there. Unterminated
// ones run to the end of query.
func (syn Syntax) skip(query string, i int) int {
	c := query[i]
	switch {
	case c == '\'' || c == '"' || c == '`':
		for j := i + 1; j < len(query); j++ {
			switch query[j] {
			case '\\':
				if syn.BackslashEscapes {
					j++
				}
			case c:
				return j + 1
			}
		}
		return len(query)
	case c == '-' && syn.dashComment(query, i), c == '#' && syn.HashComments:
		if j := strings.IndexByte(query[i:], '\n'); j >= 0 {
			return i + j + 1
		}
		return len(query)
	case c == '/' && strings.HasPrefix(query[i:], "/*"):
		if j := strings.Index(query[i+2:], "*/"); j >= 0 {
			return i + 2 + j + 2
		}
		return len(query)
	}
	return i
}

func (syn Syntax) dashComment(query string, i int) bool {
	if !strings.HasPrefix(query[i:], "--") {
		return false
	}
	if !syn.DashNeedsSpace || i+2 == len(query) {
		return true
	}
	c := query[i+2]
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// Words calls visit for each bare word of query in upper case, with its
// parenthesis depth. An opening parenthesis is visited as "(" at the depth
// it opens from. Quoted text and comments are skipped. Returning false
// stops the walk.
func (syn Syntax) Words(query string, visit func(word string, depth int) bool) {
	depth := 0
	for i := 0; i < len(query); {
		if j := syn.skip(query, i); j > i {
			i = j
			continue
		}
		c := query[i]
		switch {
		case c == '(':
			if !visit("(", depth) {
				return
			}
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case isWordByte(c):
			end := i
			for end < len(query) && isWordByte(query[end]) {
				end++
			}
			if !visit(strings.ToUpper(query[i:end]), depth) {
				return
			}
			i = end
			continue
		}
		i++
	}
}

// HasTopLevelWord reports whether word appears outside any parentheses.
func (syn Syntax) HasTopLevelWord(query, word string) bool {
	found := false
	syn.Words(query, func(w string, depth int) bool {
		found = depth == 0 && w == word
		return !found
	})
	return found
}
