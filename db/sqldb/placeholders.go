package sqldb

import (
	"fmt"
	"strconv"
	"strings"
)

var PlaceholderPrefixForDBType = map[string]byte{
	"mysql":  '?',
	"pgsql":  '$',
	"mssql":  '@',
	"oracle": ':',
	"sqlite": 0, // NOTE: sqlite supports all of them
}

// Bind rewrites the generic placeholders in query for a dialect and
// flattens args to match.
//
//   - `?`  (static) takes one scalar argument
//   - `??` (dynamic) takes one []any argument and expands to a
//     comma-separated placeholder list of its length
//
// Placeholders inside quoted strings, quoted identifiers and comments are
// left alone. With no args the query is returned untouched. For ordinal
// dialects ('$') a query without any `?` is assumed to be written natively
// and passes through with its args.
func Bind(query string, prefix byte, args []any) (string, []any, error) {
	return syntaxForPrefix(prefix).Bind(query, prefix, args)
}

// Bind is the package-level Bind with explicit lexical rules.
func (syn Syntax) Bind(query string, prefix byte, args []any) (string, []any, error) {
	if len(args) == 0 {
		return query, nil, nil
	}
	var (
		b    strings.Builder
		out  = make([]any, 0, len(args))
		argI = 0
		ord  = 1
	)
	b.Grow(len(query) + 8*len(args))

	writePlaceholder := func() {
		if prefix == '?' || prefix == 0 {
			b.WriteByte('?')
			return
		}
		b.WriteByte(prefix)
		b.WriteString(strconv.Itoa(ord))
		ord++
	}

	for i := 0; i < len(query); i++ {
		if j := syn.skip(query, i); j > i {
			b.WriteString(query[i:j])
			i = j - 1
			continue
		}
		c := query[i]
		switch c {
		case '?':
			if argI >= len(args) {
				return "", nil, fmt.Errorf("bind: not enough arguments for placeholder %d", argI+1)
			}
			arg := args[argI]
			argI++
			if i+1 < len(query) && query[i+1] == '?' {
				i++
				list, ok := arg.([]any)
				if !ok {
					return "", nil, fmt.Errorf("bind: argument %d for `??` must be a list, got %T", argI, arg)
				}
				if len(list) == 0 {
					return "", nil, fmt.Errorf("bind: argument %d for `??` is an empty list", argI)
				}
				for k := range list {
					if k > 0 {
						b.WriteString(", ")
					}
					writePlaceholder()
				}
				out = append(out, list...)
				continue
			}
			if _, isList := arg.([]any); isList {
				return "", nil, fmt.Errorf("bind: argument %d is a list; use `??`", argI)
			}
			writePlaceholder()
			out = append(out, arg)
		default:
			b.WriteByte(c)
		}
	}

	if argI == 0 && prefix == '$' {
		return query, args, nil
	}
	if argI < len(args) {
		return "", nil, fmt.Errorf("bind: %d arguments given, %d placeholders found", len(args), argI)
	}
	return b.String(), out, nil
}
