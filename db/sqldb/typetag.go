package sqldb

// TypeTag is the driver-neutral classification of a result column, used to
// decide how a cell is handed to scripts.
type TypeTag int

const (
	TagText    TypeTag = iota // strings, dates, anything unclassified
	TagInteger                // TINY, SHORT, LONG, LONGLONG, INT24, YEAR
	TagBit                    // BIT: big-endian bytes
	TagReal                   // DECIMAL, NEWDECIMAL, FLOAT, DOUBLE
	TagBool
	TagBinary
	TagNull // column of the NULL type
)

func (t TypeTag) String() string {
	switch t {
	case TagInteger:
		return "integer"
	case TagBit:
		return "bit"
	case TagReal:
		return "real"
	case TagBool:
		return "bool"
	case TagBinary:
		return "binary"
	case TagNull:
		return "null"
	}
	return "text"
}

// Field describes one column of a ResultSet.
type Field struct {
	Name   string
	Type   TypeTag
	DBType string // driver's own type name, e.g. "UNSIGNED BIGINT" or "int8"
}
