package bridge

import (
	"fmt"
	"strconv"
	"time"

	"github.com/zeptools/gw-dbbridge/db/sqldb"
	"github.com/zeptools/gw-dbbridge/script"
)

// DateTimeLayout is how driver-typed time values reach scripts, matching
// the server's own text rendering of DATETIME.
const DateTimeLayout = "2006-01-02 15:04:05"

// cellValue converts one buffered cell of column f into a script value.
// Text cells arrive as bytes and are parsed by type tag; a cell that does
// not parse is handed over as a String so nothing is lost. Numeric cells
// the driver already converted are taken as they are.
func cellValue(f sqldb.Field, cell any) script.Value {
	if cell == nil || f.Type == sqldb.TagNull {
		return script.Null{}
	}
	switch c := cell.(type) {
	case []byte:
		return textValue(f.Type, c)
	case string:
		return textValue(f.Type, []byte(c))
	case int64:
		if f.Type == sqldb.TagBool {
			return script.Bool(c != 0)
		}
		return script.Number(c)
	case uint64:
		return script.Number(c)
	case float32:
		// widen through the shortest text form so 1.1 stays 1.1
		f, err := strconv.ParseFloat(strconv.FormatFloat(float64(c), 'g', -1, 32), 64)
		if err != nil {
			return script.Number(c)
		}
		return script.Number(f)
	case float64:
		return script.Number(c)
	case bool:
		return script.Bool(c)
	case time.Time:
		return script.String(c.Format(DateTimeLayout))
	}
	if v, err := script.FromGo(cell); err == nil {
		return v
	}
	return script.String(fmt.Sprint(cell))
}

func textValue(tag sqldb.TypeTag, b []byte) script.Value {
	switch tag {
	case sqldb.TagInteger:
		s := string(b)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return script.Number(n)
		}
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			// above 2^53 the Number is the nearest float
			return script.Number(n)
		}
	case sqldb.TagBit:
		if len(b) <= 8 {
			var n uint64
			for _, c := range b {
				n = n<<8 | uint64(c)
			}
			return script.Number(n)
		}
	case sqldb.TagReal:
		if f, err := strconv.ParseFloat(string(b), 64); err == nil {
			return script.Number(f)
		}
	case sqldb.TagBool:
		switch string(b) {
		case "t", "true", "1":
			return script.Bool(true)
		case "f", "false", "0":
			return script.Bool(false)
		}
	}
	return script.String(b)
}

// rowArray builds the fetchRow value for one row.
func rowArray(fields []sqldb.Field, row []any) script.Array {
	arr := make(script.Array, len(fields))
	for i, f := range fields {
		arr[i] = cellValue(f, cellAt(row, i))
	}
	return arr
}

// rowDictionary builds the fetchAssoc value for one row. A repeated column
// name keeps its first position and takes the later value.
func rowDictionary(fields []sqldb.Field, row []any) *script.Dictionary {
	d := script.NewDictionary()
	for i, f := range fields {
		d.Set(f.Name, cellValue(f, cellAt(row, i)))
	}
	return d
}

func cellAt(row []any, i int) any {
	if i < len(row) {
		return row[i]
	}
	return nil
}

// bindArgs converts script arguments into driver arguments. Arrays become
// []any lists for `??` expansion.
func bindArgs(args []script.Value, firstIndex int) ([]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make([]any, len(args))
	for i, v := range args {
		x, err := script.ToGo(v)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", firstIndex+i+1, err)
		}
		out[i] = x
	}
	return out, nil
}
