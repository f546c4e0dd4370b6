package sqldb

import "fmt"

// Rows is the cursor a driver hands to BufferRows. *sql.Rows satisfies it.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

// BufferRows drains rows into memory and closes them. Each cell is stored
// as scanned: nil for NULL, otherwise the driver's value with []byte copied.
func BufferRows(rows Rows, fields []Field) (*ResultSet, error) {
	defer func() { _ = rows.Close() }()

	n := len(fields)
	var data [][]any
	for rows.Next() {
		cells := make([]any, n)
		dest := make([]any, n)
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		for i, c := range cells {
			if b, ok := c.([]byte); ok {
				cells[i] = append([]byte(nil), b...)
			}
		}
		data = append(data, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return NewResultSet(fields, data), nil
}
