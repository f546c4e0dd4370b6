package sqldb

import "sync"

// ResultSet is a fully buffered query result with a row cursor.
// After Free, the data is gone and Freed reports true.
type ResultSet struct {
	mu     sync.Mutex
	fields []Field
	rows   [][]any
	cursor int
	freed  bool
}

func NewResultSet(fields []Field, rows [][]any) *ResultSet {
	return &ResultSet{fields: fields, rows: rows}
}

func (r *ResultSet) Fields() []Field {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fields
}

func (r *ResultSet) NumFields() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fields)
}

func (r *ResultSet) NumRows() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// Next returns the row under the cursor and advances it.
func (r *ResultSet) Next() ([]any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.freed || r.cursor >= len(r.rows) {
		return nil, false
	}
	row := r.rows[r.cursor]
	r.cursor++
	return row, true
}

// Seek moves the cursor to row n. Offsets past the end leave the cursor
// exhausted.
func (r *ResultSet) Seek(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case n < 0:
		r.cursor = 0
	case n > len(r.rows):
		r.cursor = len(r.rows)
	default:
		r.cursor = n
	}
}

func (r *ResultSet) Free() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fields, r.rows = nil, nil
	r.cursor = 0
	r.freed = true
}

func (r *ResultSet) Freed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.freed
}
