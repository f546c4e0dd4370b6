package sqldb

import (
	"strconv"
	"sync"
)

// Status keeps the per-statement bookkeeping a Session exposes.
// Sessions embed it and call the *Done and Fail methods after each statement.
type Status struct {
	mu       sync.Mutex
	insertID uint64
	affected int64
	info     string
	hasInfo  bool
	errCode  int
	errMsg   string
}

// ExecDone records a statement without a result set.
func (s *Status) ExecDone(affected int64, insertID uint64) {
	s.ExecDoneInfo(affected, insertID, AffectedInfo(affected), true)
}

// ExecDoneInfo is ExecDone with the info string decided by the caller.
func (s *Status) ExecDoneInfo(affected int64, insertID uint64, info string, hasInfo bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.affected = affected
	s.insertID = insertID
	s.info, s.hasInfo = info, hasInfo
	if !hasInfo {
		s.info = ""
	}
	s.errCode, s.errMsg = 0, ""
}

// AffectedInfo is the default info string of a statement without a
// result set.
func AffectedInfo(affected int64) string {
	return "Rows affected: " + strconv.FormatInt(affected, 10)
}

// QueryDone records a statement that produced numRows buffered rows.
func (s *Status) QueryDone(numRows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.affected = int64(numRows)
	s.insertID = 0
	s.info, s.hasInfo = "", false
	s.errCode, s.errMsg = 0, ""
}

// OK clears the last error after a successful non-statement call.
func (s *Status) OK() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errCode, s.errMsg = 0, ""
}

// Fail records err and returns it unchanged.
func (s *Status) Fail(err error) error {
	code, msg := Describe(err)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errCode, s.errMsg = code, msg
	s.affected = -1
	s.info, s.hasInfo = "", false
	return err
}

func (s *Status) InsertID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertID
}

func (s *Status) AffectedRows() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.affected
}

func (s *Status) Info() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info, s.hasInfo
}

func (s *Status) LastError() (int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errCode, s.errMsg
}
