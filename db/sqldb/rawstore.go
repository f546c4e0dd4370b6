package sqldb

import (
	"fmt"
	"io/fs"
	"log"
	"path"
	"strings"
	"sync"
)

// RawSQLStore holds named statements that scripts run by key.
type RawSQLStore struct {
	mu    sync.RWMutex
	stmts map[string]string
}

func NewRawStore() *RawSQLStore {
	return &RawSQLStore{stmts: make(map[string]string)}
}

func (s *RawSQLStore) Set(key string, rawStmt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stmts[key] = rawStmt
}

func (s *RawSQLStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stmt, exists := s.stmts[key]
	return stmt, exists
}

func (s *RawSQLStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stmts)
}

type StoreGroupedStmtKey struct {
	Group    string
	StmtName string
}

func (k StoreGroupedStmtKey) String() string {
	if k.Group == "" {
		return k.StmtName
	}
	return k.Group + "." + k.StmtName
}

// LoadRawStmtsToStore walks fsys and loads statement files for dbtype.
// A file `users/by_id.sql` is stored under "users.by_id"; top-level files have
// no group. A file with the dbtype as extension (`by_id.mysql`) overrides the
// standard `.sql` one for that dialect. Standard SQL uses `?` / `??`
// placeholders, rewritten per dialect at query time by Bind.
func LoadRawStmtsToStore(store *RawSQLStore, fsys fs.FS, dbtype string) error {
	groups := map[string]struct{}{}
	stmtCnt := 0
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := path.Ext(p)
		name := strings.TrimSuffix(path.Base(p), ext)
		ext = strings.TrimPrefix(ext, ".")
		if ext != dbtype && ext != "sql" {
			return nil
		}
		group := path.Dir(p)
		if group == "." {
			group = ""
		}
		group = strings.ReplaceAll(group, "/", ".")
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		key := StoreGroupedStmtKey{Group: group, StmtName: name}.String()

		switch ext {
		case dbtype:
			// exact matching file extension -> use it as-is for dialects
			store.Set(key, string(data))
			stmtCnt++
		case "sql":
			// Standard SQL, unless a dialect file exists for the same name
			if !hasDialectFile(fsys, p, dbtype) {
				store.Set(key, string(data))
				stmtCnt++
			}
		}
		groups[group] = struct{}{}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to load sql raw stmts: %w", err)
	}
	log.Printf("[INFO] %d sql raw stmts loaded for %d groups (%s)", stmtCnt, len(groups), dbtype)
	return nil
}

func hasDialectFile(fsys fs.FS, sqlPath string, dbtype string) bool {
	_, err := fs.Stat(fsys, strings.TrimSuffix(sqlPath, ".sql")+"."+dbtype)
	return err == nil
}
