package bridge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zeptools/gw-dbbridge/clients"
	"github.com/zeptools/gw-dbbridge/db/sqldb"
	"github.com/zeptools/gw-dbbridge/db/sqldb/impls/sqlite"
	"github.com/zeptools/gw-dbbridge/script"
)

func init() {
	sqlite.Register()
}

func newModule(t *testing.T, opts Options) *script.Module {
	t.Helper()
	opts.Type = "sqlite"
	m, err := NewModule(opts)
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}
	return m
}

func connect(t *testing.T, m *script.Module) *script.Object {
	t.Helper()
	v, err := m.Call(context.Background(), "connect", []script.Value{
		script.String(""), script.String(""), script.String(""), script.String(sqlite.MemoryPath),
	})
	if err != nil {
		t.Fatalf("connect() error = %v", err)
	}
	obj, ok := v.(*script.Object)
	if !ok || obj.Class().Name() != ConnectionClassName {
		t.Fatalf("connect() = %#v, want a Connection", v)
	}
	t.Cleanup(obj.Release)
	return obj
}

func call(t *testing.T, obj *script.Object, method string, args ...script.Value) script.Value {
	t.Helper()
	v, err := obj.Call(context.Background(), method, args)
	if err != nil {
		t.Fatalf("%s() error = %v", method, err)
	}
	return v
}

func get(t *testing.T, obj *script.Object, prop string) script.Value {
	t.Helper()
	v, err := obj.Get(context.Background(), prop)
	if err != nil {
		t.Fatalf("%s error = %v", prop, err)
	}
	return v
}

func seed(t *testing.T, conn *script.Object) {
	t.Helper()
	call(t, conn, "query", script.String("CREATE TABLE players (id INTEGER PRIMARY KEY, name TEXT, score REAL, alive BOOLEAN)"))
	call(t, conn, "query", script.String("INSERT INTO players (name, score, alive) VALUES (?, ?, ?)"),
		script.String("ann"), script.Number(1.5), script.Bool(true))
	call(t, conn, "query", script.String("INSERT INTO players (name, score, alive) VALUES (?, ?, ?)"),
		script.String("bob"), script.Null{}, script.Bool(false))
}

func TestNewModule(t *testing.T) {
	if _, err := NewModule(Options{Type: "nosuchdb"}); err == nil {
		t.Fatal("NewModule() should reject an unregistered type")
	}
	info := newModule(t, Options{}).Describe()
	if info.Name != "sqlite" || len(info.Classes) != 2 {
		t.Fatalf("Describe() = %+v", info)
	}
	want := []string{"connect", "connectNamed"}
	if strings.Join(info.Functions, ",") != strings.Join(want, ",") {
		t.Errorf("Functions = %v, want %v", info.Functions, want)
	}
	for _, c := range info.Classes {
		if c.Name == ResultClassName && !strings.Contains(strings.Join(c.Methods, ","), "fetchAssoc") {
			t.Errorf("Result methods = %v", c.Methods)
		}
	}
}

func TestQueryAndFetch(t *testing.T) {
	conn := connect(t, newModule(t, Options{}))
	seed(t, conn)

	if got := get(t, conn, "insertId"); got != script.Number(2) {
		t.Errorf("insertId = %v, want 2", got)
	}
	if got := get(t, conn, "affectedRows"); got != script.Number(1) {
		t.Errorf("affectedRows = %v, want 1", got)
	}
	if got := call(t, conn, "info"); got != script.String("Rows affected: 1") {
		t.Errorf("info() = %v", got)
	}

	v := call(t, conn, "query", script.String("SELECT id, name, score, alive FROM players ORDER BY id"))
	res, ok := v.(*script.Object)
	if !ok || res.Class().Name() != ResultClassName {
		t.Fatalf("query() = %#v, want a Result", v)
	}
	defer res.Release()

	if !script.IsNull(call(t, conn, "info")) {
		t.Error("info() should be null after a query with rows")
	}
	if got := get(t, res, "numRows"); got != script.Number(2) {
		t.Errorf("numRows = %v", got)
	}
	if got := get(t, res, "numFields"); got != script.Number(4) {
		t.Errorf("numFields = %v", got)
	}
	fields, _ := get(t, res, "fields").(script.Array)
	if len(fields) != 4 || fields[1] != script.String("name") {
		t.Errorf("fields = %v", fields)
	}

	assoc, ok := call(t, res, "fetchAssoc").(*script.Dictionary)
	if !ok {
		t.Fatal("fetchAssoc() did not return a dictionary")
	}
	if strings.Join(assoc.Keys(), ",") != "id,name,score,alive" {
		t.Errorf("keys = %v", assoc.Keys())
	}
	wantAssoc := map[string]script.Value{
		"id":    script.Number(1),
		"name":  script.String("ann"),
		"score": script.Number(1.5),
		"alive": script.Bool(true),
	}
	for k, want := range wantAssoc {
		if got, _ := assoc.Get(k); got != want {
			t.Errorf("assoc[%s] = %#v, want %#v", k, got, want)
		}
	}

	row, ok := call(t, res, "fetchRow").(script.Array)
	if !ok || len(row) != 4 {
		t.Fatalf("fetchRow() = %#v", row)
	}
	if row[1] != script.String("bob") || !script.IsNull(row[2]) || row[3] != script.Bool(false) {
		t.Errorf("row = %#v", row)
	}
	if !script.IsNull(call(t, res, "fetchRow")) || !script.IsNull(call(t, res, "fetchAssoc")) {
		t.Error("exhausted result should fetch null")
	}

	call(t, res, "seek", script.Number(1))
	row, _ = call(t, res, "fetchRow").(script.Array)
	if len(row) == 0 || row[0] != script.Number(2) {
		t.Errorf("fetchRow() after seek = %#v", row)
	}
	if _, err := res.Call(context.Background(), "seek", []script.Value{script.Number(5)}); err == nil {
		t.Error("seek() past the end should fail")
	}

	call(t, res, "free")
	_, err := res.Call(context.Background(), "fetchRow", nil)
	if err == nil || err.Error() != "SQLite result is deleted" {
		t.Errorf("fetchRow() after free error = %v", err)
	}
	if _, err := res.Get(context.Background(), "numRows"); err == nil || err.Error() != "SQLite result is deleted" {
		t.Errorf("numRows after free error = %v", err)
	}
}

func TestQueryList(t *testing.T) {
	conn := connect(t, newModule(t, Options{}))
	seed(t, conn)

	v := call(t, conn, "query", script.String("SELECT name FROM players WHERE id IN (??) ORDER BY id"),
		script.Array{script.Number(1), script.Number(2)})
	res := v.(*script.Object)
	defer res.Release()
	if got := get(t, res, "numRows"); got != script.Number(2) {
		t.Errorf("numRows = %v", got)
	}

	_, err := conn.Call(context.Background(), "query", []script.Value{
		script.String("SELECT ?"), script.NewDictionary(),
	})
	if err == nil || !strings.Contains(err.Error(), "argument 2") {
		t.Errorf("query() with a dictionary argument error = %v", err)
	}
}

func TestQueryReturning(t *testing.T) {
	conn := connect(t, newModule(t, Options{}))
	seed(t, conn)

	v := call(t, conn, "query", script.String("INSERT INTO players (name) VALUES (?) RETURNING id, name"), script.String("cy"))
	res, ok := v.(*script.Object)
	if !ok {
		t.Fatalf("query() with RETURNING = %#v, want a Result", v)
	}
	defer res.Release()
	row, _ := call(t, res, "fetchRow").(script.Array)
	if len(row) != 2 || row[0] != script.Number(3) || row[1] != script.String("cy") {
		t.Errorf("fetchRow() = %#v", row)
	}

	if got := call(t, conn, "query", script.String("UPDATE players SET name = 'returning' WHERE id = 3")); !script.IsNull(got) {
		t.Errorf("UPDATE without RETURNING = %#v, want null", got)
	}
}

func TestBinaryCells(t *testing.T) {
	conn := connect(t, newModule(t, Options{}))
	res := call(t, conn, "query", script.String("SELECT X'FF006180' AS b")).(*script.Object)
	defer res.Release()
	row := call(t, res, "fetchRow").(script.Array)
	if row[0] != script.String("\xff\x00a\x80") {
		t.Fatalf("blob cell = %q", row[0])
	}
	wire, err := script.EncodeValue(row, nil)
	if err != nil {
		t.Fatal(err)
	}
	back, err := script.DecodeValue(wire, nil)
	if err != nil {
		t.Fatal(err)
	}
	if arr, ok := back.(script.Array); !ok || arr[0] != row[0] {
		t.Errorf("wire round trip = %#v (%s)", back, wire)
	}
}

func TestDuplicateColumns(t *testing.T) {
	conn := connect(t, newModule(t, Options{}))
	res := call(t, conn, "query", script.String("SELECT 1 AS a, 2 AS b, 3 AS a")).(*script.Object)
	defer res.Release()
	assoc := call(t, res, "fetchAssoc").(*script.Dictionary)
	if strings.Join(assoc.Keys(), ",") != "a,b" {
		t.Fatalf("keys = %v", assoc.Keys())
	}
	if got, _ := assoc.Get("a"); got != script.Number(3) {
		t.Errorf("a = %v, want the later value", got)
	}
}

func TestQueryErrors(t *testing.T) {
	conn := connect(t, newModule(t, Options{}))

	_, err := conn.Call(context.Background(), "query", []script.Value{script.String("SELECT * FROM missing")})
	if err == nil || !strings.Contains(err.Error(), "no such table: missing") || !strings.HasSuffix(err.Error(), " (1)") {
		t.Fatalf("query() error = %v", err)
	}
	if got := get(t, conn, "errorNum"); got != script.Number(1) {
		t.Errorf("errorNum = %v", got)
	}
	if msg, _ := get(t, conn, "error").(script.String); !strings.Contains(string(msg), "no such table") {
		t.Errorf("error = %q", msg)
	}
	if got := get(t, conn, "affectedRows"); got != script.Number(-1) {
		t.Errorf("affectedRows after failure = %v", got)
	}

	if got := get(t, conn, "ping"); got != script.Bool(true) {
		t.Errorf("ping = %v", got)
	}
	if got := get(t, conn, "errorNum"); got != script.Number(0) {
		t.Errorf("errorNum after ping = %v", got)
	}
	if got := get(t, conn, "warningCount"); got != script.Number(0) {
		t.Errorf("warningCount = %v", got)
	}

	_, err = conn.Call(context.Background(), "selectDatabase", []script.Value{script.String("other")})
	if err == nil || !strings.Contains(err.Error(), "not supported") {
		t.Errorf("selectDatabase() error = %v", err)
	}

	var argErr *script.ArgumentError
	_, err = conn.Call(context.Background(), "query", []script.Value{script.Number(1)})
	if !errors.As(err, &argErr) || argErr.Want != script.KindString {
		t.Errorf("query(1) error = %v", err)
	}
}

func TestEscapeString(t *testing.T) {
	conn := connect(t, newModule(t, Options{}))
	if got := call(t, conn, "escapeString", script.String("it's")); got != script.String("it''s") {
		t.Errorf("escapeString() = %v", got)
	}
	_, err := conn.Call(context.Background(), "escapeString", []script.Value{script.String("a\x00b")})
	if err == nil || err.Error() != "Failed to escape the string" {
		t.Errorf("escapeString(NUL) error = %v", err)
	}
}

func TestClose(t *testing.T) {
	conn := connect(t, newModule(t, Options{}))
	call(t, conn, "close")

	for _, method := range []string{"close", "query", "info", "escapeString"} {
		_, err := conn.Call(context.Background(), method, []script.Value{script.String("SELECT 1")})
		if err == nil || err.Error() != "SQLite connection is closed" {
			t.Errorf("%s() after close error = %v", method, err)
		}
	}
	if _, err := conn.Get(context.Background(), "ping"); err == nil || err.Error() != "SQLite connection is closed" {
		t.Errorf("ping after close error = %v", err)
	}
}

func TestReleaseClosesSession(t *testing.T) {
	sess, err := sqlite.Open(context.Background(), &sqldb.Conf{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	b := &binding{label: sqlite.Label}
	native := &connection{label: b.label, sess: sess}
	obj := b.connectionClass().New(native)
	obj.Release()
	obj.Release()
	if _, err := native.session(); err == nil {
		t.Error("released connection should be closed")
	}
	if err := sess.Close(); !errors.Is(err, sqldb.ErrClosed) {
		t.Errorf("session still open after release: %v", err)
	}

	rs := sqldb.NewResultSet([]sqldb.Field{{Name: "a"}}, [][]any{{"x"}})
	b.resultClass().New(&result{label: b.label, rs: rs}).Release()
	if !rs.Freed() {
		t.Error("released result should be freed")
	}
}

func TestConnectErrors(t *testing.T) {
	m := newModule(t, Options{DenyRawConnect: true})
	_, err := m.Call(context.Background(), "connect", []script.Value{
		script.String(""), script.String(""), script.String(""), script.String(""),
	})
	if err == nil || !strings.HasPrefix(err.Error(), "[SQLite] connect:") {
		t.Errorf("connect() with DenyRawConnect error = %v", err)
	}

	m = newModule(t, Options{})
	_, err = m.Call(context.Background(), "connect", []script.Value{
		script.String(""), script.String(""), script.String(""), script.String(t.TempDir() + "/missing/dir/x.db"),
	})
	if err == nil || !strings.HasPrefix(err.Error(), "[SQLite] connect: ") || !strings.HasSuffix(err.Error(), ")") {
		t.Errorf("connect() to an unopenable path error = %v", err)
	}

	_, err = m.Call(context.Background(), "connect", []script.Value{script.String("")})
	var argErr *script.ArgumentError
	if !errors.As(err, &argErr) || !argErr.Missing {
		t.Errorf("connect() with missing args error = %v", err)
	}
}

func TestConnectNamed(t *testing.T) {
	m := newModule(t, Options{
		Presets: map[string]*sqldb.Conf{
			"world": {DB: sqlite.MemoryPath},
			"other": {Type: "mysql", Host: "db"},
		},
		QueryTimeout: 5 * time.Second,
	})
	ctx := context.Background()

	v, err := m.Call(ctx, "connectNamed", []script.Value{script.String("world")})
	if err != nil {
		t.Fatalf("connectNamed() error = %v", err)
	}
	v.(*script.Object).Release()

	if _, err = m.Call(ctx, "connectNamed", []script.Value{script.String("nope")}); err == nil {
		t.Error("connectNamed() should reject an unknown preset")
	}
	if _, err = m.Call(ctx, "connectNamed", []script.Value{script.String("other")}); err == nil {
		t.Error("connectNamed() should reject a preset of another type")
	}

	restricted := clients.WithHostConf(ctx, clients.HostConf{ID: "h1", Databases: []string{"other"}, Restricted: true})
	_, err = m.Call(restricted, "connectNamed", []script.Value{script.String("world")})
	if err == nil || !strings.Contains(err.Error(), "denied") {
		t.Errorf("connectNamed() for a restricted host error = %v", err)
	}
}

func TestQueryNamed(t *testing.T) {
	store := sqldb.NewRawStore()
	store.Set("players.create", "CREATE TABLE players (id INTEGER PRIMARY KEY, name TEXT)")
	store.Set("players.add", "INSERT INTO players (name) VALUES (?)")
	store.Set("players.byName", "SELECT id FROM players WHERE name = ?")

	conn := connect(t, newModule(t, Options{Statements: store}))
	call(t, conn, "queryNamed", script.String("players.create"))
	call(t, conn, "queryNamed", script.String("players.add"), script.String("ann"))
	res := call(t, conn, "queryNamed", script.String("players.byName"), script.String("ann")).(*script.Object)
	defer res.Release()
	row := call(t, res, "fetchRow").(script.Array)
	if row[0] != script.Number(1) {
		t.Errorf("row = %v", row)
	}
	if _, err := conn.Call(context.Background(), "queryNamed", []script.Value{script.String("nope")}); err == nil {
		t.Error("queryNamed() should reject an unknown statement")
	}
}
