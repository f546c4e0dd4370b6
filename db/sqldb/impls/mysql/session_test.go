package mysql

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/zeptools/gw-dbbridge/db/sqldb"
)

func TestConfig(t *testing.T) {
	cfg, err := Config(&sqldb.Conf{
		Host:   "db.internal",
		User:   "game",
		PW:     "p@ss:word",
		DB:     "world",
		TZ:     "UTC",
		Params: map[string]string{"charset": "utf8mb4"},
	})
	if err != nil {
		t.Fatalf("Config() error = %v", err)
	}
	if cfg.Addr != "db.internal:3306" {
		t.Errorf("Addr = %q, want default port", cfg.Addr)
	}
	if !cfg.InterpolateParams || cfg.ParseTime || cfg.MultiStatements {
		t.Errorf("protocol flags = interpolate:%v parseTime:%v multi:%v", cfg.InterpolateParams, cfg.ParseTime, cfg.MultiStatements)
	}
	if cfg.Passwd != "p@ss:word" || cfg.DBName != "world" {
		t.Errorf("credentials not carried over: %+v", cfg)
	}
	if !strings.Contains(cfg.FormatDSN(), "interpolateParams=true") {
		t.Errorf("FormatDSN() = %q", cfg.FormatDSN())
	}

	cfg, err = Config(&sqldb.Conf{DSN: "u:p@tcp(10.0.0.1:3307)/other?parseTime=true"})
	if err != nil {
		t.Fatalf("Config(dsn) error = %v", err)
	}
	if cfg.Addr != "10.0.0.1:3307" || cfg.DBName != "other" || cfg.ParseTime {
		t.Errorf("Config(dsn) = addr %q db %q parseTime %v", cfg.Addr, cfg.DBName, cfg.ParseTime)
	}

	if _, err := Config(&sqldb.Conf{TZ: "Not/AZone"}); err == nil {
		t.Error("Config() expected error for invalid tz")
	}
}

func TestAddrOf(t *testing.T) {
	if got := addrOf(&sqldb.Conf{Host: "localhost"}); got != "127.0.0.1:3306" {
		t.Errorf("addrOf(localhost) = %q", got)
	}
	if got := addrOf(&sqldb.Conf{Host: "::1", Port: 3310}); got != "[::1]:3310" {
		t.Errorf("addrOf(::1) = %q", got)
	}
}

func TestClassifyTypeName(t *testing.T) {
	tests := map[string]sqldb.TypeTag{
		"TINYINT":         sqldb.TagInteger,
		"UNSIGNED BIGINT": sqldb.TagInteger,
		"YEAR":            sqldb.TagInteger,
		"BIT":             sqldb.TagBit,
		"DECIMAL":         sqldb.TagReal,
		"DOUBLE":          sqldb.TagReal,
		"NULL":            sqldb.TagNull,
		"VARCHAR":         sqldb.TagText,
		"DATETIME":        sqldb.TagText,
		"BLOB":            sqldb.TagBinary,
	}
	for name, want := range tests {
		if got := classifyTypeName(name); got != want {
			t.Errorf("classifyTypeName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestMapErr(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"server error", &gomysql.MySQLError{Number: 1064, Message: "You have an error in your SQL syntax"}, 1064},
		{"wrapped server error", fmt.Errorf("exec: %w", &gomysql.MySQLError{Number: 1146, Message: "no table"}), 1146},
		{"invalid conn", gomysql.ErrInvalidConn, CRServerGoneError},
		{"bad conn", driver.ErrBadConn, CRServerGoneError},
		{"deadline", context.DeadlineExceeded, CRServerLost},
		{"other", errors.New("weird"), CRUnknownError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := sqldb.Describe(mapErr(tt.err))
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
		})
	}
	if !errors.Is(mapErr(sqldb.ErrClosed), sqldb.ErrClosed) {
		t.Error("ErrClosed should pass through")
	}
	if mapErr(nil) != nil {
		t.Error("mapErr(nil) should be nil")
	}
}

func TestOpenUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := Open(ctx, &sqldb.Conf{Host: "127.0.0.1", Port: 1, User: "u"})
	if err == nil {
		t.Fatal("Open() expected error for a closed port")
	}
	code, msg := sqldb.Describe(err)
	if code != CRConnHostError {
		t.Errorf("code = %d (%s), want %d", code, msg, CRConnHostError)
	}
	if !strings.Contains(msg, "127.0.0.1:1") {
		t.Errorf("message %q does not name the address", msg)
	}
}

func TestEscapeString(t *testing.T) {
	s := &Session{}
	s.SetSyntax(syntaxForSQLMode("STRICT_TRANS_TABLES,NO_ENGINE_SUBSTITUTION"))
	got, err := s.EscapeString("a'b\n")
	if err != nil || got != `a\'b\n` {
		t.Errorf("EscapeString() = %q, %v", got, err)
	}

	s.SetSyntax(syntaxForSQLMode("ANSI_QUOTES, no_backslash_escapes"))
	got, err = s.EscapeString("a'b\\\x00")
	if err != nil || got != "a''b\\\x00" {
		t.Errorf("EscapeString() under NO_BACKSLASH_ESCAPES = %q, %v", got, err)
	}
}

func TestSyntaxForSQLMode(t *testing.T) {
	if syn := syntaxForSQLMode(""); !syn.BackslashEscapes || !syn.HashComments {
		t.Errorf("default syntax = %+v", syn)
	}
	syn := syntaxForSQLMode("NO_BACKSLASH_ESCAPES")
	if syn.BackslashEscapes {
		t.Error("NO_BACKSLASH_ESCAPES should disable backslash escapes")
	}
	query, _, err := syn.Bind(`SELECT 'a\', ?`, '?', []any{1})
	if err != nil || query != `SELECT 'a\', ?` {
		t.Errorf("Bind() without backslash escapes = %q, %v", query, err)
	}

	mysqlSyn := sqldb.SyntaxForDBType["mysql"]
	for query, want := range map[string]bool{
		"SET SESSION sql_mode = 'ANSI'": true,
		"SET @@sql_mode := ''":          true,
		"SET NAMES utf8mb4":             false,
		"SELECT @@sql_mode":             false,
		"SET @x = 'sql_mode'":           false,
	} {
		if got := changesSQLMode(mysqlSyn, query); got != want {
			t.Errorf("changesSQLMode(%q) = %v, want %v", query, got, want)
		}
	}
}

func TestExecInfo(t *testing.T) {
	syn := sqldb.SyntaxForDBType["mysql"]
	tests := []struct {
		query string
		want  bool
	}{
		{"INSERT INTO t (a, b) VALUES (1, 2)", false},
		{"INSERT INTO t (a, b) VALUES (1, 2), (3, 4)", true},
		{"INSERT INTO t VALUES ROW(1), ROW(2)", true},
		{"INSERT INTO t (a) VALUES (1) ON DUPLICATE KEY UPDATE a = VALUES(a)", false},
		{"INSERT INTO t (a) VALUES ('(x), (y)')", false},
		{"INSERT INTO t (a) SELECT a FROM u", true},
		{"REPLACE INTO t SET a = 1", false},
		{"UPDATE t SET a = 1", true},
		{"DELETE FROM t", false},
		{"ALTER TABLE t ADD COLUMN c INT", true},
		{"ALTER USER u IDENTIFIED BY 'x'", false},
		{"LOAD DATA INFILE 'f' INTO TABLE t", true},
		{"CREATE TABLE t (id INT)", false},
		{"/* c */ UPDATE t SET a = 2", true},
	}
	for _, tt := range tests {
		info, ok := execInfo(syn, tt.query, 2)
		if ok != tt.want {
			t.Errorf("execInfo(%q) reported = %v, want %v", tt.query, ok, tt.want)
		}
		if ok && info != "Rows affected: 2" {
			t.Errorf("execInfo(%q) = %q", tt.query, info)
		}
	}
}
