package conf

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zeptools/gw-dbbridge/sec"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func initCore(t *testing.T, root string) *Core {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	c := &Core{}
	if err := c.BaseInit(root, ctx, cancel); err != nil {
		t.Fatalf("BaseInit() error = %v", err)
	}
	return c
}

func TestBaseInitJSON(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "config/.core.json", `{"app_name":"bridge","drivers":["sqlite"],"query_timeout_sec":3}`)
	c := initCore(t, root)
	if c.AppName != "bridge" || c.QueryTimeoutSec != 3 || len(c.Drivers) != 1 || c.Drivers[0] != "sqlite" {
		t.Errorf("Core = %+v", c)
	}
	if c.Socket != DefaultSocket || c.StatementsDir != DefaultStatementsDir {
		t.Errorf("defaults not applied: socket %q, statements %q", c.Socket, c.StatementsDir)
	}
}

func TestBaseInitYAML(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "config/core.yaml", "app_name: bridge\nsocket: /tmp/x.sock\ndeny_raw_connect: true\n")
	c := initCore(t, root)
	if c.AppName != "bridge" || c.Socket != "/tmp/x.sock" || !c.DenyRawConnect {
		t.Errorf("Core = %+v", c)
	}
	if len(c.Drivers) != 1 || c.Drivers[0] != "mysql" {
		t.Errorf("Drivers = %v, want default mysql", c.Drivers)
	}
}

func TestBaseInitThrottleYAML(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "config/core.yaml", "throttle:\n  burst: 10\n  increment: 2\n  period_ms: 500\n  idle_expire_sec: 60\n")
	c := initCore(t, root)
	if c.Throttle == nil {
		t.Fatal("Throttle not loaded")
	}
	if c.Throttle.Burst != 10 || c.Throttle.Increment != 2 || c.Throttle.PeriodMS != 500 || c.Throttle.IdleExpireSec != 60 {
		t.Errorf("Throttle = %+v", *c.Throttle)
	}
}

func TestBaseInitMissing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	err := (&Core{}).BaseInit(t.TempDir(), ctx, cancel)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("BaseInit() error = %v, want not exist", err)
	}

	root := t.TempDir()
	writeFile(t, root, "config/.core.json", `{"app_name":`)
	if err := (&Core{}).BaseInit(root, ctx, cancel); err == nil || !strings.Contains(err.Error(), ".core.json") {
		t.Errorf("BaseInit() with bad json error = %v", err)
	}
}

func TestPrepareSQLDatabases(t *testing.T) {
	keyEnc, err := sec.GenerateKey(sec.KeySize)
	if err != nil {
		t.Fatal(err)
	}
	key, _ := sec.DecodeKey(keyEnc)
	cipher, err := sec.NewCredentialCipher(key)
	if err != nil {
		t.Fatal(err)
	}
	pwEnc, err := cipher.EncryptString("s3cret")
	if err != nil {
		t.Fatal(err)
	}
	t.Setenv("DBBRIDGE_TEST_CRED_KEY", keyEnc)

	root := t.TempDir()
	writeFile(t, root, "config/.core.json", `{"drivers":["sqlite","mysql"],"credential_key_env":"DBBRIDGE_TEST_CRED_KEY"}`)
	writeFile(t, root, "config/sql-databases.yaml", `
world:
  type: mysql
  host: db.internal
  user: game
  pw_enc: `+pwEnc+`
  db: world
scratch:
  type: sqlite
  db: ":memory:"
`)
	writeFile(t, root, "sql/players/by_id.sql", "SELECT * FROM players WHERE id = ?")
	writeFile(t, root, "sql/players/by_id.sqlite", "SELECT * FROM players WHERE rowid = ?")
	writeFile(t, root, "sql/ping.sql", "SELECT 1")

	c := initCore(t, root)
	if err := c.PrepareSQLDatabases(); err != nil {
		t.Fatalf("PrepareSQLDatabases() error = %v", err)
	}
	world := c.SQLDBConfs["world"]
	if world == nil || world.PW != "s3cret" || world.PWEnc != "" {
		t.Fatalf("world preset = %+v", world)
	}
	if got, _ := c.StatementStores["sqlite"].Get("players.by_id"); !strings.Contains(got, "rowid") {
		t.Errorf("sqlite players.by_id = %q, want the dialect file", got)
	}
	if got, _ := c.StatementStores["mysql"].Get("players.by_id"); strings.Contains(got, "rowid") {
		t.Errorf("mysql players.by_id = %q, want the standard file", got)
	}
	if c.StatementStores["mysql"].Len() != 2 {
		t.Errorf("mysql statements = %d", c.StatementStores["mysql"].Len())
	}

	if err := c.PrepareModules(); err != nil {
		t.Fatalf("PrepareModules() error = %v", err)
	}
	if len(c.Modules) != 2 || c.Modules[0].Name() != "sqlite" || c.Modules[1].Name() != "mysql" {
		t.Errorf("Modules = %v", c.Modules)
	}

	c.ResourceCleanUp()
	if world.PW != "" {
		t.Error("ResourceCleanUp() should drop decrypted passwords")
	}
}

func TestPrepareSQLDatabasesErrors(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "config/.core.json", `{"drivers":["sqlite"]}`)
	writeFile(t, root, "config/.sql-databases.json", `{"world":{"type":"mysql","pw_enc":"abc"}}`)
	c := initCore(t, root)
	if err := c.PrepareSQLDatabases(); err == nil || !strings.Contains(err.Error(), "credential_key_env") {
		t.Errorf("PrepareSQLDatabases() error = %v", err)
	}

	root = t.TempDir()
	writeFile(t, root, "config/.core.json", `{"drivers":["sqlite"]}`)
	writeFile(t, root, "config/.sql-databases.json", `{"world":{"host":"db"}}`)
	c = initCore(t, root)
	if err := c.PrepareSQLDatabases(); err == nil || !strings.Contains(err.Error(), "no type") {
		t.Errorf("PrepareSQLDatabases() untyped preset error = %v", err)
	}
}

func TestServicesLifecycle(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "config/.core.json", `{"drivers":["sqlite"],"socket":"b.sock","throttle":{"burst":5,"increment":1,"period_ms":200}}`)
	c := initCore(t, root)
	if err := c.PrepareSQLDatabases(); err != nil {
		t.Fatal(err)
	}
	if err := c.PrepareModules(); err != nil {
		t.Fatal(err)
	}
	if err := c.PrepareUDSService(); err != nil {
		t.Fatalf("PrepareUDSService() error = %v", err)
	}
	if c.UDSService.SocketPath != filepath.Join(root, "b.sock") {
		t.Errorf("SocketPath = %q", c.UDSService.SocketPath)
	}
	if c.Limiter == nil || c.UDSService.Limiter == nil || len(c.services) != 2 {
		t.Fatalf("throttle limiter not wired: %d services", len(c.services))
	}
	if err := c.StartServices(); err != nil {
		t.Fatalf("StartServices() error = %v", err)
	}
	c.RootCancel()

	errc := make(chan error, 1)
	go func() { errc <- c.WaitServicesDone() }()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("WaitServicesDone() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("services did not finish after the root context was cancelled")
	}
}

func TestPrepareUDSServiceAuthSecret(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "config/.core.json", `{"drivers":["sqlite"],"auth_secret_env":"DBBRIDGE_TEST_UNSET_SECRET"}`)
	c := initCore(t, root)
	if err := c.PrepareUDSService(); err == nil {
		t.Error("PrepareUDSService() should fail when the secret variable is unset")
	}
	t.Setenv("DBBRIDGE_TEST_UNSET_SECRET", "0123456789abcdef")
	if err := c.PrepareUDSService(); err != nil || c.UDSService.Authenticate == nil {
		t.Errorf("PrepareUDSService() = %v, auth %v", err, c.UDSService != nil && c.UDSService.Authenticate != nil)
	}
}
