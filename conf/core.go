package conf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeptools/gw-dbbridge/bridge"
	"github.com/zeptools/gw-dbbridge/db/sqldb"
	"github.com/zeptools/gw-dbbridge/db/sqldb/impls/mysql"
	"github.com/zeptools/gw-dbbridge/db/sqldb/impls/pgsql"
	"github.com/zeptools/gw-dbbridge/db/sqldb/impls/sqlite"
	"github.com/zeptools/gw-dbbridge/script"
	"github.com/zeptools/gw-dbbridge/sec"
	"github.com/zeptools/gw-dbbridge/svc"
	"github.com/zeptools/gw-dbbridge/throttle"
	"github.com/zeptools/gw-dbbridge/uds"
)

const (
	DefaultSocket        = "dbbridge.sock"
	DefaultStatementsDir = "sql"
)

// Core - common config
type Core struct {
	AppName          string                        `json:"app_name" yaml:"app_name"`
	Socket           string                        `json:"socket" yaml:"socket"`                         // UDS path, relative to AppRoot unless absolute
	Drivers          []string                      `json:"drivers" yaml:"drivers"`                       // Database types exposed as script modules. Default: mysql
	CredentialKeyEnv string                        `json:"credential_key_env" yaml:"credential_key_env"` // Env var holding the pw_enc key
	AuthSecretEnv    string                        `json:"auth_secret_env" yaml:"auth_secret_env"`       // Env var holding the host token secret. Empty = no auth
	QueryTimeoutSec  int                           `json:"query_timeout_sec" yaml:"query_timeout_sec"`   // 0 = unbounded
	DenyRawConnect   bool                          `json:"deny_raw_connect" yaml:"deny_raw_connect"`     // Only presets via connectNamed
	StatementsDir    string                        `json:"statements_dir" yaml:"statements_dir"`         // Raw statements, relative to AppRoot
	Throttle         *ThrottleConf                 `json:"throttle" yaml:"throttle"`                     // Per-host call limits. nil = unlimited
	AppRoot          string                        `json:"-" yaml:"-"`                                   // Filled from the command line
	RootCtx          context.Context               `json:"-" yaml:"-"`                                   // Global Context with RootCancel
	RootCancel       context.CancelFunc            `json:"-" yaml:"-"`                                   // CancelFunc for RootCtx
	UDSService       *uds.Service                  `json:"-" yaml:"-"`                                   // PrepareUDSService
	Limiter          *throttle.Limiter[string]     `json:"-" yaml:"-"`                                   // PrepareUDSService, when Throttle is set
	SQLDBConfs       map[string]*sqldb.Conf        `json:"-" yaml:"-"`                                   // PrepareSQLDatabases: named presets
	StatementStores  map[string]*sqldb.RawSQLStore `json:"-" yaml:"-"`                                   // PrepareSQLDatabases: per dialect
	Modules          []*script.Module              `json:"-" yaml:"-"`                                   // PrepareModules

	services []svc.Service // Services to Manage
	done     chan error
}

type ThrottleConf struct {
	throttle.BucketConf `yaml:",inline"`
	CleanupCycleSec     int `json:"cleanup_cycle_sec" yaml:"cleanup_cycle_sec"`
	IdleExpireSec       int `json:"idle_expire_sec" yaml:"idle_expire_sec"`
}

// BaseInit - 1st step for initialization
// 1. set AppRoot
// 2. load config/.core.json (or config/core.yaml)
// 3. Start ShutdownSignalListener
func (c *Core) BaseInit(appRoot string, rootCtx context.Context, rootCancel context.CancelFunc) error {
	c.AppRoot = appRoot
	if err := c.loadConfigFile(c, ".core.json", "core.yaml", "core.yml"); err != nil {
		return err
	}
	if len(c.Drivers) == 0 {
		c.Drivers = []string{"mysql"}
	}
	if c.Socket == "" {
		c.Socket = DefaultSocket
	}
	if c.StatementsDir == "" {
		c.StatementsDir = DefaultStatementsDir
	}
	c.RootCtx = rootCtx
	c.RootCancel = rootCancel
	c.startShutdownSignalListener()
	return nil
}

// loadConfigFile decodes the first of names found under config/ into dst.
// The extension picks the decoder.
func (c *Core) loadConfigFile(dst any, names ...string) error {
	for _, name := range names {
		confFilePath := filepath.Join(c.AppRoot, "config", name)
		confBytes, err := os.ReadFile(confFilePath) // ([]byte, error)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		switch filepath.Ext(name) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(confBytes, dst)
		default:
			err = json.Unmarshal(confBytes, dst)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", confFilePath, err)
		}
		log.Printf("[INFO][CORE] loaded %s", confFilePath)
		return nil
	}
	return fmt.Errorf("none of %s found in %s: %w", strings.Join(names, ", "), filepath.Join(c.AppRoot, "config"), fs.ErrNotExist)
}

func (c *Core) AddService(s svc.Service) {
	log.Printf("[INFO] adding service: %s", s.Name())
	c.services = append(c.services, s)
	log.Printf("[INFO] total services: %d", len(c.services))
}

func (c *Core) StartServices() error {
	c.done = make(chan error, len(c.services))
	for _, s := range c.services {
		err := s.Start()
		if err != nil {
			return err
		}
		go func(s svc.Service) {
			err := <-s.Done()
			c.done <- err
		}(s) // pass the loop var to the param. otherwise, they are captured inside goroutine lazily
	}
	return nil
}

func (c *Core) WaitServicesDone() error {
	for i := 0; i < len(c.services); i++ {
		if err := <-c.done; err != nil {
			return err
		}
	}
	return nil
}

func (c *Core) StopServices() {
	for _, s := range c.services {
		s.Stop()
	}
}

var once sync.Once

func (c *Core) startShutdownSignalListener() {
	once.Do(func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigs
			log.Printf("[INFO] got signal [%s]. shutting down app [%s] ...", sig, c.AppName)
			c.RootCancel() // broadcast to all child services via Context.Done()
		}()
	})
	log.Printf("[INFO][CORE] shutdown signal listener started")
}

// PrepareSQLDatabases registers the drivers, loads the named presets from
// config/.sql-databases.json (or sql-databases.yaml), decrypts their
// credentials and loads raw statements for every exposed driver.
// Presets are optional.
func (c *Core) PrepareSQLDatabases() error {
	// Registering Supported Implementations
	mysql.Register()
	pgsql.Register()
	sqlite.Register()

	c.SQLDBConfs = make(map[string]*sqldb.Conf)
	err := c.loadConfigFile(&c.SQLDBConfs, ".sql-databases.json", "sql-databases.yaml", "sql-databases.yml")
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err = c.decryptCredentials(); err != nil {
		return err
	}
	for name, conf := range c.SQLDBConfs {
		if conf.Type == "" {
			return fmt.Errorf("database %q has no type", name)
		}
	}

	c.StatementStores = make(map[string]*sqldb.RawSQLStore, len(c.Drivers))
	stmtDir := c.StatementsDir
	if !filepath.IsAbs(stmtDir) {
		stmtDir = filepath.Join(c.AppRoot, stmtDir)
	}
	_, statErr := os.Stat(stmtDir)
	for _, dbType := range c.Drivers {
		store := sqldb.NewRawStore()
		if statErr == nil {
			if err = sqldb.LoadRawStmtsToStore(store, os.DirFS(stmtDir), dbType); err != nil {
				return err
			}
		}
		c.StatementStores[dbType] = store
	}
	return nil
}

func (c *Core) decryptCredentials() error {
	var cipher *sec.CredentialCipher
	names := make([]string, 0, len(c.SQLDBConfs))
	for name := range c.SQLDBConfs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		conf := c.SQLDBConfs[name]
		if conf.PWEnc == "" {
			continue
		}
		if cipher == nil {
			if c.CredentialKeyEnv == "" {
				return fmt.Errorf("database %q has pw_enc but credential_key_env is not set", name)
			}
			var err error
			if cipher, err = sec.CredentialCipherFromEnv(c.CredentialKeyEnv); err != nil {
				return err
			}
		}
		pw, err := cipher.DecryptString(conf.PWEnc)
		if err != nil {
			return fmt.Errorf("database %q: cannot decrypt pw_enc: %w", name, err)
		}
		conf.PW, conf.PWEnc = pw, ""
	}
	return nil
}

// PrepareModules builds one script module per exposed driver.
// Prerequisite: PrepareSQLDatabases
func (c *Core) PrepareModules() error {
	c.Modules = c.Modules[:0]
	for _, dbType := range c.Drivers {
		presets := make(map[string]*sqldb.Conf)
		for name, conf := range c.SQLDBConfs {
			if conf.Type == dbType {
				presets[name] = conf
			}
		}
		m, err := bridge.NewModule(bridge.Options{
			Type:           dbType,
			Presets:        presets,
			Statements:     c.StatementStores[dbType],
			QueryTimeout:   time.Duration(c.QueryTimeoutSec) * time.Second,
			DenyRawConnect: c.DenyRawConnect,
		})
		if err != nil {
			return err
		}
		c.Modules = append(c.Modules, m)
	}
	return nil
}

// PrepareUDSService exposes the modules on the host socket.
// Prerequisite: PrepareModules
func (c *Core) PrepareUDSService() error {
	var auth uds.Authenticator
	if c.AuthSecretEnv != "" {
		secret := os.Getenv(c.AuthSecretEnv)
		if secret == "" {
			return fmt.Errorf("environment variable %s is not set", c.AuthSecretEnv)
		}
		auth = uds.TokenAuthenticator([]byte(secret))
	}
	sockPath := c.Socket
	if !filepath.IsAbs(sockPath) {
		sockPath = filepath.Join(c.AppRoot, sockPath)
	}
	c.UDSService = uds.NewService(c.RootCtx, sockPath, c.Modules, auth)
	if c.Throttle != nil {
		cycle := time.Duration(c.Throttle.CleanupCycleSec) * time.Second
		if cycle <= 0 {
			cycle = time.Minute
		}
		expire := time.Duration(c.Throttle.IdleExpireSec) * time.Second
		if expire <= 0 {
			expire = 10 * time.Minute
		}
		c.Limiter = throttle.NewLimiter[string](c.RootCtx, c.Throttle.BucketConf, cycle, expire)
		c.UDSService.Limiter = c.Limiter
		c.AddService(c.Limiter)
	}
	c.AddService(c.UDSService)
	return nil
}

func (c *Core) ResourceCleanUp() {
	log.Println("[INFO] App Resource Cleaning Up...")
	// sessions belong to host objects and are closed when the UDS service
	// releases them; only the presets' secrets are left to drop here
	for _, conf := range c.SQLDBConfs {
		conf.PW = ""
	}
	log.Println("[INFO] App Resource Cleanup Complete")
}
