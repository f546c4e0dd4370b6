// dbbridge serves database script modules to scripting hosts over a unix
// socket, and carries the helpers to produce its credentials.
//
//	dbbridge [-root dir] [serve]
//	dbbridge keygen
//	dbbridge encrypt [-key-env NAME] < password
//	dbbridge token -sub host [-dbs a,b] [-ttl 24h] [-secret-env NAME]
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/zeptools/gw-dbbridge/conf"
	"github.com/zeptools/gw-dbbridge/sec"
)

// Version information - set at build time via ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	defaultKeyEnv    = "DBBRIDGE_CREDENTIAL_KEY"
	defaultSecretEnv = "DBBRIDGE_AUTH_SECRET"
)

func main() {
	root := flag.String("root", ".", "application root holding config/")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-root dir] [serve|keygen|encrypt|token] [flags]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cmd, args := "serve", flag.Args()
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = serve(*root)
	case "keygen":
		err = keygen(os.Stdout)
	case "encrypt":
		err = encrypt(args, os.Stdin, os.Stdout)
	case "token":
		err = token(args, os.Stdout)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serve(appRoot string) error {
	log.Printf("[INFO] dbbridge %s (%s) starting", version, commit)
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	core := &conf.Core{}
	if err := core.BaseInit(appRoot, rootCtx, rootCancel); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	defer core.ResourceCleanUp()
	if err := core.PrepareSQLDatabases(); err != nil {
		return fmt.Errorf("preparing databases: %w", err)
	}
	if err := core.PrepareModules(); err != nil {
		return fmt.Errorf("preparing modules: %w", err)
	}
	if err := core.PrepareUDSService(); err != nil {
		return fmt.Errorf("preparing socket service: %w", err)
	}
	if err := core.StartServices(); err != nil {
		core.StopServices()
		return fmt.Errorf("starting services: %w", err)
	}
	err := core.WaitServicesDone()
	core.StopServices()
	log.Printf("[INFO] app [%s] stopped", core.AppName)
	return err
}

func keygen(w io.Writer) error {
	key, err := sec.GenerateKey(sec.KeySize)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, key)
	return err
}

func encrypt(args []string, r io.Reader, w io.Writer) error {
	fs := flag.NewFlagSet("encrypt", flag.ContinueOnError)
	keyEnv := fs.String("key-env", defaultKeyEnv, "environment variable holding the credential key")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cipher, err := sec.CredentialCipherFromEnv(*keyEnv)
	if err != nil {
		return err
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return errors.New("empty password on stdin")
	}
	enc, err := cipher.EncryptString(pw)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, enc)
	return err
}

func token(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	sub := fs.String("sub", "", "host name the token is issued to")
	dbs := fs.String("dbs", "", "comma-separated presets the host may open (empty = all)")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime, 0 for none")
	secretEnv := fs.String("secret-env", defaultSecretEnv, "environment variable holding the token secret")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sub == "" {
		return errors.New("-sub is required")
	}
	secret := os.Getenv(*secretEnv)
	if secret == "" {
		return fmt.Errorf("environment variable %s is not set", *secretEnv)
	}
	var list []string
	for _, db := range strings.Split(*dbs, ",") {
		if db = strings.TrimSpace(db); db != "" {
			list = append(list, db)
		}
	}
	signed, err := sec.IssueHostToken([]byte(secret), *sub, list, *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, signed)
	return err
}
