// Package cli is the project-specific wrapper around ctl.Ctl for
// lockdownctl, the same shape as dollypki/cli's wrapper around its own
// HSM flags.
package cli

import (
	"log"
	"net"
	"os"
	"time"

	"github.com/go-phorce/lockdown/audit"
	auditlog "github.com/go-phorce/lockdown/audit/log"
	"github.com/go-phorce/lockdown/config"
	"github.com/go-phorce/lockdown/ctl"
	"github.com/go-phorce/lockdown/internal/xlog"
	"github.com/go-phorce/lockdown/store"
	"github.com/pkg/errors"
	"gopkg.in/natefinch/lumberjack.v2"
)

// configEnvVar names the environment variable lockdownctl checks for a
// config file location (a plain path, or file://path/env://VAR per
// config.Load), pre-seeding flag defaults before argv is parsed.
const configEnvVar = "LOCKDOWNCTL_CONFIG"

// Cli is lockdownctl's project-specific wrapper around ctl.Ctl, adding
// the flags every subcommand needs to dial a device and open its
// preference store.
type Cli struct {
	*ctl.Ctl

	flags struct {
		addr    *string
		dialTO  *time.Duration
		storeAt *string
		label   *string
		debug   *bool
		logFile *string
		auditAt *string
	}
}

// New creates the Cli, registering the flags shared by every subcommand.
// Flag defaults come from config.Load(LOCKDOWNCTL_CONFIG) when that
// environment variable is set; an explicit command-line flag still
// overrides whatever the config file supplied.
func New(d *ctl.ControlDefinition) *Cli {
	c := &Cli{Ctl: ctl.NewControl(d)}
	defaults := loadConfigDefaults()

	c.flags.addr = d.App.Flag("addr", "host:port of the lockdown service, typically a usbmuxd port forward to 0xf27e").
		Default(orDefault(defaults.Addr, "localhost:62078")).String()
	c.flags.dialTO = d.App.Flag("dial-timeout", "timeout for the initial TCP dial").
		Default(orDefault(defaults.DialTimeout, "5s")).Duration()
	c.flags.storeAt = d.App.Flag("store", "directory holding the host's preference file (defaults to ~/.lockdown)").
		Default(defaults.StoreDir).String()
	c.flags.label = d.App.Flag("label", "diagnostic label echoed in every request").
		Default(orDefault(defaults.Label, "lockdownctl")).String()
	c.flags.debug = d.App.Flag("debug", "redirect logs to stderr at DEBUG level").Short('d').Bool()
	c.flags.logFile = d.App.Flag("log-file", "rotate logs to this file instead of stderr (implies --debug)").
		Default(defaults.LogFile).String()
	c.flags.auditAt = d.App.Flag("audit-log-dir", "directory to append a pair/session audit trail to (disabled if unset)").
		Default(defaults.AuditLogDir).String()

	return c
}

// loadConfigDefaults reads LOCKDOWNCTL_CONFIG if set, returning a zero
// Config (all flags fall back to their hardcoded defaults) on any
// error or if the variable is unset; a malformed config file should
// not prevent the CLI from running with its built-in defaults.
func loadConfigDefaults() *config.Config {
	loc := os.Getenv(configEnvVar)
	if loc == "" {
		return &config.Config{}
	}
	cfg, err := config.Load(loc)
	if err != nil {
		return &config.Config{}
	}
	return cfg.Clone()
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// PopulateControl is a pre-action that wires logging before any
// subcommand action runs, mirroring dollypki/cli.Cli.PopulateControl.
func (c *Cli) PopulateControl() error {
	if *c.flags.logFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   *c.flags.logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		xlog.SetOutput(log.New(rotator, "", log.LstdFlags))
		xlog.SetGlobalLogLevel(xlog.DEBUG)
		return nil
	}
	if *c.flags.debug {
		xlog.SetGlobalLogLevel(xlog.DEBUG)
		return nil
	}
	xlog.SetGlobalLogLevel(xlog.CRITICAL)
	return nil
}

// Dial opens the TCP connection to the device's forwarded lockdown
// port. Real USB multiplexing is out of this module's scope (see
// transport.Device's doc comment); a net.Conn already satisfies that
// interface, so dialing a usbmuxd/iproxy port forward is the
// straightforward way to drive a real device from this CLI.
func (c *Cli) Dial() (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", *c.flags.addr, *c.flags.dialTO)
	if err != nil {
		return nil, errors.WithMessagef(err, "dial %s", *c.flags.addr)
	}
	return conn, nil
}

// Store opens the on-disk preference store, creating it on first use.
func (c *Cli) Store() (*store.FileStore, error) {
	st, err := store.NewFileStore(*c.flags.storeAt)
	if err != nil {
		return nil, errors.WithMessage(err, "open preference store")
	}
	return st, nil
}

// Label returns the --label flag value.
func (c *Cli) Label() string {
	return *c.flags.label
}

// Auditor returns a file-backed audit.Auditor rooted at --audit-log-dir,
// or nil if the flag was not set (lockdown.WithAuditor(nil) is then a
// no-op). Callers that construct one are responsible for Close()ing it.
func (c *Cli) Auditor() (audit.Auditor, error) {
	if *c.flags.auditAt == "" {
		return nil, nil
	}
	aud, err := auditlog.New("lockdownctl-audit.log", *c.flags.auditAt, 28, 10)
	if err != nil {
		return nil, errors.WithMessage(err, "open audit log")
	}
	return aud, nil
}

// RegisterAction wraps f as a ctl.Action, failing the control on error
// exactly like dollypki/cli.Cli.RegisterAction.
func (c *Cli) RegisterAction(f func(c *Cli, flags interface{}) error, params interface{}) ctl.Action {
	return func() error {
		if err := f(c, params); err != nil {
			return c.Fail("action failed", err)
		}
		return nil
	}
}
