// Package action implements lockdownctl's subcommands: each one dials
// the device, builds a lockdown.Client (which runs the full
// pair/validate/start-session handshake as part of construction), runs
// one operation, and tears the client down — in the same per-command
// shape as dollypki's hsm package.
package action

import (
	"github.com/go-phorce/lockdown"
	"github.com/go-phorce/lockdown/cmd/lockdownctl/cli"
	"github.com/pkg/errors"
)

// withClient dials, pairs, and hands the open Client to f, closing it
// afterward regardless of f's outcome.
func withClient(c *cli.Cli, f func(*lockdown.Client) error) error {
	conn, err := c.Dial()
	if err != nil {
		return err
	}

	st, err := c.Store()
	if err != nil {
		_ = conn.Close()
		return err
	}

	if _, err := lockdown.EnsureHostID(st); err != nil {
		_ = conn.Close()
		return errors.WithMessage(err, "ensure host id")
	}

	aud, err := c.Auditor()
	if err != nil {
		_ = conn.Close()
		return err
	}
	if aud != nil {
		defer aud.Close()
	}

	opts := []lockdown.Option{lockdown.WithStore(st), lockdown.WithLabel(c.Label())}
	if aud != nil {
		opts = append(opts, lockdown.WithAuditor(aud))
	}

	client, err := lockdown.NewClient(conn, opts...)
	if err != nil {
		return errors.WithMessage(err, "handshake")
	}
	defer client.Close()

	return f(client)
}

// Pair runs the handshake to completion and reports the paired
// device's session state; pairing itself happens inside NewClient, so
// by the time this action runs there is nothing left to do but confirm
// it succeeded.
func Pair(c *cli.Cli, flags interface{}) error {
	return withClient(c, func(client *lockdown.Client) error {
		c.Println("paired and session established")
		return nil
	})
}
