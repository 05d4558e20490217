package action

import (
	"fmt"

	"github.com/go-phorce/lockdown"
	"github.com/go-phorce/lockdown/cmd/lockdownctl/cli"
)

// StartServiceFlags configures the startservice subcommand.
type StartServiceFlags struct {
	Name *string
}

// StartService asks the device to start an auxiliary service and
// prints the port it is now listening on.
func StartService(c *cli.Cli, flags interface{}) error {
	f := flags.(*StartServiceFlags)
	return withClient(c, func(client *lockdown.Client) error {
		port, err := client.StartService(*f.Name)
		if err != nil {
			return err
		}
		c.Println(fmt.Sprintf("%d", port))
		return nil
	})
}

// Activate sends an empty activation record. A real activation record
// is device-issued state this CLI has no business fabricating; this
// subcommand exists to exercise the wire operation during manual
// testing against a simulated device, not to actually activate a
// real one.
func Activate(c *cli.Cli, flags interface{}) error {
	return withClient(c, func(client *lockdown.Client) error {
		if err := client.Activate(map[string]interface{}{}); err != nil {
			return err
		}
		c.Println("activated")
		return nil
	})
}

// Deactivate reverts a prior Activate.
func Deactivate(c *cli.Cli, flags interface{}) error {
	return withClient(c, func(client *lockdown.Client) error {
		if err := client.Deactivate(); err != nil {
			return err
		}
		c.Println("deactivated")
		return nil
	})
}

// EnterRecovery asks the device to reboot into recovery mode.
func EnterRecovery(c *cli.Cli, flags interface{}) error {
	return withClient(c, func(client *lockdown.Client) error {
		if err := client.EnterRecovery(); err != nil {
			return err
		}
		c.Println("entering recovery")
		return nil
	})
}
