package action

import (
	"github.com/go-phorce/lockdown"
	"github.com/go-phorce/lockdown/cmd/lockdownctl/cli"
)

// Goodbye sends the protocol's disconnect notice as a standalone
// operation, ahead of the one Close also sends as it tears the session
// down on the way out.
func Goodbye(c *cli.Cli, flags interface{}) error {
	return withClient(c, func(client *lockdown.Client) error {
		if err := client.Goodbye(); err != nil {
			return err
		}
		c.Println("goodbye")
		return nil
	})
}
