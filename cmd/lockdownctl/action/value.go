package action

import (
	"fmt"

	"github.com/go-phorce/lockdown"
	"github.com/go-phorce/lockdown/cmd/lockdownctl/cli"
)

// GetValueFlags configures the getvalue subcommand.
type GetValueFlags struct {
	Domain *string
	Key    *string
}

// GetValue fetches one preference value, or the whole domain/global
// dictionary when Key/Domain is left empty.
func GetValue(c *cli.Cli, flags interface{}) error {
	f := flags.(*GetValueFlags)
	return withClient(c, func(client *lockdown.Client) error {
		v, err := client.GetValue(*f.Domain, *f.Key)
		if err != nil {
			return err
		}
		c.Println(fmt.Sprintf("%v", v))
		return nil
	})
}

// SetValueFlags configures the setvalue subcommand.
type SetValueFlags struct {
	Domain *string
	Key    *string
	Value  *string
}

// SetValue writes a string preference value. The lockdown protocol
// accepts richer plist types too, but a CLI flag only ever carries
// text, so this subcommand is deliberately string-only.
func SetValue(c *cli.Cli, flags interface{}) error {
	f := flags.(*SetValueFlags)
	return withClient(c, func(client *lockdown.Client) error {
		if err := client.SetValue(*f.Domain, *f.Key, *f.Value); err != nil {
			return err
		}
		c.Println("ok")
		return nil
	})
}

// RemoveValueFlags configures the removevalue subcommand.
type RemoveValueFlags struct {
	Domain *string
	Key    *string
}

// RemoveValue deletes a preference value.
func RemoveValue(c *cli.Cli, flags interface{}) error {
	f := flags.(*RemoveValueFlags)
	return withClient(c, func(client *lockdown.Client) error {
		if err := client.RemoveValue(*f.Domain, *f.Key); err != nil {
			return err
		}
		c.Println("ok")
		return nil
	})
}
