// Command lockdownctl is a command-line utility for manually exercising
// the lockdown control protocol client: pairing with a device, opening
// a session, and driving plain operations against it.
package main

import (
	"io"
	"os"

	"github.com/go-phorce/lockdown/cmd/lockdownctl/action"
	"github.com/go-phorce/lockdown/cmd/lockdownctl/cli"
	"github.com/go-phorce/lockdown/ctl"
)

func main() {
	rc := realMain(os.Args, os.Stdout)
	os.Exit(int(rc))
}

func realMain(args []string, out io.Writer) ctl.ReturnCode {
	app := ctl.NewApplication("lockdownctl", "command-line utility for the lockdown control protocol client")
	app.UsageWriter(out)

	c := cli.New(&ctl.ControlDefinition{
		App:        app,
		Output:     out,
		WithServer: false,
	})

	root := func(name, help string) *ctl.CmdClause {
		return app.Command(name, help).PreAction(c.PopulateControl)
	}

	root("pair", "Run the pair/validate/start-session handshake against the device").
		Action(c.RegisterAction(action.Pair, nil))

	getValueFlags := new(action.GetValueFlags)
	cmdGetValue := root("getvalue", "Read a preference value").
		Action(c.RegisterAction(action.GetValue, getValueFlags))
	getValueFlags.Domain = cmdGetValue.Flag("domain", "preference domain, empty for the global domain").String()
	getValueFlags.Key = cmdGetValue.Flag("key", "preference key, empty to fetch the whole domain").String()

	setValueFlags := new(action.SetValueFlags)
	cmdSetValue := root("setvalue", "Write a string preference value").
		Action(c.RegisterAction(action.SetValue, setValueFlags))
	setValueFlags.Domain = cmdSetValue.Flag("domain", "preference domain").String()
	setValueFlags.Key = cmdSetValue.Flag("key", "preference key").Required().String()
	setValueFlags.Value = cmdSetValue.Flag("value", "string value to write").Required().String()

	removeValueFlags := new(action.RemoveValueFlags)
	cmdRemoveValue := root("removevalue", "Delete a preference value").
		Action(c.RegisterAction(action.RemoveValue, removeValueFlags))
	removeValueFlags.Domain = cmdRemoveValue.Flag("domain", "preference domain").String()
	removeValueFlags.Key = cmdRemoveValue.Flag("key", "preference key").Required().String()

	startServiceFlags := new(action.StartServiceFlags)
	cmdStartService := root("startservice", "Start an auxiliary service and print its port").
		Action(c.RegisterAction(action.StartService, startServiceFlags))
	startServiceFlags.Name = cmdStartService.Flag("name", "service identifier, e.g. com.apple.mobile.diagnostics_relay").Required().String()

	root("activate", "Send an (empty) activation record").
		Action(c.RegisterAction(action.Activate, nil))
	root("deactivate", "Revert a prior activation").
		Action(c.RegisterAction(action.Deactivate, nil))
	root("recover", "Ask the device to reboot into recovery mode").
		Action(c.RegisterAction(action.EnterRecovery, nil))
	root("goodbye", "Send the protocol's disconnect notice").
		Action(c.RegisterAction(action.Goodbye, nil))

	c.Parse(args)
	return c.ReturnCode()
}
