package main

import (
	"github.com/alecthomas/kong"
)

type CLI struct {
	Register RegisterCmd `cmd:"" help:"Create an account"`
	Login    LoginCmd    `cmd:"" help:"Log in and print session tokens"`
	Tables   TablesCmd   `cmd:"" help:"List tables"`
	Join     JoinCmd     `cmd:"" help:"Join a table"`
	Leave    LeaveCmd    `cmd:"" help:"Leave a table"`
	Act      ActCmd      `cmd:"" help:"Take an action at a table"`
	State    StateCmd    `cmd:"" help:"Print a table's current state"`
	Stream   StreamCmd   `cmd:"" help:"Stream a table's live view over the websocket feed"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("pokerctl"),
		kong.Description("Command-line client for the gateway's HTTP and WebSocket API"),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
