package launcher

import (
	cli "gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-airdrop-claim/flags"
)

var app = newApp()

func newApp() *cli.App {
	app := flags.NewApp()
	app.Commands = commands()
	app.Action = cli.ShowAppHelp
	return app
}

// Launch parses args and runs one command against the engine kept in the
// data directory.
func Launch(args []string) error {
	return app.Run(args)
}
