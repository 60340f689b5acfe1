package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Serve   ServeCmd         `cmd:"" help:"Run the marble guessing game server"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("marbleguess"),
		kong.Description("Turn-based marble guessing game server with a REST API and per-game broadcast feed"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
