package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))

	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&runCmd{}, "digest")
	commander.Register(&holdingsCmd{}, "digest")
	commander.Register(&scanCmd{}, "digest")
	commander.Register(&reportsCmd{}, "digest")
	commander.Register(&serveCmd{}, "server")
	commander.Register(&versionCmd{}, "")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
