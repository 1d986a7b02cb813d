package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(&tilesCmd{}, "")
	subcommands.Register(&prefetchCmd{}, "")
	subcommands.Register(&cacheCmd{}, "")
	subcommands.Register(&renderCmd{}, "")
	subcommands.Register(&viewCmd{}, "")

	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}
