package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/eak1mov/go-libmap/tile"
	"github.com/google/subcommands"
)

type cacheCmd struct {
	commonFlags
	count bool
}

func (c *cacheCmd) Name() string     { return "cache" }
func (c *cacheCmd) Synopsis() string { return "list tiles in the file cache for the current style" }
func (c *cacheCmd) Usage() string {
	return "mapview cache [-count]\n"
}
func (c *cacheCmd) SetFlags(f *flag.FlagSet) {
	c.setFlags(f)
	f.BoolVar(&c.count, "count", false, "Print only the number of cached tiles")
}

func (c *cacheCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	a, err := newApp(c.configPath, os.Stderr)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if a.cache == nil {
		log.Println("cache.dir is not configured")
		return subcommands.ExitFailure
	}
	if err := listCache(os.Stdout, a.cache.Reader(a.style.Fingerprint()), c.count); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func listCache(w io.Writer, r tile.Visitor, count bool) (err error) {
	if count {
		indices, err := tile.Indices(r)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, len(indices))
		return nil
	}

	// IterTiles panics on read errors.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("list cache: %v", rec)
		}
	}()
	for index, data := range tile.IterTiles(r) {
		fmt.Fprintf(w, "%v\t%d\n", index, len(data))
	}
	return nil
}
