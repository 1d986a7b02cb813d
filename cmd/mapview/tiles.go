package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"slices"

	"github.com/eak1mov/go-libmap/config"
	"github.com/google/subcommands"
)

type commonFlags struct {
	configPath string
}

func (c *commonFlags) setFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "Configuration file (yaml, json or toml)")
}

type tilesCmd struct {
	commonFlags
	bbox       string
	level      int
	resolution float64
}

func (c *tilesCmd) Name() string     { return "tiles" }
func (c *tilesCmd) Synopsis() string { return "print tiles covering a bounding box" }
func (c *tilesCmd) Usage() string {
	return "mapview tiles -bbox <minlon,minlat,maxlon,maxlat> [-level <n> | -res <meters per pixel>]\n"
}
func (c *tilesCmd) SetFlags(f *flag.FlagSet) {
	c.setFlags(f)
	f.StringVar(&c.bbox, "bbox", "", "Bounding box in degrees")
	f.IntVar(&c.level, "level", -1, "Schema level")
	f.Float64Var(&c.resolution, "res", 0, "Display resolution, selects the nearest level")
}

func (c *tilesCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	conf, err := config.Load(c.configPath)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	s, err := conf.NewSchema()
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	proj, err := projectionFor(s)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	extent, err := parseBound(proj, c.bbox)
	if err != nil {
		log.Println(err)
		return subcommands.ExitUsageError
	}

	lod := s.NearestLod(c.resolution)
	if c.level >= 0 {
		if lod, err = s.Lod(uint32(c.level)); err != nil {
			log.Println(err)
			return subcommands.ExitUsageError
		}
	} else if c.resolution <= 0 {
		log.Println("one of -level or -res is required")
		return subcommands.ExitUsageError
	}

	indices := slices.Collect(s.TilesInBounds(extent, lod))
	s.SortHilbert(indices)
	for _, index := range indices {
		fmt.Println(index)
	}
	return subcommands.ExitSuccess
}
