package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/eak1mov/go-libmap/mb"
	"github.com/eak1mov/go-libmap/provider"
	"github.com/eak1mov/go-libmap/tile"
	"github.com/eak1mov/go-libmap/xyz"
	"github.com/google/subcommands"
	"github.com/schollz/progressbar/v3"
	"github.com/sourcegraph/conc/pool"
)

type prefetchCmd struct {
	commonFlags
	bbox        string
	minLevel    int
	maxLevel    int
	mbtilesPath string
	xyzPattern  string
}

func (c *prefetchCmd) Name() string     { return "prefetch" }
func (c *prefetchCmd) Synopsis() string { return "warm the tile cache for an area" }
func (c *prefetchCmd) Usage() string {
	return "mapview prefetch -bbox <minlon,minlat,maxlon,maxlat> -min-level <n> -max-level <n> [-mbtiles <path>] [-xyz <pattern>]\n"
}
func (c *prefetchCmd) SetFlags(f *flag.FlagSet) {
	c.setFlags(f)
	f.StringVar(&c.bbox, "bbox", "", "Bounding box in degrees")
	f.IntVar(&c.minLevel, "min-level", 0, "First schema level")
	f.IntVar(&c.maxLevel, "max-level", 0, "Last schema level")
	f.StringVar(&c.mbtilesPath, "mbtiles", "", "Also export fetched tiles to this MBTiles file")
	f.StringVar(&c.xyzPattern, "xyz", "", "Also export fetched tiles to files, e.g. out/{z}/{x}/{y}.pbf")
}

func (c *prefetchCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.minLevel < 0 || c.maxLevel < c.minLevel {
		log.Println("invalid level range")
		return subcommands.ExitUsageError
	}

	a, err := newApp(c.configPath, os.Stderr)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	extent, err := parseBound(a.projection, c.bbox)
	if err != nil {
		log.Println(err)
		return subcommands.ExitUsageError
	}

	var writers []tile.Writer
	if c.mbtilesPath != "" {
		format := "pbf"
		if a.config.Source.Format == "raster" {
			format = "png"
		}
		mbWriter, err := mb.NewWriter(c.mbtilesPath,
			mb.WithLogger(a.logger),
			mb.WithMetadata(map[string]string{
				"name":    "mapview",
				"format":  format,
				"minzoom": strconv.Itoa(c.minLevel),
				"maxzoom": strconv.Itoa(c.maxLevel),
				"bounds":  c.bbox,
			}),
		)
		if err != nil {
			log.Println(err)
			return subcommands.ExitFailure
		}
		defer mbWriter.Close()
		writers = append(writers, mbWriter)
	}
	if c.xyzPattern != "" {
		xyzWriter, err := xyz.NewWriter(c.xyzPattern)
		if err != nil {
			log.Println(err)
			return subcommands.ExitUsageError
		}
		writers = append(writers, xyzWriter)
	}

	var total int64
	for level := c.minLevel; level <= c.maxLevel; level++ {
		lod, err := a.schema.Lod(uint32(level))
		if err != nil {
			log.Println(err)
			return subcommands.ExitUsageError
		}
		total += a.schema.TileRange(extent, lod).Count()
	}

	styleKey := a.style.Fingerprint()
	bar := progressbar.NewOptions64(total, progressbar.OptionShowIts(), progressbar.OptionShowCount())
	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(max(a.config.Cache.Workers, 1))
	var writeMu sync.Mutex
	var failed atomic.Int64

	for level := c.minLevel; level <= c.maxLevel; level++ {
		lod, _ := a.schema.Lod(uint32(level))
		for index := range a.schema.TilesInBounds(extent, lod) {
			p.Go(func(ctx context.Context) error {
				defer bar.Add(1)
				data, err := a.provider.Request(ctx, index, styleKey).Wait(ctx)
				if err != nil {
					failed.Add(1)
					a.logger.Warn("libmap: prefetch failed", "tile", index.String(), "error", err)
					return nil
				}
				// drop the payload from memory; the file cache keeps it
				a.provider.Evict(provider.Key{Index: index, Style: styleKey})
				writeMu.Lock()
				defer writeMu.Unlock()
				return writeTile(writers, index, data)
			})
		}
	}
	err = p.Wait()
	bar.Finish()
	fmt.Println()
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	for _, w := range writers {
		if err := w.Finalize(); err != nil {
			log.Println(err)
			return subcommands.ExitFailure
		}
	}
	log.Printf("prefetched %d tiles, %d failed", total-failed.Load(), failed.Load())
	return subcommands.ExitSuccess
}

func writeTile(writers []tile.Writer, index tile.Index, data []byte) error {
	for _, w := range writers {
		if err := w.WriteTile(index, data); err != nil {
			return fmt.Errorf("export %v: %w", index, err)
		}
	}
	return nil
}
