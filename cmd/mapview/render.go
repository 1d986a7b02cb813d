package main

import (
	"context"
	"flag"
	"image/png"
	"log"
	"os"
	"time"

	"github.com/eak1mov/go-libmap/layer"
	"github.com/eak1mov/go-libmap/render"
	"github.com/eak1mov/go-libmap/render/software"
	"github.com/google/subcommands"
)

type renderCmd struct {
	commonFlags
	center     string
	level      int
	size       string
	outputPath string
	timeout    time.Duration
}

func (c *renderCmd) Name() string     { return "render" }
func (c *renderCmd) Synopsis() string { return "render a map view to a PNG file" }
func (c *renderCmd) Usage() string {
	return "mapview render -center <lon,lat> -level <n> -o <path> [-size <WxH>]\n"
}
func (c *renderCmd) SetFlags(f *flag.FlagSet) {
	c.setFlags(f)
	f.StringVar(&c.center, "center", "0,0", "View center in degrees")
	f.IntVar(&c.level, "level", 0, "Schema level")
	f.StringVar(&c.size, "size", "1024x768", "Image size in pixels")
	f.StringVar(&c.outputPath, "o", "map.png", "Output PNG path")
	f.DurationVar(&c.timeout, "timeout", time.Minute, "Time to wait for tiles")
}

func (c *renderCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	width, height, err := parseSize(c.size)
	if err != nil {
		log.Println(err)
		return subcommands.ExitUsageError
	}

	a, err := newApp(c.configPath, os.Stderr)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	center, err := parsePoint(a.projection, c.center)
	if err != nil {
		log.Println(err)
		return subcommands.ExitUsageError
	}
	lod, err := a.schema.Lod(uint32(c.level))
	if err != nil {
		log.Println(err)
		return subcommands.ExitUsageError
	}
	view := render.View{Center: center, Resolution: lod.Resolution, Width: width, Height: height}

	tiles := a.newLayer()
	defer tiles.Close()
	m := &layer.Map{Background: a.style.Background, Layers: []layer.Layer{tiles}}
	canvas := software.New(width, height, software.WithFonts(a.fonts), software.WithLogger(a.logger))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := m.Prepare(ctx, view, canvas); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	if err := m.Render(ctx, view, canvas); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	if err := writePNG(c.outputPath, canvas); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func writePNG(path string, canvas *software.Canvas) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, canvas.Image()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
