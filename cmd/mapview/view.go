package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"github.com/eak1mov/go-libmap/layer"
	"github.com/eak1mov/go-libmap/render"
	"github.com/eak1mov/go-libmap/render/software"
	"github.com/eak1mov/go-libmap/render/term"
	"github.com/eak1mov/go-libmap/style"
	"github.com/gdamore/tcell/v2"
	"github.com/google/subcommands"
	"github.com/paulmach/orb"
)

const (
	panStep   = 8
	zoomStep  = 2
	frameTick = 100 * time.Millisecond
)

type viewCmd struct {
	commonFlags
	center  string
	level   int
	logPath string
}

func (c *viewCmd) Name() string     { return "view" }
func (c *viewCmd) Synopsis() string { return "browse the map in the terminal" }
func (c *viewCmd) Usage() string {
	return "mapview view [-center <lon,lat>] [-level <n>] [-log <path>]\n" +
		"Arrows pan, + and - zoom, q quits.\n"
}
func (c *viewCmd) SetFlags(f *flag.FlagSet) {
	c.setFlags(f)
	f.StringVar(&c.center, "center", "0,0", "Initial view center in degrees")
	f.IntVar(&c.level, "level", 0, "Initial schema level")
	f.StringVar(&c.logPath, "log", "", "Write logs to this file")
}

func (c *viewCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	var logOutput io.Writer = io.Discard
	if c.logPath != "" {
		f, err := os.OpenFile(c.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			log.Println(err)
			return subcommands.ExitFailure
		}
		defer f.Close()
		logOutput = f
	}

	a, err := newApp(c.configPath, logOutput)
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

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var layerOpts []layer.Option
	if a.config.Style.Path != "" && a.config.Style.Watch {
		updates, err := style.Watch(ctx, a.config.Style.Path, style.WithLogger(a.logger))
		if err != nil {
			log.Println(err)
			return subcommands.ExitFailure
		}
		layerOpts = append(layerOpts, layer.WithStyleUpdates(updates))
	}
	tiles := a.newLayer(layerOpts...)
	defer tiles.Close()

	screen, err := tcell.NewScreen()
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	if err := screen.Init(); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer screen.Fini()

	v := &viewer{
		screen:     screen,
		canvas:     term.New(screen, term.WithLogger(a.logger), term.WithSoftware(software.WithFonts(a.fonts))),
		tiles:      tiles,
		resolution: lod.Resolution,
		center:     center,
	}
	if err := v.run(ctx); err != nil {
		screen.Fini()
		log.Println(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type viewer struct {
	screen     tcell.Screen
	canvas     *term.Canvas
	tiles      *layer.TileLayer
	resolution float64
	center     orb.Point
}

func (v *viewer) view() render.View {
	w, h := v.canvas.Size()
	return render.View{Center: v.center, Resolution: v.resolution, Width: w, Height: h}
}

func (v *viewer) draw(ctx context.Context) error {
	m := layer.Map{Background: v.tiles.Style().Background, Layers: []layer.Layer{v.tiles}}
	if err := m.Render(ctx, v.view(), v.canvas); err != nil {
		return err
	}
	v.canvas.Show()
	return nil
}

func (v *viewer) run(ctx context.Context) error {
	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	ticker := time.NewTicker(frameTick)
	defer ticker.Stop()
	for {
		if err := v.draw(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case ev, ok := <-events:
			if !ok || !v.handle(ev) {
				return nil
			}
		}
	}
}

// handle applies an input event and reports whether to continue.
func (v *viewer) handle(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		view := v.view()
		switch {
		case ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC:
			return false
		case ev.Key() == tcell.KeyRune && ev.Rune() == 'q':
			return false
		case ev.Key() == tcell.KeyLeft:
			view = view.Pan(-panStep, 0)
		case ev.Key() == tcell.KeyRight:
			view = view.Pan(panStep, 0)
		case ev.Key() == tcell.KeyUp:
			view = view.Pan(0, -panStep)
		case ev.Key() == tcell.KeyDown:
			view = view.Pan(0, panStep)
		case ev.Key() == tcell.KeyRune && (ev.Rune() == '+' || ev.Rune() == '='):
			view = view.Zoom(1.0 / zoomStep)
		case ev.Key() == tcell.KeyRune && ev.Rune() == '-':
			view = view.Zoom(zoomStep)
		}
		v.center, v.resolution = view.Center, view.Resolution
	case *tcell.EventResize:
		v.screen.Sync()
		v.canvas.Resize()
	}
	return true
}
