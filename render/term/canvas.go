// Package term draws map frames into a terminal. Each cell shows two
// vertically stacked pixels using the upper half block.
package term

import (
	"image/color"
	"log/slog"

	"github.com/eak1mov/go-libmap/render"
	"github.com/eak1mov/go-libmap/render/software"
	"github.com/gdamore/tcell/v2"
)

const upperHalfBlock = '▀'

// Canvas rasterizes with a software canvas sized to the screen and blits the
// result on Show.
type Canvas struct {
	*software.Canvas
	screen tcell.Screen
	opts   []software.Option
	logger *slog.Logger
}

var _ render.Canvas = (*Canvas)(nil)

type config struct {
	Logger   *slog.Logger
	Software []software.Option
}

type Option func(*config)

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.Logger = logger }
}

// WithSoftware passes options to the underlying software canvas.
func WithSoftware(opts ...software.Option) Option {
	return func(c *config) { c.Software = append(c.Software, opts...) }
}

func New(screen tcell.Screen, opts ...Option) *Canvas {
	config := config{
		Logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}
	c := &Canvas{
		screen: screen,
		opts:   append(config.Software, software.WithLogger(config.Logger)),
		logger: config.Logger,
	}
	c.Resize()
	return c
}

// Resize reallocates the pixel buffer after the screen size changed. It
// reports whether the size differs from the previous one.
func (c *Canvas) Resize() bool {
	cols, rows := c.screen.Size()
	w, h := max(cols, 1), max(rows, 1)*2
	if c.Canvas != nil {
		if cw, ch := c.Canvas.Size(); cw == w && ch == h {
			return false
		}
	}
	c.Canvas = software.New(w, h, c.opts...)
	c.logger.Debug("libmap: terminal canvas resized", "width", w, "height", h)
	return true
}

// Show copies the pixel buffer to the screen and flushes it.
func (c *Canvas) Show() {
	img := c.Image()
	b := img.Bounds()
	cols, rows := c.screen.Size()
	for row := 0; row < rows && b.Min.Y+row*2+1 < b.Max.Y; row++ {
		for col := 0; col < cols && b.Min.X+col < b.Max.X; col++ {
			x, y := b.Min.X+col, b.Min.Y+row*2
			style := tcell.StyleDefault.
				Foreground(toColor(img.RGBAAt(x, y))).
				Background(toColor(img.RGBAAt(x, y+1)))
			c.screen.SetContent(col, row, upperHalfBlock, nil, style)
		}
	}
	c.screen.Show()
}

func toColor(c color.RGBA) tcell.Color {
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}
