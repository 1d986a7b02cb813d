// Package layer turns a viewport into draw calls: it requests the visible
// tiles, decodes them off the frame goroutine, builds and packs bundles and
// submits them to the canvas. Style changes are applied to packed bundles
// in place.
package layer

import (
	"context"
	"fmt"
	"image/color"

	"github.com/eak1mov/go-libmap/render"
)

// Layer draws one kind of content into a canvas. Render is called on the
// frame goroutine and must not block on I/O.
type Layer interface {
	Render(ctx context.Context, view render.View, canvas render.Canvas) error
}

// Preparer is implemented by layers that can wait until everything a view
// needs is loaded.
type Preparer interface {
	Prepare(ctx context.Context, view render.View, renderer render.Renderer) error
}

// Map is a stack of layers drawn over a background color.
type Map struct {
	Background color.Color
	Layers     []Layer
}

func (m *Map) Render(ctx context.Context, view render.View, canvas render.Canvas) error {
	if m.Background != nil {
		canvas.Clear(m.Background)
	}
	for i, l := range m.Layers {
		if err := l.Render(ctx, view, canvas); err != nil {
			return fmt.Errorf("render layer %d: %w", i, err)
		}
	}
	return nil
}

// Prepare loads the view in every layer that supports it.
func (m *Map) Prepare(ctx context.Context, view render.View, renderer render.Renderer) error {
	for i, l := range m.Layers {
		p, ok := l.(Preparer)
		if !ok {
			continue
		}
		if err := p.Prepare(ctx, view, renderer); err != nil {
			return fmt.Errorf("prepare layer %d: %w", i, err)
		}
	}
	return nil
}
