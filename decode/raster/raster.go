// Package raster decodes image tiles (PNG, JPEG, WebP).
package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/eak1mov/go-libmap/decode"
	"github.com/eak1mov/go-libmap/tile"
	"github.com/paulmach/orb"
	_ "golang.org/x/image/webp"
)

// Decoder implements decode.Decoder for raster payloads.
type Decoder struct{}

func NewDecoder() Decoder {
	return Decoder{}
}

func (Decoder) Decode(ctx context.Context, index tile.Index, bounds orb.Bound, payload []byte) (*decode.Tile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, &decode.Error{Index: index, Err: fmt.Errorf("%w: %w", decode.ErrMalformed, err)}
	}
	return &decode.Tile{Index: index, Bounds: bounds, Image: img}, nil
}
