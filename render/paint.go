package render

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/eak1mov/go-libmap/text"
)

type LineCap uint8

const (
	CapRound LineCap = iota
	CapButt
)

func (c LineCap) String() string {
	switch c {
	case CapRound:
		return "round"
	case CapButt:
		return "butt"
	default:
		return fmt.Sprintf("LineCap(%d)", uint8(c))
	}
}

func (c *LineCap) UnmarshalText(b []byte) error {
	switch v := strings.ToLower(string(b)); v {
	case "round", "":
		*c = CapRound
	case "butt":
		*c = CapButt
	default:
		return fmt.Errorf("invalid line cap %q", v)
	}
	return nil
}

// Paint fills a polygon.
type Paint struct {
	Color color.NRGBA
}

// PointPaint draws each point as a circle of diameter Size pixels.
type PointPaint struct {
	Color color.NRGBA
	Size  float64
}

// LinePaint strokes a line. Width and Offset are in pixels; a positive
// Offset shifts the line to the left of its direction.
type LinePaint struct {
	Color  color.NRGBA
	Width  float64
	Offset float64
	Cap    LineCap
}

type ImagePaint struct {
	Opacity uint8
}

type LabelPaint struct {
	Color        color.NRGBA
	OutlineColor color.NRGBA
	OutlineWidth float64
	HAlign       text.HAlign
	VAlign       text.VAlign
}

// LabelPaintOf derives the paint of a label from its text style.
func LabelPaintOf(style text.TextStyle) LabelPaint {
	return LabelPaint{
		Color:        style.FontColor,
		OutlineColor: style.OutlineColor,
		OutlineWidth: style.OutlineWidth,
		HAlign:       style.HorizontalAlignment,
		VAlign:       style.VerticalAlignment,
	}
}
