// Package text provides the font service used to shape and draw labels.
package text

import (
	"fmt"
	"image/color"
	"strings"
)

type FontWeight int

const (
	WeightNormal FontWeight = 400
	WeightBold   FontWeight = 700
)

func (w *FontWeight) UnmarshalText(b []byte) error {
	switch s := strings.ToLower(string(b)); s {
	case "normal", "regular", "":
		*w = WeightNormal
	case "bold":
		*w = WeightBold
	default:
		var v int
		if _, err := fmt.Sscanf(s, "%d", &v); err != nil || v <= 0 || v > 1000 {
			return fmt.Errorf("invalid font weight %q", s)
		}
		*w = FontWeight(v)
	}
	return nil
}

func (w FontWeight) bold() bool {
	return w >= 600
}

type FontStyle int

const (
	StyleNormal FontStyle = iota
	StyleItalic
	StyleOblique
)

func (s *FontStyle) UnmarshalText(b []byte) error {
	switch v := strings.ToLower(string(b)); v {
	case "normal", "":
		*s = StyleNormal
	case "italic":
		*s = StyleItalic
	case "oblique":
		*s = StyleOblique
	default:
		return fmt.Errorf("invalid font style %q", v)
	}
	return nil
}

// HAlign positions a label horizontally relative to its anchor.
type HAlign int

const (
	AlignCenter HAlign = iota
	AlignLeft
	AlignRight
)

func (a *HAlign) UnmarshalText(b []byte) error {
	switch v := strings.ToLower(string(b)); v {
	case "center", "":
		*a = AlignCenter
	case "left":
		*a = AlignLeft
	case "right":
		*a = AlignRight
	default:
		return fmt.Errorf("invalid horizontal alignment %q", v)
	}
	return nil
}

// VAlign positions a label vertically relative to its anchor.
type VAlign int

const (
	AlignMiddle VAlign = iota
	AlignTop
	AlignBottom
)

func (a *VAlign) UnmarshalText(b []byte) error {
	switch v := strings.ToLower(string(b)); v {
	case "middle", "":
		*a = AlignMiddle
	case "top":
		*a = AlignTop
	case "bottom":
		*a = AlignBottom
	default:
		return fmt.Errorf("invalid vertical alignment %q", v)
	}
	return nil
}

// TextStyle describes how a label is rendered.
type TextStyle struct {
	FontFamily          []string    `mapstructure:"font_family" json:"font_family,omitempty"`
	FontSize            float64     `mapstructure:"font_size" json:"font_size"`
	FontColor           color.NRGBA `mapstructure:"font_color" json:"font_color"`
	Weight              FontWeight  `mapstructure:"weight" json:"weight"`
	Style               FontStyle   `mapstructure:"style" json:"style"`
	OutlineWidth        float64     `mapstructure:"outline_width" json:"outline_width"`
	OutlineColor        color.NRGBA `mapstructure:"outline_color" json:"outline_color"`
	HorizontalAlignment HAlign      `mapstructure:"horizontal_alignment" json:"horizontal_alignment"`
	VerticalAlignment   VAlign      `mapstructure:"vertical_alignment" json:"vertical_alignment"`
}

// DefaultTextStyle is black 12px text of the first loaded font.
func DefaultTextStyle() TextStyle {
	return TextStyle{
		FontSize:  12,
		FontColor: color.NRGBA{A: 255},
		Weight:    WeightNormal,
	}
}
