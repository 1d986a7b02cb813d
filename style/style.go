// Package style maps decoded features to symbols. A style document lists
// rules matched by layer name and feature properties; the first matching
// rule wins and unmatched features use the default symbol.
package style

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"image/color"
	"regexp"
	"strings"

	"github.com/eak1mov/go-libmap/render"
	"github.com/eak1mov/go-libmap/text"
)

type PointSymbol struct {
	Size  float64     `mapstructure:"size" json:"size"`
	Color color.NRGBA `mapstructure:"color" json:"color"`
}

type LineSymbol struct {
	Width       float64        `mapstructure:"width" json:"width"`
	StrokeColor color.NRGBA    `mapstructure:"stroke_color" json:"stroke_color"`
	Offset      float64        `mapstructure:"offset" json:"offset"`
	Cap         render.LineCap `mapstructure:"cap" json:"cap"`
}

type PolygonSymbol struct {
	FillColor color.NRGBA `mapstructure:"fill_color" json:"fill_color"`
}

// LabelSymbol draws text next to point features. Pattern placeholders
// like {name} are replaced with feature properties.
type LabelSymbol struct {
	Pattern   string         `mapstructure:"pattern" json:"pattern"`
	TextStyle text.TextStyle `mapstructure:"text_style" json:"text_style"`
}

// Symbol holds one symbolizer per geometry kind. A nil symbolizer hides
// features of that kind.
type Symbol struct {
	Point   *PointSymbol   `mapstructure:"point" json:"point,omitempty"`
	Line    *LineSymbol    `mapstructure:"line" json:"line,omitempty"`
	Polygon *PolygonSymbol `mapstructure:"polygon" json:"polygon,omitempty"`
	Label   *LabelSymbol   `mapstructure:"label" json:"label,omitempty"`
}

func (s Symbol) PointPaint() render.PointPaint {
	return render.PointPaint{Color: s.Point.Color, Size: s.Point.Size}
}

func (s Symbol) LinePaint() render.LinePaint {
	return render.LinePaint{
		Color:  s.Line.StrokeColor,
		Width:  s.Line.Width,
		Offset: s.Line.Offset,
		Cap:    s.Line.Cap,
	}
}

func (s Symbol) PolygonPaint() render.Paint {
	return render.Paint{Color: s.Polygon.FillColor}
}

type Rule struct {
	// Layer restricts the rule to one source layer; empty matches any.
	Layer      string            `mapstructure:"layer" json:"layer,omitempty"`
	Properties map[string]string `mapstructure:"properties" json:"properties,omitempty"`
	Symbol     Symbol            `mapstructure:"symbol" json:"symbol"`
}

// Matches reports whether the rule applies to a feature. Property names
// compare case-insensitively, values by their printed form.
func (r *Rule) Matches(layer string, props map[string]any) bool {
	if r.Layer != "" && r.Layer != layer {
		return false
	}
	for key, want := range r.Properties {
		got, ok := lookup(props, key)
		if !ok || fmt.Sprint(got) != want {
			return false
		}
	}
	return true
}

func lookup(props map[string]any, key string) (any, bool) {
	if v, ok := props[key]; ok {
		return v, true
	}
	for k, v := range props {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

type Style struct {
	Rules         []Rule      `mapstructure:"rules" json:"rules,omitempty"`
	DefaultSymbol Symbol      `mapstructure:"default_symbol" json:"default_symbol"`
	Background    color.NRGBA `mapstructure:"background" json:"background"`
}

// Default draws everything in dark gray on a light background.
func Default() *Style {
	return &Style{
		DefaultSymbol: Symbol{
			Point:   &PointSymbol{Size: 6, Color: color.NRGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}},
			Line:    &LineSymbol{Width: 1, StrokeColor: color.NRGBA{R: 0x55, G: 0x55, B: 0x55, A: 0xff}},
			Polygon: &PolygonSymbol{FillColor: color.NRGBA{R: 0xcc, G: 0xcc, B: 0xcc, A: 0xff}},
		},
		Background: color.NRGBA{R: 0xf2, G: 0xef, B: 0xe9, A: 0xff},
	}
}

// Resolve returns the symbol of the first rule matching the feature.
func (s *Style) Resolve(layer string, props map[string]any) Symbol {
	for i := range s.Rules {
		if s.Rules[i].Matches(layer, props) {
			return s.Rules[i].Symbol
		}
	}
	return s.DefaultSymbol
}

// Fingerprint identifies the style contents. Equal documents give equal
// fingerprints regardless of how they were loaded.
func (s *Style) Fingerprint() string {
	data, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("libmap: style is not serializable: %v", err))
	}
	h := fnv.New64a()
	h.Write(data)
	return fmt.Sprintf("%016x", h.Sum64())
}

var placeholder = regexp.MustCompile(`\{([^{}]+)\}`)

// Text expands the label pattern for a feature. Missing properties expand
// to nothing.
func (l *LabelSymbol) Text(props map[string]any) string {
	return placeholder.ReplaceAllStringFunc(l.Pattern, func(m string) string {
		if v, ok := lookup(props, m[1:len(m)-1]); ok && v != nil {
			return fmt.Sprint(v)
		}
		return ""
	})
}
