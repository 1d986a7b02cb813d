package style_test

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eak1mov/go-libmap/render"
	"github.com/eak1mov/go-libmap/style"
	"github.com/eak1mov/go-libmap/text"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const document = `
background: "#102030"
default_symbol:
  line:
    stroke_color: "#00000080"
rules:
  - layer: water
    symbol:
      polygon:
        fill_color: "#a0c8f0"
  - layer: roads
    properties:
      class: motorway
    symbol:
      line:
        width: 4
        stroke_color: "#e892a2"
        cap: butt
  - layer: poi
    symbol:
      point:
        size: 8
        color: "#ff0000"
      label:
        pattern: "{name} ({kind})"
        text_style:
          font_family: [Go, sans]
          font_size: 14
          font_color: "#000000"
          weight: bold
          horizontal_alignment: left
`

func TestParse(t *testing.T) {
	s, err := style.Parse(strings.NewReader(document), "yaml")
	require.NoError(t, err)

	require.Equal(t, color.NRGBA{R: 0x10, G: 0x20, B: 0x30, A: 0xff}, s.Background)
	require.Len(t, s.Rules, 3)

	// untouched defaults survive a partial section
	wantDefault := style.Default().DefaultSymbol
	wantDefault.Line.StrokeColor = color.NRGBA{A: 0x80}
	if diff := cmp.Diff(wantDefault, s.DefaultSymbol); diff != "" {
		t.Errorf("default symbol mismatch (-want +got):\n%s", diff)
	}

	wantRoads := style.Rule{
		Layer:      "roads",
		Properties: map[string]string{"class": "motorway"},
		Symbol: style.Symbol{Line: &style.LineSymbol{
			Width:       4,
			StrokeColor: color.NRGBA{R: 0xe8, G: 0x92, B: 0xa2, A: 0xff},
			Cap:         render.CapButt,
		}},
	}
	if diff := cmp.Diff(wantRoads, s.Rules[1]); diff != "" {
		t.Errorf("roads rule mismatch (-want +got):\n%s", diff)
	}

	label := s.Rules[2].Symbol.Label
	require.NotNil(t, label)
	wantText := text.TextStyle{
		FontFamily:          []string{"Go", "sans"},
		FontSize:            14,
		FontColor:           color.NRGBA{A: 0xff},
		Weight:              text.WeightBold,
		HorizontalAlignment: text.AlignLeft,
	}
	if diff := cmp.Diff(wantText, label.TextStyle); diff != "" {
		t.Errorf("text style mismatch (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "BadColor", doc: `background: "#12345"`},
		{name: "BadCap", doc: "default_symbol:\n  line:\n    cap: square\n"},
		{name: "Syntax", doc: "rules: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := style.Parse(strings.NewReader(tt.doc), "yaml")
			require.Error(t, err)
		})
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
		ok   bool
	}{
		{in: "#ff8000", want: color.NRGBA{R: 0xff, G: 0x80, A: 0xff}, ok: true},
		{in: "#ff800040", want: color.NRGBA{R: 0xff, G: 0x80, A: 0x40}, ok: true},
		{in: "ff8000"},
		{in: "#ff80"},
		{in: "#gg8000"},
	}
	for _, tt := range tests {
		got, err := style.ParseColor(tt.in)
		if !tt.ok {
			require.ErrorIs(t, err, style.ErrInvalidColor, tt.in)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}
}

func TestResolve(t *testing.T) {
	s, err := style.Parse(strings.NewReader(document), "yaml")
	require.NoError(t, err)

	tests := []struct {
		name  string
		layer string
		props map[string]any
		want  style.Symbol
	}{
		{name: "Layer", layer: "water", want: s.Rules[0].Symbol},
		{name: "Properties", layer: "roads", props: map[string]any{"class": "motorway"}, want: s.Rules[1].Symbol},
		{name: "PropertyNameCase", layer: "roads", props: map[string]any{"Class": "motorway"}, want: s.Rules[1].Symbol},
		{name: "PropertyMismatch", layer: "roads", props: map[string]any{"class": "path"}, want: s.DefaultSymbol},
		{name: "Unmatched", layer: "buildings", want: s.DefaultSymbol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Resolve(tt.layer, tt.props)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Resolve mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRuleMatchesPrintedValues(t *testing.T) {
	rule := style.Rule{Properties: map[string]string{"admin_level": "2"}}
	require.True(t, rule.Matches("boundaries", map[string]any{"admin_level": int64(2)}))
	require.False(t, rule.Matches("boundaries", map[string]any{"admin_level": 4.5}))
	require.False(t, rule.Matches("boundaries", nil))
}

func TestLabelText(t *testing.T) {
	label := style.LabelSymbol{Pattern: "{name} ({kind})"}
	require.Equal(t, "cafe (food)", label.Text(map[string]any{"name": "cafe", "kind": "food"}))
	require.Equal(t, "cafe ()", label.Text(map[string]any{"name": "cafe"}))
}

func TestFingerprint(t *testing.T) {
	a, err := style.Parse(strings.NewReader(document), "yaml")
	require.NoError(t, err)
	b, err := style.Parse(strings.NewReader(document), "yaml")
	require.NoError(t, err)
	require.Equal(t, a.Fingerprint(), b.Fingerprint())
	require.NotEqual(t, style.Default().Fingerprint(), a.Fingerprint())

	b.Rules[0].Symbol.Polygon.FillColor.A = 0x10
	require.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/styles/basic.json", []byte(`{"background": "#ffffff", "rules": [{"layer": "water"}]}`), 0644))

	s, err := style.Load("/styles/basic.json", style.WithFs(fs))
	require.NoError(t, err)
	require.Equal(t, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, s.Background)
	require.Len(t, s.Rules, 1)

	_, err = style.Load("/styles/missing.json", style.WithFs(fs))
	require.Error(t, err)
}

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "style.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`background: "#000000"`), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, err := style.Watch(ctx, path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`background: "#ffffff"`), 0644))
	// a rewrite may be observed half-written first
	white := color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	timeout := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case s := <-updates:
			done = s.Background == white
		case <-timeout:
			t.Fatal("no style update")
		}
	}

	cancel()
	for range updates {
	}
}
