package text

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/go-text/typesetting/di"
	gtfont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"github.com/spf13/afero"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

var (
	ErrNotInitialized = errors.New("libmap: font service is not initialized")
	ErrUnknownFamily  = errors.New("libmap: unknown font family")
	ErrNoFonts        = errors.New("libmap: no fonts loaded")
)

type loadedFont struct {
	family string
	bold   bool
	italic bool
	shape  *gtfont.Font
	draw   *opentype.Font
}

type faceKey struct {
	font *loadedFont
	size float64
}

// Glyph is one shaped glyph. Positions are in pixels from the run origin.
type Glyph struct {
	ID      uint32
	Cluster int
	X       float64
	Advance float64
}

// Run is a shaped single-line text.
type Run struct {
	Text    string
	Family  string
	Glyphs  []Glyph
	Width   float64
	Ascent  float64
	Descent float64
	Style   TextStyle
}

// Offset returns the position of the run's baseline origin relative to its
// anchor point, honoring the style alignment. Y grows downwards.
func (r Run) Offset() (dx, dy float64) {
	switch r.Style.HorizontalAlignment {
	case AlignCenter:
		dx = -r.Width / 2
	case AlignRight:
		dx = -r.Width
	}
	switch r.Style.VerticalAlignment {
	case AlignMiddle:
		dy = (r.Ascent - r.Descent) / 2
	case AlignTop:
		dy = r.Ascent
	case AlignBottom:
		dy = -r.Descent
	}
	return dx, dy
}

// FontService loads fonts, shapes text and provides faces for drawing.
// Fonts are loaded first, then Initialize freezes the set; every other
// method fails with ErrNotInitialized before that.
//
// Shape is safe for concurrent use. Faces returned by Face are shared and
// must only be used from one goroutine at a time.
type FontService struct {
	fs       afero.Fs
	logger   *slog.Logger
	fallback bool

	mu          sync.RWMutex
	fonts       []*loadedFont
	initialized bool
	faces       map[faceKey]font.Face

	shapers sync.Pool
}

type config struct {
	Fs       afero.Fs
	Logger   *slog.Logger
	Fallback bool
}

type Option func(*config)

func WithFs(fs afero.Fs) Option {
	return func(c *config) { c.Fs = fs }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.Logger = logger }
}

// WithoutFallback makes lookups fail with ErrUnknownFamily instead of
// using the first loaded font when no listed family is available.
func WithoutFallback() Option {
	return func(c *config) { c.Fallback = false }
}

func NewFontService(opts ...Option) *FontService {
	config := config{
		Fs:       afero.NewOsFs(),
		Logger:   slog.New(slog.DiscardHandler),
		Fallback: true,
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &FontService{
		fs:       config.Fs,
		logger:   config.Logger,
		fallback: config.Fallback,
		faces:    make(map[faceKey]font.Face),
		shapers: sync.Pool{
			New: func() any { return &shaping.HarfbuzzShaper{} },
		},
	}
}

// LoadFont parses a TrueType/OpenType font and adds it to the service.
func (s *FontService) LoadFont(data []byte) error {
	drawFont, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("parse font: %w", err)
	}
	shapeFace, err := gtfont.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parse font: %w", err)
	}

	family, _ := drawFont.Name(nil, sfnt.NameIDFamily)
	subfamily, _ := drawFont.Name(nil, sfnt.NameIDSubfamily)
	subfamily = strings.ToLower(subfamily)

	f := &loadedFont{
		family: family,
		bold:   strings.Contains(subfamily, "bold"),
		italic: strings.Contains(subfamily, "italic") || strings.Contains(subfamily, "oblique"),
		shape:  shapeFace.Font,
		draw:   drawFont,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return errors.New("libmap: font service is already initialized")
	}
	s.fonts = append(s.fonts, f)
	s.logger.Debug("libmap: font loaded", "family", family, "subfamily", subfamily)
	return nil
}

func (s *FontService) LoadFontFile(path string) error {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return err
	}
	if err := s.LoadFont(data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Initialize makes the service usable. At least one font must be loaded.
func (s *FontService) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.fonts) == 0 {
		return ErrNoFonts
	}
	s.initialized = true
	return nil
}

func (s *FontService) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Families lists the loaded font families in load order, without duplicates.
func (s *FontService) Families() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var families []string
	seen := make(map[string]bool)
	for _, f := range s.fonts {
		if !seen[f.family] {
			seen[f.family] = true
			families = append(families, f.family)
		}
	}
	return families
}

// lookup picks the font for style. Must be called with s.mu held.
func (s *FontService) lookup(style TextStyle) (*loadedFont, error) {
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	wantItalic := style.Style != StyleNormal
	for _, family := range style.FontFamily {
		var best *loadedFont
		bestScore := -1
		for _, f := range s.fonts {
			if !strings.EqualFold(f.family, family) {
				continue
			}
			score := 0
			if f.bold == style.Weight.bold() {
				score += 2
			}
			if f.italic == wantItalic {
				score++
			}
			if score > bestScore {
				best, bestScore = f, score
			}
		}
		if best != nil {
			return best, nil
		}
	}
	if len(style.FontFamily) > 0 && !s.fallback {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFamily, strings.Join(style.FontFamily, ", "))
	}
	return s.fonts[0], nil
}

func (s *FontService) face(f *loadedFont, size float64) (font.Face, error) {
	key := faceKey{font: f, size: size}
	s.mu.RLock()
	face, ok := s.faces[key]
	s.mu.RUnlock()
	if ok {
		return face, nil
	}

	face, err := opentype.NewFace(f.draw, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.faces[key]; ok {
		face.Close()
		return existing, nil
	}
	s.faces[key] = face
	return face, nil
}

// Face returns a face for drawing text in style.
func (s *FontService) Face(style TextStyle) (font.Face, error) {
	s.mu.RLock()
	f, err := s.lookup(style)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return s.face(f, fontSize(style))
}

// Shape shapes text as a single left-to-right line.
func (s *FontService) Shape(text string, style TextStyle) (Run, error) {
	s.mu.RLock()
	f, err := s.lookup(style)
	s.mu.RUnlock()
	if err != nil {
		return Run{}, err
	}

	size := fontSize(style)
	face, err := s.face(f, size)
	if err != nil {
		return Run{}, err
	}

	run := Run{Text: text, Family: f.family, Style: style}
	s.mu.Lock()
	metrics := face.Metrics()
	s.mu.Unlock()
	run.Ascent = fixedToFloat(metrics.Ascent)
	run.Descent = fixedToFloat(metrics.Descent)
	if text == "" {
		return run, nil
	}

	runes := []rune(text)
	input := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: di.DirectionLTR,
		Face:      gtfont.NewFace(f.shape),
		Size:      fixed.Int26_6(math.Round(size * 64)),
		Script:    scriptOf(runes),
		Language:  language.NewLanguage("en"),
	}

	shaper := s.shapers.Get().(*shaping.HarfbuzzShaper)
	output := shaper.Shape(input)
	s.shapers.Put(shaper)

	x := 0.0
	run.Glyphs = make([]Glyph, len(output.Glyphs))
	for i, g := range output.Glyphs {
		advance := fixedToFloat(g.Advance)
		run.Glyphs[i] = Glyph{
			ID:      uint32(g.GlyphID),
			Cluster: g.TextIndex(),
			X:       x + fixedToFloat(g.XOffset),
			Advance: advance,
		}
		x += advance
	}
	run.Width = x
	return run, nil
}

// Close releases cached faces.
func (s *FontService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for key, face := range s.faces {
		errs = append(errs, face.Close())
		delete(s.faces, key)
	}
	return errors.Join(errs...)
}

func fontSize(style TextStyle) float64 {
	if style.FontSize <= 0 {
		return DefaultTextStyle().FontSize
	}
	return style.FontSize
}

func scriptOf(runes []rune) language.Script {
	for _, r := range runes {
		if r == ' ' || r == '\t' {
			continue
		}
		return language.LookupScript(r)
	}
	return language.Latin
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
