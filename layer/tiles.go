package layer

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/eak1mov/go-libmap/decode"
	"github.com/eak1mov/go-libmap/geo"
	"github.com/eak1mov/go-libmap/provider"
	"github.com/eak1mov/go-libmap/render"
	"github.com/eak1mov/go-libmap/schema"
	"github.com/eak1mov/go-libmap/style"
	"github.com/eak1mov/go-libmap/text"
	"github.com/eak1mov/go-libmap/tile"
	"github.com/paulmach/orb"
	"github.com/sourcegraph/conc"
)

// Source issues asynchronous tile requests. *provider.Provider implements it.
type Source interface {
	Request(ctx context.Context, index tile.Index, style string) *provider.Handle
}

type config struct {
	Logger        *slog.Logger
	Fonts         *text.FontService
	RetryInterval time.Duration
	BundleCache   int
	StyleUpdates  <-chan *style.Style
	Clock         func() time.Time
}

type Option func(*config)

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.Logger = logger }
}

// WithFonts enables labels. Without an initialized font service label
// symbols are ignored.
func WithFonts(fonts *text.FontService) Option {
	return func(c *config) { c.Fonts = fonts }
}

// WithRetryInterval sets how long a failed tile waits before it is
// requested again.
func WithRetryInterval(d time.Duration) Option {
	return func(c *config) { c.RetryInterval = d }
}

// WithBundleCache sets how many packed tiles outside the view are kept for
// reuse.
func WithBundleCache(n int) Option {
	return func(c *config) { c.BundleCache = max(n, 0) }
}

// WithStyleUpdates applies styles received on ch at the start of each frame.
func WithStyleUpdates(ch <-chan *style.Style) Option {
	return func(c *config) { c.StyleUpdates = ch }
}

func WithClock(clock func() time.Time) Option {
	return func(c *config) { c.Clock = clock }
}

// TileLayer draws the tiles of one source. All methods except Close must be
// called from a single goroutine.
type TileLayer struct {
	schema      *schema.Schema
	source      Source
	decoder     decode.Decoder
	style       *style.Style
	fingerprint string

	logger        *slog.Logger
	fonts         *text.FontService
	retryInterval time.Duration
	bundleCache   int
	updates       <-chan *style.Style
	clock         func() time.Time

	tiles map[tile.Index]*tileState
	frame uint64

	mu      sync.Mutex
	results []decodeResult
	notify  chan struct{}
	wg      conc.WaitGroup
}

var _ Layer = (*TileLayer)(nil)

type tileState struct {
	handle   *provider.Handle
	decoding bool
	failedAt time.Time
	decoded  *decode.Tile
	bundle   render.PackedBundle
	steps    []step
	lastUsed uint64
}

type decodeResult struct {
	index tile.Index
	state *tileState
	tile  *decode.Tile
	err   error
}

func NewTileLayer(s *schema.Schema, source Source, decoder decode.Decoder, st *style.Style, opts ...Option) *TileLayer {
	config := config{
		Logger:        slog.New(slog.DiscardHandler),
		RetryInterval: 5 * time.Second,
		BundleCache:   256,
		Clock:         time.Now,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if st == nil {
		st = style.Default()
	}
	return &TileLayer{
		schema:        s,
		source:        source,
		decoder:       decoder,
		style:         st,
		fingerprint:   st.Fingerprint(),
		logger:        config.Logger,
		fonts:         config.Fonts,
		retryInterval: config.RetryInterval,
		bundleCache:   config.BundleCache,
		updates:       config.StyleUpdates,
		clock:         config.Clock,
		tiles:         make(map[tile.Index]*tileState),
		notify:        make(chan struct{}, 1),
	}
}

func (l *TileLayer) Style() *style.Style {
	return l.style
}

// Bundles returns the number of packed tiles held by the layer.
func (l *TileLayer) Bundles() int {
	n := 0
	for _, st := range l.tiles {
		if st.bundle != nil {
			n++
		}
	}
	return n
}

// Render requests missing tiles of the view and draws what is available.
// Tiles that are still loading are covered by packed tiles of other levels.
func (l *TileLayer) Render(ctx context.Context, view render.View, canvas render.Canvas) error {
	visible, err := l.update(ctx, view, canvas, true)
	if err != nil {
		return err
	}
	if err := canvas.DrawBundles(view, l.bundles(visible)...); err != nil {
		return err
	}
	l.release()
	return nil
}

// Prepare blocks until every tile of the view is packed or has failed.
func (l *TileLayer) Prepare(ctx context.Context, view render.View, renderer render.Renderer) error {
	for retry := true; ; retry = false {
		visible, err := l.update(ctx, view, renderer, retry)
		if err != nil {
			return err
		}
		wait := l.outstanding(visible)
		if wait == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wait:
		case <-l.notify:
		}
	}
}

// Close waits for running decodes.
func (l *TileLayer) Close() error {
	l.wg.Wait()
	return nil
}

func (l *TileLayer) update(ctx context.Context, view render.View, renderer render.Renderer, retry bool) ([]tile.Index, error) {
	if !view.Valid() {
		return nil, fmt.Errorf("libmap: invalid view %+v", view)
	}
	if err := l.drainStyles(); err != nil {
		return nil, err
	}
	l.collect()

	l.frame++
	now := l.clock()
	lod := l.schema.NearestLod(view.Resolution)
	visible := slices.Collect(l.schema.TilesInBounds(view.Extent(), lod))
	l.schema.SortHilbert(visible)
	for _, index := range visible {
		st, ok := l.tiles[index]
		if !ok {
			st = &tileState{}
			l.tiles[index] = st
		}
		st.lastUsed = l.frame
		l.advance(ctx, index, st, now, retry)
	}

	for index, st := range l.tiles {
		if st.decoded == nil || st.bundle != nil {
			continue
		}
		if err := l.build(renderer, index, st); err != nil {
			return nil, fmt.Errorf("build tile %v: %w", index, err)
		}
	}
	return visible, nil
}

func (l *TileLayer) drainStyles() error {
	for l.updates != nil {
		select {
		case s, ok := <-l.updates:
			if !ok {
				l.updates = nil
				return nil
			}
			if err := l.SetStyle(s); err != nil {
				return err
			}
		default:
			return nil
		}
	}
	return nil
}

func (l *TileLayer) advance(ctx context.Context, index tile.Index, st *tileState, now time.Time, retry bool) {
	if st.bundle != nil || st.decoded != nil || st.decoding {
		return
	}
	if st.handle == nil {
		if !st.failedAt.IsZero() && (!retry || now.Sub(st.failedAt) < l.retryInterval) {
			return
		}
		st.handle = l.source.Request(ctx, index, l.fingerprint)
	}
	if !st.handle.Ready() {
		return
	}

	data, err := st.handle.Result()
	st.handle = nil
	if err != nil {
		l.fail(index, st, now, err)
		return
	}
	bounds, err := l.schema.TileBounds(index)
	if err != nil {
		l.fail(index, st, now, err)
		return
	}

	st.decoding = true
	decodeCtx := context.WithoutCancel(ctx)
	l.wg.Go(func() {
		decoded, err := l.decoder.Decode(decodeCtx, index, bounds, data)
		l.mu.Lock()
		l.results = append(l.results, decodeResult{index: index, state: st, tile: decoded, err: err})
		l.mu.Unlock()
		select {
		case l.notify <- struct{}{}:
		default:
		}
	})
}

func (l *TileLayer) fail(index tile.Index, st *tileState, now time.Time, err error) {
	st.failedAt = now
	l.logger.Warn("libmap: tile failed", "tile", index.String(), "error", err)
}

// collect takes decode results on the frame goroutine.
func (l *TileLayer) collect() {
	l.mu.Lock()
	results := l.results
	l.results = nil
	l.mu.Unlock()

	now := l.clock()
	for _, r := range results {
		if l.tiles[r.index] != r.state {
			continue
		}
		r.state.decoding = false
		if r.err != nil {
			l.fail(r.index, r.state, now, r.err)
			continue
		}
		r.state.decoded = r.tile
		r.state.failedAt = time.Time{}
	}
}

func (l *TileLayer) outstanding(visible []tile.Index) <-chan struct{} {
	for _, index := range visible {
		st := l.tiles[index]
		if st.handle != nil {
			return st.handle.Done()
		}
		if st.decoding {
			return l.notify
		}
	}
	return nil
}

// bundles lists packed tiles to draw: tiles of other levels covering
// missing ones, coarser first, then the visible tiles in schema order.
func (l *TileLayer) bundles(visible []tile.Index) []render.PackedBundle {
	var covering []tile.Index
	seen := make(map[tile.Index]bool)
	for _, index := range visible {
		if l.tiles[index].bundle != nil {
			continue
		}
		for _, c := range l.covering(index) {
			if !seen[c] {
				seen[c] = true
				covering = append(covering, c)
			}
		}
	}
	l.schema.SortHilbert(covering)

	var result []render.PackedBundle
	for _, index := range covering {
		st := l.tiles[index]
		st.lastUsed = l.frame
		result = append(result, st.bundle)
	}
	for _, index := range visible {
		if b := l.tiles[index].bundle; b != nil {
			result = append(result, b)
		}
	}
	return result
}

// covering returns the nearest packed ancestor of index and its packed
// children one level down.
func (l *TileLayer) covering(index tile.Index) []tile.Index {
	bounds, err := l.schema.TileBounds(index)
	if err != nil {
		return nil
	}
	packed := func(i tile.Index) bool {
		st, ok := l.tiles[i]
		return ok && st.bundle != nil
	}

	var result []tile.Index
	center := geo.Center(bounds)
	for z := int64(index.Z) - 1; z >= 0; z-- {
		lod, err := l.schema.Lod(uint32(z))
		if err != nil {
			break
		}
		if parent := l.schema.TileIndexFor(center, lod); packed(parent) {
			result = append(result, parent)
			break
		}
	}
	if lod, err := l.schema.Lod(index.Z + 1); err == nil {
		for child := range l.schema.TilesInBounds(bounds, lod) {
			if packed(child) {
				result = append(result, child)
			}
		}
	}
	return result
}

// release drops tiles outside the view: loading ones at once, packed ones
// beyond the bundle cache in least recently used order.
func (l *TileLayer) release() {
	var cached []tile.Index
	for index, st := range l.tiles {
		if st.lastUsed == l.frame {
			continue
		}
		if st.decoded == nil {
			delete(l.tiles, index)
			continue
		}
		cached = append(cached, index)
	}
	if len(cached) <= l.bundleCache {
		return
	}
	slices.SortFunc(cached, func(a, b tile.Index) int {
		return cmp.Compare(l.tiles[b].lastUsed, l.tiles[a].lastUsed)
	})
	for _, index := range cached[l.bundleCache:] {
		l.logger.Debug("libmap: tile released", "tile", index.String())
		delete(l.tiles, index)
	}
}

// SetStyle restyles packed tiles in place. Tiles whose primitives would
// change (a symbol appears or disappears, a label changes its text or font)
// are rebuilt from their decoded features on the next frame. Nothing is
// fetched or decoded again.
func (l *TileLayer) SetStyle(s *style.Style) error {
	l.style = s
	l.fingerprint = s.Fingerprint()
	for index, st := range l.tiles {
		if st.bundle == nil {
			continue
		}
		steps := l.plan(st.decoded)
		if !sameShape(st.steps, steps) {
			l.logger.Debug("libmap: tile rebuilt for style", "tile", index.String())
			st.bundle, st.steps = nil, nil
			continue
		}

		unpacked := st.bundle.Unpack()
		for i := range steps {
			steps[i].id = st.steps[i].id
			if err := steps[i].modify(unpacked); err != nil {
				st.bundle = unpacked.Pack()
				return fmt.Errorf("restyle tile %v: %w", index, err)
			}
		}
		st.bundle, st.steps = unpacked.Pack(), steps
	}
	return nil
}

func (l *TileLayer) build(renderer render.Renderer, index tile.Index, st *tileState) error {
	resolution, err := l.schema.ResolutionFor(index.Z)
	if err != nil {
		return err
	}
	bundle := renderer.CreateBundle()
	if img := st.decoded.Image; img != nil {
		b := st.decoded.Bounds
		quad := [4]orb.Point{{b.Min[0], b.Max[1]}, {b.Max[0], b.Max[1]}, {b.Max[0], b.Min[1]}, {b.Min[0], b.Min[1]}}
		bundle.AddImage(img, quad, render.ImagePaint{Opacity: 255})
	}

	steps := l.plan(st.decoded)
	for i := range steps {
		steps[i].id = l.add(bundle, &steps[i], resolution)
	}
	packed, err := renderer.PackBundle(bundle)
	if err != nil {
		return err
	}
	st.bundle, st.steps = packed, steps
	l.logger.Debug("libmap: tile packed", "tile", index.String(), "primitives", len(steps))
	return nil
}

func (l *TileLayer) add(bundle render.RenderBundle, s *step, resolution float64) render.PrimitiveID {
	switch s.role {
	case rolePolygon:
		return bundle.AddPolygon(s.geometry.(orb.Polygon), s.symbol.PolygonPaint(), resolution)
	case roleLine:
		return bundle.AddLine(s.geometry.(orb.LineString), s.symbol.LinePaint(), resolution)
	case rolePoints:
		return bundle.AddPoints(s.geometry.(orb.MultiPoint), s.symbol.PointPaint())
	default:
		run, err := l.fonts.Shape(s.label, s.symbol.Label.TextStyle)
		if err != nil {
			l.logger.Warn("libmap: label skipped", "text", s.label, "error", err)
			return noPrimitive
		}
		return bundle.AddLabel(s.geometry.(orb.Point), run, render.LabelPaintOf(s.symbol.Label.TextStyle))
	}
}
