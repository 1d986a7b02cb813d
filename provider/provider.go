// Package provider implements the asynchronous tile cache: requests for the
// same key share one in-flight fetch, resolved payloads are kept in memory
// under an eviction Policy and, optionally, in a persistent Store.
package provider

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eak1mov/go-libmap/tile"
	"github.com/sourcegraph/conc"
)

const shardCount = 16

// Store is a persistent cache layer beneath the in-memory cache.
// xyz.Cache implements it.
type Store interface {
	Load(index tile.Index, style string) ([]byte, bool, error)
	Save(index tile.Index, style string, data []byte) error
}

type Stats struct {
	Hits      uint64 // requests answered by a Ready entry
	Joins     uint64 // requests attached to a Pending entry
	Misses    uint64 // requests that started a new operation
	Fetches   uint64 // calls to the fetcher
	StoreHits uint64
	Failures  uint64
	Evictions uint64
}

type shard struct {
	mu      sync.RWMutex
	entries map[Key]*entry
	lru     lruList
}

// drop removes e from the shard. Must be called with the shard lock held.
func (s *shard) drop(e *entry) {
	delete(s.entries, e.key)
	s.lru.remove(e)
}

// Provider is a TileProvider with an in-memory cache. It is safe for
// concurrent use.
type Provider struct {
	fetcher tile.Fetcher
	store   Store
	policy  Policy
	retain  bool
	logger  *slog.Logger
	clock   func() time.Time
	sem     chan struct{}

	shards [shardCount]shard
	size   atomic.Int64
	tick   atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup
	closed atomic.Bool

	hits, joins, misses, fetches   atomic.Uint64
	storeHits, failures, evictions atomic.Uint64
}

type config struct {
	Logger         *slog.Logger
	Store          Store
	Policy         Policy
	Workers        int
	RetainFailures bool
	Clock          func() time.Time
}

type Option func(*config)

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.Logger = logger }
}

func WithStore(store Store) Option {
	return func(c *config) { c.Store = store }
}

func WithPolicy(policy Policy) Option {
	return func(c *config) { c.Policy = policy }
}

// WithWorkers bounds the number of concurrent fetches. Zero means unbounded.
func WithWorkers(n int) Option {
	return func(c *config) { c.Workers = n }
}

// WithFailureRetention keeps Failed entries, so that later requests observe
// the same error instead of retrying.
func WithFailureRetention(retain bool) Option {
	return func(c *config) { c.RetainFailures = retain }
}

func WithClock(clock func() time.Time) Option {
	return func(c *config) { c.Clock = clock }
}

// New creates a Provider that fetches missing tiles with fetcher.
func New(fetcher tile.Fetcher, opts ...Option) *Provider {
	config := config{
		Logger: slog.New(slog.DiscardHandler),
		Clock:  time.Now,
	}
	for _, opt := range opts {
		opt(&config)
	}

	p := &Provider{
		fetcher: fetcher,
		store:   config.Store,
		policy:  config.Policy,
		retain:  config.RetainFailures,
		logger:  config.Logger,
		clock:   config.Clock,
	}
	if config.Workers > 0 {
		p.sem = make(chan struct{}, config.Workers)
	}
	for i := range p.shards {
		p.shards[i].entries = make(map[Key]*entry)
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	return p
}

func (p *Provider) shardFor(key Key) *shard {
	h := fnv.New64a()
	var buf [20]byte
	binary.LittleEndian.PutUint64(buf[0:], uint64(key.Index.X))
	binary.LittleEndian.PutUint64(buf[8:], uint64(key.Index.Y))
	binary.LittleEndian.PutUint32(buf[16:], key.Index.Z)
	h.Write(buf[:])
	h.Write([]byte(key.Style))
	return &p.shards[h.Sum64()%shardCount]
}

// usable reports whether e can answer a request without a new fetch.
// Must be called with the shard lock held.
func (p *Provider) usable(e *entry, now time.Time) bool {
	switch e.state {
	case Pending:
		return true
	case Ready:
		return !p.policy.expired(e.readyAt, now)
	default:
		return p.retain
	}
}

// Request returns a handle for the payload of index under style. It never
// blocks: a Ready entry resolves immediately, a Pending one is shared, and
// otherwise a new fetch is started in the background.
//
// The fetch runs detached from ctx cancellation, so a caller giving up never
// aborts a fetch other callers wait for. Values of ctx are kept.
func (p *Provider) Request(ctx context.Context, index tile.Index, style string) *Handle {
	key := Key{Index: index, Style: style}
	if p.closed.Load() {
		return failedHandle(key, &FetchError{Key: key, Err: ErrClosed})
	}

	s := p.shardFor(key)
	now := p.clock()

	s.mu.RLock()
	if e, ok := s.entries[key]; ok && p.usable(e, now) {
		e.access.Store(p.tick.Add(1))
		state := e.state
		s.mu.RUnlock()
		p.countHit(state)
		return &Handle{e}
	}
	s.mu.RUnlock()

	s.mu.Lock()
	if e, ok := s.entries[key]; ok && p.usable(e, now) {
		e.access.Store(p.tick.Add(1))
		state := e.state
		s.mu.Unlock()
		p.countHit(state)
		return &Handle{e}
	}
	old, replaced := s.entries[key]
	if replaced {
		s.lru.remove(old)
	}
	e := newEntry(key)
	e.access.Store(p.tick.Add(1))
	s.entries[key] = e
	s.mu.Unlock()

	if !replaced {
		p.size.Add(1)
	}
	p.misses.Add(1)
	p.logger.Debug("libmap: tile requested", "tile", index.String(), "style", style)

	fetchCtx := context.WithoutCancel(ctx)
	p.wg.Go(func() { p.run(fetchCtx, e) })

	p.enforceCapacity()
	return &Handle{e}
}

func (p *Provider) countHit(state State) {
	if state == Pending {
		p.joins.Add(1)
	} else {
		p.hits.Add(1)
	}
}

func (p *Provider) run(ctx context.Context, e *entry) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(p.ctx, cancel)
	defer stop()

	if p.sem != nil {
		select {
		case p.sem <- struct{}{}:
			defer func() { <-p.sem }()
		case <-ctx.Done():
			p.complete(e, nil, &FetchError{Key: e.key, Err: ErrClosed})
			return
		}
	}

	data, err := p.load(ctx, e.key)
	p.complete(e, data, err)
}

func (p *Provider) load(ctx context.Context, key Key) ([]byte, error) {
	if p.store != nil {
		data, ok, err := p.store.Load(key.Index, key.Style)
		switch {
		case err != nil:
			p.logger.Warn("libmap: store load failed", "tile", key.Index.String(), "error", err)
		case ok:
			p.storeHits.Add(1)
			return data, nil
		}
	}

	p.fetches.Add(1)
	data, err := p.fetcher.Fetch(ctx, key.Index)
	if err != nil {
		return nil, &FetchError{Key: key, Err: err}
	}

	if p.store != nil {
		if err := p.store.Save(key.Index, key.Style, data); err != nil {
			p.logger.Warn("libmap: store save failed", "tile", key.Index.String(), "error", err)
		}
	}
	return data, nil
}

// complete publishes the result of e exactly once and wakes every subscriber.
func (p *Provider) complete(e *entry, data []byte, err error) {
	s := p.shardFor(e.key)
	s.mu.Lock()
	if err != nil {
		e.state = Failed
		e.err = err
	} else {
		e.state = Ready
		e.data = data
	}
	e.readyAt = p.clock()
	if cur, ok := s.entries[e.key]; ok && cur == e {
		if err != nil && !p.retain {
			s.drop(e)
			p.size.Add(-1)
		} else {
			e.placed = e.access.Load()
			s.lru.pushFront(e)
		}
	}
	s.mu.Unlock()

	if err != nil {
		p.failures.Add(1)
		p.logger.Warn("libmap: tile fetch failed", "tile", e.key.Index.String(), "error", err)
	} else {
		p.logger.Debug("libmap: tile ready", "tile", e.key.Index.String(), "bytes", len(data))
	}

	e.resolve()
	p.enforceCapacity()
}

// enforceCapacity evicts least recently used Ready entries until the cache
// fits the policy capacity or only Pending entries are left.
func (p *Provider) enforceCapacity() {
	if p.policy.Capacity <= 0 {
		return
	}
	for p.size.Load() > int64(p.policy.Capacity) {
		if !p.evictOldest() {
			return
		}
	}
}

// evictOldest removes the oldest of the shard tails. It reports false when
// no shard holds a resolved entry.
func (p *Provider) evictOldest() bool {
	var victim *shard
	var victimAccess int64
	for i := range p.shards {
		s := &p.shards[i]
		s.mu.Lock()
		if e := s.lru.oldest(); e != nil && (victim == nil || e.placed < victimAccess) {
			victim, victimAccess = s, e.placed
		}
		s.mu.Unlock()
	}
	if victim == nil {
		return false
	}

	victim.mu.Lock()
	defer victim.mu.Unlock()
	if e := victim.lru.oldest(); e != nil {
		victim.drop(e)
		p.size.Add(-1)
		p.evictions.Add(1)
	}
	return true
}

// Peek reports the state of the entry for key without touching its recency.
func (p *Provider) Peek(key Key) (State, bool) {
	s := p.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return 0, false
	}
	if e.state == Ready && p.policy.expired(e.readyAt, p.clock()) {
		return 0, false
	}
	return e.state, true
}

// Evict removes a Ready or Failed entry. Pending entries are kept.
func (p *Provider) Evict(key Key) bool {
	s := p.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || e.state == Pending {
		return false
	}
	s.drop(e)
	p.size.Add(-1)
	p.evictions.Add(1)
	return true
}

// Len returns the number of entries in the in-memory cache.
func (p *Provider) Len() int {
	return int(p.size.Load())
}

func (p *Provider) Stats() Stats {
	return Stats{
		Hits:      p.hits.Load(),
		Joins:     p.joins.Load(),
		Misses:    p.misses.Load(),
		Fetches:   p.fetches.Load(),
		StoreHits: p.storeHits.Load(),
		Failures:  p.failures.Load(),
		Evictions: p.evictions.Load(),
	}
}

// Close cancels in-flight fetches and waits for them to finish. Requests
// made after Close fail with ErrClosed.
func (p *Provider) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.cancel()
	p.wg.Wait()
	return nil
}
