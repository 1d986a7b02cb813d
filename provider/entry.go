package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eak1mov/go-libmap/tile"
)

var (
	ErrPending = errors.New("libmap: tile is pending")
	ErrClosed  = errors.New("libmap: provider is closed")
)

// Key identifies a cache entry: the same tile under different styles is
// cached separately.
type Key struct {
	Index tile.Index
	Style string
}

func (k Key) String() string {
	if k.Style == "" {
		return k.Index.String()
	}
	return k.Index.String() + "@" + k.Style
}

type State int

const (
	Pending State = iota
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// FetchError wraps the cause of a failed fetch.
type FetchError struct {
	Key Key
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("libmap: fetch %v: %v", e.Key, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type entry struct {
	key  Key
	done chan struct{}

	// Guarded by the shard lock; data and err are immutable once done is closed.
	state   State
	data    []byte
	err     error
	readyAt time.Time

	access atomic.Int64

	// Guarded by the shard lock.
	prev, next *entry
	listed     bool
	placed     int64

	mu        sync.Mutex
	completed bool
	callbacks []func([]byte, error)
}

func newEntry(key Key) *entry {
	return &entry{key: key, done: make(chan struct{}), state: Pending}
}

// resolve closes done and runs the registered callbacks. The caller must have
// published state, data and err before.
func (e *entry) resolve() {
	e.mu.Lock()
	e.completed = true
	callbacks := e.callbacks
	e.callbacks = nil
	e.mu.Unlock()

	close(e.done)
	for _, fn := range callbacks {
		fn(e.data, e.err)
	}
}

// Handle observes one cache entry. Handles are cheap and may be dropped at
// any time; dropping a handle never cancels the underlying fetch.
type Handle struct {
	e *entry
}

func (h *Handle) Key() Key {
	return h.e.key
}

// Done returns a channel that is closed once the entry is Ready or Failed.
func (h *Handle) Done() <-chan struct{} {
	return h.e.done
}

func (h *Handle) Ready() bool {
	select {
	case <-h.e.done:
		return true
	default:
		return false
	}
}

// Result returns the payload or the fetch error without blocking, or
// ErrPending if the entry is not resolved yet.
func (h *Handle) Result() ([]byte, error) {
	if !h.Ready() {
		return nil, ErrPending
	}
	return h.e.data, h.e.err
}

func (h *Handle) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-h.e.done:
		return h.e.data, h.e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// OnComplete registers fn to be called once with the result. If the entry is
// already resolved fn is called immediately on the calling goroutine,
// otherwise on the goroutine that resolves it.
func (h *Handle) OnComplete(fn func([]byte, error)) {
	e := h.e
	e.mu.Lock()
	if !e.completed {
		e.callbacks = append(e.callbacks, fn)
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	fn(e.data, e.err)
}

func failedHandle(key Key, err error) *Handle {
	e := newEntry(key)
	e.state = Failed
	e.err = err
	e.resolve()
	return &Handle{e}
}
