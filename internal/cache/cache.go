package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"archcheck/internal/graph"
	"archcheck/internal/location"
	"archcheck/internal/logging"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
)

// ErrClosed is returned by a Context after Close.
var ErrClosed = errors.New("cache context closed")

// ImportFunc produces the graph for a location set.
type ImportFunc func(ctx context.Context, locs []location.Location) (*graph.Graph, error)

// Cache is the process-wide tier: graphs keyed by location set, shared by
// every evaluation context, evictable through its Store. Construct one per
// process and share it by reference.
type Cache struct {
	store   Store
	group   singleflight.Group
	metrics *metrics
	logger  *log.Logger
}

type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	logger     *log.Logger
}

// WithRegisterer registers the cache counters on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

func New(store Store, opts ...Option) *Cache {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache{
		store:   store,
		metrics: newMetrics(o.registerer),
		logger:  logging.OrDiscard(o.logger),
	}
}

// GetOrImport returns the cached graph for locs or imports it. Concurrent
// calls for the same set share one import and all receive its result;
// calls for different sets never wait on each other.
func (c *Cache) GetOrImport(ctx context.Context, locs []location.Location, fn ImportFunc) (*graph.Graph, error) {
	key := KeyOf(locs)
	if g, ok := c.store.Get(key); ok {
		c.metrics.lookup(tierProcess, true)
		return g, nil
	}
	c.metrics.lookup(tierProcess, false)

	// The import is not tied to any caller; a cancelled caller only stops waiting.
	flight := context.WithoutCancel(ctx)
	ch := c.group.DoChan(string(key), func() (any, error) {
		// Double-check inside the flight: a previous flight may have just stored it.
		if g, ok := c.store.Get(key); ok {
			return g, nil
		}
		c.metrics.imports.Inc()
		g, err := fn(flight, locs)
		if err != nil {
			return nil, err
		}
		c.store.Add(key, g)
		return g, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	v, err, shared := res.Val, res.Err, res.Shared
	if err != nil {
		return nil, err
	}
	g, ok := v.(*graph.Graph)
	if !ok {
		return nil, fmt.Errorf("cache: unexpected flight result %T", v)
	}
	if shared {
		c.logger.Debug("joined in-flight import", "locations", len(locs))
	}
	return g, nil
}

// Purge drops every graph from the process-wide tier.
func (c *Cache) Purge() {
	c.store.Purge()
}

// NewContext opens an evaluation-context tier backed by c.
func (c *Cache) NewContext() *Context {
	return &Context{
		parent:  c,
		entries: make(map[Key]*contextEntry),
	}
}

// Context is the evaluation-context tier. It holds its graphs strongly
// until Close, so every rule run within it sees the same graph and each
// location set is imported at most once per context.
type Context struct {
	parent  *Cache
	mu      sync.Mutex
	entries map[Key]*contextEntry
	closed  bool
}

type contextEntry struct {
	ready chan struct{}
	graph *graph.Graph
	err   error
}

// GetOrImport returns the context's graph for locs, consulting the
// process-wide tier on first use.
func (c *Context) GetOrImport(ctx context.Context, locs []location.Location, fn ImportFunc) (*graph.Graph, error) {
	key := KeyOf(locs)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if e, ok := c.entries[key]; ok {
		c.mu.Unlock()
		c.parent.metrics.lookup(tierContext, true)
		select {
		case <-e.ready:
			return e.graph, e.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	e := &contextEntry{ready: make(chan struct{})}
	c.entries[key] = e
	c.mu.Unlock()
	c.parent.metrics.lookup(tierContext, false)

	go func() {
		e.graph, e.err = c.parent.GetOrImport(context.WithoutCancel(ctx), locs, fn)
		if e.err != nil {
			// Failed imports are not pinned; the next request retries.
			c.mu.Lock()
			if c.entries[key] == e {
				delete(c.entries, key)
			}
			c.mu.Unlock()
		}
		close(e.ready)
	}()

	select {
	case <-e.ready:
		return e.graph, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len is the number of location sets pinned by the context.
func (c *Context) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close releases every graph held by the context.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]*contextEntry)
	c.closed = true
	return nil
}
