// Package query is the process-wide query/mutation cache between the views and
// the endpoint catalog.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"recruit-portal/internal/common/logger"
	"recruit-portal/internal/common/metrics"
)

// Status is the consumer-facing state of a key.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusError   Status = "error"
	StatusSuccess Status = "success"
)

// Cache events counted in portal_query_cache_events_total.
const (
	eventHit        = "hit"
	eventMiss       = "miss"
	eventDedup      = "dedup"
	eventStale      = "stale"
	eventDiscard    = "discard"
	eventInvalidate = "invalidate"
	eventRetry      = "retry"
	eventMirror     = "mirror_hit"
	eventCollect    = "collect"
)

// Snapshot is a read-only view of one key.
type Snapshot struct {
	Key          string      `json:"key"`
	Status       Status      `json:"status"`
	Data         interface{} `json:"data,omitempty"`
	Err          error       `json:"-"`
	UpdatedAt    time.Time   `json:"updatedAt"`
	IsFetching   bool        `json:"isFetching"`
	FailureCount int         `json:"failureCount"`
	Waiters      int         `json:"-"`
}

// Options is the per-query policy.
type Options struct {
	// Retry is how many times a failed fetch is repeated before the error is
	// surfaced.
	Retry int
	// RetryDelay overrides Config.RetryDelay when positive.
	RetryDelay time.Duration
	// StaleTime overrides Config.StaleTime when positive.
	StaleTime time.Duration
}

type Config struct {
	StaleTime  time.Duration
	RetryDelay time.Duration

	// GCTime is how long a key nobody reads stays cached. Zero keeps keys
	// until the cache is dropped.
	GCTime time.Duration
}

func DefaultConfig() Config {
	return Config{
		StaleTime:  30 * time.Second,
		RetryDelay: time.Second,
		GCTime:     5 * time.Minute,
	}
}

func (c Config) Validate() error {
	if c.StaleTime < 0 {
		return fmt.Errorf("stale time must not be negative")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay must not be negative")
	}
	if c.GCTime < 0 {
		return fmt.Errorf("gc time must not be negative")
	}
	return nil
}

type fetchFunc func(ctx context.Context) (interface{}, error)
type decodeFunc func([]byte) (interface{}, error)

type entry struct {
	data         interface{}
	hasData      bool
	err          error
	updatedAt    time.Time
	fetching     bool
	invalidated  bool
	generation   uint64
	failureCount int
	waiters      int
	lastUsed     time.Time
}

type observer struct {
	prefix string
	fn     func(Snapshot)
}

// Cache holds cached results, in-flight state and staleness per key. Every
// state transition happens under mu in a single critical section.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]*entry
	group     singleflight.Group
	observers map[int]observer
	nextObs   int
	lastGen   uint64 // generations are unique across keys and collections
	closed    bool

	config Config
	mirror Mirror
	logger logger.Logger
	now    func() time.Time

	done chan struct{}
	wg   sync.WaitGroup
}

type Option func(*Cache)

// WithMirror writes fresh results through to a shared store and seeds absent
// keys from it.
func WithMirror(m Mirror) Option {
	return func(c *Cache) { c.mirror = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New returns an isolated cache.
func New(cfg Config, log logger.Logger, opts ...Option) *Cache {
	c := &Cache{
		entries:   make(map[string]*entry),
		observers: make(map[int]observer),
		config:    cfg,
		logger:    log.WithFields(map[string]interface{}{"component": "query-cache"}),
		now:       time.Now,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.GCTime > 0 {
		c.wg.Add(1)
		go c.collectLoop()
	}
	return c
}

// Key joins a family name and its parameters, e.g. Key("shortlist", "7").
func Key(family string, params ...string) string {
	if len(params) == 0 {
		return family
	}
	return family + "/" + strings.Join(params, "/")
}

// Query returns the cached value for key when fresh, otherwise fetches it
// with fn. Concurrent callers for the same key share one fetch.
func Query[T any](ctx context.Context, c *Cache, key string, opts Options, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	v, err := c.fetch(ctx, key, opts,
		func(ctx context.Context) (interface{}, error) { return fn(ctx) },
		func(b []byte) (interface{}, error) {
			var t T
			if err := json.Unmarshal(b, &t); err != nil {
				return nil, err
			}
			return t, nil
		})
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("query %s: cached value has type %T", key, v)
	}
	return t, nil
}

type outcome struct {
	value interface{}
	at    time.Time
}

func (c *Cache) staleTime(opts Options) time.Duration {
	if opts.StaleTime > 0 {
		return opts.StaleTime
	}
	return c.config.StaleTime
}

func (c *Cache) retryDelay(opts Options) time.Duration {
	if opts.RetryDelay > 0 {
		return opts.RetryDelay
	}
	return c.config.RetryDelay
}

func (c *Cache) fetch(ctx context.Context, key string, opts Options, fn fetchFunc, decode decodeFunc) (interface{}, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.lastGen++
		e = &entry{generation: c.lastGen}
		c.entries[key] = e
	}
	e.lastUsed = c.now()

	if e.hasData && e.err == nil && !e.invalidated && c.now().Sub(e.updatedAt) <= c.staleTime(opts) {
		data := e.data
		c.mu.Unlock()
		metrics.QueryCacheEvents.WithLabelValues(eventHit).Inc()
		return data, nil
	}

	switch {
	case e.fetching:
		metrics.QueryCacheEvents.WithLabelValues(eventDedup).Inc()
	case e.hasData:
		metrics.QueryCacheEvents.WithLabelValues(eventStale).Inc()
	default:
		metrics.QueryCacheEvents.WithLabelValues(eventMiss).Inc()
	}

	gen := e.generation
	seed := !e.hasData && c.mirror != nil
	e.fetching = true
	e.waiters++
	ch := c.group.DoChan(key+"#"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		// The shared fetch outlives any single caller; only the transport deadline ends it.
		return c.run(context.WithoutCancel(ctx), key, gen, seed, opts, fn, decode)
	})
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		e.waiters--
		c.mu.Unlock()
	}()

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(outcome).value, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// run performs one shared fetch (mirror first when seeding, then fn with
// retries) and settles the entry.
func (c *Cache) run(ctx context.Context, key string, gen uint64, seed bool, opts Options, fn fetchFunc, decode decodeFunc) (interface{}, error) {
	if seed {
		if out, ok := c.loadMirror(ctx, key, decode); ok {
			c.settle(key, gen, out, nil)
			return out, nil
		}
	}

	var (
		value interface{}
		err   error
	)
	for attempt := 0; attempt <= opts.Retry; attempt++ {
		if attempt > 0 {
			metrics.QueryCacheEvents.WithLabelValues(eventRetry).Inc()
			c.logger.Debug("Retrying query", map[string]interface{}{
				"key":     key,
				"attempt": attempt,
				"error":   err.Error(),
			})
			timer := time.NewTimer(c.retryDelay(opts))
			<-timer.C
		}
		value, err = fn(ctx)
		if err == nil {
			break
		}
	}

	out := outcome{value: value, at: c.now()}
	settled := c.settle(key, gen, out, err)
	if err != nil {
		return nil, err
	}
	if settled && c.mirror != nil {
		c.storeMirror(ctx, key, out, opts)
		// An Invalidate that ran while storing may have deleted the mirror
		// key before the superseded payload landed.
		if !c.current(key, gen) {
			c.forgetMirror(ctx, key)
		}
	}
	return out, nil
}

// current reports whether gen is still the live generation of key.
func (c *Cache) current(key string, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && e.generation == gen
}

// settle records the result of generation gen. A result from a superseded
// generation is discarded and reported as not settled.
func (c *Cache) settle(key string, gen uint64, out outcome, err error) bool {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || e.generation != gen {
		c.mu.Unlock()
		metrics.QueryCacheEvents.WithLabelValues(eventDiscard).Inc()
		c.logger.Debug("Discarded superseded query result", map[string]interface{}{"key": key})
		return false
	}

	e.fetching = false
	if err != nil {
		e.err = err
		e.failureCount++
	} else {
		e.data = out.value
		e.hasData = true
		e.err = nil
		e.updatedAt = out.at
		e.invalidated = false
		e.failureCount = 0
	}
	snap := c.snapshotLocked(key, e)
	observers := c.matchingObserversLocked(key)
	c.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
	return true
}

// Invalidate marks every key equal to a prefix, or below it ("shortlist"
// matches "shortlist/7"), as needing a refetch. In-flight fetches for those
// keys are superseded.
func (c *Cache) Invalidate(ctx context.Context, prefixes ...string) {
	if len(prefixes) == 0 {
		return
	}

	c.mu.Lock()
	var hit []string
	for key, e := range c.entries {
		if !matchesAny(key, prefixes) {
			continue
		}
		c.lastGen++
		e.generation = c.lastGen
		e.invalidated = true
		e.fetching = false
		hit = append(hit, key)
	}
	c.mu.Unlock()

	metrics.QueryCacheEvents.WithLabelValues(eventInvalidate).Add(float64(len(hit)))
	if len(hit) > 0 {
		c.logger.Debug("Invalidated queries", map[string]interface{}{"prefixes": prefixes, "keys": hit})
	}

	if c.mirror != nil {
		for _, p := range prefixes {
			if err := c.mirror.Invalidate(ctx, p); err != nil {
				c.logger.Warn("Failed to invalidate mirrored query", map[string]interface{}{
					"prefix": p,
					"error":  err.Error(),
				})
			}
		}
	}
}

func (c *Cache) collectLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.config.GCTime / 2)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

// collect drops keys that are neither fetching nor awaited and were last read
// more than GCTime ago.
func (c *Cache) collect() int {
	now := c.now()
	c.mu.Lock()
	var dropped int
	for key, e := range c.entries {
		if e.fetching || e.waiters > 0 || now.Sub(e.lastUsed) < c.config.GCTime {
			continue
		}
		delete(c.entries, key)
		dropped++
	}
	c.mu.Unlock()

	if dropped > 0 {
		metrics.QueryCacheEvents.WithLabelValues(eventCollect).Add(float64(dropped))
		c.logger.Debug("Collected unused queries", map[string]interface{}{"count": dropped})
	}
	return dropped
}

// Len returns the number of cached keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Peek returns the current state of key without fetching.
func (c *Cache) Peek(key string) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Snapshot{Key: key, Status: StatusIdle}
	}
	return c.snapshotLocked(key, e)
}

func (c *Cache) snapshotLocked(key string, e *entry) Snapshot {
	s := Snapshot{
		Key:          key,
		Data:         e.data,
		Err:          e.err,
		UpdatedAt:    e.updatedAt,
		IsFetching:   e.fetching,
		FailureCount: e.failureCount,
		Waiters:      e.waiters,
	}
	switch {
	case e.err != nil:
		s.Status = StatusError
	case e.hasData:
		s.Status = StatusSuccess
	case e.fetching:
		s.Status = StatusLoading
	default:
		s.Status = StatusIdle
	}
	return s
}

// Subscribe calls fn with the snapshot of every settled fetch whose key
// matches prefix. An empty prefix matches every key.
func (c *Cache) Subscribe(prefix string, fn func(Snapshot)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return func() {}
	}
	id := c.nextObs
	c.nextObs++
	c.observers[id] = observer{prefix: prefix, fn: fn}
	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

func (c *Cache) matchingObserversLocked(key string) []func(Snapshot) {
	var out []func(Snapshot)
	for _, o := range c.observers {
		if o.prefix == "" || matches(key, o.prefix) {
			out = append(out, o.fn)
		}
	}
	return out
}

// Close stops collection and detaches all observers.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.observers = make(map[int]observer)
	c.mu.Unlock()

	close(c.done)
	c.wg.Wait()
}

func matches(key, prefix string) bool {
	return key == prefix || strings.HasPrefix(key, prefix+"/")
}

func matchesAny(key string, prefixes []string) bool {
	for _, p := range prefixes {
		if matches(key, p) {
			return true
		}
	}
	return false
}
