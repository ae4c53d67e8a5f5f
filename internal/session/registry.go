package session

import (
	"context"
	"sync"
	"time"

	"recruit-portal/internal/common/logger"
)

// Registry maps session ids to started contexts. It is created at startup and
// closed on shutdown.
type Registry struct {
	provider        IdentityProvider
	logger          logger.Logger
	revalidateAfter time.Duration
	idleTimeout     time.Duration
	retryDelay      time.Duration

	mu       sync.Mutex
	contexts map[string]*Context

	done chan struct{}
	wg   sync.WaitGroup
}

// Option configures a Registry.
type Option func(*Registry)

// WithRevalidateAfter sets how long a resolved identity is trusted before Get
// resolves it again. Zero disables revalidation.
func WithRevalidateAfter(d time.Duration) Option {
	return func(r *Registry) { r.revalidateAfter = d }
}

// WithIdleTimeout evicts contexts no request has used for d. Zero disables
// eviction.
func WithIdleTimeout(d time.Duration) Option {
	return func(r *Registry) { r.idleTimeout = d }
}

// WithRetryDelay sets the first delay between failed initial resolutions.
func WithRetryDelay(d time.Duration) Option {
	return func(r *Registry) { r.retryDelay = d }
}

func NewRegistry(provider IdentityProvider, log logger.Logger, opts ...Option) *Registry {
	r := &Registry{
		provider:        provider,
		logger:          log,
		revalidateAfter: time.Minute,
		idleTimeout:     30 * time.Minute,
		retryDelay:      defaultRetryDelay,
		contexts:        make(map[string]*Context),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.idleTimeout > 0 {
		r.wg.Add(1)
		go r.sweep()
	}
	return r
}

// Get returns the context for sessionID, creating and starting it on first
// use. A context whose identity is older than the revalidation window is
// resolved again.
func (r *Registry) Get(ctx context.Context, sessionID string) *Context {
	now := time.Now()

	r.mu.Lock()
	c, ok := r.contexts[sessionID]
	if !ok {
		c = NewContext(sessionID, r.provider, r.logger)
		c.retryDelay = r.retryDelay
		r.contexts[sessionID] = c
	}
	c.touch(now)
	r.mu.Unlock()

	switch {
	case !ok:
		c.Start(ctx)
	case r.revalidateAfter > 0:
		c.Revalidate(r.revalidateAfter)
	}
	return c
}

// Drop stops and forgets the context for sessionID.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	c, ok := r.contexts[sessionID]
	delete(r.contexts, sessionID)
	r.mu.Unlock()
	if ok {
		c.Stop()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contexts)
}

func (r *Registry) sweep() {
	defer r.wg.Done()

	interval := r.idleTimeout / 2
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case now := <-ticker.C:
			r.evictIdle(now)
		}
	}
}

func (r *Registry) evictIdle(now time.Time) {
	var idle []*Context
	r.mu.Lock()
	for id, c := range r.contexts {
		if now.Sub(c.idleSince()) >= r.idleTimeout {
			idle = append(idle, c)
			delete(r.contexts, id)
		}
	}
	r.mu.Unlock()

	for _, c := range idle {
		c.Stop()
	}
	if len(idle) > 0 {
		r.logger.Debug("Evicted idle session contexts", map[string]interface{}{"count": len(idle)})
	}
}

// Close stops the sweeper and every context.
func (r *Registry) Close() {
	select {
	case <-r.done:
	default:
		close(r.done)
	}
	r.wg.Wait()

	r.mu.Lock()
	contexts := r.contexts
	r.contexts = make(map[string]*Context)
	r.mu.Unlock()

	for _, c := range contexts {
		c.Stop()
	}
}
