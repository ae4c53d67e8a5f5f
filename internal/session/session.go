// Package session tracks who is signed in behind each browser session and
// notifies on identity changes.
package session

import (
	"context"
	"sync"
	"time"

	"recruit-portal/internal/common/logger"
	"recruit-portal/internal/models"
)

type Status string

const (
	StatusLoading       Status = "loading"
	StatusAuthenticated Status = "authenticated"
	StatusAnonymous     Status = "anonymous"
)

// AuthState is the observable identity of a session. Identity is set only
// when Status is authenticated.
type AuthState struct {
	Status   Status           `json:"status"`
	Identity *models.Identity `json:"identity,omitempty"`
}

func Loading() AuthState   { return AuthState{Status: StatusLoading} }
func Anonymous() AuthState { return AuthState{Status: StatusAnonymous} }

func Authenticated(id *models.Identity) AuthState {
	if id == nil {
		return Anonymous()
	}
	return AuthState{Status: StatusAuthenticated, Identity: id}
}

// Role returns the role of an authenticated identity.
func (s AuthState) Role() (models.Role, bool) {
	if s.Status != StatusAuthenticated || s.Identity == nil {
		return "", false
	}
	return s.Identity.Role, true
}

// IdentityProvider is the external identity collaborator.
type IdentityProvider interface {
	// Resolve returns the identity behind sessionID, nil when anonymous.
	Resolve(ctx context.Context, sessionID string) (*models.Identity, error)
	Watch(ctx context.Context, sessionID string) (<-chan models.SessionEvent, func(), error)
	SignOut(ctx context.Context, sessionID string) error
}

const (
	defaultRetryDelay = 250 * time.Millisecond
	maxRetryDelay     = 30 * time.Second
)

// Context holds the auth state of one browser session. The state is loading
// until the first resolution succeeds and never reports a premature
// anonymous. Failed resolutions are retried; a failed revalidation keeps the
// last known state.
type Context struct {
	id         string
	provider   IdentityProvider
	logger     logger.Logger
	retryDelay time.Duration

	mu        sync.Mutex
	state     AuthState
	gen       uint64    // bumped by every applied event
	checkedAt time.Time // last successful resolution
	lastUsed  time.Time
	inflight  chan struct{} // closed when the running resolution settles
	ready     chan struct{}
	once      sync.Once
	started   bool
	runCtx    context.Context
	cancel    context.CancelFunc
	stopped   chan struct{}
}

func NewContext(id string, provider IdentityProvider, log logger.Logger) *Context {
	return &Context{
		id:         id,
		provider:   provider,
		logger:     log.WithFields(map[string]interface{}{"component": "session", "session_id": id}),
		retryDelay: defaultRetryDelay,
		state:      Loading(),
		lastUsed:   time.Now(),
		ready:      make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

func (c *Context) ID() string {
	return c.id
}

// Start subscribes to identity changes and resolves the initial identity in
// the background. Calling Start twice is a no-op.
func (c *Context) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.runCtx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))
	c.inflight = make(chan struct{})
	runCtx := c.runCtx
	c.mu.Unlock()

	events, stopWatch, err := c.provider.Watch(runCtx, c.id)
	if err != nil {
		c.logger.Warn("Session change notifications unavailable", map[string]interface{}{"error": err.Error()})
		events, stopWatch = nil, func() {}
	}

	go c.resolve(runCtx)
	go c.listen(runCtx, events, stopWatch)
}

// Revalidate re-resolves the identity in the background when the last
// successful resolution is older than maxAge. Wait blocks until it settles.
func (c *Context) Revalidate(maxAge time.Duration) {
	c.mu.Lock()
	if !c.started || c.inflight != nil || c.checkedAt.IsZero() || time.Since(c.checkedAt) < maxAge {
		c.mu.Unlock()
		return
	}
	c.inflight = make(chan struct{})
	runCtx := c.runCtx
	c.mu.Unlock()

	go c.resolve(runCtx)
}

func (c *Context) resolve(ctx context.Context) {
	delay := c.retryDelay
	for {
		c.mu.Lock()
		gen := c.gen
		c.mu.Unlock()

		id, err := c.provider.Resolve(ctx, c.id)
		if err == nil {
			c.settle(gen, Authenticated(id), true)
			return
		}
		if ctx.Err() != nil {
			c.settle(gen, AuthState{}, false)
			return
		}
		c.logger.Warn("Failed to resolve session identity", map[string]interface{}{
			"error":       err.Error(),
			"next_try_in": delay.String(),
		})
		if c.isReady() {
			c.settle(gen, AuthState{}, false)
			return
		}

		select {
		case <-ctx.Done():
			c.settle(gen, AuthState{}, false)
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, maxRetryDelay)
	}
}

// settle ends the running resolution. A resolved state is applied only when
// no event arrived while it ran.
func (c *Context) settle(gen uint64, next AuthState, resolved bool) {
	c.mu.Lock()
	if resolved {
		c.checkedAt = time.Now()
		if gen == c.gen {
			c.state = next
		}
	}
	done := c.inflight
	c.inflight = nil
	c.mu.Unlock()

	if done != nil {
		close(done)
	}
	if resolved {
		c.markReady()
	}
}

func (c *Context) listen(ctx context.Context, events <-chan models.SessionEvent, stopWatch func()) {
	defer close(c.stopped)
	defer stopWatch()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.apply(ev)
		}
	}
}

func (c *Context) apply(ev models.SessionEvent) {
	c.mu.Lock()
	switch ev.Type {
	case models.SessionSignedIn:
		c.state = Authenticated(ev.Identity)
	case models.SessionSignedOut:
		c.state = Anonymous()
	default:
		c.mu.Unlock()
		return
	}
	c.gen++
	c.mu.Unlock()

	c.logger.Debug("Session identity changed", map[string]interface{}{"event": ev.Type})
	c.markReady()
}

func (c *Context) markReady() {
	c.once.Do(func() { close(c.ready) })
}

func (c *Context) isReady() bool {
	select {
	case <-c.ready:
		return true
	default:
		return false
	}
}

func (c *Context) touch(now time.Time) {
	c.mu.Lock()
	c.lastUsed = now
	c.mu.Unlock()
}

func (c *Context) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed
}

// State returns the current auth state.
func (c *Context) State() AuthState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Wait blocks until the state is no longer loading and any running
// revalidation has settled.
func (c *Context) Wait(ctx context.Context) (AuthState, error) {
	select {
	case <-c.ready:
	case <-ctx.Done():
		return c.State(), ctx.Err()
	}

	c.mu.Lock()
	pending := c.inflight
	c.mu.Unlock()
	if pending != nil {
		select {
		case <-pending:
		case <-ctx.Done():
			return c.State(), ctx.Err()
		}
	}
	return c.State(), nil
}

// SignOut revokes the session at the provider and resets to anonymous.
func (c *Context) SignOut(ctx context.Context) error {
	if err := c.provider.SignOut(ctx, c.id); err != nil {
		return err
	}
	c.apply(models.SessionEvent{Type: models.SessionSignedOut, SessionID: c.id})
	return nil
}

// Stop unsubscribes from identity changes and abandons any retry.
func (c *Context) Stop() {
	c.mu.Lock()
	cancel, started := c.cancel, c.started
	c.mu.Unlock()
	if !started {
		return
	}
	cancel()
	<-c.stopped
}
