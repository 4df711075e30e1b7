package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dom/product-console/internal/domain"
	"go.uber.org/zap"
)

const (
	DefaultWindow           = 30 * time.Minute
	DefaultWarningWindow    = 5 * time.Minute
	DefaultCheckInterval    = time.Minute
	DefaultActivityThrottle = 5 * time.Minute

	ExpiredMessage = "Your session has expired. Please log in again."
)

type State int

const (
	StateNoSession State = iota
	StateActive
	StateNearExpiry
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateNearExpiry:
		return "near-expiry"
	case StateExpired:
		return "expired"
	default:
		return "no-session"
	}
}

type EventKind string

const (
	EventStarted   EventKind = "started"
	EventExtended  EventKind = "extended"
	EventWarning   EventKind = "warning"
	EventExpired   EventKind = "expired"
	EventLoggedOut EventKind = "logged-out"
	EventRejected  EventKind = "rejected"
)

type Event struct {
	Kind      EventKind
	At        time.Time
	Expiry    time.Time
	Remaining time.Duration
}

type Options struct {
	Window           time.Duration
	WarningWindow    time.Duration
	CheckInterval    time.Duration
	ActivityThrottle time.Duration
	Now              func() time.Time
}

func DefaultOptions() Options {
	return Options{
		Window:           DefaultWindow,
		WarningWindow:    DefaultWarningWindow,
		CheckInterval:    DefaultCheckInterval,
		ActivityThrottle: DefaultActivityThrottle,
		Now:              time.Now,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Window <= 0 {
		o.Window = d.Window
	}
	if o.WarningWindow <= 0 {
		o.WarningWindow = d.WarningWindow
	}
	if o.CheckInterval <= 0 {
		o.CheckInterval = d.CheckInterval
	}
	if o.ActivityThrottle <= 0 {
		o.ActivityThrottle = d.ActivityThrottle
	}
	if o.Now == nil {
		o.Now = d.Now
	}
	return o
}

// Controller owns the client session lifecycle. The store is the source of
// truth: every operation reloads it, so a session changed by another process
// or cleared behind the controller's back is picked up on the next call.
type Controller struct {
	store Store
	opts  Options
	lg    *zap.SugaredLogger

	mu           sync.Mutex
	lastActivity time.Time
	warned       bool
	message      string
	listeners    []func(Event)

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewController(store Store, opts Options, lg *zap.SugaredLogger) *Controller {
	if lg == nil {
		lg = zap.NewNop().Sugar()
	}
	return &Controller{store: store, opts: opts.withDefaults(), lg: lg}
}

// OnEvent registers fn for lifecycle events. Listeners run synchronously on
// the goroutine that caused the event, after the controller's lock is released.
// A listener must not call Stop, since it may be running on the ticker goroutine.
func (c *Controller) OnEvent(fn func(Event)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Begin stores a fresh session after a successful login or registration.
func (c *Controller) Begin(token string, user domain.PublicUser) (*Session, error) {
	c.mu.Lock()
	now := c.opts.Now()
	s := &Session{Token: token, User: user, Expiry: now.Add(c.opts.Window)}
	if err := c.store.Save(s); err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("begin session: %w", err)
	}
	c.lastActivity = now
	c.warned = false
	c.message = ""
	ev := c.event(EventStarted, now, s.Expiry)
	c.mu.Unlock()

	c.emit(ev)
	return s, nil
}

// Current returns the live session, or nil when logged out or expired. It
// does not clear an expired session; Check does that.
func (c *Controller) Current() (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.store.Load()
	if err != nil || s == nil {
		return nil, err
	}
	if !c.opts.Now().Before(s.Expiry) {
		return nil, nil
	}
	return s, nil
}

// State classifies the stored session against the clock without side effects.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.store.Load()
	if err != nil {
		c.lg.Warnw("session: load failed", "error", err)
		return StateNoSession
	}
	return c.classify(s, c.opts.Now())
}

func (c *Controller) classify(s *Session, now time.Time) State {
	if s == nil {
		return StateNoSession
	}
	remaining := s.Expiry.Sub(now)
	switch {
	case remaining <= 0:
		return StateExpired
	case remaining <= c.opts.WarningWindow:
		return StateNearExpiry
	default:
		return StateActive
	}
}

// Extend pushes the expiry to a full window from now. It never shortens a
// session.
func (c *Controller) Extend() (time.Time, error) {
	c.mu.Lock()
	now := c.opts.Now()
	s, err := c.store.Load()
	if err != nil {
		c.mu.Unlock()
		return time.Time{}, fmt.Errorf("extend session: %w", err)
	}
	if s == nil {
		c.mu.Unlock()
		return time.Time{}, domain.ErrNoSession
	}
	if !now.Before(s.Expiry) {
		ev, err := c.expireLocked(now)
		c.mu.Unlock()
		c.emit(ev)
		if err != nil {
			return time.Time{}, err
		}
		return time.Time{}, domain.ErrSessionExpired
	}

	ev, err := c.extendLocked(s, now)
	c.mu.Unlock()
	if err != nil {
		return time.Time{}, err
	}
	c.emit(ev)
	return ev.Expiry, nil
}

func (c *Controller) extendLocked(s *Session, now time.Time) (Event, error) {
	if next := now.Add(c.opts.Window); next.After(s.Expiry) {
		s.Expiry = next
	}
	if err := c.store.Save(s); err != nil {
		return Event{}, fmt.Errorf("extend session: %w", err)
	}
	if s.Expiry.Sub(now) > c.opts.WarningWindow {
		c.warned = false
	}
	return c.event(EventExtended, now, s.Expiry), nil
}

// RecordActivity notes user activity. At most one activity per throttle
// period is considered, and it extends the session only once more than half
// of the window has elapsed. It reports whether the session was extended.
func (c *Controller) RecordActivity() (bool, error) {
	c.mu.Lock()
	now := c.opts.Now()
	if !c.lastActivity.IsZero() && now.Sub(c.lastActivity) <= c.opts.ActivityThrottle {
		c.mu.Unlock()
		return false, nil
	}
	c.lastActivity = now

	s, err := c.store.Load()
	if err != nil || s == nil || !now.Before(s.Expiry) {
		c.mu.Unlock()
		return false, err
	}
	if s.Expiry.Sub(now) >= c.opts.Window/2 {
		c.mu.Unlock()
		return false, nil
	}

	ev, err := c.extendLocked(s, now)
	c.mu.Unlock()
	if err != nil {
		return false, err
	}
	c.emit(ev)
	return true, nil
}

// Check is the periodic tick. An expired session is cleared and the expiry
// message set; the first tick inside the warning window emits a warning.
func (c *Controller) Check() (State, error) {
	c.mu.Lock()
	now := c.opts.Now()
	s, err := c.store.Load()
	if err != nil {
		c.mu.Unlock()
		return StateNoSession, fmt.Errorf("check session: %w", err)
	}

	state := c.classify(s, now)
	var ev *Event
	switch state {
	case StateExpired:
		e, err := c.expireLocked(now)
		c.mu.Unlock()
		c.emit(e)
		return StateNoSession, err
	case StateNearExpiry:
		if !c.warned {
			c.warned = true
			e := c.event(EventWarning, now, s.Expiry)
			ev = &e
		}
	case StateActive:
		c.warned = false
	}
	c.mu.Unlock()

	if ev != nil {
		c.emit(*ev)
	}
	return state, nil
}

func (c *Controller) expireLocked(now time.Time) (Event, error) {
	err := c.store.Clear()
	c.message = ExpiredMessage
	c.warned = false
	c.lg.Infow("session expired")
	return c.event(EventExpired, now, time.Time{}), err
}

// Message returns the pending user-facing notice, if any.
func (c *Controller) Message() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message
}

// Logout clears the session and any pending notice.
func (c *Controller) Logout() error {
	c.mu.Lock()
	err := c.store.Clear()
	c.message = ""
	c.warned = false
	ev := c.event(EventLoggedOut, c.opts.Now(), time.Time{})
	c.mu.Unlock()

	c.emit(ev)
	return err
}

// HandleRejected reacts to an API response status. A 401 means the server no
// longer honors the token, so the local session is destroyed. It reports
// whether the session was cleared.
func (c *Controller) HandleRejected(status int) bool {
	if status != http.StatusUnauthorized {
		return false
	}

	c.mu.Lock()
	s, _ := c.store.Load()
	if s == nil {
		c.mu.Unlock()
		return false
	}
	if err := c.store.Clear(); err != nil {
		c.lg.Warnw("session: clear after rejection failed", "error", err)
	}
	c.message = ExpiredMessage
	c.warned = false
	ev := c.event(EventRejected, c.opts.Now(), time.Time{})
	c.mu.Unlock()

	c.emit(ev)
	return true
}

// Start runs Check every CheckInterval until ctx is done or Stop is called.
// Calling Start while running restarts the ticker.
func (c *Controller) Start(ctx context.Context) {
	c.Stop()

	c.runMu.Lock()
	defer c.runMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(c.opts.CheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := c.Check(); err != nil {
					c.lg.Warnw("session: check failed", "error", err)
				}
			}
		}
	}()
}

// Stop halts the ticker and waits for it to exit. Safe to call when not running.
func (c *Controller) Stop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.cancel = nil
	c.done = nil
}

func (c *Controller) event(kind EventKind, now, expiry time.Time) Event {
	ev := Event{Kind: kind, At: now, Expiry: expiry}
	if !expiry.IsZero() {
		ev.Remaining = expiry.Sub(now)
	}
	return ev
}

func (c *Controller) emit(ev Event) {
	if ev.Kind == "" {
		return
	}
	c.mu.Lock()
	listeners := make([]func(Event), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}
