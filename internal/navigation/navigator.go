// Package navigation carries "go to this view" signals from the session core to
// whatever front end is driving it (the console server, the CLI, or a test).
package navigation

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"
)

// Well-known destinations.
const (
	LoginPath = "/login"
	RootPath  = "/"

	// ReturnURLParam carries the originally requested destination to the login view.
	ReturnURLParam = "returnUrl"
)

// Target is a navigation destination.
type Target struct {
	Path  string
	Query url.Values
}

// Login returns the login target, optionally carrying a return destination.
func Login(returnURL string) Target {
	t := Target{Path: LoginPath}
	if returnURL != "" {
		t.Query = url.Values{ReturnURLParam: []string{returnURL}}
	}
	return t
}

// Root returns the application root target.
func Root() Target {
	return Target{Path: RootPath}
}

// String renders the target as a relative URL.
func (t Target) String() string {
	u := url.URL{Path: t.Path}
	if len(t.Query) > 0 {
		u.RawQuery = t.Query.Encode()
	}
	return u.String()
}

// Navigator receives navigation requests.
type Navigator interface {
	Navigate(ctx context.Context, target Target)
}

// Func adapts a function to Navigator.
type Func func(ctx context.Context, target Target)

// Navigate calls f.
func (f Func) Navigate(ctx context.Context, target Target) { f(ctx, target) }

// Discard ignores every navigation.
var Discard Navigator = Func(func(context.Context, Target) {}) //nolint:gochecknoglobals // stateless sentinel

// Recorder remembers navigations. The console server polls Pending to turn a
// navigation raised outside a request (e.g. a 401 teardown) into a redirect.
// It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	history []Target
	pending *Target
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Navigate records target and marks it pending.
func (r *Recorder) Navigate(_ context.Context, target Target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, target)
	t := target
	r.pending = &t
}

// Pending returns and consumes the latest unconsumed target.
func (r *Recorder) Pending() (Target, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		return Target{}, false
	}
	t := *r.pending
	r.pending = nil
	return t, true
}

// History returns a copy of every recorded navigation.
func (r *Recorder) History() []Target {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Target, len(r.history))
	copy(out, r.history)
	return out
}

// Count returns how many navigations went to path.
func (r *Recorder) Count(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.history {
		if t.Path == path {
			n++
		}
	}
	return n
}

// DefaultCoalesceWindow is used when NewCoalescer receives a non-positive window.
const DefaultCoalesceWindow = time.Second

// Coalescer forwards navigations to next, dropping a repeat of the same target
// that arrives within window of the previous forwarded one.
type Coalescer struct {
	next   Navigator
	window time.Duration
	now    func() time.Time

	mu       sync.Mutex
	lastKey  string
	lastTime time.Time
}

// CoalescerOption customizes a Coalescer.
type CoalescerOption func(*Coalescer)

// WithClock overrides the time source.
func WithClock(now func() time.Time) CoalescerOption {
	return func(c *Coalescer) { c.now = now }
}

// NewCoalescer wraps next.
func NewCoalescer(next Navigator, window time.Duration, opts ...CoalescerOption) *Coalescer {
	if window <= 0 {
		window = DefaultCoalesceWindow
	}
	c := &Coalescer{next: next, window: window, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Navigate forwards target unless it duplicates the previous one within the window.
func (c *Coalescer) Navigate(ctx context.Context, target Target) {
	key := target.String()
	now := c.now()

	c.mu.Lock()
	if key == c.lastKey && now.Sub(c.lastTime) < c.window {
		c.mu.Unlock()
		return
	}
	c.lastKey = key
	c.lastTime = now
	c.mu.Unlock()

	c.next.Navigate(ctx, target)
}

// Logger logs navigations; the CLI uses it since it has no views to switch.
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a logging Navigator.
func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger.With("component", "navigation")}
}

// Navigate logs target.
func (l *Logger) Navigate(ctx context.Context, target Target) {
	l.logger.InfoContext(ctx, "navigate", "target", target.String())
}
