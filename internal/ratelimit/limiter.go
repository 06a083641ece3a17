// Package ratelimit caps how many imports and exports a user may start per
// window. It runs in front of the engine and reports rejections as
// errs.KindRateLimit.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mrlokans/bookshelf/internal/errs"
)

type Action string

const (
	ActionImport Action = "import"
	ActionExport Action = "export"
)

// Config contains configuration for the limiter. A limit of zero or less
// leaves the action unlimited.
type Config struct {
	ImportsPerWindow int           // default: 10
	ExportsPerWindow int           // default: 30
	Window           time.Duration // default: 1h
	CleanupInterval  time.Duration // default: 5m
}

func DefaultConfig() Config {
	return Config{
		ImportsPerWindow: 10,
		ExportsPerWindow: 30,
		Window:           time.Hour,
		CleanupInterval:  5 * time.Minute,
	}
}

// Exceeded is attached as the details of a rate limit error.
type Exceeded struct {
	Action            Action `json:"action"`
	Limit             int    `json:"limit"`
	RetryAfterSeconds int    `json:"retryAfterSeconds"`
}

// Limiter keeps a token bucket per user and action. A bucket holds up to
// the per-window limit and refills one token every window/limit, so a user
// who has spent the whole budget gets it back over one window.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	limits   map[Action]int
	window   time.Duration
	now      func() time.Time
	interval time.Duration

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a limiter and starts its background cleanup.
func New(cfg Config) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}

	l := &Limiter{
		buckets: make(map[string]*bucket),
		limits: map[Action]int{
			ActionImport: cfg.ImportsPerWindow,
			ActionExport: cfg.ExportsPerWindow,
		},
		window:      cfg.Window,
		now:         time.Now,
		interval:    cfg.CleanupInterval,
		stopCleanup: make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Stop stops the background cleanup goroutine.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCleanup) })
}

func key(userID string, action Action) string {
	return string(action) + ":" + userID
}

// getLimiter returns the bucket for key, creating a full one on first use.
// Callers hold l.mu.
func (l *Limiter) getLimiter(k string, limit int, now time.Time) *rate.Limiter {
	b, ok := l.buckets[k]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Every(l.window/time.Duration(limit)), limit)}
		l.buckets[k] = b
	}
	b.lastSeen = now
	return b.limiter
}

// Allow takes a token and returns a KindRateLimit error when the user's
// bucket is empty. Rejected attempts do not take a token.
func (l *Limiter) Allow(userID string, action Action) error {
	limit := l.limits[action]
	if limit <= 0 {
		return nil
	}

	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	lim := l.getLimiter(key(userID, action), limit, now)
	r := lim.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	if delay == 0 {
		return nil
	}
	r.CancelAt(now)

	retry := int(delay.Round(time.Second) / time.Second)
	if retry < 1 {
		retry = 1
	}
	return &errs.Error{
		Kind:    errs.KindRateLimit,
		Message: "too many " + string(action) + "s, try again later",
		Details: Exceeded{
			Action:            action,
			Limit:             limit,
			RetryAfterSeconds: retry,
		},
	}
}

// Remaining returns how many whole attempts the user can make right now, or
// -1 when the action is unlimited.
func (l *Limiter) Remaining(userID string, action Action) int {
	limit := l.limits[action]
	if limit <= 0 {
		return -1
	}

	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key(userID, action)]
	if !ok {
		return limit
	}
	tokens := int(b.limiter.TokensAt(now))
	if tokens < 0 {
		return 0
	}
	return tokens
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCleanup:
			return
		}
	}
}

// cleanup drops buckets idle for a whole window; they have refilled by then
// and a fresh bucket behaves the same.
func (l *Limiter) cleanup() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.window {
			delete(l.buckets, k)
		}
	}
}
