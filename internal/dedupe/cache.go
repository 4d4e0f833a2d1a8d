// ABOUTME: Thread-safe TTL cache remembering recently seen keys
// ABOUTME: Backs per-address throttling of password reset requests

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	key    string
	seenAt time.Time
}

// Cache remembers keys for a fixed window. When full, the key seen longest
// ago is forgotten first.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // oldest at front
	window  time.Duration
	maxSize int
	now     func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a cache remembering keys for window, holding at most maxSize
// keys. A background goroutine sweeps expired keys until Close is called.
func New(window time.Duration, maxSize int, opts ...Option) *Cache {
	if maxSize < 1 {
		maxSize = 1
	}
	c := &Cache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		window:  window,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.sweepLoop(sweepInterval(window))
	return c
}

func sweepInterval(window time.Duration) time.Duration {
	if window <= 0 || window > time.Minute {
		return time.Minute
	}
	return window
}

// Check reports whether key was seen within the window.
func (c *Cache) Check(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveLocked(key) != nil
}

// Remaining returns how long key stays throttled, or zero if it is not.
func (c *Cache) Remaining(key string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.liveLocked(key)
	if e == nil {
		return 0
	}
	return e.seenAt.Add(c.window).Sub(c.now())
}

// CheckAndMark reports whether key was already seen within the window and
// marks it if not, in one step.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.liveLocked(key) != nil {
		return true
	}
	c.markLocked(key)
	return false
}

// Mark records key as seen now, restarting its window.
func (c *Cache) Mark(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markLocked(key)
}

// Forget removes key so the next CheckAndMark succeeds.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}
}

// Len returns the number of remembered keys, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// liveLocked returns the entry for key if it has not expired. Must be called with mu held.
func (c *Cache) liveLocked(key string) *entry {
	el, ok := c.entries[key]
	if !ok {
		return nil
	}
	e := el.Value.(*entry)
	if c.now().Sub(e.seenAt) >= c.window {
		return nil
	}
	return e
}

// markLocked must be called with mu held.
func (c *Cache) markLocked(key string) {
	now := c.now()

	if el, ok := c.entries[key]; ok {
		el.Value.(*entry).seenAt = now
		c.order.MoveToBack(el)
		return
	}

	if len(c.entries) >= c.maxSize {
		if front := c.order.Front(); front != nil {
			c.order.Remove(front)
			delete(c.entries, front.Value.(*entry).key)
		}
	}

	c.entries[key] = c.order.PushBack(&entry{key: key, seenAt: now})
}

func (c *Cache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

// sweep drops expired keys. The list is ordered by seenAt, so it stops at the
// first live key.
func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		e := front.Value.(*entry)
		if now.Sub(e.seenAt) < c.window {
			return
		}
		c.order.Remove(front)
		delete(c.entries, e.key)
	}
}

// Close stops the background sweep. It is safe to call multiple times.
func (c *Cache) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}
