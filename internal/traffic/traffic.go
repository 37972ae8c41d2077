// Package traffic counts recent activity per origin over a short sliding
// window of one-second buckets.
package traffic

import (
	"strings"
	"sync"
	"time"

	"github.com/xtxerr/saga/config"
)

// Item is one traffic id and its total over the window.
type Item struct {
	ID    string `json:"id"`
	Value int64  `json:"value"`
}

type counter struct {
	id      string
	values  []int64
	cleanup int64 // First second whose bucket has not been reset yet.
}

// Counter tracks up to a fixed number of ids. Ids compare case-insensitively;
// the first spelling seen is kept.
type Counter struct {
	mu       sync.Mutex
	period   int
	maxIDs   int
	counters []*counter
	now      func() time.Time
}

// Option configures a Counter.
type Option func(*Counter)

// WithClock sets the clock used by Increment. Default: time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Counter) {
		if now != nil {
			c.now = now
		}
	}
}

// WithPeriod sets the window length in seconds.
func WithPeriod(seconds int) Option {
	return func(c *Counter) {
		if seconds > 0 {
			c.period = seconds
		}
	}
}

// WithMaxIDs caps the number of ids tracked.
func WithMaxIDs(n int) Option {
	return func(c *Counter) {
		if n > 0 {
			c.maxIDs = n
		}
	}
}

// New creates an empty Counter.
func New(opts ...Option) *Counter {
	c := &Counter{
		period: config.DefaultTrafficPeriod,
		maxIDs: config.DefaultTrafficMaxIDs,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Increment adds one to the current second of id. A new id is silently
// ignored once the counter is full.
func (c *Counter) Increment(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now().Unix()
	for _, ctr := range c.counters {
		if strings.EqualFold(ctr.id, id) {
			c.reset(ctr, now)
			ctr.values[c.bucket(now)]++
			return
		}
	}

	if len(c.counters) >= c.maxIDs {
		return
	}
	ctr := &counter{
		id:      id,
		values:  make([]int64, c.period),
		cleanup: now + 1,
	}
	ctr.values[c.bucket(now)] = 1
	c.counters = append(c.counters, ctr)
}

// Background resets the buckets that fell out of the window for every id.
func (c *Counter) Background(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sec := now.Unix()
	for _, ctr := range c.counters {
		c.reset(ctr, sec)
	}
}

// reset zeroes the buckets from ctr.cleanup up to and including now.
// No bucket is visited twice per call.
func (c *Counter) reset(ctr *counter, now int64) {
	if ctr.cleanup > now {
		return
	}
	if ctr.cleanup < now-int64(c.period) {
		ctr.cleanup = now - int64(c.period)
	}
	for ; ctr.cleanup <= now; ctr.cleanup++ {
		ctr.values[c.bucket(ctr.cleanup)] = 0
	}
}

func (c *Counter) bucket(sec int64) int {
	b := sec % int64(c.period)
	if b < 0 {
		b += int64(c.period)
	}
	return int(b)
}

// Snapshot returns the window total of every id, in first-seen order.
// Reading does not reset stale buckets: that is Background's job.
func (c *Counter) Snapshot() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]Item, 0, len(c.counters))
	for _, ctr := range c.counters {
		var total int64
		for _, v := range ctr.values {
			total += v
		}
		items = append(items, Item{ID: ctr.id, Value: total})
	}
	return items
}

// Len returns the number of ids tracked.
func (c *Counter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.counters)
}
