// Package qrid mints the codes printed on item receipts.
package qrid

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// Prefix starts every generated code.
const Prefix = "QR"

// Generator produces receipt codes. Implementations need not check codes
// against previously stored items; the item store rejects duplicates.
type Generator interface {
	Generate() string
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func() string

// Generate calls f.
func (f GeneratorFunc) Generate() string {
	return f()
}

// Clock is a Generator that combines a millisecond timestamp with a random
// three digit suffix, e.g. QR1704067200000417. The timestamp part never
// repeats within one Clock, so codes from the same process are distinct.
// The zero value reads the system time.
type Clock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// New returns a Clock generator reading the system time.
func New() *Clock {
	return &Clock{now: time.Now}
}

// Generate returns the next code.
func (c *Clock) Generate() string {
	c.mu.Lock()
	now := c.now
	if now == nil {
		now = time.Now
	}
	ms := now().UnixMilli()
	if ms <= c.last {
		ms = c.last + 1
	}
	c.last = ms
	c.mu.Unlock()

	return fmt.Sprintf("%s%d%03d", Prefix, ms, rand.IntN(1000))
}
