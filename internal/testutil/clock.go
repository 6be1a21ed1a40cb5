package testutil

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// StubClock returns a fixed time. Safe for concurrent use.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewStubClock creates a StubClock set to the given time.
func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// FixedClock returns a StubClock set to 2024-01-15 10:30:00 UTC.
func FixedClock() *StubClock {
	return NewStubClock(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// StubIDGenerator returns valid ULIDs with a fixed timestamp and a counter
// in the entropy bits, so they sort in creation order.
type StubIDGenerator struct {
	mu      sync.Mutex
	counter uint64
	// Err, when set, is returned by New instead of an id.
	Err error
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{}
}

func (g *StubIDGenerator) New() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return "", g.Err
	}
	g.counter++

	var id ulid.ULID
	if err := id.SetTime(ulid.Timestamp(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))); err != nil {
		return "", err
	}
	entropy := make([]byte, 10)
	binary.BigEndian.PutUint64(entropy[2:], g.counter)
	if err := id.SetEntropy(entropy); err != nil {
		return "", err
	}
	return id.String(), nil
}

// Count returns the number of ids handed out.
func (g *StubIDGenerator) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return int(g.counter)
}
