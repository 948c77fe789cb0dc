// Package telemetry is a small injected metrics sink. Counters live in
// process memory only: they reset on restart and carry no persistence
// guarantee. Core logic takes the Sink interface so it stays testable without
// global state.
package telemetry

import (
	"fmt"
	"sync"
	"time"
)

type Sink interface {
	Increment(name string)
}

// Counter buckets increments by hour so operators can eyeball short-term
// rates without a metrics backend.
type Counter struct {
	mu     sync.Mutex
	counts map[string]uint64
	now    func() time.Time
}

func NewCounter() *Counter {
	return &Counter{counts: map[string]uint64{}, now: time.Now}
}

// NewCounterAt pins the clock, for tests.
func NewCounterAt(now func() time.Time) *Counter {
	return &Counter{counts: map[string]uint64{}, now: now}
}

func (c *Counter) Increment(name string) {
	bucket := c.now().UTC().Format("2006010215")
	c.mu.Lock()
	c.counts[fmt.Sprintf("%s|%s", name, bucket)]++
	c.mu.Unlock()
}

// Snapshot copies the current counts, keyed "name|YYYYMMDDHH".
func (c *Counter) Snapshot() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]uint64, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

type Nop struct{}

func (Nop) Increment(string) {}
