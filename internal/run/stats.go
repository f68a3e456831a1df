package run

import (
	"sync"

	"github.com/metahub/mex-core/internal/extract"
)

// Collector is the append-only run statistics store. Sibling activities
// complete concurrently; appends are mutex-guarded so none are lost.
type Collector struct {
	mu    sync.Mutex
	stats []*extract.Stats
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Append records one activity's statistics.
func (c *Collector) Append(s *extract.Stats) {
	if s == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = append(c.stats, s)
}

// Snapshot returns a copy of the collected statistics.
func (c *Collector) Snapshot() []*extract.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*extract.Stats, len(c.stats))
	copy(out, c.stats)
	return out
}

// Len returns the number of collected entries.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stats)
}

// TotalRecords sums record counts across all entries.
func (c *Collector) TotalRecords() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, s := range c.stats {
		total += s.RecordCount
	}
	return total
}

// Warnings flattens per-activity warnings in append order.
func (c *Collector) Warnings() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, s := range c.stats {
		out = append(out, s.Warnings...)
	}
	return out
}
