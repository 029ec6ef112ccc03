package metrics

import (
	"time"

	"github.com/cuemby/edgeplane/pkg/types"
)

// Source exposes the state sampled by the Collector
type Source interface {
	// CacheLen returns the number of valid cache entries
	CacheLen() int
	// CurrentSnapshot returns the snapshot of the last build, or nil
	CurrentSnapshot() *types.Snapshot
}

// Collector periodically samples gauges that are not updated inline
type Collector struct {
	source   Source
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(source Source, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		source:   source,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	CacheEntries.Set(float64(c.source.CacheLen()))
	c.collectResourceMetrics()
}

func (c *Collector) collectResourceMetrics() {
	snap := c.source.CurrentSnapshot()

	counts := make(map[types.Kind]int, len(types.KnownKinds))
	for _, kind := range types.KnownKinds {
		counts[kind] = 0
	}
	for _, id := range snap.Identities() {
		counts[id.Kind]++
	}

	for kind, count := range counts {
		ResourcesTotal.WithLabelValues(string(kind)).Set(float64(count))
	}
}
