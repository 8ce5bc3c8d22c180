package metrics

import "time"

// StatusSource is the minimal read-side the Collector needs from the
// Sync Engine, kept as a narrow interface here (rather than importing
// pkg/engine) so metrics has no dependency on the orchestrator it
// instruments.
type StatusSource interface {
	IndexedFileCount() int
	PeersConnectedCount() uint32
}

// Collector periodically samples gauges from a StatusSource, adapted
// from the teacher's ticker-driven metrics collector.
type Collector struct {
	source StatusSource
	stopCh chan struct{}
}

// NewCollector builds a Collector over source.
func NewCollector(source StatusSource) *Collector {
	return &Collector{source: source, stopCh: make(chan struct{})}
}

// Start begins collecting on a 15-second tick, matching the
// teacher's collection interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
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

// Stop ends collection.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	IndexedFiles.Set(float64(c.source.IndexedFileCount()))
	PeersConnected.Set(float64(c.source.PeersConnectedCount()))
}
