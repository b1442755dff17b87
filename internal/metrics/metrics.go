// Package metrics provides metrics collection for the link admission
// service: per-call latency, denial-reason distribution, and crawl loop
// gauges.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector collects and aggregates metrics.
type Collector struct {
	// Counters
	callsTotal    atomic.Int64
	callErrors    atomic.Int64
	linksTotal    atomic.Int64
	linksAccepted atomic.Int64
	linksDenied   atomic.Int64
	pagesFetched  atomic.Int64
	fetchErrors   atomic.Int64

	// Gauges
	queueDepth    atomic.Int64
	activeWorkers atomic.Int64

	// Histogram (buckets for call latency in microseconds)
	latencyBuckets [8]atomic.Int64 // <50, <100, <250, <500, <1000, <5000, <25000, >=25000
	latencySum     atomic.Int64
	latencyNum     atomic.Int64

	// Denial breakdown
	denials  map[string]*atomic.Int64
	denialMu sync.RWMutex

	startTime time.Time
}

// New creates a new metrics collector.
func New() *Collector {
	return &Collector{
		denials:   make(map[string]*atomic.Int64),
		startTime: time.Now(),
	}
}

// RecordCall records a completed filter call.
func (c *Collector) RecordCall(links, accepted int, d time.Duration) {
	c.callsTotal.Add(1)
	c.linksTotal.Add(int64(links))
	c.linksAccepted.Add(int64(accepted))
	c.linksDenied.Add(int64(links - accepted))

	us := d.Microseconds()
	c.latencySum.Add(us)
	c.latencyNum.Add(1)
	c.latencyBuckets[c.bucket(us)].Add(1)
}

// RecordCallError records a failed filter call.
func (c *Collector) RecordCallError() {
	c.callErrors.Add(1)
}

// RecordDenial records one denied link by reason.
func (c *Collector) RecordDenial(reason string) {
	c.denialMu.Lock()
	if c.denials[reason] == nil {
		c.denials[reason] = &atomic.Int64{}
	}
	c.denials[reason].Add(1)
	c.denialMu.Unlock()
}

// RecordPageFetched increments fetched pages.
func (c *Collector) RecordPageFetched() {
	c.pagesFetched.Add(1)
}

// RecordFetchError increments failed fetches.
func (c *Collector) RecordFetchError() {
	c.fetchErrors.Add(1)
}

// SetQueueDepth sets the current frontier depth.
func (c *Collector) SetQueueDepth(depth int64) {
	c.queueDepth.Store(depth)
}

// SetActiveWorkers sets the number of active workers.
func (c *Collector) SetActiveWorkers(n int64) {
	c.activeWorkers.Store(n)
}

// bucket returns the histogram bucket for a call latency.
func (c *Collector) bucket(us int64) int {
	switch {
	case us < 50:
		return 0
	case us < 100:
		return 1
	case us < 250:
		return 2
	case us < 500:
		return 3
	case us < 1000:
		return 4
	case us < 5000:
		return 5
	case us < 25000:
		return 6
	default:
		return 7
	}
}

// AverageLatency returns the mean filter call latency.
func (c *Collector) AverageLatency() time.Duration {
	n := c.latencyNum.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(c.latencySum.Load()/n) * time.Microsecond
}

// Snapshot represents a point-in-time view of metrics.
type Snapshot struct {
	CallsTotal    int64            `json:"calls_total"`
	CallErrors    int64            `json:"call_errors"`
	LinksTotal    int64            `json:"links_total"`
	LinksAccepted int64            `json:"links_accepted"`
	LinksDenied   int64            `json:"links_denied"`
	Denials       map[string]int64 `json:"denials"`
	PagesFetched  int64            `json:"pages_fetched"`
	FetchErrors   int64            `json:"fetch_errors"`
	QueueDepth    int64            `json:"queue_depth"`
	ActiveWorkers int64            `json:"active_workers"`
	AvgLatencyUs  int64            `json:"avg_latency_us"`
	LatencyHist   [8]int64         `json:"latency_hist"`
	UptimeSeconds float64          `json:"uptime_seconds"`
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() *Snapshot {
	s := &Snapshot{
		CallsTotal:    c.callsTotal.Load(),
		CallErrors:    c.callErrors.Load(),
		LinksTotal:    c.linksTotal.Load(),
		LinksAccepted: c.linksAccepted.Load(),
		LinksDenied:   c.linksDenied.Load(),
		Denials:       make(map[string]int64),
		PagesFetched:  c.pagesFetched.Load(),
		FetchErrors:   c.fetchErrors.Load(),
		QueueDepth:    c.queueDepth.Load(),
		ActiveWorkers: c.activeWorkers.Load(),
		AvgLatencyUs:  int64(c.AverageLatency() / time.Microsecond),
		UptimeSeconds: time.Since(c.startTime).Seconds(),
	}

	for i := range c.latencyBuckets {
		s.LatencyHist[i] = c.latencyBuckets[i].Load()
	}

	c.denialMu.RLock()
	for reason, n := range c.denials {
		s.Denials[reason] = n.Load()
	}
	c.denialMu.RUnlock()

	return s
}

// AcceptRate returns the fraction of links accepted so far.
func (s *Snapshot) AcceptRate() float64 {
	if s.LinksTotal == 0 {
		return 0
	}
	return float64(s.LinksAccepted) / float64(s.LinksTotal)
}
