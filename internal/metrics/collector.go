// Package metrics keeps in-process counters, gauges, and stage timing
// summaries for the server's /metrics endpoint and status output.
package metrics

import (
	"math"
	"sort"
	"sync"
	"time"

	"mailreel/internal/stage"
)

// Outcome labels one stage execution.
type Outcome string

const (
	Succeeded Outcome = "succeeded"
	Fallback  Outcome = "fallback"
	Failed    Outcome = "failed"
)

// Counter and gauge names recorded by the batch coordinator.
const (
	CounterBatches        = "batches_total"
	CounterItemsSucceeded = "items_succeeded_total"
	CounterItemsFailed    = "items_failed_total"
	CounterItemsCancelled = "items_cancelled_total"
	CounterItemsSkipped   = "items_skipped_total"
	GaugeItemsInFlight    = "items_in_flight"
	GaugeLastBatchSeconds = "last_batch_duration_seconds"
)

// maxSamples bounds the duration window kept per stage.
const maxSamples = 1000

// Collector aggregates metrics. The zero value is not usable; a nil
// *Collector ignores every call.
type Collector struct {
	mu       sync.Mutex
	started  time.Time
	now      func() time.Time
	stages   map[stage.Name]*stageStats
	counters map[string]int64
	gauges   map[string]float64
}

type stageStats struct {
	counts  map[Outcome]int64
	samples []float64
	next    int
}

// New returns an empty Collector.
func New() *Collector {
	return &Collector{
		started:  time.Now(),
		now:      time.Now,
		stages:   make(map[stage.Name]*stageStats),
		counters: make(map[string]int64),
		gauges:   make(map[string]float64),
	}
}

// ObserveStage records one run of stage name.
func (c *Collector) ObserveStage(name stage.Name, outcome Outcome, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	stats, ok := c.stages[name]
	if !ok {
		stats = &stageStats{counts: make(map[Outcome]int64)}
		c.stages[name] = stats
	}
	stats.counts[outcome]++
	ms := float64(elapsed) / float64(time.Millisecond)
	if len(stats.samples) < maxSamples {
		stats.samples = append(stats.samples, ms)
		return
	}
	stats.samples[stats.next] = ms
	stats.next = (stats.next + 1) % maxSamples
}

// Add increments counter name by delta.
func (c *Collector) Add(name string, delta int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.counters[name] += delta
	c.mu.Unlock()
}

// SetGauge sets gauge name to value.
func (c *Collector) SetGauge(name string, value float64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.gauges[name] = value
	c.mu.Unlock()
}

// AddGauge moves gauge name by delta.
func (c *Collector) AddGauge(name string, delta float64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.gauges[name] += delta
	c.mu.Unlock()
}

// Snapshot is a point-in-time copy of the collected metrics.
type Snapshot struct {
	UptimeSeconds float64                  `json:"uptimeSeconds"`
	Stages        map[string]StageSnapshot `json:"stages"`
	Counters      map[string]int64         `json:"counters"`
	Gauges        map[string]float64       `json:"gauges"`
}

// StageSnapshot summarizes one stage.
type StageSnapshot struct {
	Succeeded  int64   `json:"succeeded"`
	Fallback   int64   `json:"fallback"`
	Failed     int64   `json:"failed"`
	DurationMS Summary `json:"durationMs"`
}

// Summary describes the recent duration window of a stage.
type Summary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// Snapshot copies the current state.
func (c *Collector) Snapshot() Snapshot {
	snap := Snapshot{
		Stages:   map[string]StageSnapshot{},
		Counters: map[string]int64{},
		Gauges:   map[string]float64{},
	}
	if c == nil {
		return snap
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	snap.UptimeSeconds = c.now().Sub(c.started).Seconds()
	for name, stats := range c.stages {
		snap.Stages[string(name)] = StageSnapshot{
			Succeeded:  stats.counts[Succeeded],
			Fallback:   stats.counts[Fallback],
			Failed:     stats.counts[Failed],
			DurationMS: summarize(stats.samples),
		}
	}
	for name, value := range c.counters {
		snap.Counters[name] = value
	}
	for name, value := range c.gauges {
		snap.Gauges[name] = value
	}
	return snap
}

func summarize(samples []float64) Summary {
	if len(samples) == 0 {
		return Summary{}
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return Summary{
		Count: len(sorted),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Avg:   sum / float64(len(sorted)),
		P50:   percentile(sorted, 0.50),
		P95:   percentile(sorted, 0.95),
		P99:   percentile(sorted, 0.99),
	}
}

// percentile uses the nearest-rank method on sorted values.
func percentile(sorted []float64, p float64) float64 {
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	rank = max(0, min(rank, len(sorted)-1))
	return sorted[rank]
}
