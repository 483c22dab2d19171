package latency

import (
	"fmt"
	"sort"
	"sync/atomic"
)

// ring is a fixed-capacity sample buffer: once full, each new sample
// overwrites the oldest one.
type ring struct {
	samples []int64
	next    int
	size    int
}

func newRing(capacity int) ring {
	return ring{samples: make([]int64, capacity)}
}

func (r *ring) push(v int64) {
	r.samples[r.next] = v
	r.next = (r.next + 1) % len(r.samples)
	if r.size < len(r.samples) {
		r.size++
	}
}

// values returns the live samples; order does not matter to percentile math.
func (r *ring) values() []int64 {
	return r.samples[:r.size]
}

// Percentiles is an immutable percentile snapshot, safe to hand to readers
// in other goroutines.
type Percentiles struct {
	IngestionP50Us  int64 `json:"ingestion_p50_us"`
	IngestionP99Us  int64 `json:"ingestion_p99_us"`
	ProcessingP50Us int64 `json:"processing_p50_us"`
	ProcessingP99Us int64 `json:"processing_p99_us"`
	PublishP50Us    int64 `json:"publish_p50_us"`
	PublishP99Us    int64 `json:"publish_p99_us"`
}

// Tracker holds per-stage latency samples and cross-stage atomic counters.
// Sample buffers are written and read only by the goroutine owning the
// processing stage; other goroutines read the published Percentiles snapshot
// and the atomic counters.
type Tracker struct {
	ingestion  ring
	processing ring
	publish    ring

	percentiles atomic.Pointer[Percentiles]

	TicksProcessed    atomic.Uint64
	GapsDetected      atomic.Uint64
	Reconnects        atomic.Uint64
	MessagesPublished atomic.Uint64
	TicksDropped      atomic.Uint64
}

func NewTracker(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = 1
	}
	return &Tracker{
		ingestion:  newRing(capacity),
		processing: newRing(capacity),
		publish:    newRing(capacity),
	}
}

func (t *Tracker) RecordIngestion(latencyNs int64) {
	t.ingestion.push(latencyNs)
	t.TicksProcessed.Add(1)
}

func (t *Tracker) RecordProcessing(latencyNs int64) {
	t.processing.push(latencyNs)
}

func (t *Tracker) RecordPublish(latencyNs int64) {
	t.publish.push(latencyNs)
	t.MessagesPublished.Add(1)
}

// Percentile sorts a copy of samples and picks index floor(p*n/100) clamped
// to n-1. Empty input yields zero.
func Percentile(samples []int64, p int) int64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]int64, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := p * len(sorted) / 100
	if idx > len(sorted)-1 {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// PublishPercentiles computes the current percentiles and publishes them for
// cross-goroutine readers. Must be called from the stage owning the buffers.
func (t *Tracker) PublishPercentiles() *Percentiles {
	p := &Percentiles{
		IngestionP50Us:  t.P50IngestionUs(),
		IngestionP99Us:  t.P99IngestionUs(),
		ProcessingP50Us: t.P50ProcessingUs(),
		ProcessingP99Us: t.P99ProcessingUs(),
		PublishP50Us:    t.P50PublishUs(),
		PublishP99Us:    t.P99PublishUs(),
	}
	t.percentiles.Store(p)
	return p
}

// LatestPercentiles returns the most recently published snapshot; all zeros
// before the first publication.
func (t *Tracker) LatestPercentiles() Percentiles {
	if p := t.percentiles.Load(); p != nil {
		return *p
	}
	return Percentiles{}
}

func (t *Tracker) P50IngestionUs() int64  { return Percentile(t.ingestion.values(), 50) / 1000 }
func (t *Tracker) P99IngestionUs() int64  { return Percentile(t.ingestion.values(), 99) / 1000 }
func (t *Tracker) P50ProcessingUs() int64 { return Percentile(t.processing.values(), 50) / 1000 }
func (t *Tracker) P99ProcessingUs() int64 { return Percentile(t.processing.values(), 99) / 1000 }
func (t *Tracker) P50PublishUs() int64    { return Percentile(t.publish.values(), 50) / 1000 }
func (t *Tracker) P99PublishUs() int64    { return Percentile(t.publish.values(), 99) / 1000 }

// Summary renders all counters and percentiles as one report line.
func (t *Tracker) Summary() string {
	return fmt.Sprintf(
		"Ticks:%d | Gaps:%d | Reconnects:%d | Published:%d | Dropped:%d | Ingestion P50:%dus P99:%dus | Process P50:%dus P99:%dus | Publish P50:%dus P99:%dus",
		t.TicksProcessed.Load(),
		t.GapsDetected.Load(),
		t.Reconnects.Load(),
		t.MessagesPublished.Load(),
		t.TicksDropped.Load(),
		t.P50IngestionUs(), t.P99IngestionUs(),
		t.P50ProcessingUs(), t.P99ProcessingUs(),
		t.P50PublishUs(), t.P99PublishUs(),
	)
}
