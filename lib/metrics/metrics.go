// Package metrics implements the EventRecorder collaborator (spec.md §6)
// as a concrete metrics sink, wiring the two metrics libraries already in
// go.mod: VictoriaMetrics/metrics for the Prometheus-scrapeable counters a
// deployment exposes over HTTP, and rcrowley/go-metrics for the latency
// timers operators read through its own registry (percentiles, EWMA rate)
// rather than a scrape endpoint.
package metrics

import (
	"io"
	"time"

	vm "github.com/VictoriaMetrics/metrics"
	gm "github.com/rcrowley/go-metrics"

	"github.com/Kaychang/ignitecache/lib/cacheentry"
	"github.com/Kaychang/ignitecache/lib/version"
)

// Recorder implements cacheentry.EventRecorder, counting every event kind
// and timing how long entry locks are held.
type Recorder struct {
	set *vm.Set
	reg gm.Registry

	reads   *vm.Counter
	puts    *vm.Counter
	removes *vm.Counter
	expired *vm.Counter

	lockHeld gm.Timer
}

// NewRecorder creates a Recorder with its own metric set and registry, so
// multiple caches in the same process never collide on metric names.
func NewRecorder(namePrefix string) *Recorder {
	set := vm.NewSet()
	reg := gm.NewRegistry()
	return &Recorder{
		set:      set,
		reg:      reg,
		reads:    set.NewCounter(namePrefix + `_entry_reads_total`),
		puts:     set.NewCounter(namePrefix + `_entry_puts_total`),
		removes:  set.NewCounter(namePrefix + `_entry_removes_total`),
		expired:  set.NewCounter(namePrefix + `_entry_expired_total`),
		lockHeld: gm.NewRegisteredTimer(namePrefix+".entry.lock_held", reg),
	}
}

// IsRecordable implements cacheentry.EventRecorder. Every kind is recorded;
// a deployment that wants to skip noisy EventRead counting can wrap a
// Recorder and override this instead of patching it here.
func (r *Recorder) IsRecordable(cacheentry.EventKind) bool {
	return true
}

// AddEvent implements cacheentry.EventRecorder.
func (r *Recorder) AddEvent(_ uint32, _ string, _ string, _ version.Version, kind cacheentry.EventKind, _ []byte) {
	switch kind {
	case cacheentry.EventRead:
		r.reads.Inc()
	case cacheentry.EventPut:
		r.puts.Inc()
	case cacheentry.EventRemoved:
		r.removes.Inc()
	case cacheentry.EventExpired:
		r.expired.Inc()
	}
}

// ObserveLockHeld records how long, in nanoseconds, a caller held an
// entry's monitor lock, fed by callers wrapping LockEntry/UnlockEntry.
func (r *Recorder) ObserveLockHeld(nanos int64) {
	r.lockHeld.Update(time.Duration(nanos))
}

// WritePrometheus writes every VictoriaMetrics counter in Prometheus
// exposition format, the handler an HTTP /metrics endpoint delegates to.
func (r *Recorder) WritePrometheus(w io.Writer) {
	r.set.WritePrometheus(w)
}

// Snapshot reports the go-metrics side: count and percentiles of lock-held
// durations in nanoseconds.
type Snapshot struct {
	Count int64
	P50   float64
	P99   float64
	Mean  float64
}

// LockHeldSnapshot returns the current lock-held timer's snapshot.
func (r *Recorder) LockHeldSnapshot() Snapshot {
	s := r.lockHeld.Snapshot()
	return Snapshot{
		Count: s.Count(),
		P50:   s.Percentile(0.5),
		P99:   s.Percentile(0.99),
		Mean:  s.Mean(),
	}
}
