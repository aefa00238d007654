// Package metrics exposes Prometheus collectors for the print pipeline.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result labels for PrintJobs.
const (
	ResultCompleted = "completed"
	ResultTimedOut  = "timed_out"
	ResultFailed    = "failed"
)

var (
	// printJobs counts finished print jobs by result
	printJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pdfdaemon_print_jobs_total",
		Help: "Total print jobs handled by result",
	}, []string{"result"})

	// printDuration tracks wall time from dequeue to process exit or kill
	printDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pdfdaemon_print_duration_seconds",
		Help:    "Print job duration in seconds, including the wait for a free slot",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2m
	}, []string{"result"})

	// queueRejections counts jobs refused because the queue was full or the client was throttled
	queueRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pdfdaemon_queue_rejections_total",
		Help: "Print jobs rejected before queueing, by reason",
	}, []string{"reason"})

	// gateInFlight is swapped on every service start; the gauge reads through it
	gateInFlight atomic.Pointer[func() int]

	slotsInUse = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "pdfdaemon_print_slots_in_use",
		Help: "SumatraPDF processes currently holding an admission slot",
	}, func() float64 {
		if f := gateInFlight.Load(); f != nil {
			return float64((*f)())
		}
		return 0
	})
)

// ObservePrint records one finished job.
func ObservePrint(result string, d time.Duration) {
	printJobs.WithLabelValues(result).Inc()
	printDuration.WithLabelValues(result).Observe(d.Seconds())
}

// RejectJob records a job refused at intake.
func RejectJob(reason string) {
	queueRejections.WithLabelValues(reason).Inc()
}

// RegisterGate points the slots gauge at inFlight, replacing any earlier source.
func RegisterGate(inFlight func() int) {
	gateInFlight.Store(&inFlight)
}
