package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "otj"

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, labeled by method and status code.",
	}, []string{"method", "code"})

	httpDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Time spent serving HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	})

	gapAnalysisDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "gap_analysis_duration_seconds",
		Help:      "Time spent building a gap analysis report.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	sseSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sse_subscribers",
		Help:      "Live update streams currently open.",
	})

	sseDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sse_dropped_total",
		Help:      "Live update messages dropped because a subscriber's buffer was full.",
	})

	uploads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_total",
		Help:      "Evidence files received, labeled by result (stored, rejected, failed).",
	}, []string{"result"})

	recurringGenerated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recurring_generated_total",
		Help:      "Draft activities generated from recurring templates.",
	})
)

func init() {
	prometheus.MustRegister(
		httpRequests, httpDuration, gapAnalysisDuration,
		sseSubscribers, sseDropped, uploads, recurringGenerated,
	)
}

// Upload results.
const (
	UploadStored   = "stored"
	UploadRejected = "rejected"
	UploadFailed   = "failed"
)

// Handler exposes the registered collectors in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest counts a served request and its latency.
func RecordHTTPRequest(method string, code int, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpDuration.Observe(elapsed.Seconds())
}

// RecordGapAnalysis observes how long one report took to build.
func RecordGapAnalysis(elapsed time.Duration) {
	gapAnalysisDuration.Observe(elapsed.Seconds())
}

// RecordSubscribe tracks a stream opening.
func RecordSubscribe() {
	sseSubscribers.Inc()
}

// RecordUnsubscribe tracks a stream closing.
func RecordUnsubscribe() {
	sseSubscribers.Dec()
}

// RecordDropped counts a message that a full subscriber could not take.
func RecordDropped() {
	sseDropped.Inc()
}

// RecordUpload counts one uploaded file by result.
func RecordUpload(result string) {
	uploads.WithLabelValues(result).Inc()
}

// RecordRecurringGenerated counts activities generated in one recurrence run.
func RecordRecurringGenerated(n int) {
	if n > 0 {
		recurringGenerated.Add(float64(n))
	}
}
