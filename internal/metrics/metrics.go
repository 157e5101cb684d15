package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	Subsystem = "vaporcurve"

	CompoundKey = "compound"
	RouteKey    = "route"
	CodeKey     = "code"
	OutcomeKey  = "outcome"

	StatusKey     = "status"
	StatusSucceed = "succeed"
	StatusFailed  = "failed"

	OutcomeHit  = "hit"
	OutcomeMiss = "miss"
)

// Registry carries every collector of this process. The HTTP controller
// serves it on /metrics.
var Registry = prometheus.NewRegistry()

var (
	PredictionStatus = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: Subsystem,
		Name:      "predictions_total",
		Help:      "the count of boiling point predictions served, by compound and status",
	}, []string{CompoundKey, StatusKey})

	CurveStatus = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: Subsystem,
		Name:      "curves_total",
		Help:      "the count of curve requests served, by compound and status",
	}, []string{CompoundKey, StatusKey})

	CurvePoints = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: Subsystem,
		Name:      "curve_points_total",
		Help:      "the count of curve points sampled, by compound",
	}, []string{CompoundKey})

	CurveSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: Subsystem,
		Name:      "curve_size_points",
		Help:      "the distribution of served curve sizes (in points)",
		Buckets:   prometheus.ExponentialBuckets(10, 10, 5),
	}, []string{CompoundKey})

	HTTPRequestStatus = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: Subsystem,
		Name:      "http_requests_total",
		Help:      "the count of HTTP requests, by route and response code",
	}, []string{RouteKey, CodeKey})

	HTTPRequestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: Subsystem,
		Name:      "http_request_latency_ms",
		Help:      "the latency of HTTP requests (in milli-second)",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
	}, []string{RouteKey})

	ChartRenderStatus = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: Subsystem,
		Name:      "chart_renders_total",
		Help:      "the count of curve chart renders, by compound and status",
	}, []string{CompoundKey, StatusKey})

	ChartCacheOutcome = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: Subsystem,
		Name:      "chart_cache_total",
		Help:      "the count of chart cache lookups, by outcome",
	}, []string{OutcomeKey})

	Collectors = []prometheus.Collector{
		PredictionStatus,
		CurveStatus,
		CurvePoints,
		CurveSize,
		HTTPRequestStatus,
		HTTPRequestLatency,
		ChartRenderStatus,
		ChartCacheOutcome,
	}
)

func init() {
	Registry.MustRegister(Collectors...)
}

func statusOf(err error) string {
	if err != nil {
		return StatusFailed
	}
	return StatusSucceed
}

func RecordPrediction(compound string, err error) {
	PredictionStatus.With(prometheus.Labels{CompoundKey: compound, StatusKey: statusOf(err)}).Inc()
}

// RecordCurve counts one curve request; points is the number of sampled
// points actually produced, zero on failure.
func RecordCurve(compound string, points int, err error) {
	CurveStatus.With(prometheus.Labels{CompoundKey: compound, StatusKey: statusOf(err)}).Inc()
	if points > 0 {
		CurvePoints.With(prometheus.Labels{CompoundKey: compound}).Add(float64(points))
		CurveSize.With(prometheus.Labels{CompoundKey: compound}).Observe(float64(points))
	}
}

func RecordHTTPRequest(route string, code int, latencyMilliSeconds float64) {
	HTTPRequestStatus.With(prometheus.Labels{RouteKey: route, CodeKey: strconv.Itoa(code)}).Inc()
	HTTPRequestLatency.With(prometheus.Labels{RouteKey: route}).Observe(latencyMilliSeconds)
}

func RecordChartRender(compound string, err error) {
	ChartRenderStatus.With(prometheus.Labels{CompoundKey: compound, StatusKey: statusOf(err)}).Inc()
}

func RecordChartCache(hit bool) {
	outcome := OutcomeMiss
	if hit {
		outcome = OutcomeHit
	}
	ChartCacheOutcome.With(prometheus.Labels{OutcomeKey: outcome}).Inc()
}
