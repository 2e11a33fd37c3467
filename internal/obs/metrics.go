package obs

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	ApplyTotal   *prometheus.CounterVec // result=applied|conflict|error
	ReleaseTotal *prometheus.CounterVec // result=released|already_released|error

	BatchLatencyMS prometheus.Histogram
	BatchRunsTotal prometheus.Counter

	UnitsVacant     prometheus.Gauge
	WaitlistPending prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		ApplyTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alloc_apply_total",
				Help: "Total apply attempts by result",
			},
			[]string{"result"},
		),
		ReleaseTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alloc_release_total",
				Help: "Total release attempts by result",
			},
			[]string{"result"},
		),
		BatchLatencyMS: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "alloc_batch_latency_ms",
				Help:    "Latency of one batch run (ms)",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1ms .. ~2048ms
			},
		),
		BatchRunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alloc_batch_runs_total",
			Help: "Total batch runs triggered",
		}),
		UnitsVacant: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "alloc_units_vacant",
			Help: "Number of vacant units observed by the last snapshot",
		}),
		WaitlistPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "alloc_waitlist_pending",
			Help: "Number of unfulfilled requests observed by the last snapshot",
		}),
	}

	prometheus.MustRegister(
		m.ApplyTotal,
		m.ReleaseTotal,
		m.BatchLatencyMS,
		m.BatchRunsTotal,
		m.UnitsVacant,
		m.WaitlistPending,
	)

	return m
}

// Recording helpers are nil-safe so services can run without metrics in tests.

func (m *Metrics) RecordApply(result string) {
	if m == nil {
		return
	}
	m.ApplyTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordRelease(result string) {
	if m == nil {
		return
	}
	m.ReleaseTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordBatch(latencyMS float64, vacant, pending int) {
	if m == nil {
		return
	}
	m.BatchRunsTotal.Inc()
	m.BatchLatencyMS.Observe(latencyMS)
	m.UnitsVacant.Set(float64(vacant))
	m.WaitlistPending.Set(float64(pending))
}
