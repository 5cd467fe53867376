package livecomponent

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records transport activity. A nil *Metrics records nothing.
type Metrics struct {
	renders  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	pending  prometheus.Gauge
	dropped  prometheus.Counter
}

// NewMetrics creates the transport metrics and registers them with reg. A nil
// reg creates unregistered metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		renders: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "livecomponent_renders_total",
			Help: "Render requests by transport and outcome",
		}, []string{"transport", "outcome"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "livecomponent_render_duration_seconds",
			Help:    "Render round trip duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}, []string{"transport"}),

		pending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "livecomponent_channel_pending_requests",
			Help: "Channel render requests waiting for a response",
		}),

		// Responses whose request_id matches no pending request.
		dropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "livecomponent_channel_dropped_responses_total",
			Help: "Channel responses that matched no pending request",
		}),
	}
}

func (m *Metrics) observeRender(transport string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.renders.WithLabelValues(transport, outcome).Inc()
	m.duration.WithLabelValues(transport).Observe(time.Since(start).Seconds())
}

func (m *Metrics) pendingAdd(delta float64) {
	if m == nil {
		return
	}
	m.pending.Add(delta)
}

func (m *Metrics) droppedInc() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}
