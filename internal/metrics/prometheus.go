package metrics

import (
	"strconv"
	"sync"

	"github.com/RidgeA/bus-rpc/types"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are created and registered lazily on first use, so constructing a
// PrometheusCollector that is never used leaves the registry untouched.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	calls         *prometheus.CounterVec
	callDuration  *prometheus.HistogramVec
	retries       *prometheus.CounterVec
	ackWait       *prometheus.HistogramVec
	dispatches    *prometheus.CounterVec
	inflight      prometheus.Gauge
	resubscribes  prometheus.Counter
	subscriptions prometheus.Gauge
	transitions   *prometheus.CounterVec
}

var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer (prometheus.DefaultRegisterer if nil)
//   - namespace: Metrics namespace ("busrpc" if empty)
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "busrpc"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.calls = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "client",
			Name:      "calls_total",
			Help:      "Total logical calls by subject and outcome.",
		}, []string{"subject", "outcome"})

		p.callDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "client",
			Name:      "call_duration_seconds",
			Help:      "Wall-clock duration of logical calls, retries included.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 12), // 1ms .. ~60s
		}, []string{"subject"})

		p.retries = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "client",
			Name:      "retries_total",
			Help:      "Total retries after a timed out attempt.",
		}, []string{"subject"})

		p.ackWait = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "client",
			Name:      "ack_wait_seconds",
			Help:      "Time spent waiting for the acknowledgment phase.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}, []string{"subject", "acked"})

		p.dispatches = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "server",
			Name:      "dispatches_total",
			Help:      "Inbound requests by subject and outcome (ok,failed,rejected,unknown).",
		}, []string{"subject", "outcome"})

		p.inflight = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "server",
			Name:      "inflight_procedures",
			Help:      "Procedures currently executing on the admission gate.",
		})

		p.resubscribes = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "server",
			Name:      "subscription_activations_total",
			Help:      "Total times all procedure subscriptions were (re)created.",
		})

		p.subscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "server",
			Name:      "subscriptions_current",
			Help:      "Procedure subscriptions created by the last activation.",
		})

		p.transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "server",
			Name:      "state_transitions_total",
			Help:      "Server lifecycle transitions.",
		}, []string{"from", "to"})

		p.reg.MustRegister(
			p.calls,
			p.callDuration,
			p.retries,
			p.ackWait,
			p.dispatches,
			p.inflight,
			p.resubscribes,
			p.subscriptions,
			p.transitions,
		)
	})
}

// RecordCall records the outcome and duration of a logical call.
func (p *PrometheusCollector) RecordCall(subject, outcome string, seconds float64) {
	p.ensureRegistered()
	p.calls.WithLabelValues(subject, outcome).Inc()
	p.callDuration.WithLabelValues(subject).Observe(seconds)
}

// RecordRetry counts one retry.
func (p *PrometheusCollector) RecordRetry(subject string) {
	p.ensureRegistered()
	p.retries.WithLabelValues(subject).Inc()
}

// RecordAckWait observes the acknowledgment phase duration.
func (p *PrometheusCollector) RecordAckWait(subject string, acked bool, seconds float64) {
	p.ensureRegistered()
	p.ackWait.WithLabelValues(subject, strconv.FormatBool(acked)).Observe(seconds)
}

// RecordDispatch counts an inbound request outcome.
func (p *PrometheusCollector) RecordDispatch(subject, outcome string) {
	p.ensureRegistered()
	p.dispatches.WithLabelValues(subject, outcome).Inc()
}

// RecordInflight sets the in-flight gauge.
func (p *PrometheusCollector) RecordInflight(n int) {
	p.ensureRegistered()
	p.inflight.Set(float64(n))
}

// RecordResubscribe counts an activation and sets the subscription gauge.
func (p *PrometheusCollector) RecordResubscribe(count int) {
	p.ensureRegistered()
	p.resubscribes.Inc()
	p.subscriptions.Set(float64(count))
}

// RecordStateTransition counts a lifecycle transition.
func (p *PrometheusCollector) RecordStateTransition(from, to types.State) {
	p.ensureRegistered()
	p.transitions.WithLabelValues(from.String(), to.String()).Inc()
}
