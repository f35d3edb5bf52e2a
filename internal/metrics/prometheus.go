package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/jacobi/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are created and registered lazily on first use so that an
// unused collector never touches the registry.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	iterations     *prometheus.CounterVec
	globalNorm     *prometheus.GaugeVec
	phaseDuration  *prometheus.HistogramVec
	runDuration    *prometheus.GaugeVec
	runIterations  *prometheus.GaugeVec
	converged      *prometheus.GaugeVec
	messages       *prometheus.CounterVec
	messageBytes   *prometheus.CounterVec
	abortsObserved *prometheus.CounterVec
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "jacobi" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "jacobi"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.iterations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "solver",
			Name:      "iterations_total",
			Help:      "Total relaxation iterations completed by worker.",
		}, []string{"worker"})

		p.globalNorm = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "solver",
			Name:      "global_norm",
			Help:      "Reduced diffnorm after the latest iteration.",
		}, []string{"worker"})

		p.phaseDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "solver",
			Name:      "phase_duration_seconds",
			Help:      "Time spent per iteration phase (halo, stencil, reduce, gather).",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10), // 10us .. ~2.6s
		}, []string{"phase"})

		p.runDuration = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "solver",
			Name:      "run_duration_seconds",
			Help:      "Wall time of the timed section of the last run.",
		}, []string{"worker"})

		p.runIterations = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "solver",
			Name:      "run_iterations",
			Help:      "Iterations executed by the last run.",
		}, []string{"worker"})

		p.converged = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "solver",
			Name:      "converged",
			Help:      "1 if the last run stopped on the threshold, 0 if on the iteration cap.",
		}, []string{"worker"})

		p.messages = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "transport",
			Name:      "messages_total",
			Help:      "Messages by direction (sent, received) and tag.",
		}, []string{"direction", "tag"})

		p.messageBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "transport",
			Name:      "message_bytes_total",
			Help:      "Encoded payload bytes by direction and tag.",
		}, []string{"direction", "tag"})

		p.abortsObserved = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "transport",
			Name:      "aborts_total",
			Help:      "Group aborts observed by worker.",
		}, []string{"worker"})

		p.reg.MustRegister(p.iterations)
		p.reg.MustRegister(p.globalNorm)
		p.reg.MustRegister(p.phaseDuration)
		p.reg.MustRegister(p.runDuration)
		p.reg.MustRegister(p.runIterations)
		p.reg.MustRegister(p.converged)
		p.reg.MustRegister(p.messages)
		p.reg.MustRegister(p.messageBytes)
		p.reg.MustRegister(p.abortsObserved)
	})
}

// RecordIteration increments the iteration counter and updates the norm gauge.
func (p *PrometheusCollector) RecordIteration(workerIndex, _ /* iteration */ int, globalNorm float64) {
	p.ensureRegistered()
	worker := strconv.Itoa(workerIndex)
	p.iterations.WithLabelValues(worker).Inc()
	p.globalNorm.WithLabelValues(worker).Set(globalNorm)
}

// RecordPhaseDuration observes a phase duration in seconds.
func (p *PrometheusCollector) RecordPhaseDuration(phase string, duration float64) {
	p.ensureRegistered()
	p.phaseDuration.WithLabelValues(phase).Observe(duration)
}

// RecordRun sets the per-worker run gauges.
func (p *PrometheusCollector) RecordRun(workerIndex, iterations int, duration float64, converged bool) {
	p.ensureRegistered()
	worker := strconv.Itoa(workerIndex)
	p.runDuration.WithLabelValues(worker).Set(duration)
	p.runIterations.WithLabelValues(worker).Set(float64(iterations))
	if converged {
		p.converged.WithLabelValues(worker).Set(1)
	} else {
		p.converged.WithLabelValues(worker).Set(0)
	}
}

// RecordMessage counts one message and its payload size.
func (p *PrometheusCollector) RecordMessage(direction, tag string, bytes int) {
	p.ensureRegistered()
	p.messages.WithLabelValues(direction, tag).Inc()
	p.messageBytes.WithLabelValues(direction, tag).Add(float64(bytes))
}

// RecordAbort counts an observed group abort.
func (p *PrometheusCollector) RecordAbort(workerIndex int) {
	p.ensureRegistered()
	p.abortsObserved.WithLabelValues(strconv.Itoa(workerIndex)).Inc()
}
