package offlineworker

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/always-cache/offline-worker/strategy"
)

const namespace = "offline_worker"

type metrics struct {
	registry  *prometheus.Registry
	responses *prometheus.CounterVec
	errors    *prometheus.CounterVec
	events    *prometheus.CounterVec
}

// newMetrics registers the worker's counters labelled with its version.
// Workers sharing a registry with the same version share their counters.
func newMetrics(registry *prometheus.Registry, version string) *metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	m := &metrics{
		registry: registry,
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Intercepted requests resolved, by strategy and response source.",
		}, []string{"strategy", "source", "stored"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Intercepted requests that could not be resolved, by strategy.",
		}, []string{"strategy"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Events handled, by kind and result.",
		}, []string{"event", "result"}),
	}
	registerer := prometheus.WrapRegistererWith(prometheus.Labels{"version": version}, registry)
	m.responses = register(registerer, m.responses)
	m.errors = register(registerer, m.errors)
	m.events = register(registerer, m.events)
	return m
}

func register(registerer prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := registerer.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *metrics) response(strategyName string, status strategy.Status) {
	m.responses.WithLabelValues(strategyName, status.Source(), strconv.FormatBool(status.Stored)).Inc()
}

func (m *metrics) fetchError(strategyName string) {
	m.errors.WithLabelValues(strategyName).Inc()
}

func (m *metrics) event(kind EventKind, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.events.WithLabelValues(string(kind), result).Inc()
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
