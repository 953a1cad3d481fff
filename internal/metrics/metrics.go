// Package metrics exports bridge counters to Prometheus and serves them on
// the ops listener.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"irbridge/internal/runtime/supervisor"
)

const namespace = "irbridge"

// Metrics implements bridge.Observer and bridge.InboundObserver.
// A nil *Metrics is a valid no-op observer.
type Metrics struct {
	reg *prometheus.Registry

	published      *prometheus.CounterVec
	publishFailed  *prometheus.CounterVec
	translateFail  *prometheus.CounterVec
	authRejected   prometheus.Counter
	deviceMessages *prometheus.CounterVec
	saveFailures   prometheus.Counter
}

// New builds the collectors on a private registry, together with the Go
// runtime and process collectors.
func New() (*Metrics, error) {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Records published to a device.",
		}, []string{"device", "cmd"}),
		publishFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Records that could not be published.",
		}, []string{"device"}),
		translateFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translation_failures_total",
			Help:      "Command lines rejected during translation.",
		}, []string{"reason"}),
		authRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_rejections_total",
			Help:      "Invocations from chats that are not authorized.",
		}),
		deviceMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_messages_total",
			Help:      "Messages received from devices, by reply kind.",
		}, []string{"device", "kind"}),
		saveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_save_failures_total",
			Help:      "State updates that were kept in memory after every save attempt failed.",
		}),
	}

	cs := []prometheus.Collector{
		m.published, m.publishFailed, m.translateFail,
		m.authRejected, m.deviceMessages, m.saveFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range cs {
		if err := m.reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return m, nil
}

// Registry is the gatherer served on /metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) Published(device, cmd string) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(device, cmd).Inc()
}

func (m *Metrics) PublishFailed(device string) {
	if m == nil {
		return
	}
	m.publishFailed.WithLabelValues(device).Inc()
}

func (m *Metrics) TranslationFailed(reason string) {
	if m == nil {
		return
	}
	m.translateFail.WithLabelValues(reason).Inc()
}

func (m *Metrics) AuthRejected() {
	if m == nil {
		return
	}
	m.authRejected.Inc()
}

func (m *Metrics) DeviceMessage(device, kind string) {
	if m == nil {
		return
	}
	m.deviceMessages.WithLabelValues(device, kind).Inc()
}

// StateSaveFailed matches state.Options.OnSaveFailure.
func (m *Metrics) StateSaveFailed(error) {
	if m == nil {
		return
	}
	m.saveFailures.Inc()
}

// WatchSupervisor exports the goroutine counters of sup. It is called once
// per supervisor; a second call for the same names is ignored.
func (m *Metrics) WatchSupervisor(sup *supervisor.Supervisor) {
	if m == nil || sup == nil {
		return
	}
	cs := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "goroutines_supervised",
			Help:      "Supervised goroutines currently running.",
		}, func() float64 { return float64(sup.Counters().Active) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "goroutine_panics_total",
			Help:      "Panics recovered in supervised goroutines.",
		}, func() float64 { return float64(sup.Counters().Panics) }),
	}
	for _, c := range cs {
		_ = m.reg.Register(c)
	}
}
