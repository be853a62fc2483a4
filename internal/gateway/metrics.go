package gateway

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	connections   prometheus.Gauge
	eventsEmitted *prometheus.CounterVec
	eventsDropped *prometheus.CounterVec
	opsHandled    *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_live_connections",
			Help: "Currently open authenticated connections.",
		}),
		eventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_events_emitted_total",
			Help: "Events enqueued for delivery, by event name.",
		}, []string{"event"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_events_dropped_total",
			Help: "Events dropped because a connection's buffer was full.",
		}, []string{"event"}),
		opsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_ops_handled_total",
			Help: "Client operations processed, by op and outcome.",
		}, []string{"op", "outcome"}),
	}
	reg.MustRegister(m.connections, m.eventsEmitted, m.eventsDropped, m.opsHandled)
	return m
}

func (m *Metrics) ConnectionOpened() { m.connections.Inc() }
func (m *Metrics) ConnectionClosed() { m.connections.Dec() }

func (m *Metrics) EventEmitted(event string) { m.eventsEmitted.WithLabelValues(event).Inc() }
func (m *Metrics) EventDropped(event string) { m.eventsDropped.WithLabelValues(event).Inc() }

func (m *Metrics) OpHandled(op string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.opsHandled.WithLabelValues(op, outcome).Inc()
}
