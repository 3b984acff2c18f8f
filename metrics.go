package videocall

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/outofforest/videocall/wire"
)

// Metrics collects call client statistics.
type Metrics struct {
	PacketsSent           *prometheus.CounterVec
	PacketsDropped        prometheus.Counter
	SubscriptionsRejected *prometheus.CounterVec
	Transitions           *prometheus.CounterVec
}

// NewMetrics creates metrics and registers them in registerer if it is not nil.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		PacketsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "videocall_packets_sent_total",
			Help: "Number of packets handed over to the transport",
		}, []string{"kind"}),
		PacketsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "videocall_packets_dropped_total",
			Help: "Number of packets dropped because connection was not established",
		}),
		SubscriptionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "videocall_subscriptions_rejected_total",
			Help: "Number of rejected peer subscriptions",
		}, []string{"reason"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "videocall_connection_transitions_total",
			Help: "Number of transitions into connection state",
		}, []string{"state"}),
	}

	if registerer != nil {
		for _, c := range []prometheus.Collector{
			m.PacketsSent,
			m.PacketsDropped,
			m.SubscriptionsRejected,
			m.Transitions,
		} {
			if err := registerer.Register(c); err != nil {
				return nil, errors.WithStack(err)
			}
		}
	}

	return m, nil
}

func (m *Metrics) packetSent(kind wire.PacketType) {
	if m != nil {
		m.PacketsSent.WithLabelValues(kind.String()).Inc()
	}
}

func (m *Metrics) packetDropped() {
	if m != nil {
		m.PacketsDropped.Inc()
	}
}

func (m *Metrics) subscriptionRejected(result SubscribeResult) {
	if m != nil {
		m.SubscriptionsRejected.WithLabelValues(result.String()).Inc()
	}
}

func (m *Metrics) transition(state State) {
	if m != nil {
		m.Transitions.WithLabelValues(state.String()).Inc()
	}
}
