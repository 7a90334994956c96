package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"roomlink/internal/core/domain"
	"roomlink/internal/core/ports"
)

// PrometheusCollector exposes session metrics. Metrics are registered on the
// given registerer so tests can use isolated registries.
type PrometheusCollector struct {
	peersActive        prometheus.Gauge
	peersTotal         *prometheus.CounterVec
	peersClosed        *prometheus.CounterVec
	signalMessages     *prometheus.CounterVec
	candidatesQueued   prometheus.Counter
	candidatesApplied  prometheus.Counter
	negotiationSeconds *prometheus.HistogramVec
	registryEntries    prometheus.Gauge
	peerPacketLoss     *prometheus.GaugeVec
	peerJitterSeconds  *prometheus.GaugeVec
}

var _ ports.Collector = (*PrometheusCollector)(nil)

func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		peersActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "roomlink_peers_active",
			Help: "Number of live peer connections",
		}),

		peersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "roomlink_peers_total",
			Help: "Total peer connections created, by negotiation role",
		}, []string{"role"}),

		peersClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "roomlink_peers_closed_total",
			Help: "Total peer connections removed, by final state",
		}, []string{"state"}),

		signalMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "roomlink_signal_messages_total",
			Help: "Signaling messages by direction and type",
		}, []string{"direction", "type"}),

		candidatesQueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "roomlink_ice_candidates_queued_total",
			Help: "ICE candidates buffered while awaiting a remote description",
		}),

		candidatesApplied: factory.NewCounter(prometheus.CounterOpts{
			Name: "roomlink_ice_candidates_applied_total",
			Help: "ICE candidates applied to peer connections",
		}),

		negotiationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "roomlink_negotiation_duration_seconds",
			Help:    "Time from controller creation to connected state",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"role"}),

		registryEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "roomlink_stream_registry_entries",
			Help: "Entries currently in the stream registry",
		}),

		peerPacketLoss: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "roomlink_peer_packet_loss_ratio",
			Help: "Packet loss per peer from RTCP receiver reports",
		}, []string{"peer_id"}),

		peerJitterSeconds: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "roomlink_peer_jitter_seconds",
			Help: "Jitter per peer from RTCP receiver reports",
		}, []string{"peer_id"}),
	}
}

func (c *PrometheusCollector) PeerAdded(role domain.NegotiationRole) {
	c.peersActive.Inc()
	c.peersTotal.WithLabelValues(string(role)).Inc()
}

func (c *PrometheusCollector) PeerRemoved(state domain.PeerState) {
	c.peersActive.Dec()
	c.peersClosed.WithLabelValues(string(state)).Inc()
}

func (c *PrometheusCollector) SignalMessage(direction string, msgType domain.SignalType) {
	c.signalMessages.WithLabelValues(direction, string(msgType)).Inc()
}

func (c *PrometheusCollector) CandidateQueued() {
	c.candidatesQueued.Inc()
}

func (c *PrometheusCollector) CandidateApplied() {
	c.candidatesApplied.Inc()
}

func (c *PrometheusCollector) NegotiationCompleted(role domain.NegotiationRole, d time.Duration) {
	c.negotiationSeconds.WithLabelValues(string(role)).Observe(d.Seconds())
}

func (c *PrometheusCollector) RegistrySize(n int) {
	c.registryEntries.Set(float64(n))
}

func (c *PrometheusCollector) PeerQuality(peer domain.PeerID, packetLoss float64, jitter time.Duration) {
	c.peerPacketLoss.WithLabelValues(string(peer)).Set(packetLoss)
	c.peerJitterSeconds.WithLabelValues(string(peer)).Set(jitter.Seconds())
}
