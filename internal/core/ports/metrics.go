package ports

import (
	"time"

	"roomlink/internal/core/domain"
)

// Collector receives session metrics. The Prometheus implementation lives in
// internal/infrastructure/monitoring; tests use NopCollector.
type Collector interface {
	PeerAdded(role domain.NegotiationRole)
	PeerRemoved(state domain.PeerState)
	SignalMessage(direction string, msgType domain.SignalType)
	CandidateQueued()
	CandidateApplied()
	NegotiationCompleted(role domain.NegotiationRole, d time.Duration)
	RegistrySize(n int)
	PeerQuality(peer domain.PeerID, packetLoss float64, jitter time.Duration)
}

// NopCollector discards all metrics.
type NopCollector struct{}

func (NopCollector) PeerAdded(domain.NegotiationRole)                           {}
func (NopCollector) PeerRemoved(domain.PeerState)                               {}
func (NopCollector) SignalMessage(string, domain.SignalType)                    {}
func (NopCollector) CandidateQueued()                                           {}
func (NopCollector) CandidateApplied()                                          {}
func (NopCollector) NegotiationCompleted(domain.NegotiationRole, time.Duration) {}
func (NopCollector) RegistrySize(int)                                           {}
func (NopCollector) PeerQuality(domain.PeerID, float64, time.Duration)          {}
