package domain

import "time"

// NegotiationRole says which side drives the offer/answer exchange for one
// peer connection.
type NegotiationRole string

const (
	RoleInitiator NegotiationRole = "initiator"
	RoleResponder NegotiationRole = "responder"
)

// PeerState is the lifecycle state of a single peer connection.
type PeerState string

const (
	StateIdle              PeerState = "idle"
	StateNegotiatingLocal  PeerState = "negotiating_local"
	StateNegotiatingRemote PeerState = "negotiating_remote"
	StateConnected         PeerState = "connected"
	StateClosed            PeerState = "closed"
	StateFailed            PeerState = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s PeerState) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// PeerInfo is a read-only snapshot of one peer connection, exposed to the
// status API and tests.
type PeerInfo struct {
	ID               PeerID          `json:"peer_id"`
	Role             NegotiationRole `json:"role"`
	State            PeerState       `json:"state"`
	QueuedCandidates int             `json:"queued_candidates"`
	RemoteStreams    []StreamID      `json:"remote_streams,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// PeerMetrics carries link quality derived from RTCP receiver reports.
type PeerMetrics struct {
	PacketLoss float64
	Jitter     time.Duration
	UpdatedAt  time.Time
}
