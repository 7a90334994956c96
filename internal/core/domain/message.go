package domain

// SignalType tags a signaling message exchanged through the relay.
type SignalType string

const (
	SignalDiscover     SignalType = "discover"
	SignalDiscovered   SignalType = "discovered"
	SignalRequest      SignalType = "request"
	SignalOffer        SignalType = "offer"
	SignalAnswer       SignalType = "answer"
	SignalICECandidate SignalType = "ice_candidate"
)

// SignalMessage is the logical, transport-agnostic signaling message. Every
// message except discover carries the originating peer so the session can
// route it to the right connection.
type SignalMessage struct {
	Type      SignalType
	RoomID    RoomID
	From      PeerID
	Target    PeerID
	Peers     []PeerID // discovered only
	SDP       string   // offer/answer only
	Candidate string   // ice_candidate only
}
