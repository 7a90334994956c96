package signal

import (
	"encoding/json"
	"fmt"

	"roomlink/internal/core/domain"
)

// wireMessage is the JSON envelope exchanged with the relay. Type-specific
// fields ride in Payload so unknown message types stay decodable.
type wireMessage struct {
	Type       string          `json:"type"`
	RoomID     string          `json:"room_id,omitempty"`
	FromPeer   string          `json:"from_peer,omitempty"`
	TargetPeer string          `json:"target_peer,omitempty"`
	Peers      []string        `json:"peers,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// msgTypeWelcome is the relay's first message on a new connection, carrying
// the peer identity it issued for this client.
const msgTypeWelcome = "welcome"

type sdpPayload struct {
	SDP string `json:"sdp"`
}

type candidatePayload struct {
	Candidate string `json:"candidate"`
}

type welcomePayload struct {
	PeerID string `json:"peer_id"`
}

func encodeMessage(msg domain.SignalMessage) (*wireMessage, error) {
	wire := &wireMessage{
		Type:       string(msg.Type),
		RoomID:     string(msg.RoomID),
		FromPeer:   string(msg.From),
		TargetPeer: string(msg.Target),
	}

	switch msg.Type {
	case domain.SignalDiscover:
		// room id only
	case domain.SignalOffer, domain.SignalAnswer:
		payload, err := json.Marshal(sdpPayload{SDP: msg.SDP})
		if err != nil {
			return nil, err
		}
		wire.Payload = payload
	case domain.SignalICECandidate:
		payload, err := json.Marshal(candidatePayload{Candidate: msg.Candidate})
		if err != nil {
			return nil, err
		}
		wire.Payload = payload
	default:
		return nil, fmt.Errorf("cannot encode message type %q", msg.Type)
	}

	return wire, nil
}

func decodeMessage(wire *wireMessage) (domain.SignalMessage, error) {
	msg := domain.SignalMessage{
		Type:   domain.SignalType(wire.Type),
		RoomID: domain.RoomID(wire.RoomID),
		From:   domain.PeerID(wire.FromPeer),
		Target: domain.PeerID(wire.TargetPeer),
	}

	switch msg.Type {
	case domain.SignalDiscovered:
		msg.Peers = make([]domain.PeerID, 0, len(wire.Peers))
		for _, p := range wire.Peers {
			msg.Peers = append(msg.Peers, domain.PeerID(p))
		}
	case domain.SignalRequest:
		if msg.From == "" {
			return msg, fmt.Errorf("request message missing from_peer")
		}
	case domain.SignalOffer, domain.SignalAnswer:
		var payload sdpPayload
		if err := json.Unmarshal(wire.Payload, &payload); err != nil {
			return msg, fmt.Errorf("invalid %s payload: %w", wire.Type, err)
		}
		if msg.From == "" {
			return msg, fmt.Errorf("%s message missing from_peer", wire.Type)
		}
		msg.SDP = payload.SDP
	case domain.SignalICECandidate:
		var payload candidatePayload
		if err := json.Unmarshal(wire.Payload, &payload); err != nil {
			return msg, fmt.Errorf("invalid ice_candidate payload: %w", err)
		}
		if msg.From == "" {
			return msg, fmt.Errorf("ice_candidate message missing from_peer")
		}
		msg.Candidate = payload.Candidate
	default:
		return msg, fmt.Errorf("unknown message type %q", wire.Type)
	}

	return msg, nil
}
