package domain

// EventType identifies a session event delivered to the embedding
// application.
type EventType string

const (
	EventOpenedRoom   EventType = "opened-room"
	EventJoinedRoom   EventType = "joined-room"
	EventLeftRoom     EventType = "left-room"
	EventMediaError   EventType = "media-error"
	EventSocketError  EventType = "socket-error"
	EventPeerError    EventType = "peer-error"
	EventShareStarted EventType = "share-started"
)

// Event is one session notification. Which fields are set depends on Type:
// opened-room carries RoomID, joined-room and share-started carry StreamID,
// peer-error carries PeerID and Err, the error events carry Err.
type Event struct {
	Type     EventType
	RoomID   RoomID
	StreamID StreamID
	PeerID   PeerID
	Err      error
}
