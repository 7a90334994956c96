package domain

import "time"

// StreamOrigin distinguishes where a registered stream came from.
type StreamOrigin string

const (
	OriginLocalCamera StreamOrigin = "local-camera"
	OriginLocalScreen StreamOrigin = "local-screen"
	OriginRemote      StreamOrigin = "remote"
)

// MediaStreamEntry is one stream known to the registry: the local capture,
// the local screen share, or a remote peer's stream once a track arrives.
// The renderer consumes snapshots of these; it never touches peer
// connections directly.
type MediaStreamEntry struct {
	ID     StreamID     `json:"id"`
	Origin StreamOrigin `json:"origin"`
	// Muted is set only on the local participant's own entry so the
	// renderer suppresses the echo.
	Muted     bool      `json:"muted"`
	OwnerPeer PeerID    `json:"owner_peer,omitempty"`
	AddedAt   time.Time `json:"added_at"`
}

func (e MediaStreamEntry) Local() bool {
	return e.Origin != OriginRemote
}
