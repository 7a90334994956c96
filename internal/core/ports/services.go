package ports

import (
	"context"

	"roomlink/internal/core/domain"
)

// RoomSession orchestrates one participant's membership in a room: joining,
// peer connection lifecycles, screen sharing and teardown.
type RoomSession interface {
	// Join acquires local media, connects the signaling channel and starts
	// peer discovery. Returns ErrAlreadyJoined on a live session.
	Join(ctx context.Context) error

	// Leave stops local media, closes every peer connection, disconnects
	// the signaling channel and clears the stream registry. Idempotent.
	Leave() error

	// ShareScreen acquires display media and fans the new tracks out to
	// every live peer connection, renegotiating each.
	ShareScreen(ctx context.Context) error

	// Events delivers session notifications. The channel is buffered;
	// events are dropped (and logged) rather than blocking the session.
	Events() <-chan domain.Event

	RoomID() domain.RoomID
	SelfID() domain.PeerID
	Peers() []domain.PeerInfo
	Streams() []domain.MediaStreamEntry
}

// StreamRegistry is the set of locally known media streams, consumed by the
// external rendering layer through snapshots.
type StreamRegistry interface {
	// Add registers an entry. Adding an already-present identifier is a
	// no-op and returns false; duplicate track-arrival notifications are
	// expected under renegotiation.
	Add(entry domain.MediaStreamEntry) bool

	// Remove deregisters an entry, reporting whether it was present.
	Remove(id domain.StreamID) bool

	// Snapshot returns the entries in insertion order.
	Snapshot() []domain.MediaStreamEntry

	Clear()
	Len() int
}
