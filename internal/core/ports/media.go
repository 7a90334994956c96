package ports

import (
	"context"

	"github.com/pion/webrtc/v3"
)

// MediaConstraints selects what to capture when acquiring local media.
type MediaConstraints struct {
	Audio    bool
	Video    bool
	DeviceID string
}

// LocalMedia is an acquired local stream: camera/microphone capture or a
// screen share. Stop halts capture and must be visible to every peer
// connection the tracks were attached to before teardown completes.
type LocalMedia interface {
	ID() string
	Tracks() []webrtc.TrackLocal
	Stop() error
}

// MediaSource acquires local media. The session treats it as an external
// collaborator; the in-tree implementation generates synthetic RTP.
type MediaSource interface {
	AcquireLocalMedia(ctx context.Context, c MediaConstraints) (LocalMedia, error)
	AcquireDisplayMedia(ctx context.Context) (LocalMedia, error)
}
