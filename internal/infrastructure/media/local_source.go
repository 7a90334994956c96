package media

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"roomlink/internal/core/ports"
	apperrors "roomlink/pkg/errors"
	"roomlink/pkg/utils"
)

const (
	videoClockRate = 90000
	audioClockRate = 48000
	videoFrameGap  = 33 * time.Millisecond // ~30 fps
	audioFrameGap  = 20 * time.Millisecond // opus frame
)

// SyntheticSource implements ports.MediaSource with generated RTP. It stands
// in for real device capture: each acquired stream carries VP8 video and/or
// Opus audio tracks fed by pacing goroutines until Stop.
type SyntheticSource struct {
	logger *zap.SugaredLogger
}

var _ ports.MediaSource = (*SyntheticSource)(nil)

func NewSyntheticSource(logger *zap.SugaredLogger) *SyntheticSource {
	return &SyntheticSource{logger: logger}
}

func (s *SyntheticSource) AcquireLocalMedia(ctx context.Context, c ports.MediaConstraints) (ports.LocalMedia, error) {
	if !c.Audio && !c.Video {
		return nil, apperrors.NewMediaAcquisitionError(nil, "neither audio nor video requested")
	}

	id := utils.GenerateStreamID()
	m := newSyntheticMedia(id)

	if c.Video {
		track, err := webrtc.NewTrackLocalStaticRTP(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: videoClockRate},
			"video", id,
		)
		if err != nil {
			return nil, apperrors.NewMediaAcquisitionError(err, "failed to create video track")
		}
		m.addTrack(track, videoFrameGap, videoClockRate/30)
	}

	if c.Audio {
		track, err := webrtc.NewTrackLocalStaticRTP(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: audioClockRate, Channels: 2},
			"audio", id,
		)
		if err != nil {
			m.Stop()
			return nil, apperrors.NewMediaAcquisitionError(err, "failed to create audio track")
		}
		m.addTrack(track, audioFrameGap, audioClockRate/50)
	}

	s.logger.Infow("acquired local media",
		"stream_id", id,
		"audio", c.Audio,
		"video", c.Video,
		"device_id", c.DeviceID,
	)
	return m, nil
}

func (s *SyntheticSource) AcquireDisplayMedia(ctx context.Context) (ports.LocalMedia, error) {
	id := utils.GenerateStreamID()
	m := newSyntheticMedia(id)

	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: videoClockRate},
		"screen", id,
	)
	if err != nil {
		return nil, apperrors.NewMediaAcquisitionError(err, "failed to create screen track")
	}
	m.addTrack(track, videoFrameGap, videoClockRate/30)

	s.logger.Infow("acquired display media", "stream_id", id)
	return m, nil
}

type syntheticMedia struct {
	id     string
	tracks []webrtc.TrackLocal
	done   chan struct{}
	stop   sync.Once
	wg     sync.WaitGroup
}

func newSyntheticMedia(id string) *syntheticMedia {
	return &syntheticMedia{
		id:   id,
		done: make(chan struct{}),
	}
}

func (m *syntheticMedia) ID() string                  { return m.id }
func (m *syntheticMedia) Tracks() []webrtc.TrackLocal { return m.tracks }

// Stop halts every writer goroutine and waits for them to exit, so no RTP is
// written to a track after Stop returns.
func (m *syntheticMedia) Stop() error {
	m.stop.Do(func() { close(m.done) })
	m.wg.Wait()
	return nil
}

func (m *syntheticMedia) addTrack(track *webrtc.TrackLocalStaticRTP, gap time.Duration, tsStep int) {
	m.tracks = append(m.tracks, track)
	m.wg.Add(1)
	go m.writeLoop(track, gap, uint32(tsStep))
}

// writeLoop paces synthetic RTP packets onto the track. Writes before the
// track is bound to a sender are discarded by pion, which is fine.
func (m *syntheticMedia) writeLoop(track *webrtc.TrackLocalStaticRTP, gap time.Duration, tsStep uint32) {
	defer m.wg.Done()

	ticker := time.NewTicker(gap)
	defer ticker.Stop()

	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			SSRC:           rand.Uint32(),
			SequenceNumber: uint16(rand.Uint32()),
		},
		Payload: make([]byte, 120),
	}

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			pkt.Header.SequenceNumber++
			pkt.Header.Timestamp += tsStep
			rand.Read(pkt.Payload)
			if err := track.WriteRTP(pkt); err != nil {
				// Unbound or closing track; keep pacing until Stop.
				continue
			}
		}
	}
}
