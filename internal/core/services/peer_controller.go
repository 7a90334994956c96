package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"roomlink/internal/core/domain"
	"roomlink/internal/core/ports"
	apperrors "roomlink/pkg/errors"
)

// controllerHooks is how a controller reaches back into its owning session.
// Hooks are invoked from pion callback goroutines with no controller lock
// held; the session serializes them through its own mutex.
type controllerHooks struct {
	// send transmits a signaling message addressed to the remote peer.
	send func(msg domain.SignalMessage) error
	// onRemoteStream reports arrival of the remote peer's stream.
	onRemoteStream func(peer domain.PeerID, streamID domain.StreamID)
	// onTerminal reports that the transport reached Closed/Failed so the
	// session can remove the controller.
	onTerminal func(peer domain.PeerID, state domain.PeerState)
}

// peerController drives one peer-to-peer connection's negotiation state
// machine. At most one controller exists per remote peer identity; the room
// session owns it exclusively, and the controller never outlives the room.
type peerController struct {
	peerID    domain.PeerID
	selfID    domain.PeerID
	role      domain.NegotiationRole
	createdAt time.Time

	pc        *webrtc.PeerConnection
	logger    *zap.SugaredLogger
	collector ports.Collector
	hooks     controllerHooks

	mu            sync.Mutex
	state         domain.PeerState
	remoteSet     bool
	attached      bool
	needsOffer    bool
	pending       []webrtc.ICECandidateInit
	remoteStreams []domain.StreamID
	senders       []*webrtc.RTPSender
	closed        bool
	done          chan struct{}
}

func newPeerController(
	peerID, selfID domain.PeerID,
	role domain.NegotiationRole,
	cfg webrtc.Configuration,
	hooks controllerHooks,
	collector ports.Collector,
	logger *zap.SugaredLogger,
) (*peerController, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, apperrors.NewNegotiationError(err, "failed to create peer connection")
	}

	c := &peerController{
		peerID:    peerID,
		selfID:    selfID,
		role:      role,
		createdAt: time.Now(),
		pc:        pc,
		logger:    logger,
		collector: collector,
		hooks:     hooks,
		state:     domain.StateIdle,
		done:      make(chan struct{}),
	}

	pc.OnICECandidate(c.handleLocalCandidate)
	pc.OnConnectionStateChange(c.handleConnectionState)
	pc.OnTrack(c.handleRemoteTrack)

	collector.PeerAdded(role)
	return c, nil
}

// startInitiator attaches local tracks, creates and applies the offer and
// sends it to the remote peer. Initiator path of the state machine.
func (c *peerController) startInitiator(tracks []webrtc.TrackLocal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return domain.ErrControllerClosed
	}
	if c.state != domain.StateIdle {
		return fmt.Errorf("%w: cannot initiate from %s", domain.ErrInvalidState, c.state)
	}

	if err := c.attachTracksLocked(tracks); err != nil {
		return err
	}
	if err := c.sendOfferLocked(); err != nil {
		return err
	}
	c.state = domain.StateNegotiatingLocal
	return nil
}

// handleOffer runs the responder path: the received offer becomes the remote
// description, queued candidates flush, and an answer goes back.
func (c *peerController) handleOffer(sdp string, tracks []webrtc.TrackLocal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return domain.ErrControllerClosed
	}

	if err := c.attachTracksLocked(tracks); err != nil {
		return err
	}

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return apperrors.NewNegotiationError(err, "failed to apply remote offer")
	}
	c.remoteSet = true
	c.flushPendingLocked()
	c.state = domain.StateNegotiatingRemote

	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return apperrors.NewNegotiationError(err, "failed to create answer")
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return apperrors.NewNegotiationError(err, "failed to apply local answer")
	}

	return c.hooks.send(domain.SignalMessage{
		Type:   domain.SignalAnswer,
		From:   c.selfID,
		Target: c.peerID,
		SDP:    answer.SDP,
	})
}

// handleAnswer completes an offer the controller has in flight: the initial
// one while negotiating, or a renegotiation offer on a live connection.
func (c *peerController) handleAnswer(sdp string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return domain.ErrControllerClosed
	}
	switch c.state {
	case domain.StateNegotiatingLocal, domain.StateConnected:
	default:
		return fmt.Errorf("%w: answer received in %s", domain.ErrInvalidState, c.state)
	}
	if c.pc.SignalingState() != webrtc.SignalingStateHaveLocalOffer {
		return fmt.Errorf("%w: answer without a pending offer", domain.ErrInvalidState)
	}

	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
	if err := c.pc.SetRemoteDescription(answer); err != nil {
		return apperrors.NewNegotiationError(err, "failed to apply remote answer")
	}
	c.remoteSet = true
	c.flushPendingLocked()

	if c.needsOffer {
		c.needsOffer = false
		return c.sendOfferLocked()
	}
	return nil
}

// addCandidate applies the candidate if the remote description is set and
// queues it otherwise. Queued candidates flush in receipt order immediately
// after the remote description lands, each applied exactly once.
func (c *peerController) addCandidate(candidate string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return domain.ErrControllerClosed
	}

	init := webrtc.ICECandidateInit{Candidate: candidate}
	if !c.remoteSet {
		c.pending = append(c.pending, init)
		c.collector.CandidateQueued()
		return nil
	}

	if err := c.pc.AddICECandidate(init); err != nil {
		return apperrors.NewNegotiationError(err, "failed to apply ICE candidate")
	}
	c.collector.CandidateApplied()
	return nil
}

func (c *peerController) flushPendingLocked() {
	for _, init := range c.pending {
		if err := c.pc.AddICECandidate(init); err != nil {
			c.logger.Warnw("failed to apply queued ICE candidate",
				"peer_id", c.peerID,
				"error", err,
			)
			continue
		}
		c.collector.CandidateApplied()
	}
	c.pending = nil
}

// renegotiate attaches the new tracks and sends a fresh offer; used when
// the local participant starts a screen share mid-session. While an earlier
// offer is still waiting for its answer the signaling state is not stable,
// so the renegotiation offer is held back until the answer lands.
func (c *peerController) renegotiate(tracks []webrtc.TrackLocal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return domain.ErrControllerClosed
	}
	if c.state.Terminal() {
		return fmt.Errorf("%w: cannot renegotiate from %s", domain.ErrInvalidState, c.state)
	}

	for _, track := range tracks {
		sender, err := c.pc.AddTrack(track)
		if err != nil {
			return apperrors.NewNegotiationError(err, "failed to add track for renegotiation")
		}
		c.senders = append(c.senders, sender)
		go c.readRTCP(sender)
	}

	if c.pc.SignalingState() != webrtc.SignalingStateStable {
		c.needsOffer = true
		return nil
	}
	return c.sendOfferLocked()
}

func (c *peerController) sendOfferLocked() error {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return apperrors.NewNegotiationError(err, "failed to create offer")
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return apperrors.NewNegotiationError(err, "failed to apply local offer")
	}
	return c.hooks.send(domain.SignalMessage{
		Type:   domain.SignalOffer,
		From:   c.selfID,
		Target: c.peerID,
		SDP:    offer.SDP,
	})
}

func (c *peerController) attachTracksLocked(tracks []webrtc.TrackLocal) error {
	if c.attached {
		return nil
	}
	for _, track := range tracks {
		sender, err := c.pc.AddTrack(track)
		if err != nil {
			return apperrors.NewNegotiationError(err, "failed to attach local track")
		}
		c.senders = append(c.senders, sender)
		go c.readRTCP(sender)
	}
	c.attached = true
	return nil
}

// handleLocalCandidate forwards locally gathered candidates to the peer.
// Runs on a pion goroutine; a candidate surfacing after close is dropped.
func (c *peerController) handleLocalCandidate(candidate *webrtc.ICECandidate) {
	if candidate == nil {
		return
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}

	err := c.hooks.send(domain.SignalMessage{
		Type:      domain.SignalICECandidate,
		From:      c.selfID,
		Target:    c.peerID,
		Candidate: candidate.ToJSON().Candidate,
	})
	if err != nil {
		c.logger.Warnw("failed to send ICE candidate",
			"peer_id", c.peerID,
			"error", err,
		)
	}
}

func (c *peerController) handleConnectionState(state webrtc.PeerConnectionState) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	var terminal domain.PeerState
	switch state {
	case webrtc.PeerConnectionStateConnected:
		if !c.state.Terminal() {
			c.state = domain.StateConnected
			c.collector.NegotiationCompleted(c.role, time.Since(c.createdAt))
		}
	case webrtc.PeerConnectionStateFailed:
		c.state = domain.StateFailed
		terminal = domain.StateFailed
	case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateClosed:
		c.state = domain.StateClosed
		terminal = domain.StateClosed
	}
	c.mu.Unlock()

	c.logger.Infow("peer connection state changed",
		"peer_id", c.peerID,
		"connection_state", state.String(),
	)

	if terminal != "" {
		c.hooks.onTerminal(c.peerID, terminal)
	}
}

// handleRemoteTrack registers the remote stream once per stream identity.
// Duplicate arrivals under renegotiation are absorbed by the registry.
func (c *peerController) handleRemoteTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	streamID := domain.StreamID(track.StreamID())
	known := false
	for _, id := range c.remoteStreams {
		if id == streamID {
			known = true
			break
		}
	}
	if !known {
		c.remoteStreams = append(c.remoteStreams, streamID)
	}
	c.mu.Unlock()

	c.logger.Infow("remote track arrived",
		"peer_id", c.peerID,
		"stream_id", streamID,
		"codec", track.Codec().MimeType,
	)
	c.hooks.onRemoteStream(c.peerID, streamID)
}

// readRTCP drains receiver reports from one sender and turns them into peer
// quality metrics, until the controller closes.
func (c *peerController) readRTCP(sender *webrtc.RTPSender) {
	var clockRate uint32
	for {
		select {
		case <-c.done:
			return
		default:
		}

		packets, _, err := sender.ReadRTCP()
		if err != nil {
			return
		}
		if clockRate == 0 {
			if params := sender.GetParameters(); len(params.Codecs) > 0 {
				clockRate = params.Codecs[0].ClockRate
			}
		}
		c.processRTCP(packets, clockRate)
	}
}

// processRTCP averages the reception reports in one RTCP compound packet.
// The jitter field is expressed in RTP timestamp units, so it has to be
// scaled by the track clock rate before it means anything in wall time.
func (c *peerController) processRTCP(packets []rtcp.Packet, clockRate uint32) {
	var totalLoss float64
	var totalJitter uint32
	reports := 0

	for _, packet := range packets {
		rr, ok := packet.(*rtcp.ReceiverReport)
		if !ok {
			continue
		}
		for _, report := range rr.Reports {
			totalLoss += float64(report.FractionLost) / 255.0
			totalJitter += report.Jitter
			reports++
		}
	}

	if reports == 0 {
		return
	}
	if clockRate == 0 {
		clockRate = 90000
	}

	loss := totalLoss / float64(reports)
	jitterUnits := uint64(totalJitter / uint32(reports))
	jitter := time.Duration(jitterUnits * uint64(time.Second) / uint64(clockRate))
	c.collector.PeerQuality(c.peerID, loss, jitter)
}

// close shuts the underlying connection down. Any negotiation callback or
// RTCP read resolving afterwards is a no-op.
func (c *peerController) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if !c.state.Terminal() {
		c.state = domain.StateClosed
	}
	close(c.done)
	c.mu.Unlock()

	if err := c.pc.Close(); err != nil {
		c.logger.Warnw("error closing peer connection", "peer_id", c.peerID, "error", err)
	}
}

func (c *peerController) info() domain.PeerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.PeerInfo{
		ID:               c.peerID,
		Role:             c.role,
		State:            c.state,
		QueuedCandidates: len(c.pending),
		RemoteStreams:    append([]domain.StreamID(nil), c.remoteStreams...),
		CreatedAt:        c.createdAt,
	}
}

func (c *peerController) currentState() domain.PeerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
