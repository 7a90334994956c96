package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"roomlink/internal/core/domain"
	"roomlink/internal/core/ports"
	apperrors "roomlink/pkg/errors"
	"roomlink/pkg/tracing"
)

// SessionConfig carries the per-join options recognized by the session.
type SessionConfig struct {
	RoomID      domain.RoomID
	Endpoint    string
	AuthToken   string
	ICEServers  []webrtc.ICEServer
	Constraints ports.MediaConstraints
	EventBuffer int
}

// roomSession owns room membership: it creates and destroys one peer
// controller per discovered peer, routes signaling messages to them, and
// fans local stream changes out to all of them. Every mutation of session
// state is serialized through s.mu; the signaling read pump and pion
// callbacks all funnel through it.
type roomSession struct {
	cfg       SessionConfig
	channel   ports.SignalChannel
	media     ports.MediaSource
	registry  ports.StreamRegistry
	collector ports.Collector
	logger    *zap.SugaredLogger

	events chan domain.Event

	mu          sync.Mutex
	selfID      domain.PeerID
	room        *domain.Room
	controllers map[domain.PeerID]*peerController
	localMedia  ports.LocalMedia
	screenMedia ports.LocalMedia
	joined      bool
}

func NewRoomSession(
	cfg SessionConfig,
	channel ports.SignalChannel,
	media ports.MediaSource,
	registry ports.StreamRegistry,
	collector ports.Collector,
	logger *zap.SugaredLogger,
) ports.RoomSession {
	if collector == nil {
		collector = ports.NopCollector{}
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}

	s := &roomSession{
		cfg:         cfg,
		channel:     channel,
		media:       media,
		registry:    registry,
		collector:   collector,
		logger:      logger,
		events:      make(chan domain.Event, cfg.EventBuffer),
		controllers: make(map[domain.PeerID]*peerController),
	}

	channel.OnMessage(s.handleSignal)
	channel.OnDisconnected(s.handleDisconnect)
	return s
}

// Join acquires local media, connects to the relay and starts discovery. A
// missing auth token fails before any media or network activity.
func (s *roomSession) Join(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "room.join")
	defer span.End()

	if s.cfg.AuthToken == "" {
		err := apperrors.NewAuthenticationRequiredError("no auth token configured")
		tracing.RecordError(span, err)
		return err
	}

	s.mu.Lock()
	if s.joined {
		s.mu.Unlock()
		return domain.ErrAlreadyJoined
	}
	s.mu.Unlock()

	local, err := s.media.AcquireLocalMedia(ctx, s.cfg.Constraints)
	if err != nil {
		err = apperrors.NewMediaAcquisitionError(err, "failed to acquire local media")
		s.emit(domain.Event{Type: domain.EventMediaError, Err: err})
		tracing.RecordError(span, err)
		return err
	}

	selfID, err := s.channel.Connect(ctx, s.cfg.Endpoint, s.cfg.AuthToken)
	if err != nil {
		local.Stop()
		if !apperrors.HasCode(err, apperrors.ErrCodeAuthenticationRequired) {
			s.emit(domain.Event{Type: domain.EventSocketError, Err: err})
		}
		tracing.RecordError(span, err)
		return err
	}

	s.mu.Lock()
	s.selfID = selfID
	s.room = domain.NewRoom(s.cfg.RoomID)
	s.localMedia = local
	s.joined = true
	s.mu.Unlock()

	s.registry.Add(domain.MediaStreamEntry{
		ID:     domain.StreamID(local.ID()),
		Origin: domain.OriginLocalCamera,
		Muted:  true, // suppress local echo
	})

	if err := s.sendSignal(domain.SignalMessage{
		Type:   domain.SignalDiscover,
		RoomID: s.cfg.RoomID,
	}); err != nil {
		s.Leave()
		tracing.RecordError(span, err)
		return err
	}

	s.emit(domain.Event{Type: domain.EventOpenedRoom, RoomID: s.cfg.RoomID})
	s.emit(domain.Event{Type: domain.EventJoinedRoom, StreamID: domain.StreamID(local.ID())})

	s.logger.Infow("joined room", "room_id", s.cfg.RoomID, "self_id", selfID)
	return nil
}

// handleSignal is the single message router: every relay message lands here
// in receipt order and is dispatched to the controller keyed by the
// originating peer identity.
func (s *roomSession) handleSignal(msg domain.SignalMessage) {
	s.collector.SignalMessage("inbound", msg.Type)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.joined {
		return
	}

	switch msg.Type {
	case domain.SignalDiscovered:
		s.handleDiscoveredLocked(msg.Peers)
	case domain.SignalRequest:
		s.handleRequestLocked(msg.From)
	case domain.SignalOffer:
		s.handleOfferLocked(msg.From, msg.SDP)
	case domain.SignalAnswer:
		s.handleAnswerLocked(msg.From, msg.SDP)
	case domain.SignalICECandidate:
		s.handleCandidateLocked(msg.From, msg.Candidate)
	default:
		s.logger.Warnw("dropping signaling message of unknown type", "type", msg.Type)
	}
}

// handleDiscoveredLocked creates one initiator controller per listed peer.
func (s *roomSession) handleDiscoveredLocked(peers []domain.PeerID) {
	for _, peer := range peers {
		if peer == s.selfID {
			continue
		}
		if _, exists := s.controllers[peer]; exists {
			continue
		}

		ctrl, err := s.newControllerLocked(peer, domain.RoleInitiator)
		if err != nil {
			s.reportPeerErrorLocked(peer, err)
			continue
		}
		if err := ctrl.startInitiator(s.localTracksLocked()); err != nil {
			s.failControllerLocked(peer, err)
		}
	}
}

// handleRequestLocked prepares a responder controller for a peer that is
// about to send an offer. Idempotent when one already exists.
func (s *roomSession) handleRequestLocked(peer domain.PeerID) {
	if peer == "" || peer == s.selfID {
		return
	}
	if _, exists := s.controllers[peer]; exists {
		return
	}
	if _, err := s.newControllerLocked(peer, domain.RoleResponder); err != nil {
		s.reportPeerErrorLocked(peer, err)
	}
}

// handleOfferLocked runs the responder path, resolving glare when both sides
// initiated simultaneously: the lexicographically smaller peer identity
// keeps the initiator role, the other side discards its own offer attempt
// and answers instead.
func (s *roomSession) handleOfferLocked(peer domain.PeerID, sdp string) {
	if peer == "" || peer == s.selfID {
		return
	}

	ctrl, exists := s.controllers[peer]
	if exists && ctrl.role == domain.RoleInitiator {
		if s.selfID < peer {
			s.logger.Infow("glare: keeping initiator role, dropping remote offer",
				"peer_id", peer, "self_id", s.selfID)
			return
		}
		s.logger.Infow("glare: yielding initiator role to peer",
			"peer_id", peer, "self_id", s.selfID)
		s.destroyControllerLocked(peer)
		exists = false
	}

	if !exists {
		created, err := s.newControllerLocked(peer, domain.RoleResponder)
		if err != nil {
			s.reportPeerErrorLocked(peer, err)
			return
		}
		ctrl = created
	}

	if err := ctrl.handleOffer(sdp, s.localTracksLocked()); err != nil {
		s.failControllerLocked(peer, err)
	}
}

func (s *roomSession) handleAnswerLocked(peer domain.PeerID, sdp string) {
	ctrl, exists := s.controllers[peer]
	if !exists {
		s.dropUnknownPeerLocked(peer, domain.SignalAnswer)
		return
	}
	if err := ctrl.handleAnswer(sdp); err != nil {
		s.failControllerLocked(peer, err)
	}
}

func (s *roomSession) handleCandidateLocked(peer domain.PeerID, candidate string) {
	ctrl, exists := s.controllers[peer]
	if !exists {
		s.dropUnknownPeerLocked(peer, domain.SignalICECandidate)
		return
	}
	if err := ctrl.addCandidate(candidate); err != nil {
		// A bad candidate is not fatal to the connection; report and
		// keep negotiating.
		s.reportPeerErrorLocked(peer, err)
	}
}

// dropUnknownPeerLocked logs and drops a message addressed from a peer with
// no controller. Non-fatal: peers race with their own departure.
func (s *roomSession) dropUnknownPeerLocked(peer domain.PeerID, msgType domain.SignalType) {
	s.logger.Warnw("dropping message for unknown peer",
		"peer_id", peer,
		"type", msgType,
		"error", domain.ErrPeerNotFound,
	)
}

func (s *roomSession) newControllerLocked(peer domain.PeerID, role domain.NegotiationRole) (*peerController, error) {
	ctrl, err := newPeerController(
		peer,
		s.selfID,
		role,
		webrtc.Configuration{ICEServers: s.cfg.ICEServers},
		controllerHooks{
			send:           s.sendSignal,
			onRemoteStream: s.handleRemoteStream,
			onTerminal:     s.handlePeerTerminal,
		},
		s.collector,
		s.logger,
	)
	if err != nil {
		return nil, err
	}

	s.controllers[peer] = ctrl
	s.room.AddPeer(peer)
	return ctrl, nil
}

// handleRemoteStream registers a remote peer's stream; duplicate arrivals
// are absorbed by the registry's idempotent Add.
func (s *roomSession) handleRemoteStream(peer domain.PeerID, streamID domain.StreamID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.joined {
		return
	}
	if _, exists := s.controllers[peer]; !exists {
		return
	}

	s.registry.Add(domain.MediaStreamEntry{
		ID:        streamID,
		Origin:    domain.OriginRemote,
		OwnerPeer: peer,
	})
}

// handlePeerTerminal removes a controller whose transport reported a
// terminal state. Invoked from pion goroutines; a no-op once the room has
// been left.
func (s *roomSession) handlePeerTerminal(peer domain.PeerID, state domain.PeerState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.joined {
		return
	}
	if _, exists := s.controllers[peer]; !exists {
		return
	}

	if state == domain.StateFailed {
		s.reportPeerErrorLocked(peer, apperrors.NewNegotiationError(nil, "peer connection failed"))
	}
	s.destroyControllerLocked(peer)
}

// failControllerLocked contains a per-peer negotiation failure: the peer's
// controller is destroyed, the room and other peers keep running.
func (s *roomSession) failControllerLocked(peer domain.PeerID, err error) {
	s.reportPeerErrorLocked(peer, err)
	s.destroyControllerLocked(peer)
}

func (s *roomSession) reportPeerErrorLocked(peer domain.PeerID, err error) {
	s.logger.Warnw("peer error", "peer_id", peer, "error", err)
	s.emit(domain.Event{Type: domain.EventPeerError, PeerID: peer, Err: err})
}

// destroyControllerLocked closes the controller and deregisters every
// stream entry owned by the departing peer. A renegotiating peer can have
// contributed more than one stream.
func (s *roomSession) destroyControllerLocked(peer domain.PeerID) {
	ctrl, exists := s.controllers[peer]
	if !exists {
		return
	}

	for _, entry := range s.registry.Snapshot() {
		if entry.OwnerPeer == peer {
			s.registry.Remove(entry.ID)
		}
	}
	state := ctrl.currentState()
	ctrl.close()

	delete(s.controllers, peer)
	s.room.RemovePeer(peer)
	s.collector.PeerRemoved(state)
}

// handleDisconnect surfaces an unexpected relay disconnect. The core does
// not reconnect on its own; established peer connections keep flowing.
func (s *roomSession) handleDisconnect(err error) {
	s.mu.Lock()
	joined := s.joined
	s.mu.Unlock()

	if !joined {
		return
	}
	s.logger.Warnw("signaling channel disconnected", "error", err)
	s.emit(domain.Event{Type: domain.EventSocketError, Err: err})
}

// ShareScreen acquires display media and fans its tracks out to every live
// controller, renegotiating each connection.
func (s *roomSession) ShareScreen(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "room.share_screen")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.joined {
		return domain.ErrNotJoined
	}
	if s.screenMedia != nil {
		return fmt.Errorf("screen share already active")
	}

	screen, err := s.media.AcquireDisplayMedia(ctx)
	if err != nil {
		err = apperrors.NewMediaAcquisitionError(err, "failed to acquire display media")
		s.emit(domain.Event{Type: domain.EventMediaError, Err: err})
		tracing.RecordError(span, err)
		return err
	}
	s.screenMedia = screen

	s.registry.Add(domain.MediaStreamEntry{
		ID:     domain.StreamID(screen.ID()),
		Origin: domain.OriginLocalScreen,
	})

	for peer, ctrl := range s.controllers {
		if err := ctrl.renegotiate(screen.Tracks()); err != nil {
			s.reportPeerErrorLocked(peer, err)
		}
	}

	s.emit(domain.Event{Type: domain.EventShareStarted, StreamID: domain.StreamID(screen.ID())})
	return nil
}

// Leave tears the session down: local media stops first so every controller
// sees dead tracks before its connection closes, then controllers, channel
// and registry go in that order. Idempotent.
func (s *roomSession) Leave() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.joined {
		return nil
	}
	s.joined = false

	if s.screenMedia != nil {
		s.screenMedia.Stop()
		s.screenMedia = nil
	}
	if s.localMedia != nil {
		s.localMedia.Stop()
		s.localMedia = nil
	}

	for peer, ctrl := range s.controllers {
		state := ctrl.currentState()
		ctrl.close()
		s.collector.PeerRemoved(state)
		delete(s.controllers, peer)
	}

	if err := s.channel.Close(); err != nil {
		s.logger.Warnw("error closing signaling channel", "error", err)
	}

	s.registry.Clear()

	roomID := s.cfg.RoomID
	s.room = nil
	s.emit(domain.Event{Type: domain.EventLeftRoom, RoomID: roomID})
	s.logger.Infow("left room", "room_id", roomID)
	return nil
}

func (s *roomSession) sendSignal(msg domain.SignalMessage) error {
	s.collector.SignalMessage("outbound", msg.Type)
	return s.channel.Send(msg)
}

// emit delivers an event without ever blocking the session; a full buffer
// drops the event with a log record.
func (s *roomSession) emit(event domain.Event) {
	select {
	case s.events <- event:
	default:
		s.logger.Warnw("event buffer full, dropping event", "type", event.Type)
	}
}

func (s *roomSession) Events() <-chan domain.Event {
	return s.events
}

func (s *roomSession) RoomID() domain.RoomID {
	return s.cfg.RoomID
}

func (s *roomSession) SelfID() domain.PeerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selfID
}

func (s *roomSession) Peers() []domain.PeerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.PeerInfo, 0, len(s.controllers))
	for _, ctrl := range s.controllers {
		out = append(out, ctrl.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *roomSession) Streams() []domain.MediaStreamEntry {
	return s.registry.Snapshot()
}

// localTracksLocked returns every live local track: camera/mic plus screen
// share when active.
func (s *roomSession) localTracksLocked() []webrtc.TrackLocal {
	var tracks []webrtc.TrackLocal
	if s.localMedia != nil {
		tracks = append(tracks, s.localMedia.Tracks()...)
	}
	if s.screenMedia != nil {
		tracks = append(tracks, s.screenMedia.Tracks()...)
	}
	return tracks
}
