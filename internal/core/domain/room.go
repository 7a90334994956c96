package domain

type RoomID string
type PeerID string
type StreamID string

// Room tracks the remote peers known to the local participant. It is created
// when a join succeeds and destroyed on leave; peers come and go as the relay
// reports them or their connections die.
type Room struct {
	ID    RoomID
	peers map[PeerID]struct{}
}

func NewRoom(id RoomID) *Room {
	return &Room{
		ID:    id,
		peers: make(map[PeerID]struct{}),
	}
}

func (r *Room) AddPeer(id PeerID) {
	r.peers[id] = struct{}{}
}

func (r *Room) RemovePeer(id PeerID) {
	delete(r.peers, id)
}

func (r *Room) HasPeer(id PeerID) bool {
	_, ok := r.peers[id]
	return ok
}

func (r *Room) PeerCount() int {
	return len(r.peers)
}

// Peers returns a copy of the known remote peer set.
func (r *Room) Peers() []PeerID {
	out := make([]PeerID, 0, len(r.peers))
	for id := range r.peers {
		out = append(out, id)
	}
	return out
}
