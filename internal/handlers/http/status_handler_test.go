package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomlink/internal/core/domain"
)

type stubSession struct {
	peers   []domain.PeerInfo
	streams []domain.MediaStreamEntry
}

func (s *stubSession) Join(ctx context.Context) error        { return nil }
func (s *stubSession) Leave() error                          { return nil }
func (s *stubSession) ShareScreen(ctx context.Context) error { return nil }
func (s *stubSession) Events() <-chan domain.Event           { return nil }
func (s *stubSession) RoomID() domain.RoomID                 { return "room-1" }
func (s *stubSession) SelfID() domain.PeerID                 { return "self" }
func (s *stubSession) Peers() []domain.PeerInfo              { return s.peers }
func (s *stubSession) Streams() []domain.MediaStreamEntry    { return s.streams }

func newTestServer(t *testing.T, session *stubSession) *httptest.Server {
	t.Helper()
	server := NewServer("127.0.0.1:0", NewStatusHandler(session), nil)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string) map[string]interface{} {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestStatusHandler_GetRoom(t *testing.T) {
	session := &stubSession{
		peers: []domain.PeerInfo{
			{ID: "p1", Role: domain.RoleInitiator, State: domain.StateConnected},
		},
	}
	ts := newTestServer(t, session)

	body := getJSON(t, ts.URL+"/api/v1/room")
	assert.Equal(t, "room-1", body["room_id"])
	assert.Equal(t, "self", body["self_id"])
	assert.Equal(t, float64(1), body["peer_count"])
}

func TestStatusHandler_GetStreams(t *testing.T) {
	session := &stubSession{
		streams: []domain.MediaStreamEntry{
			{ID: "camera", Origin: domain.OriginLocalCamera, Muted: true},
			{ID: "remote-1", Origin: domain.OriginRemote, OwnerPeer: "p1"},
		},
	}
	ts := newTestServer(t, session)

	body := getJSON(t, ts.URL+"/api/v1/streams")
	streams, ok := body["streams"].([]interface{})
	require.True(t, ok)
	assert.Len(t, streams, 2)
}

func TestStatusHandler_Health(t *testing.T) {
	ts := newTestServer(t, &stubSession{})

	body := getJSON(t, ts.URL+"/health")
	assert.Equal(t, "ok", body["status"])
}
