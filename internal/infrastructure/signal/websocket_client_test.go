package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"roomlink/internal/core/domain"
	apperrors "roomlink/pkg/errors"
)

func signedToken(t *testing.T, expiresIn time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": "tester",
		"exp": time.Now().Add(expiresIn).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

// testRelay is a minimal signaling relay: it upgrades the connection, checks
// the bearer header, issues a welcome and records everything it receives.
type testRelay struct {
	t        *testing.T
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conn     *websocket.Conn
	received []wireMessage
	dials    int

	rejectAuth  bool
	skipWelcome bool
}

func newTestRelay(t *testing.T) *testRelay {
	r := &testRelay{t: t}
	r.server = httptest.NewServer(http.HandlerFunc(r.handle))
	t.Cleanup(r.server.Close)
	return r
}

func (r *testRelay) url() string {
	return "ws" + strings.TrimPrefix(r.server.URL, "http")
}

func (r *testRelay) handle(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	r.dials++
	reject := r.rejectAuth
	r.mu.Unlock()

	auth := req.Header.Get("Authorization")
	if reject || !strings.HasPrefix(auth, "Bearer ") {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}

	r.mu.Lock()
	r.conn = conn
	skipWelcome := r.skipWelcome
	r.mu.Unlock()

	if !skipWelcome {
		payload, _ := json.Marshal(welcomePayload{PeerID: "relay-issued-peer"})
		conn.WriteJSON(wireMessage{Type: msgTypeWelcome, Payload: payload})
	}

	for {
		var wire wireMessage
		if err := conn.ReadJSON(&wire); err != nil {
			return
		}
		r.mu.Lock()
		r.received = append(r.received, wire)
		r.mu.Unlock()
	}
}

func (r *testRelay) push(t *testing.T, wire wireMessage) {
	t.Helper()
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	require.NotNil(t, conn)
	require.NoError(t, conn.WriteJSON(wire))
}

func (r *testRelay) dropConnection() {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (r *testRelay) receivedTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.received))
	for _, wire := range r.received {
		out = append(out, wire.Type)
	}
	return out
}

func (r *testRelay) dialCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dials
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	opts := DefaultOptions()
	opts.PingInterval = 50 * time.Millisecond
	opts.PongTimeout = 5 * time.Second
	client := NewClient(opts, zaptest.NewLogger(t).Sugar())
	t.Cleanup(func() { client.Close() })
	return client
}

func TestClient_ConnectReceivesRelayIssuedIdentity(t *testing.T) {
	relay := newTestRelay(t)
	client := newTestClient(t)

	peerID, err := client.Connect(context.Background(), relay.url(), signedToken(t, time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.PeerID("relay-issued-peer"), peerID)
}

func TestClient_ConnectFailsOfflineOnBadTokens(t *testing.T) {
	relay := newTestRelay(t)
	client := newTestClient(t)

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"not a jwt", "just-some-string"},
		{"expired", signedToken(t, -time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Connect(context.Background(), relay.url(), tt.token)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAuthenticationRequired))
		})
	}

	assert.Equal(t, 0, relay.dialCount(), "bad tokens must never reach the network")
}

func TestClient_ConnectMapsRelayRejectionToAuthError(t *testing.T) {
	relay := newTestRelay(t)
	relay.rejectAuth = true
	client := newTestClient(t)

	_, err := client.Connect(context.Background(), relay.url(), signedToken(t, time.Hour))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAuthenticationRequired))
}

func TestClient_ConnectFailsWithoutWelcome(t *testing.T) {
	relay := newTestRelay(t)
	relay.skipWelcome = true

	// The relay never speaks; the read deadline ends the wait.
	opts := DefaultOptions()
	opts.PongTimeout = 200 * time.Millisecond
	client := NewClient(opts, zaptest.NewLogger(t).Sugar())
	t.Cleanup(func() { client.Close() })

	_, err := client.Connect(context.Background(), relay.url(), signedToken(t, time.Hour))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSignalingConnection))
}

func TestClient_SendsArriveInOrder(t *testing.T) {
	relay := newTestRelay(t)
	client := newTestClient(t)

	_, err := client.Connect(context.Background(), relay.url(), signedToken(t, time.Hour))
	require.NoError(t, err)

	require.NoError(t, client.Send(domain.SignalMessage{Type: domain.SignalDiscover, RoomID: "room-1"}))
	for i := 0; i < 5; i++ {
		require.NoError(t, client.Send(domain.SignalMessage{
			Type:      domain.SignalICECandidate,
			From:      "relay-issued-peer",
			Target:    "other",
			Candidate: "candidate:1 1 UDP 2130706431 127.0.0.1 54321 typ host",
		}))
	}

	require.Eventually(t, func() bool {
		return len(relay.receivedTypes()) == 6
	}, 2*time.Second, 10*time.Millisecond)

	types := relay.receivedTypes()
	assert.Equal(t, string(domain.SignalDiscover), types[0], "discover must arrive first")
	for _, typ := range types[1:] {
		assert.Equal(t, string(domain.SignalICECandidate), typ)
	}
}

func TestClient_DeliversInboundMessagesInReceiptOrder(t *testing.T) {
	relay := newTestRelay(t)
	client := newTestClient(t)

	var mu sync.Mutex
	var got []domain.SignalMessage
	client.OnMessage(func(msg domain.SignalMessage) {
		mu.Lock()
		got = append(got, msg)
		mu.Unlock()
	})

	_, err := client.Connect(context.Background(), relay.url(), signedToken(t, time.Hour))
	require.NoError(t, err)

	relay.push(t, wireMessage{Type: string(domain.SignalDiscovered), Peers: []string{"p1", "p2"}})
	sdp, _ := json.Marshal(sdpPayload{SDP: "v=0"})
	relay.push(t, wireMessage{Type: string(domain.SignalOffer), FromPeer: "p1", Payload: sdp})
	// Missing from_peer: undecodable, dropped without breaking the pump.
	relay.push(t, wireMessage{Type: string(domain.SignalOffer), Payload: sdp})
	relay.push(t, wireMessage{Type: string(domain.SignalRequest), FromPeer: "p2"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, domain.SignalDiscovered, got[0].Type)
	assert.Equal(t, []domain.PeerID{"p1", "p2"}, got[0].Peers)
	assert.Equal(t, domain.SignalOffer, got[1].Type)
	assert.Equal(t, domain.PeerID("p1"), got[1].From)
	assert.Equal(t, domain.SignalRequest, got[2].Type)
	assert.Equal(t, domain.PeerID("p2"), got[2].From)
}

func TestClient_DisconnectObservedExactlyOnce(t *testing.T) {
	relay := newTestRelay(t)
	client := newTestClient(t)

	var mu sync.Mutex
	calls := 0
	client.OnDisconnected(func(err error) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	_, err := client.Connect(context.Background(), relay.url(), signedToken(t, time.Hour))
	require.NoError(t, err)

	relay.dropConnection()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Give competing paths a chance to double-fire, then recheck.
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestClient_LocalCloseDoesNotFireDisconnect(t *testing.T) {
	relay := newTestRelay(t)
	client := newTestClient(t)

	var mu sync.Mutex
	calls := 0
	client.OnDisconnected(func(err error) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	_, err := client.Connect(context.Background(), relay.url(), signedToken(t, time.Hour))
	require.NoError(t, err)

	require.NoError(t, client.Close())
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, calls, "deliberate close must not look like a disconnect")

	assert.Error(t, client.Send(domain.SignalMessage{Type: domain.SignalDiscover, RoomID: "room-1"}))
}
