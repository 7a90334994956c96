package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"roomlink/internal/core/domain"
	"roomlink/internal/core/ports"
	apperrors "roomlink/pkg/errors"
)

// Options tunes the WebSocket signaling client.
type Options struct {
	PingInterval     time.Duration
	PongTimeout      time.Duration
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
	// SendRate/SendBurst bound outbound message rate; candidate storms
	// are smoothed instead of flooding the relay. Waiting preserves FIFO.
	SendRate  float64
	SendBurst int
}

// DefaultOptions returns client defaults matching the config package.
func DefaultOptions() Options {
	return Options{
		PingInterval:     30 * time.Second,
		PongTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		SendRate:         50,
		SendBurst:        100,
	}
}

// Client is the WebSocket implementation of ports.SignalChannel. One
// read-pump goroutine delivers inbound messages in receipt order; sends are
// serialized by a write mutex.
type Client struct {
	opts    Options
	logger  *zap.SugaredLogger
	limiter *rate.Limiter

	onMessage      func(domain.SignalMessage)
	onDisconnected func(error)

	writeMu sync.Mutex
	conn    *websocket.Conn

	mu             sync.Mutex
	peerID         domain.PeerID
	connected      bool
	closed         bool
	disconnectOnce *sync.Once
	cancelSend     context.CancelFunc
	sendCtx        context.Context
}

var _ ports.SignalChannel = (*Client)(nil)

func NewClient(opts Options, logger *zap.SugaredLogger) *Client {
	return &Client{
		opts:    opts,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(opts.SendRate), opts.SendBurst),
	}
}

func (c *Client) OnMessage(handler func(domain.SignalMessage)) {
	c.onMessage = handler
}

func (c *Client) OnDisconnected(handler func(error)) {
	c.onDisconnected = handler
}

// Connect validates the bearer token offline, dials the relay and waits for
// the welcome message carrying the relay-issued peer identity.
func (c *Client) Connect(ctx context.Context, endpoint, token string) (domain.PeerID, error) {
	if err := validateBearerToken(token); err != nil {
		return "", err
	}

	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return "", fmt.Errorf("signaling channel already connected")
	}
	c.mu.Unlock()

	dialer := &websocket.Dialer{HandshakeTimeout: c.opts.HandshakeTimeout}
	header := http.Header{"Authorization": []string{"Bearer " + token}}

	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return "", apperrors.WrapError(err, apperrors.ErrCodeAuthenticationRequired, "relay rejected auth token")
		}
		return "", apperrors.NewSignalingConnectionError(err, "failed to dial signaling relay")
	}

	conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
		return nil
	})

	peerID, err := c.readWelcome(conn)
	if err != nil {
		conn.Close()
		return "", err
	}

	sendCtx, cancelSend := context.WithCancel(context.Background())

	c.mu.Lock()
	c.conn = conn
	c.peerID = peerID
	c.connected = true
	c.closed = false
	c.disconnectOnce = &sync.Once{}
	c.sendCtx = sendCtx
	c.cancelSend = cancelSend
	c.mu.Unlock()

	go c.readPump(conn)
	go c.pingLoop(conn)

	c.logger.Infow("signaling channel connected", "endpoint", endpoint, "peer_id", peerID)
	return peerID, nil
}

func (c *Client) readWelcome(conn *websocket.Conn) (domain.PeerID, error) {
	var wire wireMessage
	if err := conn.ReadJSON(&wire); err != nil {
		return "", apperrors.NewSignalingConnectionError(err, "no welcome from relay")
	}
	if wire.Type != msgTypeWelcome {
		return "", apperrors.NewSignalingConnectionError(nil, fmt.Sprintf("expected welcome, got %q", wire.Type))
	}
	var payload welcomePayload
	if err := json.Unmarshal(wire.Payload, &payload); err != nil || payload.PeerID == "" {
		return "", apperrors.NewSignalingConnectionError(err, "welcome missing peer identity")
	}
	return domain.PeerID(payload.PeerID), nil
}

// Send transmits one message FIFO. It blocks on the rate limiter so bursts
// of ICE candidates are paced, never reordered or dropped.
func (c *Client) Send(msg domain.SignalMessage) error {
	c.mu.Lock()
	conn := c.conn
	sendCtx := c.sendCtx
	if !c.connected || conn == nil {
		c.mu.Unlock()
		return apperrors.NewSignalingConnectionError(nil, "signaling channel not connected")
	}
	c.mu.Unlock()

	wire, err := encodeMessage(msg)
	if err != nil {
		return err
	}

	if err := c.limiter.Wait(sendCtx); err != nil {
		return apperrors.NewSignalingConnectionError(err, "send cancelled")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err := conn.WriteJSON(wire); err != nil {
		return apperrors.NewSignalingConnectionError(err, "failed to send signaling message")
	}
	return nil
}

func (c *Client) readPump(conn *websocket.Conn) {
	for {
		var wire wireMessage
		if err := conn.ReadJSON(&wire); err != nil {
			c.handleReadError(err)
			return
		}
		conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))

		msg, err := decodeMessage(&wire)
		if err != nil {
			c.logger.Warnw("dropping undecodable signaling message", "type", wire.Type, "error", err)
			continue
		}
		if c.onMessage != nil {
			c.onMessage(msg)
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.sendCtx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				// Read pump will observe the broken connection
				// and run the single disconnect path.
				c.logger.Warnw("ping failed", "error", err)
				conn.Close()
				return
			}
		}
	}
}

func (c *Client) handleReadError(err error) {
	c.mu.Lock()
	closed := c.closed
	once := c.disconnectOnce
	if c.cancelSend != nil {
		c.cancelSend()
	}
	c.connected = false
	c.mu.Unlock()

	if closed || once == nil {
		return
	}
	once.Do(func() {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			c.logger.Warnw("signaling connection lost", "error", err)
		} else {
			c.logger.Infow("signaling connection closed", "error", err)
		}
		if c.onDisconnected != nil {
			c.onDisconnected(apperrors.NewSignalingConnectionError(err, "signaling connection lost"))
		}
	})
}

// Close tears the connection down deliberately; the disconnect handler is
// not invoked for a local close.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.connected = false
	conn := c.conn
	c.conn = nil
	if c.cancelSend != nil {
		c.cancelSend()
	}
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "leaving"))
	c.writeMu.Unlock()

	return conn.Close()
}
