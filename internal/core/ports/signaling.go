package ports

import (
	"context"

	"roomlink/internal/core/domain"
)

// SignalChannel is the reliable, ordered, bidirectional message channel to
// the signaling relay. Implementations must deliver messages to the
// registered handler in receipt order from a single goroutine, and report a
// disconnect exactly once.
type SignalChannel interface {
	// Connect establishes the relay connection carrying the bearer token
	// and returns the peer identity the relay assigned to this client.
	// A missing or malformed token fails fast without any network attempt.
	Connect(ctx context.Context, endpoint, token string) (domain.PeerID, error)

	// Send transmits one message. Sends are FIFO per connection.
	Send(msg domain.SignalMessage) error

	// OnMessage registers the single inbound handler. Must be called
	// before Connect.
	OnMessage(handler func(domain.SignalMessage))

	// OnDisconnected registers the disconnect observer. Invoked exactly
	// once per established connection, with the cause when known.
	OnDisconnected(handler func(error))

	Close() error
}
