package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	// RoomIDRegex validates room identifier format.
	RoomIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// PeerIDRegex validates peer identifier format.
	PeerIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ValidateRoomID validates a room identifier.
func ValidateRoomID(roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return fmt.Errorf("room id is required")
	}
	if len(roomID) > 100 {
		return fmt.Errorf("room id is too long (max 100 characters)")
	}
	if !RoomIDRegex.MatchString(roomID) {
		return fmt.Errorf("room id contains invalid characters (only letters, numbers, _, - allowed)")
	}
	return nil
}

// ValidatePeerID validates a relay-issued peer identifier.
func ValidatePeerID(peerID string) error {
	if peerID == "" {
		return fmt.Errorf("peer id is required")
	}
	if len(peerID) > 100 {
		return fmt.Errorf("peer id is too long (max 100 characters)")
	}
	if !PeerIDRegex.MatchString(peerID) {
		return fmt.Errorf("peer id contains invalid characters")
	}
	return nil
}

// ValidateSignalingEndpoint checks the relay endpoint URL. Only wss:// is
// accepted unless allowInsecure is set (tests use plain ws://).
func ValidateSignalingEndpoint(endpoint string, allowInsecure bool) error {
	if endpoint == "" {
		return fmt.Errorf("signaling endpoint is required")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid signaling endpoint: %w", err)
	}
	switch u.Scheme {
	case "wss":
	case "ws":
		if !allowInsecure {
			return fmt.Errorf("signaling endpoint must use wss://")
		}
	default:
		return fmt.Errorf("signaling endpoint must be a websocket URL, got scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("signaling endpoint has no host")
	}
	return nil
}
