package utils

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// GenerateRoomID returns a securely random 40-hex-digit room identifier,
// used when the caller does not name a room explicitly.
func GenerateRoomID() string {
	b := make([]byte, 20)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// GenerateStreamID returns a unique identifier for a locally created media
// stream.
func GenerateStreamID() string {
	return uuid.NewString()
}
