package validation

import "testing"

func TestValidateRoomID(t *testing.T) {
	tests := []struct {
		name    string
		roomID  string
		wantErr bool
	}{
		{"valid", "abc123", false},
		{"valid with separators", "team_standup-42", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"invalid characters", "room with spaces", true},
		{"too long", string(make([]byte, 101)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRoomID(tt.roomID)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRoomID(%q) error = %v, wantErr %v", tt.roomID, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePeerID(t *testing.T) {
	if err := ValidatePeerID("peer_1691-abc"); err != nil {
		t.Errorf("ValidatePeerID() unexpected error: %v", err)
	}
	if err := ValidatePeerID(""); err == nil {
		t.Error("ValidatePeerID(\"\") should fail")
	}
	if err := ValidatePeerID("peer/1"); err == nil {
		t.Error("ValidatePeerID should reject slashes")
	}
}

func TestValidateSignalingEndpoint(t *testing.T) {
	tests := []struct {
		name          string
		endpoint      string
		allowInsecure bool
		wantErr       bool
	}{
		{"secure", "wss://relay.example.com/ws", false, false},
		{"insecure rejected", "ws://relay.example.com/ws", false, true},
		{"insecure allowed", "ws://127.0.0.1:8081/ws", true, false},
		{"http scheme", "https://relay.example.com", false, true},
		{"empty", "", false, true},
		{"no host", "wss://", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSignalingEndpoint(tt.endpoint, tt.allowInsecure)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSignalingEndpoint(%q, %v) error = %v, wantErr %v",
					tt.endpoint, tt.allowInsecure, err, tt.wantErr)
			}
		})
	}
}
