package model

import "time"

// LobbyLoginRequest describes the application asking for an edge login.
type LobbyLoginRequest struct {
	AppID           string `json:"appId"`
	DisplayName     string `json:"displayName,omitempty"`
	DisplayImageURL string `json:"displayImageUrl,omitempty"`
}

// CreateLobbyRequest is the body of POST /api/v2/lobby/{id}.
type CreateLobbyRequest struct {
	PublicKey    string            `json:"publicKey"`
	LoginRequest LobbyLoginRequest `json:"loginRequest"`
	// Timeout is the lobby lifetime in seconds.
	Timeout int64 `json:"timeout"`
}

// LobbyReply is the approving device's answer, encrypted to the requester.
type LobbyReply struct {
	PublicKey string       `json:"publicKey"`
	Box       EncryptedBox `json:"box"`
}

// Lobby is returned by GET /api/v2/lobby/{id}.
type Lobby struct {
	ID           string            `json:"id"`
	PublicKey    string            `json:"publicKey"`
	LoginRequest LobbyLoginRequest `json:"loginRequest"`
	Reply        *LobbyReply       `json:"reply,omitempty"`
	ExpiresAt    time.Time         `json:"expiresAt"`
}

// EdgeLoginPayload is the plaintext inside LobbyReply.Box.
type EdgeLoginPayload struct {
	Username string `json:"username"`
	LoginKey string `json:"loginKey"`
	OtpKey   string `json:"otpKey,omitempty"`
}
