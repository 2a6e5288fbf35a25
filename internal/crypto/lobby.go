package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/AlexZinkM/abc-core/platform"
)

const lobbyKeyInfo = "edge-login lobby reply"

// LobbyID derives a lobby id from the requester's public key, so only the
// key holder can open a lobby under that id.
func LobbyID(publicKey []byte) string {
	hash := sha256.Sum256(publicKey)
	return base58.Encode(hash[:10])
}

// LobbyKeyPair makes an X25519 key pair for one lobby handshake.
func LobbyKeyPair(random platform.RandomFunc) (private, public []byte, err error) {
	private, err = random(curve25519.ScalarSize)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate lobby key: %w", err)
	}
	if len(private) != curve25519.ScalarSize {
		return nil, nil, fmt.Errorf("random source returned %d bytes, want %d", len(private), curve25519.ScalarSize)
	}
	public, err = curve25519.X25519(private, curve25519.Basepoint)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to derive lobby public key: %w", err)
	}
	return private, public, nil
}

// LobbySharedKey agrees on the box key for a lobby reply. Both sides get the
// same key from their own private key and the other's public key.
func LobbySharedKey(private, peerPublic []byte, lobbyID string) ([]byte, error) {
	shared, err := curve25519.X25519(private, peerPublic)
	if err != nil {
		return nil, fmt.Errorf("failed to agree on lobby key: %w", err)
	}
	defer clear(shared)

	key := make([]byte, KeyLen)
	r := hkdf.New(sha256.New, shared, []byte(lobbyID), []byte(lobbyKeyInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to expand lobby key: %w", err)
	}
	return key, nil
}
