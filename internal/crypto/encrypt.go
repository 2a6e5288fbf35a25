package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/AlexZinkM/abc-core/internal/model"
	"github.com/AlexZinkM/abc-core/platform"
)

const (
	// BoxTypeAESGCM is the only box format written.
	BoxTypeAESGCM = 1

	KeyLen   = 32
	nonceLen = 12
)

// Encrypt seals plaintext with a 32-byte key.
// random must be the context's secure source.
func Encrypt(random platform.RandomFunc, plaintext, key []byte) (*model.EncryptedBox, error) {
	aesGCM, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce, err := random(nonceLen)
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	if len(nonce) != nonceLen {
		return nil, fmt.Errorf("random source returned %d bytes, want %d", len(nonce), nonceLen)
	}

	ciphertext := aesGCM.Seal(nil, nonce, plaintext, nil)
	return &model.EncryptedBox{
		EncryptionType: BoxTypeAESGCM,
		IVHex:          hex.EncodeToString(nonce),
		DataBase64:     base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

// EncryptJSON marshals v and seals it.
func EncryptJSON(random platform.RandomFunc, v any, key []byte) (*model.EncryptedBox, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal box payload: %w", err)
	}
	defer clear(plaintext) // wipe plaintext bytes from memory

	return Encrypt(random, plaintext, key)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeyLen {
		return nil, fmt.Errorf("box key must be %d bytes, got %d", KeyLen, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aesGCM, nil
}
