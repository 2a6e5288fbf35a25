package crypto

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AlexZinkM/abc-core/internal/model"
)

// ErrBadKey is returned when a box does not open with the given key.
var ErrBadKey = errors.New("box does not open with this key")

// Decrypt opens a box. Callers should clear the result after use.
func Decrypt(box *model.EncryptedBox, key []byte) ([]byte, error) {
	if box == nil {
		return nil, errors.New("box is missing")
	}
	if box.EncryptionType != BoxTypeAESGCM {
		return nil, fmt.Errorf("unsupported box type %d", box.EncryptionType)
	}

	nonce, err := hex.DecodeString(box.IVHex)
	if err != nil || len(nonce) != nonceLen {
		return nil, errors.New("failed to decode nonce")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(box.DataBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	aesGCM, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrBadKey
	}
	return plaintext, nil
}

// DecryptJSON opens a box and unmarshals it into v.
func DecryptJSON(box *model.EncryptedBox, key []byte, v any) error {
	plaintext, err := Decrypt(box, key)
	if err != nil {
		return err
	}
	defer clear(plaintext) // wipe decrypted bytes from memory

	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("failed to unmarshal box payload: %w", err)
	}
	return nil
}
