package login

import (
	"encoding/base64"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/AlexZinkM/abc-core/abc"
	"github.com/AlexZinkM/abc-core/internal/crypto"
	"github.com/AlexZinkM/abc-core/platform"
)

// UserID hashes a fixed username into the id the server knows it by.
func UserID(scrypt platform.ScryptFunc, username string) (string, error) {
	hash, err := crypto.DeriveKey(scrypt, []byte(username), &crypto.UserIDSnrp)
	if err != nil {
		return "", fmt.Errorf("failed to derive user id: %w", err)
	}
	return base58.Encode(hash), nil
}

// LoginAuth is the server-side proof of possession of a login key.
func LoginAuth(loginKey []byte, userID string) string {
	return loginAuth(loginKey, userID)
}

func passwordAuth(scrypt platform.ScryptFunc, username, password string) (string, error) {
	data := []byte(username + password)
	defer clear(data)

	hash, err := crypto.DeriveKey(scrypt, data, &crypto.UserIDSnrp)
	if err != nil {
		return "", fmt.Errorf("failed to derive password auth: %w", err)
	}
	return base64.StdEncoding.EncodeToString(hash), nil
}

func pin2ID(pin2Key []byte, username string) string {
	return base58.Encode(crypto.HMAC(pin2Key, []byte(username)))
}

func pin2Auth(pin2Key []byte, pin string) string {
	return base64.StdEncoding.EncodeToString(crypto.HMAC(pin2Key, []byte(pin)))
}

func pin2BoxKey(pin2Key []byte, pin string) []byte {
	return crypto.HMAC(pin2Key, []byte("box:"+pin))
}

func recovery2ID(recovery2Key []byte, username string) string {
	return base58.Encode(crypto.HMAC(recovery2Key, []byte(username)))
}

func recovery2Auth(recovery2Key []byte, answers []string) []string {
	out := make([]string, len(answers))
	for i, answer := range answers {
		out[i] = base64.StdEncoding.EncodeToString(crypto.HMAC(recovery2Key, []byte(answer)))
	}
	return out
}

// decodeRecovery2Key accepts the base58 form handed to the user.
func decodeRecovery2Key(key string) ([]byte, error) {
	raw, err := base58.Decode(key)
	if err != nil || len(raw) != crypto.KeyLen {
		return nil, &abc.AuthError{}
	}
	return raw, nil
}
