package platform

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// FetchFunc performs one HTTP round trip.
type FetchFunc func(req *http.Request) (*http.Response, error)

// RandomFunc returns n cryptographically secure random bytes.
type RandomFunc func(n int) ([]byte, error)

// ScryptFunc derives keyLen bytes with scrypt.
type ScryptFunc func(data, salt []byte, n, r, p, keyLen int) ([]byte, error)

// Pbkdf2Func derives keyLen bytes with PBKDF2. Algorithm is sha1, sha256 or sha512.
type Pbkdf2Func func(key, salt []byte, iterations, keyLen int, algorithm string) ([]byte, error)

// RawIO is the capability set supplied by the host. Fetch and Random are
// required; the rest fall back to in-process implementations.
type RawIO struct {
	Console   Console
	Fetch     FetchFunc
	Folder    Folder
	Random    RandomFunc
	Scrypt    ScryptFunc
	Pbkdf2    Pbkdf2Func
	Secp256k1 Secp256k1
}

// IO is a resolved capability set. Every field is non-nil.
type IO struct {
	Log       *zap.Logger
	Fetch     FetchFunc
	Folder    Folder
	Random    RandomFunc
	Scrypt    ScryptFunc
	Pbkdf2    Pbkdf2Func
	Secp256k1 Secp256k1
}

// Resolve binds every missing optional capability to its default.
func Resolve(raw RawIO) (IO, error) {
	if raw.Random == nil {
		return IO{}, errors.New("io: random source is required")
	}
	if raw.Fetch == nil {
		return IO{}, errors.New("io: fetch is required")
	}

	out := IO{
		Log:       zap.NewNop(),
		Fetch:     raw.Fetch,
		Folder:    raw.Folder,
		Random:    raw.Random,
		Scrypt:    raw.Scrypt,
		Pbkdf2:    raw.Pbkdf2,
		Secp256k1: raw.Secp256k1,
	}
	if raw.Console != nil {
		out.Log = NewConsoleLogger(raw.Console)
	}
	if out.Folder == nil {
		out.Folder = NewMemoryFolder()
	}
	if out.Scrypt == nil {
		out.Scrypt = DefaultScrypt
	}
	if out.Pbkdf2 == nil {
		out.Pbkdf2 = DefaultPbkdf2
	}
	if out.Secp256k1 == nil {
		out.Secp256k1 = DefaultSecp256k1{}
	}
	return out, nil
}

// CryptoRandom reads from crypto/rand.
func CryptoRandom(n int) ([]byte, error) {
	out := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, out); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return out, nil
}

// HTTPFetch adapts an http.Client. A nil client uses http.DefaultClient.
func HTTPFetch(client *http.Client) FetchFunc {
	if client == nil {
		client = http.DefaultClient
	}
	return client.Do
}

// DefaultScrypt runs golang.org/x/crypto/scrypt in-process.
func DefaultScrypt(data, salt []byte, n, r, p, keyLen int) ([]byte, error) {
	key, err := scrypt.Key(data, salt, n, r, p, keyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive scrypt key: %w", err)
	}
	return key, nil
}

// DefaultPbkdf2 runs golang.org/x/crypto/pbkdf2 in-process.
func DefaultPbkdf2(key, salt []byte, iterations, keyLen int, algorithm string) ([]byte, error) {
	var h func() hash.Hash
	switch algorithm {
	case "sha1":
		h = sha1.New
	case "sha256":
		h = sha256.New
	case "sha512":
		h = sha512.New
	default:
		return nil, fmt.Errorf("unsupported pbkdf2 algorithm %q", algorithm)
	}
	if iterations <= 0 || keyLen <= 0 {
		return nil, errors.New("pbkdf2 iterations and key length must be positive")
	}
	return pbkdf2.Key(key, salt, iterations, keyLen, h), nil
}
