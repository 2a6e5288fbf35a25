package crypto

import (
	"encoding/hex"
	"fmt"

	"github.com/AlexZinkM/abc-core/internal/model"
	"github.com/AlexZinkM/abc-core/platform"
)

// UserIDSnrp is shared by every client so that the same username always
// maps to the same user id. Its cost is kept low because the result only
// hides the username from the server.
var UserIDSnrp = model.Snrp{
	SaltHex: "b5865ffb9fa7b3bfe4b2384d47ce831ee22a4a9d5c34c7ef7d21467cc758f81b",
	N:       16384,
	R:       1,
	P:       1,
}

// MakeSnrp returns fresh parameters with a random 32-byte salt.
func MakeSnrp(random platform.RandomFunc, n, r, p int) (*model.Snrp, error) {
	salt, err := random(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return &model.Snrp{SaltHex: hex.EncodeToString(salt), N: n, R: r, P: p}, nil
}

// DeriveKey runs scrypt over data with the given parameters.
func DeriveKey(scrypt platform.ScryptFunc, data []byte, snrp *model.Snrp) ([]byte, error) {
	if snrp == nil {
		return nil, fmt.Errorf("scrypt parameters are missing")
	}
	salt, err := hex.DecodeString(snrp.SaltHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	key, err := scrypt(data, salt, snrp.N, snrp.R, snrp.P, KeyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}
