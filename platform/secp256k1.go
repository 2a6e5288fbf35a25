package platform

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

// Secp256k1 are the curve operations used by elliptic-curve wallet types.
type Secp256k1 interface {
	PublicKeyCreate(privateKey []byte, compressed bool) ([]byte, error)
	PrivateKeyTweakAdd(privateKey, tweak []byte) ([]byte, error)
	PublicKeyTweakAdd(publicKey, tweak []byte, compressed bool) ([]byte, error)
}

// DefaultSecp256k1 is a pure Go implementation backed by btcec.
type DefaultSecp256k1 struct{}

var _ Secp256k1 = DefaultSecp256k1{}

func parseScalar(b []byte, what string) (*btcec.ModNScalar, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("%s must be 32 bytes, got %d", what, len(b))
	}
	var s btcec.ModNScalar
	if overflow := s.SetByteSlice(b); overflow {
		return nil, fmt.Errorf("%s is not below the curve order", what)
	}
	return &s, nil
}

func serializePub(pub *btcec.PublicKey, compressed bool) []byte {
	if compressed {
		return pub.SerializeCompressed()
	}
	return pub.SerializeUncompressed()
}

func (DefaultSecp256k1) PublicKeyCreate(privateKey []byte, compressed bool) ([]byte, error) {
	k, err := parseScalar(privateKey, "private key")
	if err != nil {
		return nil, err
	}
	if k.IsZero() {
		return nil, errors.New("private key is zero")
	}
	_, pub := btcec.PrivKeyFromBytes(privateKey)
	return serializePub(pub, compressed), nil
}

func (DefaultSecp256k1) PrivateKeyTweakAdd(privateKey, tweak []byte) ([]byte, error) {
	k, err := parseScalar(privateKey, "private key")
	if err != nil {
		return nil, err
	}
	t, err := parseScalar(tweak, "tweak")
	if err != nil {
		return nil, err
	}
	k.Add(t)
	if k.IsZero() {
		return nil, errors.New("tweaked private key is zero")
	}
	out := k.Bytes()
	return out[:], nil
}

func (DefaultSecp256k1) PublicKeyTweakAdd(publicKey, tweak []byte, compressed bool) ([]byte, error) {
	pub, err := btcec.ParsePubKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	t, err := parseScalar(tweak, "tweak")
	if err != nil {
		return nil, err
	}

	var p, tg, sum btcec.JacobianPoint
	pub.AsJacobian(&p)
	btcec.ScalarBaseMultNonConst(t, &tg)
	btcec.AddNonConst(&p, &tg, &sum)
	if (sum.X.IsZero() && sum.Y.IsZero()) || sum.Z.IsZero() {
		return nil, errors.New("tweaked public key is the point at infinity")
	}
	sum.ToAffine()
	return serializePub(btcec.NewPublicKey(&sum.X, &sum.Y), compressed), nil
}
