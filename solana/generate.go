package solana

import (
	"crypto/ed25519"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/AlexZinkM/abc-core/abc"
)

const (
	keyPrivate = "solanaKey"
	keyPublic  = "publicKey"
)

// CreatePrivateKey generates a new Solana keypair from the context's random
// source. The full 64-byte private key is stored base58 encoded.
func (p *Plugin) CreatePrivateKey(kind string) (map[string]any, error) {
	if kind != walletType {
		return nil, &abc.ValidationError{Message: fmt.Sprintf("solana cannot create keys for %q", kind)}
	}
	seed, err := p.random(ed25519.SeedSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key seed: %w", err)
	}
	defer clear(seed)
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("random source returned %d bytes, want %d", len(seed), ed25519.SeedSize)
	}

	wallet := solana.PrivateKey(ed25519.NewKeyFromSeed(seed))
	return map[string]any{keyPrivate: wallet.String()}, nil
}

// DerivePublicKey returns the wallet's address.
func (p *Plugin) DerivePublicKey(info abc.WalletInfo) (map[string]any, error) {
	owner, private, err := walletKeys(info)
	if err != nil {
		return nil, err
	}
	clear(private)
	return map[string]any{keyPublic: owner.String()}, nil
}

// walletKeys reads the address and, when present, the private key. A
// wallet with only a public key is watch-only.
func walletKeys(info abc.WalletInfo) (solana.PublicKey, solana.PrivateKey, error) {
	var private solana.PrivateKey
	if s, ok := info.Keys[keyPrivate].(string); ok && s != "" {
		key, err := solana.PrivateKeyFromBase58(s)
		if err != nil || len(key) != ed25519.PrivateKeySize {
			return solana.PublicKey{}, nil, &abc.ValidationError{Message: "invalid solana private key"}
		}
		private = key
	}

	if s, ok := info.Keys[keyPublic].(string); ok && s != "" {
		owner, err := solana.PublicKeyFromBase58(s)
		if err != nil {
			return solana.PublicKey{}, nil, &abc.ValidationError{Message: "invalid solana address", Err: err}
		}
		// Verify wallet matches the address
		if private != nil && !private.PublicKey().Equals(owner) {
			return solana.PublicKey{}, nil, &abc.ValidationError{Message: "private key does not match address"}
		}
		return owner, private, nil
	}

	if private == nil {
		return solana.PublicKey{}, nil, &abc.ValidationError{Message: "wallet has no solana keys"}
	}
	return private.PublicKey(), private, nil
}

// isValidSolanaAddress validates a Solana address
func isValidSolanaAddress(address string) bool {
	_, err := solana.PublicKeyFromBase58(address)
	return err == nil
}
