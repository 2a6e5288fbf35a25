package platform_test

import (
	"encoding/hex"
	"testing"

	"github.com/AlexZinkM/abc-core/platform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecp256k1(t *testing.T) {
	t.Run("Public key of scalar one is the generator", testPublicKeyOfOneIsGenerator)
	t.Run("Tweaking private and public keys agrees", testTweakingKeysAgrees)
	t.Run("Malformed keys are rejected", testMalformedKeysAreRejected)
}

func scalar(v byte) []byte {
	b := make([]byte, 32)
	b[31] = v
	return b
}

func testPublicKeyOfOneIsGenerator(t *testing.T) {
	pub, err := platform.DefaultSecp256k1{}.PublicKeyCreate(scalar(1), true)
	require.NoError(t, err)
	assert.Equal(t,
		"0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798",
		hex.EncodeToString(pub))
}

func testTweakingKeysAgrees(t *testing.T) {
	curve := platform.DefaultSecp256k1{}

	priv := scalar(7)
	tweak := scalar(35)

	pub, err := curve.PublicKeyCreate(priv, true)
	require.NoError(t, err)

	tweakedPriv, err := curve.PrivateKeyTweakAdd(priv, tweak)
	require.NoError(t, err)
	assert.Equal(t, scalar(42), tweakedPriv)

	fromPriv, err := curve.PublicKeyCreate(tweakedPriv, false)
	require.NoError(t, err)
	fromPub, err := curve.PublicKeyTweakAdd(pub, tweak, false)
	require.NoError(t, err)
	assert.Equal(t, fromPriv, fromPub)
}

func testMalformedKeysAreRejected(t *testing.T) {
	curve := platform.DefaultSecp256k1{}

	_, err := curve.PublicKeyCreate([]byte{1, 2, 3}, true)
	require.Error(t, err)

	_, err = curve.PublicKeyCreate(make([]byte, 32), true)
	require.Error(t, err)

	_, err = curve.PublicKeyTweakAdd([]byte{2, 0}, scalar(1), true)
	require.Error(t, err)
}
