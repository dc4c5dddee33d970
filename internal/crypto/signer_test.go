package crypto

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSigner(t *testing.T) (*Signer, ed25519.PublicKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	s, err := NewSigner(priv, "Wallet111111111111111111111111111111111111")
	require.NoError(t, err)
	return s, pub
}

func TestNewSignerRejectsBadInput(t *testing.T) {
	_, err := NewSigner([]byte("short"), "wallet")
	assert.Error(t, err)

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	_, err = NewSigner(priv, "")
	assert.Error(t, err)
}

func TestSignMessage(t *testing.T) {
	s, pub := testSigner(t)

	msg := []byte("Please sign this message to login: nonce=12345")
	sig, pubKey, err := s.SignMessage(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, s.PublicKey(), pubKey)
	assert.True(t, ed25519.Verify(pub, msg, sig))
}

// buildUnsignedTx assembles a minimal wire-format transaction: a one-byte
// signature count, zeroed signature slots, then the message bytes.
func buildUnsignedTx(numSigs int, message []byte) string {
	raw := make([]byte, 0, 1+numSigs*ed25519.SignatureSize+len(message))
	raw = append(raw, byte(numSigs))
	raw = append(raw, make([]byte, numSigs*ed25519.SignatureSize)...)
	raw = append(raw, message...)
	return base64.StdEncoding.EncodeToString(raw)
}

func TestSignTransactionFillsFeePayerSlot(t *testing.T) {
	s, pub := testSigner(t)
	message := []byte("serialized message bytes")

	signed, err := s.SignTransaction(context.Background(), buildUnsignedTx(1, message))
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(signed)
	require.NoError(t, err)

	sig := raw[1 : 1+ed25519.SignatureSize]
	assert.True(t, ed25519.Verify(pub, message, sig))
	assert.Equal(t, message, raw[1+ed25519.SignatureSize:], "message bytes must be untouched")
}

func TestSignTransactionLeavesOtherSlotsZeroed(t *testing.T) {
	s, _ := testSigner(t)
	message := []byte("multisig message")

	signed, err := s.SignTransaction(context.Background(), buildUnsignedTx(2, message))
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(signed)
	require.NoError(t, err)

	second := raw[1+ed25519.SignatureSize : 1+2*ed25519.SignatureSize]
	assert.Equal(t, make([]byte, ed25519.SignatureSize), second)
}

func TestSignTransactionRejectsMalformedInput(t *testing.T) {
	s, _ := testSigner(t)
	ctx := context.Background()

	_, err := s.SignTransaction(ctx, "not base64 !!!")
	assert.Error(t, err)

	_, err = s.SignTransaction(ctx, buildUnsignedTx(0, []byte("msg")))
	assert.Error(t, err, "zero signature slots")

	// Truncated: header claims one signature but the bytes run out.
	truncated := base64.StdEncoding.EncodeToString([]byte{0x01, 0x00, 0x00})
	_, err = s.SignTransaction(ctx, truncated)
	assert.Error(t, err)
}

func TestDecodeCompactU16(t *testing.T) {
	cases := []struct {
		in       []byte
		value    int
		consumed int
	}{
		{[]byte{0x01}, 1, 1},
		{[]byte{0x7f}, 127, 1},
		{[]byte{0x80, 0x01}, 128, 2},
		{[]byte{0xff, 0x01}, 255, 2},
	}
	for _, tc := range cases {
		value, consumed, err := decodeCompactU16(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.value, value)
		assert.Equal(t, tc.consumed, consumed)
	}

	_, _, err := decodeCompactU16(nil)
	assert.Error(t, err)

	_, _, err = decodeCompactU16([]byte{0x80, 0x80, 0x80})
	assert.Error(t, err)
}
