package crypto

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
)

// Signer signs messages and Solana transactions with an ed25519 keypair. It
// serves two roles: message signing for API auth (rugcheck login) and
// fee-payer transaction signing for swap submission.
type Signer struct {
	privateKey ed25519.PrivateKey
	publicKey  string // base58 wallet address, as configured
}

// NewSigner creates a Signer from a 64-byte ed25519 keypair and the wallet's
// base58 public key string.
func NewSigner(keypair []byte, publicKey string) (*Signer, error) {
	if len(keypair) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("crypto/signer: expected %d-byte keypair, got %d bytes",
			ed25519.PrivateKeySize, len(keypair))
	}
	if publicKey == "" {
		return nil, fmt.Errorf("crypto/signer: public key must not be empty")
	}
	return &Signer{
		privateKey: ed25519.PrivateKey(keypair),
		publicKey:  publicKey,
	}, nil
}

// PublicKey returns the wallet's base58 address.
func (s *Signer) PublicKey() string {
	return s.publicKey
}

// SignMessage signs an arbitrary message and returns the raw signature along
// with the wallet's public key.
func (s *Signer) SignMessage(ctx context.Context, msg []byte) ([]byte, string, error) {
	sig := ed25519.Sign(s.privateKey, msg)
	return sig, s.publicKey, nil
}

// SignTransaction signs a base64-encoded unsigned Solana transaction as the
// fee payer and returns the signed transaction, base64 encoded. The wire
// layout is a compact-u16 signature count, that many 64-byte signature
// slots, then the message; the router leaves the slots zeroed.
func (s *Signer) SignTransaction(ctx context.Context, unsignedTx string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(unsignedTx)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: decode transaction: %w", err)
	}

	numSigs, offset, err := decodeCompactU16(raw)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: parse signature count: %w", err)
	}
	if numSigs < 1 {
		return "", fmt.Errorf("crypto/signer: transaction requires no signatures")
	}

	msgStart := offset + numSigs*ed25519.SignatureSize
	if msgStart >= len(raw) {
		return "", fmt.Errorf("crypto/signer: transaction truncated (%d bytes, need > %d)", len(raw), msgStart)
	}

	// The fee payer signs the message bytes; its signature occupies slot 0.
	sig := ed25519.Sign(s.privateKey, raw[msgStart:])

	signed := make([]byte, len(raw))
	copy(signed, raw)
	copy(signed[offset:offset+ed25519.SignatureSize], sig)

	return base64.StdEncoding.EncodeToString(signed), nil
}

// decodeCompactU16 decodes Solana's compact-u16 length prefix and returns
// the value and the number of bytes consumed.
func decodeCompactU16(b []byte) (int, int, error) {
	value := 0
	shift := 0
	for i := 0; i < 3; i++ {
		if i >= len(b) {
			return 0, 0, fmt.Errorf("truncated compact-u16")
		}
		value |= int(b[i]&0x7f) << shift
		if b[i]&0x80 == 0 {
			return value, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, fmt.Errorf("compact-u16 too long")
}
