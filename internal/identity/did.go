// Package identity provides the DID and JWT primitives credentials and
// presentations are built on: ed25519 key pairs, did:key identifiers, DID
// documents, EdDSA signing and validation, and the explicit unsigned fallback.
package identity

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"

	"github.com/multiformats/go-multibase"
)

const keyDIDPrefix = "did:key:"

// ed25519Multicodec is the varint multicodec prefix for Ed25519 public keys.
var ed25519Multicodec = []byte{0xed, 0x01}

var (
	ErrInvalidDID     = errors.New("invalid did")
	ErrUnsupportedDID = errors.New("unsupported did method")
	ErrUnknownDID     = errors.New("unknown did")
)

// DeriveKeyDID encodes an Ed25519 public key as a did:key identifier.
func DeriveKeyDID(pub ed25519.PublicKey) (string, error) {
	if len(pub) != ed25519.PublicKeySize {
		return "", fmt.Errorf("%w: public key length %d", ErrInvalidDID, len(pub))
	}
	prefixed := make([]byte, 0, len(ed25519Multicodec)+len(pub))
	prefixed = append(prefixed, ed25519Multicodec...)
	prefixed = append(prefixed, pub...)

	encoded, err := multibase.Encode(multibase.Base58BTC, prefixed)
	if err != nil {
		return "", fmt.Errorf("multibase encode: %w", err)
	}
	return keyDIDPrefix + encoded, nil
}

// PublicKeyFromKeyDID decodes the Ed25519 key embedded in a did:key identifier.
func PublicKeyFromKeyDID(did string) (ed25519.PublicKey, error) {
	encoded, ok := strings.CutPrefix(did, keyDIDPrefix)
	if !ok || encoded == "" {
		return nil, fmt.Errorf("%w: %q is not a did:key", ErrInvalidDID, did)
	}
	_, decoded, err := multibase.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: multibase decode: %v", ErrInvalidDID, err)
	}
	raw, ok := bytes.CutPrefix(decoded, ed25519Multicodec)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected multicodec prefix", ErrInvalidDID)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: expected %d key bytes, got %d", ErrInvalidDID, ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// Method returns the DID method ("key" for did:key:...).
func Method(did string) (string, error) {
	parts := strings.SplitN(did, ":", 3)
	if len(parts) < 3 || parts[0] != "did" || parts[1] == "" || parts[2] == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidDID, did)
	}
	return parts[1], nil
}
