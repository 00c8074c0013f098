package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"strings"
)

// KeyPair is an Ed25519 key together with the did:key it controls.
type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
	did     string
}

// GenerateKeyPair creates a fresh random key pair.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return newKeyPair(pub, priv)
}

// KeyPairFromSeed restores a key pair from its 32-byte seed.
func KeyPairFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return newKeyPair(priv.Public().(ed25519.PublicKey), priv)
}

func newKeyPair(pub ed25519.PublicKey, priv ed25519.PrivateKey) (*KeyPair, error) {
	did, err := DeriveKeyDID(pub)
	if err != nil {
		return nil, err
	}
	return &KeyPair{Public: pub, Private: priv, did: did}, nil
}

func (k *KeyPair) DID() string {
	return k.did
}

// KeyID is the verification method id, did:key:z...#z....
func (k *KeyPair) KeyID() string {
	return keyIDFor(k.did)
}

func (k *KeyPair) Seed() []byte {
	return k.Private.Seed()
}

func keyIDFor(did string) string {
	if fragment, ok := strings.CutPrefix(did, keyDIDPrefix); ok {
		return did + "#" + fragment
	}
	return did + "#key-1"
}
