package identity

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/multiformats/go-multibase"
)

const verificationMethodType = "Ed25519VerificationKey2020"

// Document is the subset of a W3C DID document used for signature validation.
type Document struct {
	Context            []string             `json:"@context"`
	ID                 string               `json:"id"`
	VerificationMethod []VerificationMethod `json:"verificationMethod"`
	Authentication     []string             `json:"authentication,omitempty"`
	AssertionMethod    []string             `json:"assertionMethod,omitempty"`
}

// VerificationMethod carries the key both as multibase and as a JWK; either is
// enough to recover it.
type VerificationMethod struct {
	ID                 string          `json:"id"`
	Type               string          `json:"type"`
	Controller         string          `json:"controller"`
	PublicKeyMultibase string          `json:"publicKeyMultibase,omitempty"`
	PublicKeyJwk       json.RawMessage `json:"publicKeyJwk,omitempty"`
}

// BuildDocument describes a single Ed25519 key controlled by did.
func BuildDocument(did string, pub ed25519.PublicKey) (*Document, error) {
	if len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: public key length %d", ErrInvalidDID, len(pub))
	}
	vmID := keyIDFor(did)

	encoded, err := multibase.Encode(multibase.Base58BTC, pub)
	if err != nil {
		return nil, fmt.Errorf("multibase encode: %w", err)
	}

	key, err := jwk.FromRaw(pub)
	if err != nil {
		return nil, fmt.Errorf("jwk from ed25519 key: %w", err)
	}
	if err := key.Set(jwk.KeyIDKey, vmID); err != nil {
		return nil, fmt.Errorf("set jwk kid: %w", err)
	}
	jwkJSON, err := json.Marshal(key)
	if err != nil {
		return nil, fmt.Errorf("encode jwk: %w", err)
	}

	return &Document{
		Context: []string{
			"https://www.w3.org/ns/did/v1",
			"https://w3id.org/security/suites/ed25519-2020/v1",
		},
		ID: did,
		VerificationMethod: []VerificationMethod{{
			ID:                 vmID,
			Type:               verificationMethodType,
			Controller:         did,
			PublicKeyMultibase: encoded,
			PublicKeyJwk:       jwkJSON,
		}},
		Authentication:  []string{vmID},
		AssertionMethod: []string{vmID},
	}, nil
}

// PublicKey returns the key of the verification method named kid, or of the
// first method when kid is empty.
func (d *Document) PublicKey(kid string) (ed25519.PublicKey, error) {
	for _, vm := range d.VerificationMethod {
		if kid != "" && vm.ID != kid {
			continue
		}
		return vm.publicKey()
	}
	if kid == "" {
		return nil, fmt.Errorf("no verification method in document %s", d.ID)
	}
	return nil, fmt.Errorf("verification method %s not found in document %s", kid, d.ID)
}

func (vm VerificationMethod) publicKey() (ed25519.PublicKey, error) {
	if len(vm.PublicKeyJwk) > 0 {
		key, err := jwk.ParseKey(vm.PublicKeyJwk)
		if err != nil {
			return nil, fmt.Errorf("parse publicKeyJwk of %s: %w", vm.ID, err)
		}
		var pub ed25519.PublicKey
		if err := key.Raw(&pub); err != nil {
			return nil, fmt.Errorf("publicKeyJwk of %s is not ed25519: %w", vm.ID, err)
		}
		return pub, nil
	}
	if vm.PublicKeyMultibase == "" {
		return nil, fmt.Errorf("verification method %s has no key material", vm.ID)
	}
	_, decoded, err := multibase.Decode(vm.PublicKeyMultibase)
	if err != nil {
		return nil, fmt.Errorf("decode publicKeyMultibase of %s: %w", vm.ID, err)
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("publicKeyMultibase of %s: unexpected key length %d", vm.ID, len(decoded))
	}
	return ed25519.PublicKey(decoded), nil
}
