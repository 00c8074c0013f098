package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"vcflow/pkg/requestcontext"
)

// Kind records whether a token carries a real signature. Callers must not
// treat KindUnsignedDemo tokens as cryptographically trustworthy.
type Kind string

const (
	KindSigned       Kind = "signed"
	KindUnsignedDemo Kind = "unsigned_demo"
)

// ErrNoSigningKey is returned by signers that have no key provisioned.
var ErrNoSigningKey = errors.New("no signing key available")

// Signer produces compact EdDSA JWS tokens on behalf of a DID.
type Signer interface {
	DID() string
	Sign(ctx context.Context, claims jwt.Claims) (string, error)
}

// KeySigner signs with a local Ed25519 key.
type KeySigner struct {
	key *KeyPair
}

func NewSigner(key *KeyPair) *KeySigner {
	return &KeySigner{key: key}
}

func (s *KeySigner) DID() string {
	if s == nil || s.key == nil {
		return ""
	}
	return s.key.DID()
}

func (s *KeySigner) Sign(_ context.Context, claims jwt.Claims) (string, error) {
	if s == nil || s.key == nil {
		return "", ErrNoSigningKey
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["kid"] = s.key.KeyID()
	signed, err := token.SignedString(s.key.Private)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

// SignUnsigned encodes claims as an alg "none" JWT with an empty signature.
func SignUnsigned(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	unsigned, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		return "", fmt.Errorf("encode unsigned jwt: %w", err)
	}
	return unsigned, nil
}

// Inspect decodes claims without checking the signature and reports which
// verification path the token needs.
func Inspect(token string, claims jwt.Claims) (Kind, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return "", fmt.Errorf("malformed jwt: %w", err)
	}
	if parsed.Method.Alg() == jwt.SigningMethodNone.Alg() {
		return KindUnsignedDemo, nil
	}
	return KindSigned, nil
}

// Validator checks EdDSA signatures against keys published in DID documents.
type Validator struct {
	resolver Resolver
	leeway   time.Duration
}

func NewValidator(resolver Resolver) *Validator {
	return &Validator{resolver: resolver, leeway: 5 * time.Second}
}

// Validate verifies token against the document of did and decodes it into
// claims. Expiry is checked against the request clock.
func (v *Validator) Validate(ctx context.Context, token, did string, claims jwt.Claims) error {
	doc, err := v.resolver.Resolve(ctx, did)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", did, err)
	}

	_, err = jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return doc.PublicKey(kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return requestcontext.Now(ctx) }),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		return fmt.Errorf("validate jwt: %w", err)
	}
	return nil
}
