package models

import (
	"maps"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"vcflow/internal/identity"
	dErrors "vcflow/pkg/domain-errors"
)

const TypeVerifiableCredential = "VerifiableCredential"

// ContextCredentialsV1 is the base JSON-LD context of every credential.
const ContextCredentialsV1 = "https://www.w3.org/2018/credentials/v1"

// DefaultValidity is how long issued credentials stay valid.
const DefaultValidity = 365 * 24 * time.Hour

// Claims is the JWT-VC payload: the registered claims plus the vc object.
type Claims struct {
	VC VerifiableCredential `json:"vc"`
	jwt.RegisteredClaims
}

// VerifiableCredential is the W3C data model carried in the vc claim.
type VerifiableCredential struct {
	Context           []string       `json:"@context"`
	Type              []string       `json:"type"`
	Issuer            string         `json:"issuer,omitempty"`
	IssuanceDate      string         `json:"issuanceDate,omitempty"`
	ExpirationDate    string         `json:"expirationDate,omitempty"`
	CredentialSubject map[string]any `json:"credentialSubject"`
}

// IssueRequest describes a credential to issue. Issuer defaults to the
// signer's DID.
type IssueRequest struct {
	Issuer  string         `json:"issuer"`
	Subject string         `json:"subject"`
	Type    string         `json:"type"`
	Claims  map[string]any `json:"claims"`
}

func (r *IssueRequest) Validate() error {
	if r.Subject == "" {
		return dErrors.New(dErrors.CodeValidation, "subject is required")
	}
	if r.Type == "" {
		return dErrors.New(dErrors.CodeValidation, "credential type is required")
	}
	return nil
}

// IssuedCredential is the outcome of Issue. Kind says which path produced JWT.
type IssuedCredential struct {
	JWT        string           `json:"jwt"`
	Kind       identity.Kind    `json:"kind"`
	Credential StoredCredential `json:"credential"`
}

// IsSigned is true only for credentials carrying a real signature.
func (c IssuedCredential) IsSigned() bool {
	return c.Kind == identity.KindSigned
}

// StoredCredential is a credential JWT with its decoded, flattened view.
type StoredCredential struct {
	ID        string         `json:"id"`
	JWT       string         `json:"jwt"`
	Issuer    string         `json:"issuer"`
	Subject   string         `json:"subject"`
	Type      string         `json:"type"`
	Claims    map[string]any `json:"claims"`
	IssuedAt  time.Time      `json:"issuedAt"`
	ExpiresAt *time.Time     `json:"expiresAt,omitempty"`
	Kind      identity.Kind  `json:"kind"`
}

func (c StoredCredential) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// VerificationResult is a successful verification. Kind is KindUnsignedDemo
// when only structural checks were possible.
type VerificationResult struct {
	Valid      bool             `json:"valid"`
	Kind       identity.Kind    `json:"kind"`
	Credential StoredCredential `json:"credential"`
}

// MostSpecificType returns the last type that is not VerifiableCredential.
func MostSpecificType(types []string) string {
	for _, t := range slices.Backward(types) {
		if t != TypeVerifiableCredential {
			return t
		}
	}
	return TypeVerifiableCredential
}

// Flatten turns nested subject claims into dotted keys and drops the subject id.
func Flatten(subject map[string]any) map[string]any {
	out := make(map[string]any, len(subject))
	flattenInto(out, "", subject)
	delete(out, "id")
	return out
}

func flattenInto(out map[string]any, prefix string, in map[string]any) {
	for _, k := range slices.Sorted(maps.Keys(in)) {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := in[k].(map[string]any); ok && len(nested) > 0 {
			flattenInto(out, key, nested)
			continue
		}
		out[key] = in[k]
	}
}
