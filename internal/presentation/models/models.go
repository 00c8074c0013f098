package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	credmodels "vcflow/internal/credential/models"
	"vcflow/internal/identity"
	dErrors "vcflow/pkg/domain-errors"
)

const TypeVerifiablePresentation = "VerifiablePresentation"

// DefaultExpiry applies when CreateRequest.ExpiryMinutes is zero.
const DefaultExpiry = 60 * time.Minute

// ErrChallengeMismatch is returned when the verifier's challenge differs from
// the presentation nonce.
var ErrChallengeMismatch = dErrors.New(dErrors.CodeChallengeMismatch, "presentation nonce does not match the challenge")

// Claims is the JWT-VP payload.
type Claims struct {
	VP    VerifiablePresentation `json:"vp"`
	Nonce string                 `json:"nonce,omitempty"`
	jwt.RegisteredClaims
}

type VerifiablePresentation struct {
	Context              []string `json:"@context"`
	Type                 []string `json:"type"`
	Holder               string   `json:"holder,omitempty"`
	VerifiableCredential []string `json:"verifiableCredential"`
}

// CreateRequest wraps credential JWTs into a presentation for Holder.
type CreateRequest struct {
	Holder        string   `json:"holder"`
	Credentials   []string `json:"credentials"`
	Challenge     string   `json:"challenge,omitempty"`
	Audience      string   `json:"audience,omitempty"`
	ExpiryMinutes int      `json:"expiryMinutes,omitempty"`
}

func (r *CreateRequest) Validate() error {
	if r.Holder == "" {
		return dErrors.New(dErrors.CodeValidation, "holder is required")
	}
	if len(r.Credentials) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one credential is required")
	}
	for _, c := range r.Credentials {
		if c == "" {
			return dErrors.New(dErrors.CodeValidation, "credentials must not be empty")
		}
	}
	if r.ExpiryMinutes < 0 {
		return dErrors.New(dErrors.CodeValidation, "expiryMinutes must not be negative")
	}
	return nil
}

// Expiry returns the requested lifetime or DefaultExpiry.
func (r *CreateRequest) Expiry() time.Duration {
	if r.ExpiryMinutes == 0 {
		return DefaultExpiry
	}
	return time.Duration(r.ExpiryMinutes) * time.Minute
}

// StoredPresentation is a created presentation as kept by the holder.
type StoredPresentation struct {
	ID              string        `json:"id"`
	JWT             string        `json:"jwt"`
	Holder          string        `json:"holder"`
	CreatedAt       time.Time     `json:"createdAt"`
	ExpiresAt       time.Time     `json:"expiresAt"`
	CredentialCount int           `json:"credentialCount"`
	Nonce           string        `json:"nonce,omitempty"`
	Kind            identity.Kind `json:"kind"`
}

// VerifyRequest carries the presentation and what the verifier expects of it.
// ExpectedIssuers is positional: entry i names the issuer of credential i; an
// empty entry or a short slice falls back to the credential's own iss.
type VerifyRequest struct {
	JWT             string   `json:"jwt"`
	Challenge       string   `json:"challenge,omitempty"`
	ExpectedIssuers []string `json:"expectedIssuers,omitempty"`
}

func (r *VerifyRequest) Validate() error {
	if r.JWT == "" {
		return dErrors.New(dErrors.CodeValidation, "presentation JWT is required")
	}
	return nil
}

// ExpectedIssuer returns the issuer credential i must come from, or "".
func (r *VerifyRequest) ExpectedIssuer(i int) string {
	if i < len(r.ExpectedIssuers) {
		return r.ExpectedIssuers[i]
	}
	return ""
}

// CredentialCheck is the outcome for one embedded credential.
type CredentialCheck struct {
	Index      int                          `json:"index"`
	Valid      bool                         `json:"valid"`
	Kind       identity.Kind                `json:"kind,omitempty"`
	Error      string                       `json:"error,omitempty"`
	Credential *credmodels.StoredCredential `json:"credential,omitempty"`
}

// VerificationResult is returned whenever the outer presentation verifies.
// CredentialsValid is false when any embedded credential failed; the decoded
// presentation is still returned.
type VerificationResult struct {
	Presentation     StoredPresentation `json:"presentation"`
	Kind             identity.Kind      `json:"kind"`
	CredentialsValid bool               `json:"credentialsValid"`
	Credentials      []CredentialCheck  `json:"credentials"`
}
