// Package offer builds OpenID4VCI credential offers and moves them in and out
// of the two redeemable URL forms: the wallet deep link and the HTTP fallback.
package offer

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"vcflow/internal/offer/models"
	dErrors "vcflow/pkg/domain-errors"
)

// DefaultScheme is the custom URI scheme mobile wallets register for offers.
const DefaultScheme = "openid-credential-offer"

// AcceptPath is the wallet web app route that accepts an oob offer.
const AcceptPath = "/#/accept-credential"

// Build wraps a credential JWT in a single-entry offer with a fresh
// pre-authorized code.
func Build(credentialJWT, credentialType, issuer string) (*models.CredentialOffer, error) {
	return BuildWithCode(uuid.NewString(), credentialJWT, credentialType, issuer)
}

// BuildWithCode is Build with a caller-chosen pre-authorized code.
func BuildWithCode(code, credentialJWT, credentialType, issuer string) (*models.CredentialOffer, error) {
	if credentialType == "" {
		credentialType = models.TypeVerifiableCredential
	}
	types := []string{models.TypeVerifiableCredential}
	if credentialType != models.TypeVerifiableCredential {
		types = append(types, credentialType)
	}

	var subject map[string]any
	if credentialJWT != "" {
		subject = map[string]any{models.SubjectClaimCredential: credentialJWT}
	}

	o := &models.CredentialOffer{
		CredentialIssuer: issuer,
		Credentials: []models.CredentialEntry{{
			Format: models.FormatJWTVCJSON,
			CredentialDefinition: models.CredentialDefinition{
				Type:              types,
				CredentialSubject: subject,
			},
		}},
		Grants: models.Grants{
			PreAuthorizedCode: &models.PreAuthorizedCodeGrant{
				PreAuthorizedCode: code,
				UserPinRequired:   false,
			},
		},
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// Encoder renders offers as URLs. The payload is standard padded base64 of the
// offer JSON and is inserted without URL escaping; wallets depend on that.
type Encoder struct {
	Scheme  string
	BaseURL string
}

func NewEncoder(scheme, baseURL string) Encoder {
	if scheme == "" {
		scheme = DefaultScheme
	}
	return Encoder{Scheme: scheme, BaseURL: strings.TrimSuffix(baseURL, "/")}
}

// Payload returns base64(JSON(offer)).
func (e Encoder) Payload(o *models.CredentialOffer) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(o); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "encode credential offer")
	}
	return base64.StdEncoding.EncodeToString(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// DeepLink returns <scheme>://?oob=<payload>.
func (e Encoder) DeepLink(o *models.CredentialOffer) (string, error) {
	payload, err := e.Payload(o)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s://?oob=%s", e.Scheme, payload), nil
}

// HTTPLink returns <base>/#/accept-credential?oob=<payload>.
func (e Encoder) HTTPLink(o *models.CredentialOffer) (string, error) {
	payload, err := e.Payload(o)
	if err != nil {
		return "", err
	}
	return e.BaseURL + AcceptPath + "?oob=" + payload, nil
}
