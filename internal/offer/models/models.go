package models

import (
	"fmt"
	"slices"

	dErrors "vcflow/pkg/domain-errors"
)

// Format discriminates credential entries in an offer.
type Format string

const (
	FormatJWTVCJSON Format = "jwt_vc_json"
	FormatLDPVC     Format = "ldp_vc"
)

// GrantPreAuthorizedCode is the OpenID4VCI grant type key in the grants block.
const GrantPreAuthorizedCode = "urn:ietf:params:oauth:grant-type:pre-authorized_code"

// TypeVerifiableCredential heads every credential type hierarchy.
const TypeVerifiableCredential = "VerifiableCredential"

// SubjectClaimCredential is the credentialSubject claim that carries the
// credential JWT inside an offer entry.
const SubjectClaimCredential = "credential"

// CredentialOffer is an OpenID4VCI credential offer as carried in the oob
// parameter of deep links and served by the credential-offer endpoint.
type CredentialOffer struct {
	CredentialIssuer string            `json:"credential_issuer"`
	Credentials      []CredentialEntry `json:"credentials"`
	Grants           Grants            `json:"grants"`
}

type CredentialEntry struct {
	Format               Format               `json:"format"`
	CredentialDefinition CredentialDefinition `json:"credential_definition"`
}

type CredentialDefinition struct {
	Type              []string       `json:"type"`
	CredentialSubject map[string]any `json:"credentialSubject,omitempty"`
}

// Grants holds the grant mechanisms of an offer. Only the pre-authorized code
// grant is supported and it is mandatory.
type Grants struct {
	PreAuthorizedCode *PreAuthorizedCodeGrant `json:"urn:ietf:params:oauth:grant-type:pre-authorized_code,omitempty"`
}

type PreAuthorizedCodeGrant struct {
	PreAuthorizedCode string `json:"pre-authorized_code"`
	UserPinRequired   bool   `json:"user_pin_required"`
}

// Validate rejects offers a wallet could not redeem.
func (o *CredentialOffer) Validate() error {
	if o == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "credential offer is required")
	}
	if o.CredentialIssuer == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "credential offer is missing credential_issuer")
	}
	if len(o.Credentials) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "credential offer has no credentials")
	}
	for i, entry := range o.Credentials {
		if err := entry.validate(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidInput, fmt.Sprintf("credentials[%d]: %s", i, err.Error()))
		}
	}
	if o.Grants.PreAuthorizedCode == nil || o.Grants.PreAuthorizedCode.PreAuthorizedCode == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "credential offer is missing the pre-authorized code grant")
	}
	return nil
}

func (e CredentialEntry) validate() error {
	switch e.Format {
	case FormatJWTVCJSON, FormatLDPVC:
	case "":
		return dErrors.New(dErrors.CodeInvalidInput, "format is required")
	default:
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unsupported format %q", e.Format))
	}
	if len(e.CredentialDefinition.Type) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "credential_definition.type is required")
	}
	return nil
}

// PreAuthorizedCode returns the grant code, which doubles as the invitation id.
func (o *CredentialOffer) PreAuthorizedCode() string {
	if o.Grants.PreAuthorizedCode == nil {
		return ""
	}
	return o.Grants.PreAuthorizedCode.PreAuthorizedCode
}

// CredentialJWT returns the JWT embedded in the first entry, if any.
func (o *CredentialOffer) CredentialJWT() string {
	if len(o.Credentials) == 0 {
		return ""
	}
	jwt, _ := o.Credentials[0].CredentialDefinition.CredentialSubject[SubjectClaimCredential].(string)
	return jwt
}

// CredentialType returns the most specific type of the first entry.
func (o *CredentialOffer) CredentialType() string {
	if len(o.Credentials) == 0 {
		return ""
	}
	types := o.Credentials[0].CredentialDefinition.Type
	for _, t := range slices.Backward(types) {
		if t != TypeVerifiableCredential {
			return t
		}
	}
	return TypeVerifiableCredential
}
