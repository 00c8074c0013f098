package models

import (
	"strings"

	dErrors "vcflow/pkg/domain-errors"
)

const (
	// CredentialPath is the credential endpoint. The pre-authorized code is
	// exchanged for the credential in one call, so it doubles as the token endpoint.
	CredentialPath = "/api/credentials/issue"
	// CNonceLifetimeSeconds is advertised as c_nonce_expires_in.
	CNonceLifetimeSeconds = 86400
	// DemoCredentialType is the type of credentials synthesized for unknown invitations.
	DemoCredentialType = "UniversityDegreeCredential"
	// DemoHolder is the subject of synthesized demo credentials.
	DemoHolder = "did:example:demo-holder"
)

// Config is the issuer identity advertised in offers and discovery documents.
type Config struct {
	IssuerID      string
	PublicBaseURL string
	// IssuerDID signs synthesized demo credentials. Without it they are
	// issued under IssuerID and come out unsigned.
	IssuerDID string
	// DemoOfferFallback synthesizes a demo invitation for unknown IDs.
	DemoOfferFallback bool
}

// IssuerMetadata is the /.well-known/openid-credential-issuer document.
type IssuerMetadata struct {
	CredentialIssuer     string                `json:"credential_issuer"`
	CredentialEndpoint   string                `json:"credential_endpoint"`
	AuthorizationServers []string              `json:"authorization_servers,omitempty"`
	CredentialsSupported []SupportedCredential `json:"credentials_supported"`
	Display              []Display             `json:"display,omitempty"`
}

type SupportedCredential struct {
	ID                      string   `json:"id"`
	Format                  string   `json:"format"`
	Types                   []string `json:"types"`
	CryptographicBinding    []string `json:"cryptographic_binding_methods_supported"`
	SigningAlgValuesSupport []string `json:"credential_signing_alg_values_supported"`
}

type Display struct {
	Name   string `json:"name"`
	Locale string `json:"locale,omitempty"`
}

// AuthorizationServerMetadata is the /.well-known/oauth-authorization-server document.
type AuthorizationServerMetadata struct {
	Issuer                       string   `json:"issuer"`
	TokenEndpoint                string   `json:"token_endpoint"`
	GrantTypesSupported          []string `json:"grant_types_supported"`
	PreAuthorizedAnonymousAccess bool     `json:"pre-authorized_grant_anonymous_access_supported"`
}

// CredentialRequest is the POST /api/credentials/issue body.
type CredentialRequest struct {
	PreAuthorizedCode string `json:"pre_authorized_code"`
}

func (r *CredentialRequest) Normalize() {
	r.PreAuthorizedCode = strings.TrimSpace(r.PreAuthorizedCode)
}

func (r *CredentialRequest) Validate() error {
	if r.PreAuthorizedCode == "" {
		return dErrors.New(dErrors.CodeBadRequest, "pre_authorized_code is required")
	}
	return nil
}

// CredentialResponse hands the invitation's credential to the wallet.
type CredentialResponse struct {
	Credential      string `json:"credential"`
	Format          string `json:"format"`
	CNonce          string `json:"c_nonce"`
	CNonceExpiresIn int    `json:"c_nonce_expires_in"`
}
