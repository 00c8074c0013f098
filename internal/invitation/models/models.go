package models

import (
	"fmt"
	"strings"
	"time"

	dErrors "vcflow/pkg/domain-errors"
)

// DefaultTTLMinutes is the redeemable lifetime of a new invitation.
const DefaultTTLMinutes = 1440

// Status is the lifecycle state of an invitation.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// ParseStatus accepts any casing of a known status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown invitation status %q", raw))
	}
	return s, nil
}

// Invitation is a credential offer handed to a wallet together with its
// redeemable links. Its ID is the offer's pre-authorized code.
type Invitation struct {
	ID             string    `json:"id"`
	DeepLink       string    `json:"deepLink,omitempty"`
	HTTPURL        string    `json:"httpUrl,omitempty"`
	ShortURL       string    `json:"shortUrl,omitempty"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	ExpiresAt      time.Time `json:"expiresAt,omitzero"`
	CredentialType string    `json:"credentialType,omitempty"`
	IssuerDID      string    `json:"issuerDID,omitempty"`
	CredentialJWT  string    `json:"credentialJwt,omitempty"`
}

// IsExpired reports whether the invitation's lifetime is over at now. An
// invitation without an expiry never expires.
func (i Invitation) IsExpired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// RedeemURL is the link shown to people: the short URL when there is one.
func (i Invitation) RedeemURL() string {
	if i.ShortURL != "" {
		return i.ShortURL
	}
	return i.HTTPURL
}

// CreateRequest is the dev server's POST /api/invitations body.
type CreateRequest struct {
	ID             string     `json:"id"`
	DeepLink       string     `json:"deepLink"`
	HTTPURL        string     `json:"httpUrl"`
	ShortURL       string     `json:"shortUrl"`
	Status         Status     `json:"status"`
	CreatedAt      *time.Time `json:"createdAt"`
	ExpiresAt      *time.Time `json:"expiresAt"`
	CredentialType string     `json:"credentialType"`
	IssuerDID      string     `json:"issuerDID"`
	CredentialJWT  string     `json:"credentialJwt"`
}

func (r *CreateRequest) Normalize() {
	r.ID = strings.TrimSpace(r.ID)
	if r.Status == "" {
		r.Status = StatusPending
	}
}

func (r *CreateRequest) Validate() error {
	if r.ID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "Invitation ID is required")
	}
	if !r.Status.IsValid() {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown invitation status %q", r.Status))
	}
	return nil
}

// Invitation converts the request, stamping CreatedAt with now when absent.
func (r *CreateRequest) Invitation(now time.Time) Invitation {
	inv := Invitation{
		ID:             r.ID,
		DeepLink:       r.DeepLink,
		HTTPURL:        r.HTTPURL,
		ShortURL:       r.ShortURL,
		Status:         r.Status,
		CreatedAt:      now,
		CredentialType: r.CredentialType,
		IssuerDID:      r.IssuerDID,
		CredentialJWT:  r.CredentialJWT,
	}
	if r.CreatedAt != nil {
		inv.CreatedAt = *r.CreatedAt
	}
	if r.ExpiresAt != nil {
		inv.ExpiresAt = *r.ExpiresAt
	}
	return inv
}

// StatusRequest is the PUT /api/invitations/{id}/status body.
type StatusRequest struct {
	Status string `json:"status"`
}

func (r *StatusRequest) Validate() error {
	if r.Status == "" {
		return dErrors.New(dErrors.CodeBadRequest, "status is required")
	}
	return nil
}

// ClearResult reports both halves of a clear-all. Either side may fail while
// the other succeeds; there is no rollback.
type ClearResult struct {
	LocalDeleted  int   `json:"localDeleted"`
	RemoteDeleted int   `json:"remoteDeleted"`
	LocalErr      error `json:"-"`
	RemoteErr     error `json:"-"`
}
