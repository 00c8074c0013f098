package models

import (
	"strings"
	"time"

	dErrors "vcflow/pkg/domain-errors"
)

// ShortURL maps a short ID to the invitation URL it redirects to.
type ShortURL struct {
	ShortID       string    `json:"shortId"`
	InvitationURL string    `json:"invitationUrl"`
	Persistent    bool      `json:"persistent"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ShortenRequest is the POST /api/shorten-invitation body.
type ShortenRequest struct {
	InvitationURL string `json:"invitationUrl"`
	Persistent    bool   `json:"persistent"`
}

func (r *ShortenRequest) Normalize() {
	r.InvitationURL = strings.TrimSpace(r.InvitationURL)
}

func (r *ShortenRequest) Validate() error {
	if r.InvitationURL == "" {
		return dErrors.New(dErrors.CodeBadRequest, "Invitation URL is required")
	}
	return nil
}

// ShortenResponse is returned by POST /api/shorten-invitation.
type ShortenResponse struct {
	ShortenedURL string `json:"shortenedUrl"`
	ShortID      string `json:"shortId"`
	OriginalURL  string `json:"originalUrl"`
}
