// Package mirror talks to the dev server's invitation endpoints so invitations
// created by vcctl are visible to the wallet and the credential-offer endpoint.
package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"vcflow/internal/invitation/models"
	"vcflow/internal/sentinel"
	dErrors "vcflow/pkg/domain-errors"
	"vcflow/pkg/platform/httputil"
)

// Client is an HTTP client for /api/invitations.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), http: client}
}

// Save stores inv on the server, overwriting any previous copy.
func (c *Client) Save(ctx context.Context, inv models.Invitation) error {
	body := models.CreateRequest{
		ID:             inv.ID,
		DeepLink:       inv.DeepLink,
		HTTPURL:        inv.HTTPURL,
		ShortURL:       inv.ShortURL,
		Status:         inv.Status,
		CreatedAt:      &inv.CreatedAt,
		CredentialType: inv.CredentialType,
		IssuerDID:      inv.IssuerDID,
		CredentialJWT:  inv.CredentialJWT,
	}
	if !inv.ExpiresAt.IsZero() {
		body.ExpiresAt = &inv.ExpiresAt
	}
	return c.do(ctx, http.MethodPost, "/api/invitations", body, nil)
}

func (c *Client) UpdateStatus(ctx context.Context, id string, status models.Status) error {
	return c.do(ctx, http.MethodPut, "/api/invitations/"+url.PathEscape(id)+"/status", models.StatusRequest{Status: string(status)}, nil)
}

func (c *Client) Get(ctx context.Context, id string) (*models.Invitation, error) {
	var inv models.Invitation
	if err := c.do(ctx, http.MethodGet, "/api/invitations/"+url.PathEscape(id), nil, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (c *Client) List(ctx context.Context) ([]models.Invitation, error) {
	var out []models.Invitation
	if err := c.do(ctx, http.MethodGet, "/api/invitations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/invitations/"+url.PathEscape(id), nil, nil)
}

// Clear removes every invitation on the server and returns how many there were.
func (c *Client) Clear(ctx context.Context) (int, error) {
	var out struct {
		Deleted int `json:"deleted"`
	}
	if err := c.do(ctx, http.MethodDelete, "/api/invitations", nil, &out); err != nil {
		return 0, err
	}
	return out.Deleted, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return dErrors.Wrap(fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err), dErrors.CodeUnavailable, "invitation server unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var e httputil.ErrorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
		msg := e.Error
		if msg == "" {
			msg = fmt.Sprintf("%s %s returned %d", method, path, resp.StatusCode)
		}
		return dErrors.New(codeForStatus(resp.StatusCode), msg)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, fmt.Sprintf("decode %s %s response", method, path))
	}
	return nil
}

func codeForStatus(status int) dErrors.Code {
	switch {
	case status == http.StatusNotFound:
		return dErrors.CodeNotFound
	case status < http.StatusInternalServerError:
		return dErrors.CodeBadRequest
	default:
		return dErrors.CodeUnavailable
	}
}
