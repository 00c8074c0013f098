package offer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"vcflow/internal/offer/models"
	dErrors "vcflow/pkg/domain-errors"
)

const (
	paramOOB      = "oob"
	paramOffer    = "credential_offer"
	paramOfferURI = "credential_offer_uri"

	maxOfferBytes = 1 << 20
)

// Decoder turns any offer URL a wallet may receive back into a validated offer.
type Decoder struct {
	client *http.Client
	logger *slog.Logger
}

type DecoderOption func(*Decoder)

// WithHTTPClient sets the client used to dereference credential_offer_uri.
func WithHTTPClient(client *http.Client) DecoderOption {
	return func(d *Decoder) {
		d.client = client
	}
}

func WithDecoderLogger(logger *slog.Logger) DecoderOption {
	return func(d *Decoder) {
		d.logger = logger
	}
}

func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{
		client: http.DefaultClient,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode accepts the oob parameter in the query or in the fragment's query,
// the by-value credential_offer parameter, or credential_offer_uri, which is
// fetched with GET.
func (d *Decoder) Decode(ctx context.Context, raw string) (*models.CredentialOffer, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "offer URL is required")
	}
	if _, err := url.Parse(raw); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, fmt.Sprintf("invalid offer URL: %v", err))
	}

	params := offerParams(raw)
	switch {
	case params.has(paramOOB):
		return DecodePayload(params.get(paramOOB))
	case params.has(paramOffer):
		return parseOffer([]byte(params.query(paramOffer)))
	case params.has(paramOfferURI):
		return d.fetch(ctx, params.query(paramOfferURI))
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "offer URL has neither an oob nor a credential_offer_uri parameter")
	}
}

// DecodePayload decodes base64(JSON(offer)).
func DecodePayload(payload string) (*models.CredentialOffer, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some wallets strip padding or re-encode as URL-safe.
		data, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, fmt.Sprintf("oob payload is not valid base64: %v", err))
		}
	}
	return parseOffer(data)
}

func parseOffer(data []byte) (*models.CredentialOffer, error) {
	var o models.CredentialOffer
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, fmt.Sprintf("credential offer is not valid JSON: %v", err))
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return &o, nil
}

func (d *Decoder) fetch(ctx context.Context, uri string) (*models.CredentialOffer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, fmt.Sprintf("invalid credential_offer_uri: %v", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.WarnContext(ctx, "credential offer fetch failed", "uri", uri, "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, fmt.Sprintf("fetch credential offer: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, dErrors.New(dErrors.CodeUnavailable, fmt.Sprintf("credential offer fetch returned status %d", resp.StatusCode))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxOfferBytes))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, fmt.Sprintf("read credential offer: %v", err))
	}
	return parseOffer(body)
}

// params is a raw view of query parameters. url.Values would turn '+' in the
// base64 payload into a space.
type params map[string]string

func (p params) has(key string) bool {
	_, ok := p[key]
	return ok
}

// get path-unescapes the value, leaving '+' intact.
func (p params) get(key string) string {
	if v, err := url.PathUnescape(p[key]); err == nil {
		return v
	}
	return p[key]
}

// query unescapes the value with form semantics.
func (p params) query(key string) string {
	if v, err := url.QueryUnescape(p[key]); err == nil {
		return v
	}
	return p[key]
}

// offerParams merges the query and the fragment's query; the query wins.
func offerParams(raw string) params {
	base, fragment, _ := strings.Cut(raw, "#")
	_, query, _ := strings.Cut(base, "?")
	_, fragmentQuery, _ := strings.Cut(fragment, "?")

	out := params{}
	for _, q := range []string{fragmentQuery, query} {
		for pair := range strings.SplitSeq(q, "&") {
			key, value, ok := strings.Cut(pair, "=")
			if !ok || key == "" {
				continue
			}
			out[key] = value
		}
	}
	return out
}
