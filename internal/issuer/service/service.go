package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	credmodels "vcflow/internal/credential/models"
	invmodels "vcflow/internal/invitation/models"
	"vcflow/internal/issuer/models"
	"vcflow/internal/offer"
	offermodels "vcflow/internal/offer/models"
	dErrors "vcflow/pkg/domain-errors"
	"vcflow/pkg/requestcontext"
)

// Invitations is the invitation store the issuer redeems codes against.
type Invitations interface {
	Get(ctx context.Context, id string) (*invmodels.Invitation, error)
	Put(ctx context.Context, inv invmodels.Invitation) error
	Accept(ctx context.Context, id string) (*invmodels.Invitation, error)
}

// Credentials issues the demo credential behind synthesized invitations.
type Credentials interface {
	Issue(ctx context.Context, req credmodels.IssueRequest) (*credmodels.IssuedCredential, error)
}

type Metrics interface {
	IncDemoOfferSynthesized()
}

type Option func(*Service)

// Service emulates the OpenID4VCI issuer for local development: discovery,
// the credential-offer endpoint and the pre-authorized code exchange.
type Service struct {
	invitations Invitations
	credentials Credentials
	cfg         models.Config
	metrics     Metrics
	logger      *slog.Logger

	// redeemMu serializes code redemption so a code is exchanged at most once.
	redeemMu sync.Mutex
}

func New(invitations Invitations, credentials Credentials, cfg models.Config, opts ...Option) *Service {
	cfg.PublicBaseURL = strings.TrimSuffix(cfg.PublicBaseURL, "/")
	if cfg.IssuerID == "" {
		cfg.IssuerID = cfg.PublicBaseURL
	}
	svc := &Service{
		invitations: invitations,
		credentials: credentials,
		cfg:         cfg,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Metadata returns the credential issuer discovery document.
func (s *Service) Metadata() models.IssuerMetadata {
	return models.IssuerMetadata{
		CredentialIssuer:     s.cfg.IssuerID,
		CredentialEndpoint:   s.cfg.PublicBaseURL + models.CredentialPath,
		AuthorizationServers: []string{s.cfg.PublicBaseURL},
		CredentialsSupported: []models.SupportedCredential{{
			ID:                      models.DemoCredentialType,
			Format:                  string(offermodels.FormatJWTVCJSON),
			Types:                   []string{credmodels.TypeVerifiableCredential, models.DemoCredentialType},
			CryptographicBinding:    []string{"did:key"},
			SigningAlgValuesSupport: []string{"EdDSA", "none"},
		}},
		Display: []models.Display{{Name: "vcflow development issuer", Locale: "en-US"}},
	}
}

// AuthorizationServer returns the OAuth discovery document for the
// pre-authorized code flow.
func (s *Service) AuthorizationServer() models.AuthorizationServerMetadata {
	return models.AuthorizationServerMetadata{
		Issuer:                       s.cfg.PublicBaseURL,
		TokenEndpoint:                s.cfg.PublicBaseURL + models.CredentialPath,
		GrantTypesSupported:          []string{offermodels.GrantPreAuthorizedCode},
		PreAuthorizedAnonymousAccess: true,
	}
}

// CredentialOffer returns the offer for an invitation. Unknown IDs get a demo
// invitation when the fallback is enabled.
func (s *Service) CredentialOffer(ctx context.Context, invitationID string) (*offermodels.CredentialOffer, error) {
	if invitationID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invitation_id is required")
	}
	inv, err := s.invitations.Get(ctx, invitationID)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) || !s.cfg.DemoOfferFallback {
			return nil, err
		}
		if inv, err = s.synthesize(ctx, invitationID); err != nil {
			return nil, err
		}
	}
	return offer.BuildWithCode(inv.ID, inv.CredentialJWT, inv.CredentialType, s.cfg.IssuerID)
}

func (s *Service) synthesize(ctx context.Context, id string) (*invmodels.Invitation, error) {
	issuerDID := s.cfg.IssuerDID
	if issuerDID == "" {
		issuerDID = s.cfg.IssuerID
	}
	issued, err := s.credentials.Issue(ctx, credmodels.IssueRequest{
		Issuer:  issuerDID,
		Subject: models.DemoHolder,
		Type:    models.DemoCredentialType,
		Claims: map[string]any{
			"name": "Demo Holder",
			"degree": map[string]any{
				"type": "BachelorDegree",
				"name": "Bachelor of Science",
			},
		},
	})
	if err != nil {
		return nil, err
	}
	inv := invmodels.Invitation{
		ID:             id,
		Status:         invmodels.StatusPending,
		CreatedAt:      requestcontext.Now(ctx),
		CredentialType: models.DemoCredentialType,
		IssuerDID:      issued.Credential.Issuer,
		CredentialJWT:  issued.JWT,
	}
	if err := s.invitations.Put(ctx, inv); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncDemoOfferSynthesized()
	}
	s.logger.InfoContext(ctx, "synthesized demo invitation",
		"invitation_id", id,
		"credential_kind", string(issued.Kind),
	)
	return &inv, nil
}

// IssueCredential redeems a pre-authorized code: the code is the invitation
// ID, and the invitation's credential is returned and the invitation accepted.
// Only pending, unexpired invitations can be redeemed.
func (s *Service) IssueCredential(ctx context.Context, code string) (*models.CredentialResponse, error) {
	s.redeemMu.Lock()
	defer s.redeemMu.Unlock()

	inv, err := s.invitations.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if inv.CredentialJWT == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "Credential JWT not available")
	}
	if inv.Status == invmodels.StatusPending && inv.IsExpired(requestcontext.Now(ctx)) {
		inv.Status = invmodels.StatusExpired
	}
	if inv.Status != invmodels.StatusPending {
		return nil, dErrors.New(dErrors.CodeConflict, fmt.Sprintf("Invitation already %s", inv.Status))
	}
	if _, err := s.invitations.Accept(ctx, inv.ID); err != nil {
		return nil, err
	}
	return &models.CredentialResponse{
		Credential:      inv.CredentialJWT,
		Format:          string(offermodels.FormatJWTVCJSON),
		CNonce:          uuid.NewString(),
		CNonceExpiresIn: models.CNonceLifetimeSeconds,
	}, nil
}
