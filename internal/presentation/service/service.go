package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	credmodels "vcflow/internal/credential/models"
	"vcflow/internal/identity"
	"vcflow/internal/platform/kv"
	"vcflow/internal/platform/tracer"
	"vcflow/internal/presentation/models"
	dErrors "vcflow/pkg/domain-errors"
	"vcflow/pkg/requestcontext"
)

// CredentialVerifier verifies one embedded credential, optionally pinning its issuer.
type CredentialVerifier interface {
	VerifyFrom(ctx context.Context, token, expectedIssuer string) (*credmodels.VerificationResult, error)
}

// Validator checks a signed JWT against the DID document of did.
type Validator interface {
	Validate(ctx context.Context, token, did string, claims jwt.Claims) error
}

type Metrics interface {
	IncVerification(subject string, valid bool)
}

type Option func(*Service)

// Service builds and verifies presentations.
type Service struct {
	signer      identity.Signer
	validator   Validator
	credentials CredentialVerifier
	store       kv.Store[models.StoredPresentation]
	metrics     Metrics
	tracer      tracer.Tracer
	logger      *slog.Logger
}

func New(validator Validator, credentials CredentialVerifier, opts ...Option) *Service {
	svc := &Service{
		validator:   validator,
		credentials: credentials,
		store:       kv.NewMemory[models.StoredPresentation](),
		tracer:      tracer.NewNoop(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithSigner provisions the holder key.
func WithSigner(signer identity.Signer) Option {
	return func(s *Service) {
		s.signer = signer
	}
}

func WithStore(store kv.Store[models.StoredPresentation]) Option {
	return func(s *Service) {
		s.store = store
	}
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Create wraps the credentials in a presentation signed by the holder key, or
// an unsigned one when the holder has no key here.
func (s *Service) Create(ctx context.Context, req models.CreateRequest) (stored *models.StoredPresentation, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanPresentationCreate, tracer.Int(tracer.AttrCredentialCount, len(req.Credentials)))
	defer func() { span.End(err) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx).UTC().Truncate(time.Second)
	expires := now.Add(req.Expiry())
	claims := &models.Claims{
		VP: models.VerifiablePresentation{
			Context:              []string{credmodels.ContextCredentialsV1},
			Type:                 []string{models.TypeVerifiablePresentation},
			Holder:               req.Holder,
			VerifiableCredential: slices.Clone(req.Credentials),
		},
		Nonce: req.Challenge,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "urn:uuid:" + uuid.NewString(),
			Issuer:    req.Holder,
			Subject:   req.Holder,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	if req.Audience != "" {
		claims.Audience = jwt.ClaimStrings{req.Audience}
	}

	token, kind := s.sign(ctx, req.Holder, claims)
	if kind == identity.KindUnsignedDemo {
		token, err = identity.SignUnsigned(claims)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode presentation")
		}
	}
	span.SetAttributes(tracer.String(tracer.AttrCredentialKind, string(kind)))

	stored = &models.StoredPresentation{
		ID:              claims.ID,
		JWT:             token,
		Holder:          req.Holder,
		CreatedAt:       now,
		ExpiresAt:       expires,
		CredentialCount: len(req.Credentials),
		Nonce:           req.Challenge,
		Kind:            kind,
	}
	if err := s.store.Set(ctx, stored.ID, *stored); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store presentation")
	}
	return stored, nil
}

func (s *Service) sign(ctx context.Context, holder string, claims *models.Claims) (string, identity.Kind) {
	if s.signer == nil || s.signer.DID() != holder {
		s.logger.DebugContext(ctx, "no signing key for holder, creating unsigned presentation", "holder", holder)
		return "", identity.KindUnsignedDemo
	}
	token, err := s.signer.Sign(ctx, claims)
	if err != nil {
		s.logger.WarnContext(ctx, "presentation signing failed, creating unsigned presentation", "holder", holder, "error", err)
		return "", identity.KindUnsignedDemo
	}
	return token, identity.KindSigned
}

// Verify checks the outer presentation, then every embedded credential by
// position. Outer failures, including a challenge mismatch, are errors.
// Credential failures only clear CredentialsValid.
func (s *Service) Verify(ctx context.Context, req models.VerifyRequest) (result *models.VerificationResult, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanPresentationVerify)
	defer func() {
		span.End(err)
		if s.metrics != nil {
			s.metrics.IncVerification("presentation", err == nil && result.CredentialsValid)
		}
	}()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	claims := &models.Claims{}
	kind, err := identity.Inspect(req.JWT, claims)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed presentation JWT")
	}
	span.SetAttributes(tracer.String(tracer.AttrCredentialKind, string(kind)))

	if kind == identity.KindSigned {
		verified := &models.Claims{}
		if err := s.validator.Validate(ctx, req.JWT, holderOf(claims), verified); err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return nil, dErrors.Wrap(err, dErrors.CodeExpired, "presentation expired")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeVerificationFailed, fmt.Sprintf("presentation signature invalid: %v", err))
		}
		claims = verified
	} else if claims.ExpiresAt != nil && requestcontext.Now(ctx).After(claims.ExpiresAt.Time) {
		return nil, dErrors.New(dErrors.CodeExpired, "presentation expired")
	}

	if claims.Nonce != req.Challenge {
		return nil, models.ErrChallengeMismatch
	}

	checks := s.verifyCredentials(ctx, claims.VP.VerifiableCredential, req)
	valid := true
	for _, c := range checks {
		valid = valid && c.Valid
	}
	span.SetAttributes(
		tracer.Int(tracer.AttrCredentialCount, len(checks)),
		tracer.Bool(tracer.AttrCredentialsValid, valid),
	)

	return &models.VerificationResult{
		Presentation:     storedFrom(req.JWT, kind, claims),
		Kind:             kind,
		CredentialsValid: valid,
		Credentials:      checks,
	}, nil
}

// verifyCredentials validates each credential concurrently. A failure never
// cancels the others; results keep the embedding order.
func (s *Service) verifyCredentials(ctx context.Context, tokens []string, req models.VerifyRequest) []models.CredentialCheck {
	checks := make([]models.CredentialCheck, len(tokens))
	g, gctx := errgroup.WithContext(ctx)
	for i, token := range tokens {
		g.Go(func() error {
			check := models.CredentialCheck{Index: i}
			res, err := s.credentials.VerifyFrom(gctx, token, req.ExpectedIssuer(i))
			if err != nil {
				check.Error = err.Error()
				s.logger.InfoContext(ctx, "embedded credential failed verification", "index", i, "error", err)
			} else {
				check.Valid = true
				check.Kind = res.Kind
				check.Credential = &res.Credential
			}
			checks[i] = check
			return nil
		})
	}
	_ = g.Wait()
	return checks
}

func holderOf(claims *models.Claims) string {
	if claims.VP.Holder != "" {
		return claims.VP.Holder
	}
	return claims.Issuer
}

func storedFrom(token string, kind identity.Kind, claims *models.Claims) models.StoredPresentation {
	p := models.StoredPresentation{
		ID:              claims.ID,
		JWT:             token,
		Holder:          holderOf(claims),
		CredentialCount: len(claims.VP.VerifiableCredential),
		Nonce:           claims.Nonce,
		Kind:            kind,
	}
	if claims.IssuedAt != nil {
		p.CreatedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return p
}

// List returns stored presentations, newest first.
func (s *Service) List(ctx context.Context) ([]models.StoredPresentation, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list presentations")
	}
	slices.SortFunc(all, func(a, b models.StoredPresentation) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return all, nil
}

func (s *Service) Clear(ctx context.Context) (int, error) {
	n, err := s.store.Clear(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear presentations")
	}
	return n, nil
}
