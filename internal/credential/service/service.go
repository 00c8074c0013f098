package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"vcflow/internal/credential/models"
	"vcflow/internal/identity"
	"vcflow/internal/platform/kv"
	"vcflow/internal/platform/tracer"
	dErrors "vcflow/pkg/domain-errors"
	"vcflow/pkg/requestcontext"
)

// Validator checks a signed JWT against the DID document of did.
type Validator interface {
	Validate(ctx context.Context, token, did string, claims jwt.Claims) error
}

// Metrics records issuance and verification outcomes.
type Metrics interface {
	IncCredentialIssued(kind string)
	IncVerification(subject string, valid bool)
}

// Option configures the credential service.
type Option func(*Service)

// Service issues credentials with the signed-or-unsigned fallback, verifies
// them on the matching path, and keeps the holder's wallet.
type Service struct {
	signer    identity.Signer
	validator Validator
	wallet    kv.Store[models.StoredCredential]
	metrics   Metrics
	tracer    tracer.Tracer
	logger    *slog.Logger
	validity  time.Duration
}

func New(validator Validator, opts ...Option) *Service {
	svc := &Service{
		validator: validator,
		wallet:    kv.NewMemory[models.StoredCredential](),
		tracer:    tracer.NewNoop(),
		logger:    slog.Default(),
		validity:  models.DefaultValidity,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithSigner provisions the issuer key. Without one every credential is unsigned.
func WithSigner(signer identity.Signer) Option {
	return func(s *Service) {
		s.signer = signer
	}
}

// WithWallet sets the store backing Save, List and Clear.
func WithWallet(store kv.Store[models.StoredCredential]) Option {
	return func(s *Service) {
		s.wallet = store
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

// Issue attempts a signed credential and, if that is not possible, returns an
// unsigned alg "none" credential with the same claims. There is no retry and
// the fallback is not an error.
func (s *Service) Issue(ctx context.Context, req models.IssueRequest) (issued *models.IssuedCredential, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanCredentialIssue, tracer.String(tracer.AttrCredentialType, req.Type))
	defer func() { span.End(err) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	issuer := req.Issuer
	if issuer == "" && s.signer != nil {
		issuer = s.signer.DID()
	}
	if issuer == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "issuer is required")
	}

	claims := s.buildClaims(ctx, issuer, req)

	token, kind := s.sign(ctx, issuer, claims)
	if kind == identity.KindUnsignedDemo {
		token, err = identity.SignUnsigned(claims)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode credential")
		}
	}
	span.SetAttributes(tracer.String(tracer.AttrCredentialKind, string(kind)))
	if s.metrics != nil {
		s.metrics.IncCredentialIssued(string(kind))
	}

	return &models.IssuedCredential{
		JWT:        token,
		Kind:       kind,
		Credential: storedFrom(token, kind, claims),
	}, nil
}

// sign returns KindUnsignedDemo when no signer is configured for issuer or the
// signer fails.
func (s *Service) sign(ctx context.Context, issuer string, claims *models.Claims) (string, identity.Kind) {
	if s.signer == nil || s.signer.DID() != issuer {
		s.logger.DebugContext(ctx, "no signing key for issuer, issuing unsigned credential", "issuer", issuer)
		return "", identity.KindUnsignedDemo
	}
	token, err := s.signer.Sign(ctx, claims)
	if err != nil {
		s.logger.WarnContext(ctx, "credential signing failed, issuing unsigned credential", "issuer", issuer, "error", err)
		return "", identity.KindUnsignedDemo
	}
	return token, identity.KindSigned
}

func (s *Service) buildClaims(ctx context.Context, issuer string, req models.IssueRequest) *models.Claims {
	now := requestcontext.Now(ctx).UTC().Truncate(time.Second)
	expires := now.Add(s.validity)

	subject := maps.Clone(req.Claims)
	if subject == nil {
		subject = map[string]any{}
	}
	subject["id"] = req.Subject

	types := []string{models.TypeVerifiableCredential}
	if req.Type != models.TypeVerifiableCredential {
		types = append(types, req.Type)
	}

	return &models.Claims{
		VC: models.VerifiableCredential{
			Context:           []string{models.ContextCredentialsV1},
			Type:              types,
			Issuer:            issuer,
			IssuanceDate:      now.Format(time.RFC3339),
			ExpirationDate:    expires.Format(time.RFC3339),
			CredentialSubject: subject,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "urn:uuid:" + uuid.NewString(),
			Issuer:    issuer,
			Subject:   req.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
}

// Verify checks a credential on the path its header selects: alg "none" gets
// structural checks only, anything else a signature check against the
// issuer's DID document.
func (s *Service) Verify(ctx context.Context, token string) (*models.VerificationResult, error) {
	return s.VerifyFrom(ctx, token, "")
}

// VerifyFrom is Verify that additionally requires the credential to be issued
// by expectedIssuer when it is non-empty.
func (s *Service) VerifyFrom(ctx context.Context, token, expectedIssuer string) (result *models.VerificationResult, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanCredentialVerify)
	defer func() {
		span.End(err)
		if s.metrics != nil {
			s.metrics.IncVerification("credential", err == nil)
		}
	}()

	claims := &models.Claims{}
	kind, err := identity.Inspect(token, claims)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed credential JWT")
	}
	span.SetAttributes(tracer.String(tracer.AttrCredentialKind, string(kind)))

	if expectedIssuer != "" && claims.Issuer != expectedIssuer {
		return nil, dErrors.New(dErrors.CodeVerificationFailed,
			fmt.Sprintf("credential issued by %q, expected %q", claims.Issuer, expectedIssuer))
	}

	switch kind {
	case identity.KindUnsignedDemo:
		if err := checkStructure(ctx, claims); err != nil {
			return nil, err
		}
	default:
		verified := &models.Claims{}
		if err := s.validator.Validate(ctx, token, claims.Issuer, verified); err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return nil, dErrors.Wrap(err, dErrors.CodeExpired, "credential expired")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeVerificationFailed, fmt.Sprintf("credential signature invalid: %v", err))
		}
		claims = verified
	}

	return &models.VerificationResult{
		Valid:      true,
		Kind:       kind,
		Credential: storedFrom(token, kind, claims),
	}, nil
}

// checkStructure is all an unsigned credential can be checked for. It asserts
// nothing about who issued it.
func checkStructure(ctx context.Context, claims *models.Claims) error {
	if claims.Issuer == "" {
		return dErrors.New(dErrors.CodeVerificationFailed, "credential has no issuer")
	}
	if claims.Subject == "" {
		if id, _ := claims.VC.CredentialSubject["id"].(string); id == "" {
			return dErrors.New(dErrors.CodeVerificationFailed, "credential has no subject")
		}
	}
	if claims.ExpiresAt != nil && requestcontext.Now(ctx).After(claims.ExpiresAt.Time) {
		return dErrors.New(dErrors.CodeExpired, "credential expired")
	}
	return nil
}

// Decode returns the flattened view of a credential without verifying it.
func Decode(token string) (*models.StoredCredential, error) {
	claims := &models.Claims{}
	kind, err := identity.Inspect(token, claims)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed credential JWT")
	}
	stored := storedFrom(token, kind, claims)
	return &stored, nil
}

func storedFrom(token string, kind identity.Kind, claims *models.Claims) models.StoredCredential {
	subject := claims.Subject
	if subject == "" {
		subject, _ = claims.VC.CredentialSubject["id"].(string)
	}
	issuer := claims.Issuer
	if issuer == "" {
		issuer = claims.VC.Issuer
	}
	id := claims.ID
	if id == "" {
		id = "urn:uuid:" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(token)).String()
	}

	stored := models.StoredCredential{
		ID:      id,
		JWT:     token,
		Issuer:  issuer,
		Subject: subject,
		Type:    models.MostSpecificType(claims.VC.Type),
		Claims:  models.Flatten(claims.VC.CredentialSubject),
		Kind:    kind,
	}
	if claims.IssuedAt != nil {
		stored.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time.UTC()
		stored.ExpiresAt = &exp
	}
	return stored
}

// Save decodes a received credential into the wallet. Invalid signatures are
// not rejected here; Verify is the check.
func (s *Service) Save(ctx context.Context, token string) (*models.StoredCredential, error) {
	stored, err := Decode(token)
	if err != nil {
		return nil, err
	}
	if err := s.wallet.Set(ctx, stored.ID, *stored); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store credential")
	}
	return stored, nil
}

// List returns unexpired wallet credentials, newest first. Expired ones stay
// stored until Clear.
func (s *Service) List(ctx context.Context) ([]models.StoredCredential, error) {
	all, err := s.wallet.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list credentials")
	}
	now := requestcontext.Now(ctx)
	out := slices.DeleteFunc(all, func(c models.StoredCredential) bool {
		return c.IsExpired(now)
	})
	slices.SortFunc(out, func(a, b models.StoredCredential) int {
		return b.IssuedAt.Compare(a.IssuedAt)
	})
	return out, nil
}

// Clear removes every wallet credential, expired or not.
func (s *Service) Clear(ctx context.Context) (int, error) {
	n, err := s.wallet.Clear(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear credentials")
	}
	return n, nil
}
