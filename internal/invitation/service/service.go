package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Mirror

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"vcflow/internal/invitation/models"
	"vcflow/internal/offer"
	"vcflow/internal/platform/kv"
	"vcflow/internal/platform/tracer"
	"vcflow/internal/sentinel"
	dErrors "vcflow/pkg/domain-errors"
	"vcflow/pkg/requestcontext"
)

// Mirror is the best-effort remote copy of the invitation store.
type Mirror interface {
	Save(ctx context.Context, inv models.Invitation) error
	UpdateStatus(ctx context.Context, id string, status models.Status) error
	Clear(ctx context.Context) (int, error)
}

type Metrics interface {
	IncInvitationsCreated()
	IncInvitationStatus(status string)
	AddInvitationsDeleted(n int)
}

type Option func(*Service)

// Service owns the invitation lifecycle: creation with both offer links,
// lazy expiry on read, wallet-driven status changes, and clearing.
type Service struct {
	store         kv.Store[models.Invitation]
	encoder       offer.Encoder
	shortener     offer.Shortener
	mirror        Mirror
	enforceExpiry bool
	metrics       Metrics
	tracer        tracer.Tracer
	logger        *slog.Logger
}

func New(store kv.Store[models.Invitation], opts ...Option) *Service {
	svc := &Service{
		store:         store,
		encoder:       offer.NewEncoder(offer.DefaultScheme, ""),
		shortener:     offer.NoopShortener{},
		enforceExpiry: true,
		tracer:        tracer.NewNoop(),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithEncoder sets the deep link scheme and the wallet app base URL.
func WithEncoder(enc offer.Encoder) Option {
	return func(s *Service) {
		s.encoder = enc
	}
}

func WithShortener(sh offer.Shortener) Option {
	return func(s *Service) {
		s.shortener = sh
	}
}

func WithMirror(m Mirror) Option {
	return func(s *Service) {
		s.mirror = m
	}
}

// WithoutExpiry disables the lazy expiry flip. The dev server keeps mirrored
// invitations as posted.
func WithoutExpiry() Option {
	return func(s *Service) {
		s.enforceExpiry = false
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

// Create builds an offer for the credential, encodes both links, stores the
// invitation as pending and mirrors it. A TTL of zero yields an invitation
// that is already expired.
func (s *Service) Create(ctx context.Context, credentialJWT, credentialType, issuer string, ttlMinutes int) (inv *models.Invitation, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanInvitationCreate, tracer.String(tracer.AttrCredentialType, credentialType))
	defer func() { span.End(err) }()

	if ttlMinutes < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "ttl must not be negative")
	}
	o, err := offer.Build(credentialJWT, credentialType, issuer)
	if err != nil {
		return nil, err
	}
	deepLink, err := s.encoder.DeepLink(o)
	if err != nil {
		return nil, err
	}
	httpURL, err := s.encoder.HTTPLink(o)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	inv = &models.Invitation{
		ID:             o.PreAuthorizedCode(),
		DeepLink:       deepLink,
		HTTPURL:        httpURL,
		Status:         models.StatusPending,
		CreatedAt:      now,
		ExpiresAt:      now.Add(time.Duration(ttlMinutes) * time.Minute),
		CredentialType: o.CredentialType(),
		IssuerDID:      issuer,
		CredentialJWT:  credentialJWT,
	}
	span.SetAttributes(tracer.String(tracer.AttrInvitationID, inv.ID))

	if short := s.shorten(ctx, httpURL); short != httpURL {
		inv.ShortURL = short
	}

	if err := s.store.Set(ctx, inv.ID, *inv); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store invitation")
	}
	if s.metrics != nil {
		s.metrics.IncInvitationsCreated()
	}
	if s.mirror != nil {
		if err := s.mirror.Save(ctx, *inv); err != nil {
			s.logger.WarnContext(ctx, "invitation mirror save failed", "invitation_id", inv.ID, "error", err)
		}
	}
	return inv, nil
}

func (s *Service) shorten(ctx context.Context, longURL string) string {
	ctx, span := s.tracer.Start(ctx, tracer.SpanOfferShorten)
	defer span.End(nil)
	return s.shortener.Shorten(ctx, longURL)
}

// Put stores an invitation as given. It backs the dev server's POST endpoint.
func (s *Service) Put(ctx context.Context, inv models.Invitation) error {
	if inv.ID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "Invitation ID is required")
	}
	if err := s.store.Set(ctx, inv.ID, inv); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store invitation")
	}
	if s.metrics != nil {
		s.metrics.IncInvitationsCreated()
	}
	return nil
}

// Get returns the invitation, first flipping a pending invitation past its
// expiry to expired and persisting the flip.
func (s *Service) Get(ctx context.Context, id string) (inv *models.Invitation, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanInvitationGet, tracer.String(tracer.AttrInvitationID, id))
	defer func() { span.End(err) }()

	stored, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	flipped, err := s.expireIfDue(ctx, stored)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.Bool(tracer.AttrExpired, flipped.Status == models.StatusExpired))
	return &flipped, nil
}

func (s *Service) load(ctx context.Context, id string) (models.Invitation, error) {
	inv, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Invitation{}, dErrors.New(dErrors.CodeNotFound, "Invitation not found")
		}
		return models.Invitation{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load invitation")
	}
	return inv, nil
}

// expireIfDue persists the pending→expired flip. Concurrent readers may both
// write it; the write is idempotent.
func (s *Service) expireIfDue(ctx context.Context, inv models.Invitation) (models.Invitation, error) {
	if !s.enforceExpiry || inv.Status != models.StatusPending || !inv.IsExpired(requestcontext.Now(ctx)) {
		return inv, nil
	}
	inv.Status = models.StatusExpired
	if err := s.store.Set(ctx, inv.ID, inv); err != nil {
		return inv, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist invitation expiry")
	}
	if s.metrics != nil {
		s.metrics.IncInvitationStatus(string(models.StatusExpired))
	}
	return inv, nil
}

// List returns every invitation newest first, applying the expiry flip.
func (s *Service) List(ctx context.Context) ([]models.Invitation, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list invitations")
	}
	for i := range all {
		if all[i], err = s.expireIfDue(ctx, all[i]); err != nil {
			return nil, err
		}
	}
	slices.SortFunc(all, func(a, b models.Invitation) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return all, nil
}

// SetStatus overwrites the status. Setting the current status again is a no-op
// apart from the write.
func (s *Service) SetStatus(ctx context.Context, id string, status models.Status) (*models.Invitation, error) {
	if !status.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown invitation status")
	}
	inv, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	inv.Status = status
	if err := s.store.Set(ctx, id, inv); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update invitation status")
	}
	if s.metrics != nil {
		s.metrics.IncInvitationStatus(string(status))
	}
	if s.mirror != nil {
		if err := s.mirror.UpdateStatus(ctx, id, status); err != nil {
			s.logger.WarnContext(ctx, "invitation mirror status update failed", "invitation_id", id, "error", err)
		}
	}
	return &inv, nil
}

func (s *Service) Accept(ctx context.Context, id string) (*models.Invitation, error) {
	return s.SetStatus(ctx, id, models.StatusAccepted)
}

func (s *Service) Reject(ctx context.Context, id string) (*models.Invitation, error) {
	return s.SetStatus(ctx, id, models.StatusRejected)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "Invitation not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete invitation")
	}
	if s.metrics != nil {
		s.metrics.AddInvitationsDeleted(1)
	}
	return nil
}

// ClearExpired physically removes invitations whose expiry has passed.
func (s *Service) ClearExpired(ctx context.Context) (int, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list invitations")
	}
	now := requestcontext.Now(ctx)
	removed := 0
	for _, inv := range all {
		if inv.Status != models.StatusExpired && !inv.IsExpired(now) {
			continue
		}
		if err := s.store.Delete(ctx, inv.ID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return removed, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete expired invitation")
		}
		removed++
	}
	if s.metrics != nil && removed > 0 {
		s.metrics.AddInvitationsDeleted(removed)
	}
	return removed, nil
}

// ClearAll clears the local store and the mirror. Both are always attempted;
// the result carries each side's error and the returned error joins them.
func (s *Service) ClearAll(ctx context.Context) (result models.ClearResult, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanInvitationClearAll)
	defer func() { span.End(err) }()

	n, localErr := s.store.Clear(ctx)
	if localErr != nil {
		result.LocalErr = dErrors.Wrap(localErr, dErrors.CodeInternal, "failed to clear local invitations")
		s.logger.ErrorContext(ctx, "clearing local invitations failed", "error", localErr)
	} else {
		result.LocalDeleted = n
		if s.metrics != nil {
			s.metrics.AddInvitationsDeleted(n)
		}
	}

	if s.mirror != nil {
		remote, remoteErr := s.mirror.Clear(ctx)
		if remoteErr != nil {
			result.RemoteErr = dErrors.Wrap(remoteErr, dErrors.CodeUnavailable, "failed to clear server invitations")
			s.logger.WarnContext(ctx, "clearing mirrored invitations failed", "error", remoteErr)
		} else {
			result.RemoteDeleted = remote
		}
	}

	return result, errors.Join(result.LocalErr, result.RemoteErr)
}
