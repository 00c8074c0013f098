package service

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"strings"

	"vcflow/internal/platform/kv"
	"vcflow/internal/sentinel"
	"vcflow/internal/shortener/models"
	dErrors "vcflow/pkg/domain-errors"
	"vcflow/pkg/requestcontext"
)

const (
	// IDLength is the number of base62 characters in a short ID.
	IDLength = 8
	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	// maxIDAttempts bounds collision retries; at 62^8 a second attempt is already rare.
	maxIDAttempts = 5
)

var errNotFound = dErrors.New(dErrors.CodeNotFound, "Shortened URL not found")

type Metrics interface {
	IncShortURLCreated()
	IncShortURLResolved(hit bool)
}

type Option func(*Service)

// Service stores short IDs for invitation URLs. Records never expire.
type Service struct {
	store   kv.Store[models.ShortURL]
	baseURL string
	newID   func() (string, error)
	metrics Metrics
	logger  *slog.Logger
}

// New builds short links as <baseURL>/i/<shortId>.
func New(store kv.Store[models.ShortURL], baseURL string, opts ...Option) *Service {
	svc := &Service{
		store:   store,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		newID:   randomID,
		logger:  slog.Default(),
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

// WithIDGenerator replaces the random short ID source.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(s *Service) {
		s.newID = gen
	}
}

// Shorten stores url under a fresh short ID.
func (s *Service) Shorten(ctx context.Context, req models.ShortenRequest) (*models.ShortenResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	id, err := s.freeID(ctx)
	if err != nil {
		return nil, err
	}
	record := models.ShortURL{
		ShortID:       id,
		InvitationURL: req.InvitationURL,
		Persistent:    req.Persistent,
		CreatedAt:     requestcontext.Now(ctx),
	}
	if err := s.store.Set(ctx, id, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store short URL")
	}
	if s.metrics != nil {
		s.metrics.IncShortURLCreated()
	}
	s.logger.InfoContext(ctx, "short url created", "short_id", id)

	return &models.ShortenResponse{
		ShortenedURL: s.baseURL + "/i/" + id,
		ShortID:      id,
		OriginalURL:  req.InvitationURL,
	}, nil
}

func (s *Service) freeID(ctx context.Context) (string, error) {
	for range maxIDAttempts {
		id, err := s.newID()
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate short ID")
		}
		_, err = s.store.Get(ctx, id)
		if errors.Is(err, sentinel.ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to check short ID")
		}
	}
	return "", dErrors.New(dErrors.CodeConflict, "could not allocate a unique short ID")
}

// Resolve returns the record for id.
func (s *Service) Resolve(ctx context.Context, id string) (*models.ShortURL, error) {
	record, err := s.store.Get(ctx, id)
	if s.metrics != nil {
		s.metrics.IncShortURLResolved(err == nil)
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, errNotFound
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load short URL")
	}
	return &record, nil
}

func randomID() (string, error) {
	return randomIDFrom(rand.Reader)
}

// maxUniformByte is the largest multiple of the alphabet size that fits in a
// byte; bytes at or above it are dropped so every character is equally likely.
const maxUniformByte = 256 - 256%len(alphabet)

func randomIDFrom(r io.Reader) (string, error) {
	id := make([]byte, 0, IDLength)
	buf := make([]byte, IDLength*2)
	for len(id) < IDLength {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= maxUniformByte {
				continue
			}
			id = append(id, alphabet[int(b)%len(alphabet)])
			if len(id) == IDLength {
				break
			}
		}
	}
	return string(id), nil
}
