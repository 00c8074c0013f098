package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vcflow/internal/shortener/models"
	shortservice "vcflow/internal/shortener/service"
	dErrors "vcflow/pkg/domain-errors"
	"vcflow/pkg/platform/httputil"
	"vcflow/pkg/requestcontext"
)

// Service defines the shortener operations used by the handler.
type Service interface {
	Shorten(ctx context.Context, req models.ShortenRequest) (*models.ShortenResponse, error)
	Resolve(ctx context.Context, id string) (*models.ShortURL, error)
}

// Handler serves URL shortening and the short-link redirect.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/api/shorten-invitation", h.HandleShorten)
	r.Get("/api/short/{shortId}", h.HandleGet)
	r.Get("/i/{shortId}", h.HandleRedirect)
}

// HandleShorten handles POST /api/shorten-invitation.
func (h *Handler) HandleShorten(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.ShortenRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Shorten(ctx, *req)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to shorten invitation url",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleGet handles GET /api/short/{shortId}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	record, ok := h.resolve(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

// HandleRedirect handles GET /i/{shortId} with a 302 to the stored URL.
func (h *Handler) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	record, ok := h.resolve(w, r)
	if !ok {
		return
	}
	http.Redirect(w, r, record.InvitationURL, http.StatusFound)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) (*models.ShortURL, bool) {
	ctx := r.Context()
	record, err := h.service.Resolve(ctx, chi.URLParam(r, "shortId"))
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "failed to resolve short url",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return nil, false
	}
	return record, true
}

var _ Service = (*shortservice.Service)(nil)
