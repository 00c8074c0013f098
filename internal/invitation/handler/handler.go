package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vcflow/internal/invitation/models"
	invservice "vcflow/internal/invitation/service"
	dErrors "vcflow/pkg/domain-errors"
	"vcflow/pkg/platform/httputil"
	"vcflow/pkg/requestcontext"
)

// Service defines the invitation operations used by the handler.
type Service interface {
	Put(ctx context.Context, inv models.Invitation) error
	Get(ctx context.Context, id string) (*models.Invitation, error)
	List(ctx context.Context) ([]models.Invitation, error)
	SetStatus(ctx context.Context, id string, status models.Status) (*models.Invitation, error)
	Delete(ctx context.Context, id string) error
	ClearAll(ctx context.Context) (models.ClearResult, error)
}

// Handler serves the dev server's invitation mirror.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts invitation endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/invitations", h.HandleCreate)
	r.Get("/api/invitations", h.HandleList)
	r.Delete("/api/invitations", h.HandleClear)
	r.Get("/api/invitations/{id}", h.HandleGet)
	r.Delete("/api/invitations/{id}", h.HandleDelete)
	r.Put("/api/invitations/{id}/status", h.HandleSetStatus)
}

// ClearResponse is the body of DELETE /api/invitations.
type ClearResponse struct {
	Deleted int `json:"deleted"`
}

// HandleCreate handles POST /api/invitations.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	inv := req.Invitation(requestcontext.Now(ctx))
	if err := h.service.Put(ctx, inv); err != nil {
		h.logger.ErrorContext(ctx, "failed to store invitation",
			"request_id", requestID,
			"invitation_id", inv.ID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, inv)
}

// HandleList handles GET /api/invitations.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	invitations, err := h.service.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list invitations",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if invitations == nil {
		invitations = []models.Invitation{}
	}

	httputil.WriteJSON(w, http.StatusOK, invitations)
}

// HandleGet handles GET /api/invitations/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	inv, err := h.service.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(ctx, w, "failed to get invitation", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, inv)
}

// HandleSetStatus handles PUT /api/invitations/{id}/status.
func (h *Handler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.StatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	status, err := models.ParseStatus(req.Status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	inv, err := h.service.SetStatus(ctx, chi.URLParam(r, "id"), status)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to update invitation status", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, inv)
}

// HandleDelete handles DELETE /api/invitations/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.service.Delete(ctx, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(ctx, w, "failed to delete invitation", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ClearResponse{Deleted: 1})
}

// HandleClear handles DELETE /api/invitations.
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.service.ClearAll(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to clear invitations",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ClearResponse{Deleted: result.LocalDeleted})
}

// writeServiceError logs unexpected failures; not-found is routine.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}

var _ Service = (*invservice.Service)(nil)
