package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vcflow/internal/issuer/models"
	issuerservice "vcflow/internal/issuer/service"
	offermodels "vcflow/internal/offer/models"
	dErrors "vcflow/pkg/domain-errors"
	"vcflow/pkg/platform/httputil"
	"vcflow/pkg/requestcontext"
)

// Service defines the issuer operations used by the handler.
type Service interface {
	Metadata() models.IssuerMetadata
	AuthorizationServer() models.AuthorizationServerMetadata
	CredentialOffer(ctx context.Context, invitationID string) (*offermodels.CredentialOffer, error)
	IssueCredential(ctx context.Context, code string) (*models.CredentialResponse, error)
}

// Handler serves the emulated OpenID4VCI issuer endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/.well-known/openid-credential-issuer", h.HandleIssuerMetadata)
	r.Get("/.well-known/oauth-authorization-server", h.HandleAuthorizationServer)
	r.Get("/api/invitations/credential-offer", h.HandleCredentialOffer)
	r.Post(models.CredentialPath, h.HandleIssueCredential)
}

func (h *Handler) HandleIssuerMetadata(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.Metadata())
}

func (h *Handler) HandleAuthorizationServer(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.AuthorizationServer())
}

// HandleCredentialOffer handles GET /api/invitations/credential-offer?invitation_id=ID.
func (h *Handler) HandleCredentialOffer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	invitationID := r.URL.Query().Get("invitation_id")

	o, err := h.service.CredentialOffer(ctx, invitationID)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to build credential offer", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, o)
}

// HandleIssueCredential handles POST /api/credentials/issue.
func (h *Handler) HandleIssueCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.CredentialRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.IssueCredential(ctx, req.PreAuthorizedCode)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to issue credential", err)
		return
	}

	h.logger.InfoContext(ctx, "credential issued",
		"request_id", requestID,
		"invitation_id", req.PreAuthorizedCode,
	)
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}

var _ Service = (*issuerservice.Service)(nil)
