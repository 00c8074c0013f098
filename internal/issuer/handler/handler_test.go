package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	credservice "vcflow/internal/credential/service"
	"vcflow/internal/identity"
	invmodels "vcflow/internal/invitation/models"
	invservice "vcflow/internal/invitation/service"
	"vcflow/internal/issuer/models"
	issuerservice "vcflow/internal/issuer/service"
	offermodels "vcflow/internal/offer/models"
	"vcflow/internal/platform/kv"
	"vcflow/pkg/platform/httputil"
)

type HandlerSuite struct {
	suite.Suite
	store *kv.Memory[invmodels.Invitation]
	cfg   models.Config
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.store = kv.NewMemory[invmodels.Invitation]()
	s.cfg = models.Config{
		IssuerID:          "http://localhost:3001",
		PublicBaseURL:     "http://localhost:3001",
		DemoOfferFallback: true,
	}
}

func (s *HandlerSuite) router() chi.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	invitations := invservice.New(s.store, invservice.WithoutExpiry(), invservice.WithLogger(logger))
	credentials := credservice.New(identity.NewValidator(identity.NewRegistry()), credservice.WithLogger(logger))
	svc := issuerservice.New(invitations, credentials, s.cfg, issuerservice.WithLogger(logger))

	r := chi.NewRouter()
	New(svc, logger).Register(r)
	return r
}

func (s *HandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	w := httptest.NewRecorder()
	s.router().ServeHTTP(w, httptest.NewRequest(method, path, reader))
	return w
}

func (s *HandlerSuite) errorBody(w *httptest.ResponseRecorder) string {
	var resp httputil.ErrorResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func (s *HandlerSuite) put(inv invmodels.Invitation) {
	s.Require().NoError(s.store.Set(context.Background(), inv.ID, inv))
}

func (s *HandlerSuite) TestDiscovery() {
	w := s.do(http.MethodGet, "/.well-known/openid-credential-issuer", "")
	s.Require().Equal(http.StatusOK, w.Code)
	var md models.IssuerMetadata
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &md))
	s.Equal("http://localhost:3001", md.CredentialIssuer)

	w = s.do(http.MethodGet, "/.well-known/oauth-authorization-server", "")
	s.Require().Equal(http.StatusOK, w.Code)
	var as models.AuthorizationServerMetadata
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &as))
	s.Equal("http://localhost:3001/api/credentials/issue", as.TokenEndpoint)
}

func (s *HandlerSuite) TestCredentialOffer() {
	s.Run("missing invitation_id", func() {
		w := s.do(http.MethodGet, "/api/invitations/credential-offer", "")
		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal("invitation_id is required", s.errorBody(w))
	})

	s.Run("stored invitation", func() {
		s.put(invmodels.Invitation{ID: "inv-1", Status: invmodels.StatusPending, CredentialType: "EmployeeCredential", CredentialJWT: "a.b."})

		w := s.do(http.MethodGet, "/api/invitations/credential-offer?invitation_id=inv-1", "")
		s.Require().Equal(http.StatusOK, w.Code)
		var o offermodels.CredentialOffer
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &o))
		s.Equal("inv-1", o.PreAuthorizedCode())
		s.Equal("a.b.", o.CredentialJWT())
	})

	s.Run("unknown invitation gets a demo offer", func() {
		w := s.do(http.MethodGet, "/api/invitations/credential-offer?invitation_id=demo-42", "")
		s.Require().Equal(http.StatusOK, w.Code)
		var o offermodels.CredentialOffer
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &o))
		s.Equal("demo-42", o.PreAuthorizedCode())

		kind, err := identity.Inspect(o.CredentialJWT(), jwt.MapClaims{})
		s.Require().NoError(err)
		s.Equal(identity.KindUnsignedDemo, kind)
	})

	s.Run("unknown invitation without fallback", func() {
		s.cfg.DemoOfferFallback = false
		defer func() { s.cfg.DemoOfferFallback = true }()

		w := s.do(http.MethodGet, "/api/invitations/credential-offer?invitation_id=other", "")
		s.Equal(http.StatusNotFound, w.Code)
		s.Equal("Invitation not found", s.errorBody(w))
	})
}

func (s *HandlerSuite) TestIssueCredential() {
	s.Run("missing code", func() {
		w := s.do(http.MethodPost, "/api/credentials/issue", `{}`)
		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal("pre_authorized_code is required", s.errorBody(w))
	})

	s.Run("unknown code", func() {
		w := s.do(http.MethodPost, "/api/credentials/issue", `{"pre_authorized_code":"nope"}`)
		s.Equal(http.StatusNotFound, w.Code)
		s.Equal("Invitation not found", s.errorBody(w))
	})

	s.Run("invitation without credential", func() {
		s.put(invmodels.Invitation{ID: "empty", Status: invmodels.StatusPending})

		w := s.do(http.MethodPost, "/api/credentials/issue", `{"pre_authorized_code":"empty"}`)
		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal("Credential JWT not available", s.errorBody(w))
	})

	s.Run("issues and accepts", func() {
		s.put(invmodels.Invitation{ID: "inv-2", Status: invmodels.StatusPending, CredentialJWT: "a.b."})

		w := s.do(http.MethodPost, "/api/credentials/issue", `{"pre_authorized_code":"inv-2"}`)
		s.Require().Equal(http.StatusOK, w.Code)
		var res models.CredentialResponse
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &res))
		s.Equal("a.b.", res.Credential)
		s.Equal("jwt_vc_json", res.Format)

		stored, err := s.store.Get(context.Background(), "inv-2")
		s.Require().NoError(err)
		s.Equal(invmodels.StatusAccepted, stored.Status)
	})
}

func (s *HandlerSuite) TestIssueCredentialRedeemsOnce() {
	s.Run("second exchange is a 409", func() {
		s.put(invmodels.Invitation{ID: "once", Status: invmodels.StatusPending, CredentialJWT: "a.b."})

		w := s.do(http.MethodPost, "/api/credentials/issue", `{"pre_authorized_code":"once"}`)
		s.Require().Equal(http.StatusOK, w.Code)

		w = s.do(http.MethodPost, "/api/credentials/issue", `{"pre_authorized_code":"once"}`)
		s.Equal(http.StatusConflict, w.Code)
		s.Equal("Invitation already accepted", s.errorBody(w))
	})

	s.Run("rejected invitation is a 409 and keeps its status", func() {
		s.put(invmodels.Invitation{ID: "rej", Status: invmodels.StatusRejected, CredentialJWT: "a.b."})

		w := s.do(http.MethodPost, "/api/credentials/issue", `{"pre_authorized_code":"rej"}`)
		s.Equal(http.StatusConflict, w.Code)
		s.Equal("Invitation already rejected", s.errorBody(w))

		stored, err := s.store.Get(context.Background(), "rej")
		s.Require().NoError(err)
		s.Equal(invmodels.StatusRejected, stored.Status)
	})
}
