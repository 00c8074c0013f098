package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"vcflow/internal/platform/kv"
	"vcflow/internal/shortener/models"
	shortservice "vcflow/internal/shortener/service"
	"vcflow/pkg/platform/httputil"
)

const invitationURL = "http://localhost:5173/#/accept-credential?oob=eyJncmFudHMiOnt9fQ=="

type HandlerSuite struct {
	suite.Suite
	router chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := shortservice.New(kv.NewMemory[models.ShortURL](), "http://localhost:3001", shortservice.WithLogger(logger))
	s.router = chi.NewRouter()
	New(svc, logger).Register(s.router)
}

func (s *HandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(method, path, reader))
	return w
}

func (s *HandlerSuite) shorten() models.ShortenResponse {
	w := s.do(http.MethodPost, "/api/shorten-invitation", `{"invitationUrl":"`+invitationURL+`","persistent":true}`)
	s.Require().Equal(http.StatusOK, w.Code)
	var res models.ShortenResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

func (s *HandlerSuite) errorBody(w *httptest.ResponseRecorder) string {
	var resp httputil.ErrorResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func (s *HandlerSuite) TestShorten() {
	res := s.shorten()
	s.Equal(invitationURL, res.OriginalURL)
	s.Equal("http://localhost:3001/i/"+res.ShortID, res.ShortenedURL)
}

func (s *HandlerSuite) TestShortenMissingURL() {
	w := s.do(http.MethodPost, "/api/shorten-invitation", `{"persistent":true}`)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("Invitation URL is required", s.errorBody(w))
}

func (s *HandlerSuite) TestRedirect() {
	res := s.shorten()

	w := s.do(http.MethodGet, "/i/"+res.ShortID, "")
	s.Equal(http.StatusFound, w.Code)
	s.Equal(invitationURL, w.Header().Get("Location"))
}

func (s *HandlerSuite) TestRedirectUnknown() {
	w := s.do(http.MethodGet, "/i/nope1234", "")
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("Shortened URL not found", s.errorBody(w))
}

func (s *HandlerSuite) TestGetRecord() {
	res := s.shorten()

	w := s.do(http.MethodGet, "/api/short/"+res.ShortID, "")
	s.Require().Equal(http.StatusOK, w.Code)
	var record models.ShortURL
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &record))
	s.Equal(res.ShortID, record.ShortID)
	s.Equal(invitationURL, record.InvitationURL)
	s.True(record.Persistent)
}

func (s *HandlerSuite) TestGetUnknownRecord() {
	w := s.do(http.MethodGet, "/api/short/unknownId", "")
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("Shortened URL not found", s.errorBody(w))
}
