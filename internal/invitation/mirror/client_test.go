package mirror_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vcflow/internal/invitation/handler"
	"vcflow/internal/invitation/mirror"
	"vcflow/internal/invitation/models"
	invservice "vcflow/internal/invitation/service"
	"vcflow/internal/platform/kv"
	"vcflow/internal/sentinel"
	dErrors "vcflow/pkg/domain-errors"
)

func newServer(t *testing.T) (*httptest.Server, *kv.Memory[models.Invitation]) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := kv.NewMemory[models.Invitation]()
	r := chi.NewRouter()
	handler.New(invservice.New(store, invservice.WithoutExpiry(), invservice.WithLogger(logger)), logger).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store
}

func TestClientRoundTrip(t *testing.T) {
	srv, store := newServer(t)
	client := mirror.New(srv.URL+"/", srv.Client())
	ctx := context.Background()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	inv := models.Invitation{
		ID:             "code-1",
		DeepLink:       "openid-credential-offer://?oob=e30=",
		HTTPURL:        "http://localhost:3000/#/accept-credential?oob=e30=",
		Status:         models.StatusPending,
		CreatedAt:      created,
		ExpiresAt:      created.Add(24 * time.Hour),
		CredentialType: "UniversityDegreeCredential",
		CredentialJWT:  "a.b.",
	}
	require.NoError(t, client.Save(ctx, inv))

	stored, err := store.Get(ctx, "code-1")
	require.NoError(t, err)
	assert.True(t, created.Equal(stored.CreatedAt))
	assert.True(t, inv.ExpiresAt.Equal(stored.ExpiresAt))

	got, err := client.Get(ctx, "code-1")
	require.NoError(t, err)
	assert.Equal(t, "a.b.", got.CredentialJWT)

	require.NoError(t, client.UpdateStatus(ctx, "code-1", models.StatusRejected))
	list, err := client.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.StatusRejected, list[0].Status)

	n, err := client.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestClientErrors(t *testing.T) {
	srv, _ := newServer(t)
	ctx := context.Background()

	t.Run("missing invitation maps to not found", func(t *testing.T) {
		_, err := mirror.New(srv.URL, srv.Client()).Get(ctx, "nope")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
		assert.Equal(t, "Invitation not found", err.Error())
	})

	t.Run("unknown status is a bad request", func(t *testing.T) {
		client := mirror.New(srv.URL, srv.Client())
		require.NoError(t, client.Save(ctx, models.Invitation{ID: "x", Status: models.StatusPending}))
		err := client.UpdateStatus(ctx, "x", "archived")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("unreachable server", func(t *testing.T) {
		err := mirror.New("http://127.0.0.1:1", nil).Delete(ctx, "x")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	})

	t.Run("server error", func(t *testing.T) {
		broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer broken.Close()
		_, err := mirror.New(broken.URL, broken.Client()).Clear(ctx)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}
