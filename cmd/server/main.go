package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	credservice "vcflow/internal/credential/service"
	"vcflow/internal/identity"
	invhandler "vcflow/internal/invitation/handler"
	invmodels "vcflow/internal/invitation/models"
	invservice "vcflow/internal/invitation/service"
	issuerhandler "vcflow/internal/issuer/handler"
	issuermodels "vcflow/internal/issuer/models"
	issuerservice "vcflow/internal/issuer/service"
	"vcflow/internal/platform/config"
	"vcflow/internal/platform/health"
	"vcflow/internal/platform/httpserver"
	"vcflow/internal/platform/kv"
	"vcflow/internal/platform/logger"
	"vcflow/internal/platform/metrics"
	redisclient "vcflow/internal/platform/redis"
	"vcflow/internal/platform/tracer"
	shorthandler "vcflow/internal/shortener/handler"
	shortmodels "vcflow/internal/shortener/models"
	shortservice "vcflow/internal/shortener/service"
	httptransport "vcflow/internal/transport/http"
)

// main wires the dev server: stores, services, handlers and the HTTP lifecycle.
// Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	key, err := issuerKey(cfg.IssuerKeySeed)
	if err != nil {
		return err
	}

	log.Info("initializing vcflow dev server",
		"addr", cfg.Addr,
		"public_base_url", cfg.PublicBaseURL,
		"issuer_id", cfg.IssuerID,
		"issuer_did", key.DID(),
		"demo_offer_fallback", cfg.DemoOfferFallback,
	)

	m := metrics.New()
	tr := tracer.NewOTel()
	healthHandler := health.New(cfg.Environment)

	invitationStore, shortURLStore, closeStores, err := buildStores(ctx, cfg, healthHandler, log)
	if err != nil {
		return err
	}
	defer closeStores()

	// The server holds exactly what clients post; expiry is judged client-side.
	invitations := invservice.New(invitationStore,
		invservice.WithoutExpiry(),
		invservice.WithMetrics(m),
		invservice.WithTracer(tr),
		invservice.WithLogger(log),
	)
	shortURLs := shortservice.New(shortURLStore, cfg.PublicBaseURL,
		shortservice.WithMetrics(m),
		shortservice.WithLogger(log),
	)
	credentials := credservice.New(identity.NewValidator(identity.NewRegistry()),
		credservice.WithSigner(identity.NewSigner(key)),
		credservice.WithMetrics(m),
		credservice.WithTracer(tr),
		credservice.WithLogger(log),
	)
	issuer := issuerservice.New(invitations, credentials, issuermodels.Config{
		IssuerID:          cfg.IssuerID,
		PublicBaseURL:     cfg.PublicBaseURL,
		IssuerDID:         key.DID(),
		DemoOfferFallback: cfg.DemoOfferFallback,
	}, issuerservice.WithMetrics(m), issuerservice.WithLogger(log))

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:        log,
		Metrics:       m,
		AllowedOrigin: cfg.AllowedOrigin,
		Health:        healthHandler,
		Handlers: []httptransport.Registrar{
			invhandler.New(invitations, log),
			shorthandler.New(shortURLs, log),
			issuerhandler.New(issuer, log),
		},
	})

	srv := httpserver.New(cfg.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// buildStores picks Redis when REDIS_URL is set and in-memory maps otherwise.
func buildStores(ctx context.Context, cfg config.Server, h *health.Handler, log *slog.Logger) (kv.Store[invmodels.Invitation], kv.Store[shortmodels.ShortURL], func(), error) {
	client, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	if client == nil {
		log.Info("using in-memory stores")
		return kv.NewMemory[invmodels.Invitation](), kv.NewMemory[shortmodels.ShortURL](), func() {}, nil
	}

	log.Info("using redis stores")
	h.RegisterCheck("redis", client.Health)
	closeFn := func() {
		if err := client.Close(); err != nil {
			log.Warn("closing redis client", "error", err)
		}
	}
	return kv.NewRedis[invmodels.Invitation](client.Client, "invitations"),
		kv.NewRedis[shortmodels.ShortURL](client.Client, "short_urls"),
		closeFn, nil
}

func issuerKey(seedHex string) (*identity.KeyPair, error) {
	if seedHex == "" {
		return identity.GenerateKeyPair()
	}
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("decode ISSUER_KEY_SEED: %w", err)
	}
	return identity.KeyPairFromSeed(seed)
}
