package main

import (
	"context"
	"errors"
	"load-tracking-service/internal/api"
	"load-tracking-service/internal/config"
	"load-tracking-service/internal/platform/auth"
	"load-tracking-service/internal/platform/logger"
	"load-tracking-service/internal/ports"
	"load-tracking-service/internal/realtime"
	"load-tracking-service/internal/services"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// main is the application composition root.
// It wires concrete adapters behind ports and starts the HTTP server.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("load-tracking", "info").Error("config invalid", logger.Error(err))
		os.Exit(1)
	}

	log := logger.New(cfg.ServiceName, cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.Error("server stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log logger.ILogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	deps := &resources{}
	defer deps.closeAll(log)

	store, err := openStore(cfg, deps)
	if err != nil {
		return err
	}

	if cfg.SeedPath != "" {
		if err := seed(ctx, store, cfg.SeedPath, log); err != nil {
			return err
		}
	}

	geocoder, err := newGeocoder(cfg, deps, log)
	if err != nil {
		return err
	}
	gateway := services.NewGeocodingGateway(geocoder, cfg.GeocodeTimeout)

	hub := realtime.NewHub(log)
	var events ports.Broadcaster = hub
	if cfg.RedisURL != "" {
		client, err := redisClient(cfg, deps)
		if err != nil {
			return err
		}
		relay := realtime.NewRedisRelay(client, cfg.RedisChannel, hub, log)
		if err := relay.Start(ctx, 10*time.Second); err != nil {
			log.Warning("realtime relay unavailable, fanning out locally only", logger.Error(err))
		} else {
			events = relay
		}
	}

	loads := services.NewLoadLifecycle(store, gateway, events, services.LifecycleOptions{
		FrontendURL: cfg.FrontendURL,
		OwnerScoped: cfg.OwnerScoped(),
	})

	var verifier *auth.Verifier
	if cfg.OwnerScoped() {
		verifier, err = auth.NewVerifier(cfg.JWTSecret)
		if err != nil {
			return err
		}
	}

	router := api.NewRouter(api.RouterConfig{
		Loads:      loads,
		Socket:     realtime.NewSocketHandler(hub, loads, verifier, log),
		Verifier:   verifier,
		CORSOrigin: cfg.CORSOrigin,
		Log:        log,
	})

	// No WriteTimeout: websocket connections are long-lived. Geocoding calls
	// carry their own deadline.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			logger.String("addr", srv.Addr),
			logger.String("store", cfg.StoreDriver),
			logger.String("geocoder", cfg.Geocoder),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
