package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/activitysync/internal/config"
	"example.com/activitysync/internal/devapi"
	"example.com/activitysync/internal/logging"
	httptransport "example.com/activitysync/internal/transport/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "devapi: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadDevAPI()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo := devapi.NewInMemoryRepository()
	auth := devapi.AuthConfig{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}
	if cfg.Seed {
		if err := devapi.Seed(repo, time.Now()); err != nil {
			return err
		}
		tokens, err := devapi.SeedTokens(auth)
		if err != nil {
			return err
		}
		for username, token := range tokens {
			logger.Info("seeded user", "username", username, "token", token)
		}
	}

	router := devapi.NewRouter(devapi.NewHandler(repo, logger), devapi.NewMiddleware(auth), promhttp.Handler())
	handler := httptransport.CORS(cfg.CORSOrigin)(httptransport.RequestLogger(logger)(router))

	return httptransport.ListenAndServe(ctx, httptransport.DefaultServerConfig(cfg.HTTPAddress), handler, logger)
}
