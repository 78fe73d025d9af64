package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/madhur53/library-management-system/internal/clients"
	"github.com/madhur53/library-management-system/internal/config"
	"github.com/madhur53/library-management-system/internal/identity"
	"github.com/madhur53/library-management-system/internal/telemetry"
	"github.com/madhur53/library-management-system/pkg/eventstore"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(logger); err != nil {
		logger.Error("identity service failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.LoadIdentity()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, "identity", cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer shutdownTelemetry(context.Background())

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer db.Close()

	loans := clients.NewLoanChecker(cfg.Catalog.BaseURL,
		&http.Client{Timeout: cfg.Catalog.Timeout}, logger)
	tokens := identity.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.Expiration())

	svc := identity.NewService(
		identity.NewPostgresStore(db),
		eventstore.New(db.DB),
		loans,
		tokens,
		logger,
	)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  time.Minute,
		Handler:      identity.NewHandler(svc, tokens).Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("identity service listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
