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

	"github.com/madhur53/library-management-system/internal/catalog"
	"github.com/madhur53/library-management-system/internal/config"
	"github.com/madhur53/library-management-system/internal/telemetry"
	"github.com/madhur53/library-management-system/pkg/eventstore"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(logger); err != nil {
		logger.Error("catalog service failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.LoadCatalog()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, "catalog", cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer shutdownTelemetry(context.Background())

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer db.Close()

	svc := catalog.NewService(
		catalog.NewPostgresStore(db),
		eventstore.New(db.DB),
		logger,
	)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  time.Minute,
		Handler:      catalog.NewHandler(svc).Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("catalog service listening", slog.String("addr", server.Addr))
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
