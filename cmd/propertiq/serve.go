package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/neomorfeo/propertiq/internal/adapter/sqlite"
	"github.com/neomorfeo/propertiq/internal/config"

	oteladapter "github.com/neomorfeo/propertiq/internal/adapter/otel"
	riveradapter "github.com/neomorfeo/propertiq/internal/adapter/river"
)

func (c *cli) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the background job workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), c.cfg)
		},
	}
	cmd.Flags().Int("port", 8080, "HTTP port")
	_ = c.v.BindPFlag("http.port", cmd.Flags().Lookup("port"))
	return cmd
}

// run starts telemetry, the database, the job queue and the HTTP server, and
// blocks until ctx is cancelled.
func run(ctx context.Context, cfg config.Config) error {
	// --- Telemetry ---
	providers, err := oteladapter.Setup(ctx, cfg.Telemetry())
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			slog.Error("otel shutdown", "error", err)
		}
	}()

	// --- Adapters (out) ---
	db, err := oteladapter.OpenDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	store, err := sqlite.NewFromDB(db)
	if err != nil {
		db.Close()
		return fmt.Errorf("database: %w", err)
	}
	defer store.Close()

	client, err := riveradapter.Setup(ctx, store.DB())
	if err != nil {
		return fmt.Errorf("river: %w", err)
	}
	if err := client.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("river start: %w", err)
	}

	// --- Application ---
	svc := newServices(store,
		oteladapter.NewTracingInterventionRepository(store.Interventions()),
		oteladapter.NewTracingPublisher(riveradapter.NewPublisher(client)),
		oteladapter.NewTracingInvitationSender(riveradapter.NewInvitationSender(client)),
	)

	// --- Adapters (in) ---
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           newRouter(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("propertiq listening", "addr", srv.Addr, "docs", fmt.Sprintf("http://localhost%s/docs", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = fmt.Errorf("shutdown: %w", err)
	}
	if err := client.Stop(shutdownCtx); err != nil && serveErr == nil {
		serveErr = fmt.Errorf("river stop: %w", err)
	}

	slog.Info("stopped")
	return serveErr
}
