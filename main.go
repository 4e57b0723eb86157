package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TWRT/smarttask/internal/api"
	"github.com/TWRT/smarttask/internal/config"
	"github.com/TWRT/smarttask/internal/logging"
	"github.com/TWRT/smarttask/internal/metrics"
	"github.com/TWRT/smarttask/internal/repository"
	"github.com/TWRT/smarttask/internal/storage"
)

var Version = "dev"

func main() {
	if err := newServerCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "smarttask server:", err)
		os.Exit(1)
	}
}

func newServerCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "smarttask-server",
		Short:         "SmartTask backend: auth, task rows and image storage over HTTP",
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file (default $SMARTTASK_CONFIG)")
	return cmd
}

func run(parent context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}
	defer logger.Sync()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.InitDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("Error trying to initialize the database: %w", err)
	}
	defer db.Close()
	logger.Info("database ready", zap.String("path", cfg.Database.Path))

	objects, closeObjects, err := openObjectStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeObjects()
	logger.Info("object store ready",
		zap.String("backend", cfg.Storage.Backend),
		zap.String("bucket", cfg.Storage.Bucket),
		zap.String("public_base_url", cfg.Storage.PublicBaseURL),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router := api.SetupRouter(db, api.Options{
		Objects:           objects,
		JWTSecret:         cfg.Auth.JWTSecret.Value(),
		TokenTTL:          cfg.Auth.TokenTTL.Duration(),
		BcryptCost:        cfg.Auth.BcryptCost,
		Bucket:            cfg.Storage.Bucket,
		MaxUploadBytes:    cfg.Storage.MaxUploadBytes,
		AuthRatePerMinute: cfg.Server.AuthRatePerMinute,
		TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
		Logger:            logger,
		Metrics:           metrics.New(reg),
		Gatherer:          reg,
	})

	go purgeRevokedTokens(ctx, repository.NewTokenRepository(db), logger)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("version", cfg.App.Version),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("Error trying to start the server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout.Duration()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("Error trying to shut down the server: %w", err)
	}
	return nil
}

func openObjectStore(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStore, func(), error) {
	switch cfg.Backend {
	case config.StorageJetStream:
		js, err := storage.OpenJetStream(ctx, cfg.NatsURL, cfg.Bucket)
		if err != nil {
			return nil, nil, err
		}
		return js, func() { js.Close() }, nil
	default:
		disk, err := storage.NewDiskStore(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return disk, func() {}, nil
	}
}

// purgeRevokedTokens drops revocations of expired tokens once an hour.
func purgeRevokedTokens(ctx context.Context, tokens *repository.TokenRepository, logger *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := tokens.PurgeExpired(ctx, time.Now())
			if err != nil {
				logger.Warn("purge revoked tokens", zap.Error(err))
				continue
			}
			logger.Debug("purged revoked tokens", zap.Int64("count", n))
		}
	}
}
