package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"

	"github.com/TWRT/smarttask/internal/client"
	"github.com/TWRT/smarttask/internal/client/backend"
	"github.com/TWRT/smarttask/internal/client/gemini"
	"github.com/TWRT/smarttask/internal/config"
	"github.com/TWRT/smarttask/internal/logging"
	"github.com/TWRT/smarttask/internal/metrics"
	"github.com/TWRT/smarttask/internal/models"
	"github.com/TWRT/smarttask/internal/service"
	"github.com/TWRT/smarttask/internal/session"
)

// app holds everything a command needs once configuration is loaded.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	backend *backend.BackendClient
	advisor *service.Advisor
	shell   *service.Shell
	metrics *prometheus.Registry

	out io.Writer
	in  io.Reader
}

func (a *app) open(ctx context.Context, configPath string, verbose bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Config{Level: level, Format: "console"})
	if err != nil {
		return err
	}
	a.logger = logger

	a.backend = backend.NewBackendClient(backend.Config{
		URL:     cfg.Backend.URL,
		AnonKey: cfg.Backend.AnonKey.Value(),
		Bucket:  cfg.Backend.Bucket,
		Timeout: cfg.Backend.Timeout.Duration(),
	}, session.NewFileStore(cfg.Backend.SessionFile))

	model, err := gemini.New(gemini.Config{
		APIKey:  cfg.AI.APIKey.Value(),
		Model:   cfg.AI.Model,
		BaseURL: cfg.AI.BaseURL,
		Timeout: cfg.AI.Timeout.Duration(),
	})
	if err != nil {
		return fmt.Errorf("configure AI assistant: %w", err)
	}
	a.metrics = prometheus.NewRegistry()
	a.advisor = service.NewAdvisor(model, cfg.AI.RatePerMinute, logger, metrics.New(a.metrics))

	a.shell = service.NewShell(a.backend, a.backend, a.advisor, logger)
	err = a.shell.Start(ctx)
	if errors.Is(err, client.ErrUnauthorized) {
		// Drop a stored token the server no longer accepts.
		logger.Warn("stored session rejected, signing out", zap.Error(err))
		if err := a.shell.SignOut(ctx); err != nil {
			logger.Debug("remote sign out", zap.Error(err))
		}
		return nil
	}
	return err
}

func (a *app) close() {
	if a.shell != nil {
		a.shell.Close()
	}
	if a.backend != nil {
		a.backend.Close()
	}
	if a.logger != nil {
		a.logger.Sync()
	}
}

// writeMetrics dumps the counters gathered during this invocation in the
// Prometheus text format.
func (a *app) writeMetrics(w io.Writer) error {
	if a.metrics == nil {
		return nil
	}
	families, err := a.metrics.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func (a *app) formDeps() service.FormDeps {
	return service.FormDeps{
		Advisor:     a.advisor,
		Sessions:    a.backend,
		Attachments: a.backend,
		Logger:      a.logger,
	}
}

// requireSession fails commands that need a signed-in user.
func (a *app) requireSession() error {
	if a.shell.Session() == nil {
		return fmt.Errorf("not signed in, run `smarttask login` first")
	}
	return nil
}

func (a *app) now() time.Time {
	return time.Now()
}

// findTask resolves a full id or an unambiguous id prefix against the loaded tasks.
func (a *app) findTask(ref string) (models.Task, error) {
	if err := a.requireSession(); err != nil {
		return models.Task{}, err
	}
	var matches []models.Task
	for _, t := range a.shell.Tasks() {
		if t.ID == ref {
			return t, nil
		}
		if strings.HasPrefix(t.ID, ref) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return models.Task{}, fmt.Errorf("%w: %s", service.ErrTaskNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return models.Task{}, fmt.Errorf("id prefix %q matches %d tasks", ref, len(matches))
	}
}
