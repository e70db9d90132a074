package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/shilovk/yandex-cloud-tools/internal/config"
	"github.com/shilovk/yandex-cloud-tools/internal/keeper"
	"github.com/shilovk/yandex-cloud-tools/internal/secrets"
	"github.com/shilovk/yandex-cloud-tools/internal/telemetry"
)

// runTimeout bounds a single scheduled run.
const runTimeout = time.Hour

type daemon struct {
	mu     sync.Mutex
	keeper *keeper.Keeper
	cron   *cron.Cron
	logger *slog.Logger
}

func runDaemon() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	path := configPath()
	cfg, err := config.Load(ctx, path)
	if err != nil {
		return err
	}

	level := cfg.LogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	format := cfg.Log.Format
	if logFormat != "" {
		format = logFormat
	}
	base := telemetry.NewLogger(os.Stderr, level, format)
	logger := slog.New(secrets.NewRedactor(base.Handler(), cfg.OAuthToken))
	slog.SetDefault(logger)

	d := &daemon{logger: logger}
	if err := d.configure(ctx, cfg); err != nil {
		return err
	}

	var srv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		telemetry.RegisterMetrics(mux)
		srv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			logger.Info("metrics listening", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	go d.watchConfig(ctx, path)

	<-ctx.Done()
	logger.Info("shutting down")

	d.mu.Lock()
	c, k := d.cron, d.keeper
	d.mu.Unlock()
	<-c.Stop().Done()

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	return k.Close()
}

func configPath() string {
	if cfgPath != "" {
		return cfgPath
	}
	if p := os.Getenv(config.EnvPath); p != "" {
		return p
	}
	return config.DefaultPath
}

// configure builds a keeper and schedules from cfg, swaps them in, and
// retires the previous pair. On error the previous configuration stays
// active.
func (d *daemon) configure(ctx context.Context, cfg *config.Config) error {
	k, err := keeper.New(ctx, cfg, keeper.Options{Logger: d.logger})
	if err != nil {
		return err
	}

	c := cron.New()
	if cfg.Schedule.Backup != "" {
		if _, err := c.AddFunc(cfg.Schedule.Backup, func() { d.runScheduled(keeper.KindBackup) }); err != nil {
			k.Close()
			return fmt.Errorf("schedule backup: %w", err)
		}
	}
	if cfg.Schedule.Prune != "" {
		if _, err := c.AddFunc(cfg.Schedule.Prune, func() { d.runScheduled(keeper.KindPrune) }); err != nil {
			k.Close()
			return fmt.Errorf("schedule prune: %w", err)
		}
	}

	d.mu.Lock()
	oldCron, oldKeeper := d.cron, d.keeper
	d.keeper, d.cron = k, c
	d.mu.Unlock()

	c.Start()
	if oldCron != nil {
		<-oldCron.Stop().Done()
	}
	if oldKeeper != nil {
		oldKeeper.Close()
	}

	d.logger.Info("schedules active",
		"backup", cfg.Schedule.Backup,
		"prune", cfg.Schedule.Prune,
		"instances", len(cfg.Instances),
	)
	return nil
}

func (d *daemon) runScheduled(kind string) {
	d.mu.Lock()
	k := d.keeper
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	var err error
	switch kind {
	case keeper.KindBackup:
		_, err = k.BackupRun(ctx, nil)
	case keeper.KindPrune:
		_, err = k.PruneRun(ctx, nil)
	}
	if err != nil {
		d.logger.Error("scheduled run failed", "kind", kind, "error", err)
	}
}

// watchConfig reloads the configuration when the file is rewritten.
// Editors replace files on save, so the watch covers the directory and
// filters to the config path.
func (d *daemon) watchConfig(ctx context.Context, path string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		d.logger.Warn("config watch unavailable", "error", err)
		return
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		d.logger.Warn("config watch unavailable", "dir", dir, "error", err)
		return
	}

	// Debounce: one save can produce several events.
	debounce := time.NewTimer(0)
	<-debounce.C
	dirty := false

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			dirty = true
			debounce.Reset(200 * time.Millisecond)

		case <-debounce.C:
			if !dirty {
				continue
			}
			dirty = false
			d.reload(ctx, path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			d.logger.Warn("config watch error", "error", err)
		}
	}
}

func (d *daemon) reload(ctx context.Context, path string) {
	cfg, err := config.Load(ctx, path)
	if err != nil {
		d.logger.Error("config reload failed, keeping previous", "error", err)
		return
	}
	if err := d.configure(ctx, cfg); err != nil {
		d.logger.Error("config reload failed, keeping previous", "error", err)
		return
	}
	d.logger.Info("config reloaded", "path", path)
}
