package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"modelsync/internal/config"
	"modelsync/internal/document"
	"modelsync/internal/httpapi"
	"modelsync/internal/manager"
	"modelsync/internal/memwatch"
	"modelsync/internal/seed"
)

const shutdownTimeout = 5 * time.Second

// newLogger builds the process logger from the log_level/log_format settings.
func newLogger(level, format string, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level: %w", err)
	}
	switch format {
	case "json":
	case "console", "":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	default:
		return zerolog.Nop(), fmt.Errorf("log format: unsupported %q", format)
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// run wires the manager, its inputs and the HTTP server, and blocks until ctx
// is canceled or the server fails.
func run(ctx context.Context, cfg config.Config, logOut io.Writer) error {
	log, err := newLogger(cfg.LogLevel, cfg.LogFormat, logOut)
	if err != nil {
		return err
	}
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Merger: document.Merger,
		Logger: &log,
		Debug:  cfg.Debug,
	})
	defer func() {
		if err := mgr.Close(); err != nil {
			log.Error().Err(err).Msg("manager close")
		}
	}()

	if cfg.SeedDir != "" {
		models, err := seed.LoadDir(cfg.SeedDir)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		n, err := seed.Apply(ctx, mgr, models)
		if err != nil {
			// Conflicting seed documents are reported, not fatal.
			log.Warn().Str("event", "seed_conflict").Err(err).Msg("some seed models were rejected")
		}
		log.Info().Str("event", "seed_done").Int("models", n).Str("dir", cfg.SeedDir).Msg("seed applied")
	}

	if cfg.MemWatchEnabled {
		every, err := cfg.MemWatchEvery()
		if err != nil {
			return err
		}
		w := memwatch.New(memwatch.Config{
			Interval:            every,
			MinAvailablePercent: cfg.MemMinAvailablePercent,
			Logger:              &log,
		}, mgr.LowMemory)
		go w.Run(ctx)
	}

	// SIGUSR1 raises the low-memory signal by hand.
	usr1 := make(chan os.Signal, 1)
	signal.Notify(usr1, syscall.SIGUSR1)
	defer signal.Stop(usr1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-usr1:
				log.Info().Str("event", "low_memory_signal").Msg("SIGUSR1 received")
				mgr.LowMemory()
			}
		}
	}()

	httpapi.SetLogger(log.With().Str("component", "http").Logger())
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins, nil, nil)
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(mgr),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("event", "listening").Str("addr", cfg.Addr).Msg("modelsyncd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown: release waiting handlers and push connections first.
	cancelBase()
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
	if err := mgr.Flush(sctx); err != nil && !manager.IsClosed(err) {
		log.Warn().Err(err).Msg("pending notifications not delivered")
	}
	log.Info().Str("event", "stopped").Msg("modelsyncd stopped")
	return nil
}
