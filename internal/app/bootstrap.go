package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/datallboy/gofetch/internal/engine"
	"github.com/datallboy/gofetch/internal/events"
	"github.com/datallboy/gofetch/internal/httpclient"
	"github.com/datallboy/gofetch/internal/infra/config"
	"github.com/datallboy/gofetch/internal/infra/logger"
	"github.com/datallboy/gofetch/internal/metrics"
	"github.com/datallboy/gofetch/internal/store"
)

// Bootstrap wires config, logging, the store and the transfer manager.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Context, error) {
	if dir := filepath.Dir(cfg.Log.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	a := NewContext(cfg, log)

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
	}
	a.Store = st

	a.Manager = engine.NewManager(st, log, EngineOptions(cfg, metrics.NewListener()))
	return a, nil
}

// EngineOptions maps config onto Downloader defaults.
func EngineOptions(cfg *config.Config, listeners ...events.Listener) engine.Options {
	tlsVersion, err := httpclient.ParseTLSVersion(cfg.HTTP.MinTLSVersion)
	if err != nil {
		// config validation already rejected unknown versions
		tlsVersion = 0
	}

	client := httpclient.NewClient(httpclient.Options{
		Timeout:       cfg.HTTP.Timeout,
		UserAgent:     cfg.HTTP.UserAgent,
		MinTLSVersion: tlsVersion,
	})

	return engine.Options{
		Dir:            cfg.Download.OutDir,
		StagingSuffix:  cfg.Download.StagingSuffix,
		UseMemoryCache: cfg.Download.UseMemoryCache,
		ChunkSize:      cfg.Download.ChunkSize,
		PollInterval:   cfg.Progress.Interval,
		Window:         cfg.Progress.Window,
		Client:         client,
		Listeners:      listeners,
	}
}
