// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Graphmem Contributors

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sigil-dev/graphmem/internal/config"
	"github.com/sigil-dev/graphmem/internal/embed"
	"github.com/sigil-dev/graphmem/internal/embed/openai"
	"github.com/sigil-dev/graphmem/internal/search"
	"github.com/sigil-dev/graphmem/internal/server"
	"github.com/sigil-dev/graphmem/internal/store"

	// Registered storage backends.
	_ "github.com/sigil-dev/graphmem/internal/store/memory"
	_ "github.com/sigil-dev/graphmem/internal/store/postgres"
	_ "github.com/sigil-dev/graphmem/internal/store/sqlite"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the graphmem server",
		Long:  "Load configuration, open the storage backend, and serve the HTTP API until interrupted.",
		RunE:  runServe,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = viper.BindPFlag("listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Apply any flag/env overrides that Viper resolved.
	if listen := viper.GetString("listen"); listen != "" {
		cfg.Listen = listen
	}

	logger := newLogger(viper.GetBool("verbose"))
	slog.SetDefault(logger)

	backend, err := store.Open(cfg.BackendConfig())
	if err != nil {
		return fmt.Errorf("opening storage backend: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("closing storage backend", "error", err)
		}
	}()

	var embedder embed.Embedder
	if cfg.Embedding.Provider == "openai" {
		embedder, err = openai.New(openai.Config{
			APIKey:     cfg.Embedding.APIKey,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Storage.VectorDimensions,
			Timeout:    cfg.Embedding.Timeout,
		})
		if err != nil {
			return fmt.Errorf("configuring embedder: %w", err)
		}
	}
	if embedder == nil {
		logger.Warn("no embedding provider configured; nodes persist without vectors and text search is unavailable")
	}

	nodes := store.NewNodes(backend, embedder, logger)
	engine := search.New(backend, embedder, logger)

	srv, err := server.New(server.Config{ListenAddr: cfg.Listen}, nodes, engine, cfg.Caps())
	if err != nil {
		return fmt.Errorf("building server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("graphmem listening",
		"addr", cfg.Listen,
		"backend", backend.Name(),
		"dimensions", backend.Dimensions(),
	)

	return srv.Start(ctx)
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
