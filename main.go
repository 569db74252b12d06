package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"

	"fieldsearch/internal/config"
	"fieldsearch/internal/dataset"
	"fieldsearch/internal/index"
	"fieldsearch/internal/logging"
)

func main() {
	ctx := context.Background()

	configPath := flag.String("config", "", "Path to a TOML or YAML config file")
	listen := flag.String("listen", "", "Override the listen address (e.g. :8080)")
	indexPath := flag.String("index-path", "", "Override the index definition directory")
	seedFile := flag.String("seed", "", "Load documents from a JSON, YAML or TOML file at startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg = config.ApplyEnv(cfg, os.Getenv)

	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *indexPath != "" {
		cfg.Paths.IndexDir = *indexPath
	}
	if *seedFile != "" {
		cfg.Seed.File = *seedFile
	}

	logger := logging.New(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)

	registry, err := index.NewRegistryWithDefaults(cfg.Paths.IndexDir, index.CreateDefaults{
		Tokenizer: cfg.IndexDefaults.Tokenizer,
	})
	if err != nil {
		logger.Error("failed to initialize index registry", "error", err)
		os.Exit(1)
	}

	telemetry := newTelemetry(ctx, logging.WithComponent(logger, "telemetry"), cfg.Metrics.Enabled != nil && *cfg.Metrics.Enabled)
	server, err := newAPIServer(registry, telemetry, logging.WithComponent(logger, "api"))
	if err != nil {
		logger.Error("failed to open indexes", "error", err)
		os.Exit(1)
	}

	if cfg.Seed.Enabled() {
		if err := seedIndex(ctx, server, cfg.Seed); err != nil {
			logger.Error("failed to seed index", "file", cfg.Seed.File, "error", err)
			os.Exit(1)
		}
	}

	handler := withTelemetry(server.routes(), telemetry, cfg.Logging.RequestLogs == nil || *cfg.Logging.RequestLogs)

	logger.Info("fieldsearch API listening", "listen", cfg.Server.Listen, "indexPath", cfg.Paths.IndexDir)
	if err := http.ListenAndServe(cfg.Server.Listen, handler); err != nil {
		logger.Error("server stopped", "error", err)
	}
}

// seedIndex loads the configured dataset into its index, creating the index
// from the seed settings when the registry does not know it yet.
func seedIndex(ctx context.Context, server *apiServer, seed config.SeedConfig) error {
	docs, err := dataset.Load(seed.File)
	if err != nil {
		return err
	}

	engine, ok := server.getEngine(seed.Index)
	if !ok {
		def, err := server.registry.Create(index.CreateRequest{
			Name:      seed.Index,
			Fields:    seed.Fields,
			TagField:  seed.TagField,
			Tokenizer: seed.Tokenizer,
		})
		if err != nil {
			return fmt.Errorf("create seed index: %w", err)
		}
		if engine, err = server.openEngine(def); err != nil {
			return err
		}
	}

	indexed, errs := engine.indexDocuments(ctx, docs)
	if indexed == 0 && len(docs) > 0 {
		return errors.New("no seed documents were accepted")
	}
	server.logger.Info("seed loaded", "index", seed.Index, "documents", indexed, "rejected", len(errs))
	return nil
}
