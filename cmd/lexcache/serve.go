package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/civicdata/lexcache/pkg/api"
	"github.com/civicdata/lexcache/pkg/config"
	"github.com/civicdata/lexcache/pkg/congress"
	"github.com/civicdata/lexcache/pkg/indexer"
	"github.com/civicdata/lexcache/pkg/log"
	"github.com/civicdata/lexcache/pkg/report"
	"github.com/civicdata/lexcache/pkg/resolver"
	"github.com/civicdata/lexcache/pkg/storage"
	"github.com/civicdata/lexcache/pkg/upstream"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		app, err := buildApp(cfg)
		if err != nil {
			return err
		}
		defer app.store.Close()

		srv := api.NewServer(cfg, app.resolver, app.engine)
		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start(cfg.Listen)
		}()
		log.Logger.Info().Str("listen", cfg.Listen).Str("version", Version).Msg("server started")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			log.Info("shutting down")
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	},
}

// app bundles the wired components shared by serve and the one-shot
// index commands.
type app struct {
	store    *storage.BoltStore
	engine   *indexer.Engine
	resolver *resolver.Resolver
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
		Output:     os.Stderr,
	})
	return cfg, nil
}

func buildApp(cfg *config.Config) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	client := upstream.NewClient(upstream.ClientConfig{
		BaseURL:    cfg.Upstream.BaseURL,
		APIKey:     cfg.Upstream.APIKey,
		RatePerSec: cfg.Upstream.RatePerSec,
		Timeout:    cfg.Upstream.Timeout,
	})

	var reporter report.Reporter = report.Noop{}
	if cfg.Report.GitHubToken != "" {
		reporter, err = report.NewGitHubReporter(report.GitHubConfig{
			Owner: cfg.Report.GitHubOwner,
			Repo:  cfg.Report.GitHubRepo,
			Token: cfg.Report.GitHubToken,
		})
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	ttl := congress.TTLPolicy{
		Latest:    cfg.Index.LatestCongress,
		LatestTTL: cfg.Index.LatestTTL,
	}
	engine := indexer.New(store, client, reporter, indexer.Config{
		BatchSize: cfg.Index.BatchSize,
		PageLimit: cfg.Index.PageLimit,
		ChunkSize: cfg.Index.ChunkSize,
		Retry: indexer.Retrier{
			MaxRetries: cfg.Index.MaxRetries,
			BaseDelay:  cfg.Index.RetryBaseDelay,
		},
		TTL: ttl,
	})

	memo := upstream.NewMemoSource(client, upstream.DefaultMemoConfig())
	res := resolver.New(store, memo)

	return &app{store: store, engine: engine, resolver: res}, nil
}
