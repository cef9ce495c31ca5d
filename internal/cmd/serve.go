package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/studyshelf/studyshelf/internal/api"
	"github.com/studyshelf/studyshelf/internal/catalog"
	"github.com/studyshelf/studyshelf/internal/config"
	"github.com/studyshelf/studyshelf/internal/crawl"
	"github.com/studyshelf/studyshelf/internal/logging"
	"github.com/studyshelf/studyshelf/internal/metrics"
	"github.com/studyshelf/studyshelf/internal/preview"
	"github.com/studyshelf/studyshelf/internal/source"
	githubsource "github.com/studyshelf/studyshelf/internal/source/github"
	s3source "github.com/studyshelf/studyshelf/internal/source/s3"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the catalog HTTP server",
		Long: `Run the StudyShelf server: crawl the configured repository folder on
demand, keep the latest catalog in memory, and serve it over a JSON API
together with a content preview proxy and Prometheus metrics.

Configuration comes from defaults, an optional YAML file (--config), a
.env file, and environment variables, each layer overriding the last.`,
		Args: cobra.NoArgs,
		RunE: serveCommand,
	}

	cmd.Flags().String("config", "", "Path to YAML config file")

	return cmd
}

func serveCommand(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		return fmt.Errorf("logging init error: %w", err)
	}
	defer logging.Sync()

	logging.Info("StudyShelf server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr),
		zap.String("backend", cfg.SourceBackend))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lister, err := newLister(ctx, cfg)
	if err != nil {
		return fmt.Errorf("source init failed: %w", err)
	}

	crawler := crawl.New(lister, cfg.CrawlWorkers)
	store := catalog.NewStore(crawler)
	defer store.Close()

	fetcher, err := preview.NewFetcher(preview.Config{
		CacheEntries: cfg.PreviewCacheEntries,
		MaxBytes:     cfg.PreviewMaxBytes,
		Timeout:      cfg.HTTPTimeout,
	})
	if err != nil {
		return fmt.Errorf("preview init failed: %w", err)
	}

	coord := catalog.Coordinate{
		Owner: cfg.RepoOwner,
		Repo:  cfg.RepoName,
		Ref:   cfg.RepoRef,
		Root:  cfg.RepoRoot,
	}

	srv := api.NewServer(cfg, store, fetcher, coord, Version)

	// Eager first crawl so the page has a catalog right after startup.
	// Failure is not fatal: the API answers 503 until a refresh succeeds.
	if cfg.CrawlOnStart {
		go func() {
			if _, err := store.Refresh(ctx, coord); err != nil {
				logging.Warn("startup crawl failed", zap.Error(err))
			}
		}()
	}

	// Start metrics server
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()
		httpServer.Close()
		metricsServer.Close()
	}()

	logging.Info("server listening", zap.String("addr", cfg.ListenAddr))
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// newLister builds the directory source for the configured backend.
func newLister(ctx context.Context, cfg *config.Config) (source.Lister, error) {
	switch cfg.SourceBackend {
	case "s3":
		return s3source.NewLister(ctx, s3source.Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
	default:
		return githubsource.NewLister(githubsource.Config{
			BaseURL: cfg.GitHubAPIURL,
			Timeout: cfg.HTTPTimeout,
		}), nil
	}
}
