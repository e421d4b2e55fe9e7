package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/firmscout/backend/config"
	httpDelivery "github.com/firmscout/backend/internal/delivery/http"
	"github.com/firmscout/backend/internal/infrastructure/cache"
	"github.com/firmscout/backend/internal/infrastructure/scraper"
	"github.com/firmscout/backend/internal/usecase"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "firmscout",
		Short:         "Keyword search over the technopark company directory",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "search <keywords>",
		Short: "Run one search and print the JSON result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), args[0])
		},
	})

	return root
}

// bootstrap loads configuration, installs the global logger and builds the pipeline
func bootstrap() (*config.Config, *usecase.DirectoryService, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return nil, nil, nil, err
	}

	logger, err := newLogger(cfg.Server.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return nil, nil, nil, err
	}
	restore := zap.ReplaceGlobals(logger)
	cleanup := func() {
		_ = logger.Sync()
		restore()
	}

	memoryCache := cache.NewMemoryCache(cfg.Cache.TTL)

	client := scraper.NewClient(scraper.ClientConfig{
		URL:               cfg.Directory.URL,
		UserAgent:         cfg.Directory.UserAgent,
		AcceptLanguage:    cfg.Directory.AcceptLanguage,
		Timeout:           cfg.Directory.Timeout,
		MaxRetries:        cfg.Directory.MaxRetries,
		BaseBackoff:       cfg.Directory.BaseBackoff,
		RequestsPerSecond: cfg.Directory.RequestsPerSecond,
	})

	extractor := scraper.NewExtractor(scraper.DefaultSelectors(), cfg.Directory.URL)

	directoryService := usecase.NewDirectoryService(
		memoryCache,
		client,
		extractor,
		usecase.DirectoryServiceConfig{
			ServeStaleOnError:  cfg.Cache.ServeStaleOnError,
			EnableDebugLogging: cfg.Server.Environment == "development",
		},
	)

	logger.Info("firmscout configured",
		zap.String("version", version),
		zap.String("environment", cfg.Server.Environment),
		zap.String("directory", client.URL()),
		zap.Duration("cache_ttl", memoryCache.TTL()),
		zap.Int("max_retries", cfg.Directory.MaxRetries),
		zap.Duration("attempt_timeout", cfg.Directory.Timeout),
		zap.Bool("serve_stale_on_error", cfg.Cache.ServeStaleOnError),
	)

	return cfg, directoryService, cleanup, nil
}

func runServer() error {
	cfg, directoryService, cleanup, err := bootstrap()
	if err != nil {
		return err
	}
	defer cleanup()

	handler := httpDelivery.NewHandler(directoryService)
	router := httpDelivery.SetupRouter(cfg, handler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			zap.L().Error("server failed", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runSearch(ctx context.Context, keywords string) error {
	_, directoryService, cleanup, err := bootstrap()
	if err != nil {
		return err
	}
	defer cleanup()

	if ctx == nil {
		ctx = context.Background()
	}

	result, err := directoryService.Search(ctx, keywords)
	if err != nil {
		zap.L().Error("search failed", zap.Error(err))
		return err
	}

	out, err := json.MarshalIndent(httpDelivery.SearchResponse{
		Success:         true,
		TotalRecords:    result.TotalRecords,
		MatchedRecords:  result.MatchedRecords,
		Records:         result.Records,
		ElapsedMs:       result.Elapsed.Milliseconds(),
		ServedFromCache: result.ServedFromCache,
		Stale:           result.Stale,
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// newLogger builds a development logger locally and a JSON production logger elsewhere
func newLogger(environment string) (*zap.Logger, error) {
	if environment == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
