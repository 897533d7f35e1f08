// Command productd serves the batch product-metadata API.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/scorebill/productfetch/internal/config"
	"github.com/scorebill/productfetch/internal/httpapi"
	"github.com/scorebill/productfetch/pkg/batch"
	"github.com/scorebill/productfetch/pkg/logging"
	"github.com/scorebill/productfetch/pkg/metrics"
	"github.com/scorebill/productfetch/pkg/upstream"
)

const serviceName = "productd"

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file (overrides CONFIG_PATH env)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger := logging.Setup(cfg.LoggingConfig(serviceName))

	if err := run(cfg, logger); err != nil {
		logger.Error().Err(err).Msg("Server stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("Server stopped")
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	client, err := upstream.New(cfg.UpstreamClientConfig())
	if err != nil {
		return err
	}

	svc, err := batch.NewService(client, cfg.BatchServiceConfig())
	if err != nil {
		return err
	}

	api := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      httpapi.NewRouter(svc, httpapi.Options{Logger: logger}),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	servers := []*http.Server{api}
	if !cfg.Metrics.Disabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		servers = append(servers, &http.Server{
			Addr:              cfg.Metrics.Addr(),
			Handler:           mux,
			ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("addr", api.Addr).
		Bool("hosted", cfg.Batch.IsHosted()).
		Int("default_concurrency", cfg.Batch.DefaultConcurrency()).
		Int("max_concurrency", cfg.Batch.MaxConcurrency).
		Str("upstream", cfg.Upstream.BaseURL).
		Msg("Starting product API")

	g, gctx := errgroup.WithContext(ctx)

	for _, srv := range servers {
		g.Go(func() error {
			logger.Info().Str("addr", srv.Addr).Msg("Listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
