// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/luxfi/freefall-rpc/config"
	"github.com/luxfi/freefall-rpc/freefall"
	"github.com/luxfi/freefall-rpc/internal/logging"
	"github.com/luxfi/freefall-rpc/internal/observability"
)

type app struct {
	configPath  string
	envFiles    []string
	overrides   config.Overrides
	apiKey      string
	metricsAddr string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "freefallctl",
		Short:         "Call the FreeFall flight search API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "TOML config file")
	f.StringSliceVar(&a.envFiles, "env-file", nil, ".env files to load (default .env)")
	f.StringVar(&a.overrides.Endpoint, "endpoint", "", "API endpoint URL")
	f.StringVar(&a.overrides.Protocol, "protocol", "", "envelope encoding: jsonrpc, yamlrpc or cborrpc")
	f.StringVar(&a.overrides.Transport, "transport", "", "transport: http, grpc or stream")
	f.StringVar(&a.overrides.Addr, "addr", "", "peer address for the grpc and stream transports")
	f.StringVar(&a.apiKey, "api-key", "", "API key for authenticated methods")
	f.StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")

	root.AddCommand(
		a.airportsCmd(),
		a.searchCmd(),
		a.watchCmd(),
		a.keyCmd(),
		a.subscriptionsCmd(),
		a.historyCmd(),
		a.callCmd(),
	)
	return root
}

// connect resolves the configuration and opens a client. The returned
// function releases the session and the metrics listener.
func (a *app) connect(ctx context.Context) (*freefall.Client, func(), error) {
	cfg, err := config.Resolve(a.configPath, a.envFiles, a.overrides)
	if err != nil {
		return nil, nil, err
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)
	logger := logging.Logger("freefallctl")

	s, err := cfg.NewSession(ctx, logger)
	if err != nil {
		return nil, nil, err
	}
	if a.apiKey != "" {
		s.APIKey().Set(a.apiKey)
	}

	stopMetrics := a.serveMetrics(logger)
	logger.Debug().
		Str("endpoint", cfg.Endpoint).
		Str("protocol", cfg.Protocol).
		Str("transport", cfg.Transport).
		Msg("session ready")

	return freefall.New(s, cfg.Protocol), func() {
		stopMetrics()
		if err := s.Close(); err != nil {
			logger.Warn().Err(err).Msg("close session")
		}
	}, nil
}

func (a *app) serveMetrics(logger zerolog.Logger) func() {
	if a.metricsAddr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	srv := &http.Server{Addr: a.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", a.metricsAddr).Msg("metrics listener failed")
		}
	}()
	logger.Info().Str("addr", a.metricsAddr).Msg("serving metrics")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// run wraps a command body with connect and cleanup.
func (a *app) run(fn func(ctx context.Context, cmd *cobra.Command, c *freefall.Client, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, done, err := a.connect(ctx)
		if err != nil {
			return err
		}
		defer done()
		return fn(ctx, cmd, c, args)
	}
}
