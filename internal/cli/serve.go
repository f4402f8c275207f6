package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"genctl/internal/config"
	"genctl/internal/httpapi"
)

const shutdownGrace = 5 * time.Second

func serveCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Serve the HTTP facade over the remote service",
		Example: "  genctl serve --addr :8089 --base-url http://gpu-box:8000",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(contextOf(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cmd, cfg)
		},
	}
	cmd.Flags().StringVar(&opts.Addr, "addr", config.DefaultAddr, "HTTP listen address (defaults "+envAddr+")")
	cmd.Flags().StringVar(&opts.CORSOrigins, "cors-origins", "", "Comma separated CORS origins; empty disables CORS (defaults "+envCORS+")")
	return cmd
}

// serve runs the facade until ctx ends, then drains in-flight requests and
// cancels outstanding jobs.
func serve(ctx context.Context, cmd *cobra.Command, cfg config.Config) error {
	log := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogJSON)
	ctrl := newController(cfg, log)
	defer ctrl.Close()

	if err := ctrl.Refresh(ctx); err != nil {
		log.Warn().Err(err).Str("base_url", cfg.BaseURL).Msg("initial status refresh failed")
	}

	httpapi.SetLogger(log)
	httpapi.SetCORSOptions(len(cfg.CORSOrigins) > 0, cfg.CORSOrigins, nil, nil)
	httpapi.SetBaseContext(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(ctrl),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Str("base_url", cfg.BaseURL).Str("scheduling", cfg.Scheduling).Msg("genctl listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown error")
			return err
		}
		log.Info().Msg("server stopped")
		return nil
	})
	return g.Wait()
}
