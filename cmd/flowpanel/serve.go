package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"flowpanel/internal/adapters/export"
	"flowpanel/internal/core"
	"flowpanel/internal/httpapi"
)

const shutdownTimeout = 10 * time.Second

func (c *cli) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the panel design API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = c.cfg.HTTP.Addr
			}
			exporter, err := c.app.exporter(cmd.Context())
			if err != nil {
				return err
			}
			worker := export.NewWorker(exporter, export.DefaultQueueSize)
			srv := httpapi.New(c.app.svc,
				httpapi.WithExports(worker),
				httpapi.WithLogger(core.NewZapLogger(c.logger)),
				httpapi.WithGatherer(c.app.registry),
				httpapi.WithCORSOrigins(c.cfg.HTTP.CORSOrigins),
				httpapi.WithPlanDefaults(c.cfg.PlanParams(false)),
			)
			return serve(cmd.Context(), c.logger, addr, srv.Handler(), worker)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default http.addr)")
	return cmd
}

// serve runs the HTTP server and the export worker until ctx is cancelled.
func serve(ctx context.Context, logger *zap.Logger, addr string, handler http.Handler, worker *export.Worker) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	worker.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		err := httpSrv.Shutdown(shutdownCtx)
		return errors.Join(err, worker.Stop(shutdownCtx))
	})
	return g.Wait()
}
