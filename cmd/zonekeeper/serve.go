package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/poyrazK/zonekeeper/internal/adapters/api"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the maintenance API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := a.connect(ctx)
			if err != nil {
				return err
			}

			checks := map[string]api.HealthCheck{}
			if p, ok := e.store.(pinger); ok {
				checks["database"] = p.Ping
			}
			if e.coord != nil {
				checks["redis"] = e.coord.Ping
			}
			if a.cfg.APIToken == "" {
				a.logger.Warn("ZONEKEEPER_API_TOKEN is empty, protected routes will reject every request")
			}

			handler := api.NewAPIHandler(e.rectifier, e.checker, a.cfg.APIToken, checks, a.logger)
			mux := http.NewServeMux()
			handler.RegisterRoutes(mux)

			srv := &http.Server{
				Addr:              a.cfg.APIListen,
				Handler:           api.RequestLogger(a.logger)(mux),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("Maintenance API listening", "addr", a.cfg.APIListen)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			a.logger.Info("Shutting down maintenance API")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
