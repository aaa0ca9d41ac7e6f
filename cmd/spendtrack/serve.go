package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"spendtrack/internal/cli"
	apphttp "spendtrack/internal/http"
)

func serveCmd() *cobra.Command {
	var rateLimit int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger view model over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(_ context.Context, rt *cli.Runtime) error {
				rt.Caches.StartCleanup(time.Minute)

				srv := apphttp.NewServer(rt.Service, apphttp.Options{
					Addr:      ":" + appConfig.Port,
					Logger:    logger,
					RateLimit: rateLimit,
				})

				_, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func(c context.Context) {
					if err := srv.Shutdown(c); err != nil {
						logger.Error("Server shutdown error", "error", err)
					}
				})

				logger.Info("Starting spendtrack server",
					"port", appConfig.Port,
					"ledger", appConfig.LedgerBackend,
					"identity", appConfig.IdentityBackend)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}

				<-done
				logger.Info("Server stopped gracefully")
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&rateLimit, "rate-limit", 60, "mutating requests per client per minute")
	return cmd
}
