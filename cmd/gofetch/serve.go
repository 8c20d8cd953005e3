package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/spf13/cobra"

	"github.com/datallboy/gofetch/internal/api"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(load loader) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API for managing transfers",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if port == "" {
				port = a.Config.Port
			}

			e := echo.New()
			api.RegisterRoutes(e, a)

			srv := &http.Server{
				Addr:              ":" + port,
				Handler:           e,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.Logger.Info("API listening on %s", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return err
				}
			case <-cmd.Context().Done():
				a.Logger.Info("Shutting down...")
			}

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				a.Logger.Error("server shutdown: %v", err)
			}
			if err := a.Manager.StopAll(ctx); err != nil {
				a.Logger.Error("stopping transfers: %v", err)
			}
			a.Manager.Wait()
			return nil
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (default: port from config)")
	return cmd
}
