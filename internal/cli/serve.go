package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	httpadapter "github.com/aretw0/canvasbuilder/pkg/adapters/http"
)

// ShutdownTimeout is how long outstanding requests get to finish on shutdown.
const ShutdownTimeout = 5 * time.Second

// Serve runs the HTTP API on addr until ctx is done, then shuts down
// gracefully.
func Serve(ctx context.Context, app *App, addr, version string) error {
	handler := httpadapter.NewHandler(app.NewRunner(),
		httpadapter.WithClassifier(app.Classifier),
		httpadapter.WithMetricsHandler(app.Metrics.Handler()),
		httpadapter.WithVersion(version),
		httpadapter.WithLogger(app.Logger),
	)

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		app.Logger.Info("Starting canvas server", "addr", addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		app.Logger.Info("Start shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.Logger.Warn("Graceful shutdown did not complete", "timeout", ShutdownTimeout, "err", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("error killing server: %w", err)
			}
		}
		app.Logger.Info("Canvas server stopped gracefully")
		return nil
	}
}
