// internal/cli/server.go
package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const shutdownTimeout = 30 * time.Second

func newHTTPServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// serveUntilSignal starts every server, blocks until SIGINT/SIGTERM or a server
// fails, then shuts the servers down followed by each of shutdowns in order.
func serveUntilSignal(logger *slog.Logger, servers []*http.Server, shutdowns ...func(context.Context) error) error {
	failed := make(chan error, len(servers))

	// Run servers in goroutines
	for _, server := range servers {
		go func(server *http.Server) {
			logger.Info("Starting HTTP server", "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server failed to start", "addr", server.Addr, "error", err)
				failed <- err
			}
		}(server)
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case <-quit: // Block until a signal is received
	case runErr = <-failed:
	}

	logger.Info("Shutting down HTTP servers...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	for _, server := range servers {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown failed", "addr", server.Addr, "error", err)
			errs = append(errs, err)
		}
	}

	// Perform application-level shutdown (e.g., close DB connections)
	for _, shutdown := range shutdowns {
		if err := shutdown(shutdownCtx); err != nil {
			logger.Error("Application shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	logger.Info("Application gracefully stopped.")
	return nil
}
