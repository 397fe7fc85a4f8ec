package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"fuelsite-cloud/internal/audit"
	sessionhttp "fuelsite-cloud/internal/cashbox/interfaces/http"
	"fuelsite-cloud/internal/observability/metrics"
	reconhttp "fuelsite-cloud/internal/reconciliation/interfaces/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()
		metrics.Init(a.db, logger)

		// zero disables the relay; events stay in the outbox
		if cfg.OutboxInterval > 0 {
			go a.dispatcher.Run(ctx, cfg.OutboxInterval)
		}

		handler, err := newRouter(a, logger)
		if err != nil {
			return err
		}
		server := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           loggingMiddleware(handler, logger),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.WithField("addr", cfg.HTTPAddr).Info("http listening")
			errCh <- server.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("http shutting down")
		return server.Shutdown(shutdownCtx)
	},
}

func newRouter(a *app, logger logrus.FieldLogger) (http.Handler, error) {
	var auditLogger audit.Logger
	if a.audit != nil {
		auditLogger = a.audit
	}
	sessionHandler, err := sessionhttp.NewHandler(a.lifecycle, auditLogger, logger)
	if err != nil {
		return nil, err
	}
	reconHandler, err := reconhttp.NewHandler(a.reconciliation, logger)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/sessions/", sessionHandler)
	mux.Handle("/api/v1/reconciliation", reconHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux, nil
}

func loggingMiddleware(next http.Handler, logger logrus.FieldLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   resp.status,
			"duration": time.Since(start).String(),
		}).Info("http request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
