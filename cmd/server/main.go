package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pauljones0/post-heatmap/internal/app"
	"github.com/pauljones0/post-heatmap/internal/config"
)

const (
	runTimeout      = 10 * time.Minute
	shutdownTimeout = 30 * time.Second
)

type pipeline interface {
	Run(ctx context.Context) (app.Result, error)
}

type Server struct {
	pipeline pipeline
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped.")
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	slog.SetDefault(app.NewLogger(os.Stdout, cfg))
	slog.Info("Starting post heatmap server...")

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing pipeline: %w", err)
	}
	defer a.Close()

	srv := &Server{pipeline: a}
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Listening on port", "port", cfg.Port)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		slog.Info("Shutdown signal received, draining connections")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /run", s.RunHandler)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, `{"status":"ok"}`)
	})
	return mux
}

func (s *Server) RunHandler(w http.ResponseWriter, r *http.Request) {
	// Run asynchronously so the trigger isn't held open for the whole
	// ingest, aggregate and insights sequence.
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Panic in pipeline run", "panic", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		res, err := s.pipeline.Run(ctx)
		if err != nil {
			slog.Error("Error running pipeline", "error", err)
			return
		}
		slog.Info("Pipeline run finished",
			"ingested", res.Ingest.Records,
			"processed", res.Aggregate.Processed,
			"included", res.Aggregate.Included,
			"insights", res.Insights != nil)
	}()

	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintln(w, "Pipeline run started.")
}
