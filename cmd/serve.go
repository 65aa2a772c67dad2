package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/storesync/internal/catalog"
	"github.com/sells-group/storesync/internal/metrics"
	"github.com/sells-group/storesync/internal/model"
	"github.com/sells-group/storesync/internal/monitoring"
	"github.com/sells-group/storesync/internal/pipeline"
)

const maxSyncBody = 64 << 20

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server that runs syncs on request",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		rec := metrics.NewRecorder()
		env, err := initSync(ctx, cfg, rec, monitoring.NewAlerter(cfg.Monitoring))
		if err != nil {
			return err
		}
		defer env.Close()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildRouter(env, rec, cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// runner is the part of syncEnv the router needs.
type runner interface {
	Run(ctx context.Context, stores []model.Store) (*pipeline.RunResult, error)
}

func buildRouter(env runner, rec *metrics.Recorder, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if rec != nil {
		r.Method(http.MethodGet, "/metrics", rec.Handler())
	}

	// Runs share the cache and snapshot, so only one may be in flight.
	var mu sync.Mutex
	r.Post("/sync", func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxSyncBody))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		stores, err := catalog.Parse(body, catalog.FormatJSON)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store list"})
			return
		}

		if !mu.TryLock() {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "sync already running"})
			return
		}
		defer mu.Unlock()

		// A started run finishes even if the client goes away.
		result, err := env.Run(context.WithoutCancel(req.Context()), stores)
		if err != nil {
			zap.L().Error("sync request failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
