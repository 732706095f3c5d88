package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/reelqueue/platform/pkg/app"
	"github.com/reelqueue/platform/pkg/common/config"
	"github.com/reelqueue/platform/pkg/common/database"
	"github.com/reelqueue/platform/pkg/common/logger"
	"github.com/reelqueue/platform/pkg/gateway/auth"
	"github.com/reelqueue/platform/pkg/gateway/middleware"
	"github.com/reelqueue/platform/pkg/gateway/routes"
	"github.com/reelqueue/platform/pkg/history"
	"github.com/reelqueue/platform/pkg/ingest"
	"github.com/reelqueue/platform/pkg/observability/metrics"
	"github.com/reelqueue/platform/pkg/pipeline"
	"github.com/reelqueue/platform/pkg/trigger"
)

func main() {
	logger.Init("pipeline-service")
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q, err := app.NewQueue(ctx, cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to configure queue")
	}

	recorder, historyRepo, err := app.NewHistory(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to set up history")
	}
	defer database.ClosePostgres()
	defer database.CloseRedis()

	tr, err := trigger.New(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to configure trigger")
	}
	defer tr.Close()

	var jwtManager *auth.JWTManager
	if cfg.OperatorJWTSecret != "" {
		jwtManager, err = auth.NewJWTManager(cfg.OperatorJWTSecret, cfg.OperatorJWTIssuer)
		if err != nil {
			logger.Log.WithError(err).Fatal("invalid operator auth settings")
		}
	} else {
		logger.Log.Warn("OPERATOR_JWT_SECRET not set, operator API is unauthenticated")
	}

	svc := app.NewPipeline(cfg, q, recorder)
	ingestSvc := ingest.NewService(q.Store, q.Schema, tr, ingest.Options{
		SourceURLPrefix: cfg.IngestSourceURLPrefix,
		Filter: ingest.Filter{
			MarkerTerm: cfg.IngestMarkerTerm,
			IDLength:   cfg.IngestShortsIDLength,
		},
		History: recorder,
	})

	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.BodyLimit(cfg.MaxRequestBody))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := database.Ready(pingCtx); err != nil {
			logger.Log.WithError(err).Warn("readiness check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	webhook := router.PathPrefix("/webhook").Subrouter()
	webhook.Use(middleware.RateLimit(cfg.WebhookRPS, cfg.WebhookBurst, cfg.WebhookTrustedProxies))
	ingest.NewHandler(ingestSvc).Register(webhook)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Authenticate(jwtManager))
	pipeline.NewHandler(svc).Register(api)
	routes.NewOverviewHandler(q.Selector, q.Schema.Sheet).Register(api)
	routes.NewOperatorHandler().Register(api)
	if historyRepo != nil {
		history.NewHandler(historyRepo).Register(api)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":    cfg.ServerHost,
			"port":    cfg.ServerPort,
			"backend": cfg.QueueBackend,
			"schema":  q.Schema.Name,
			"sheet":   q.Schema.Sheet,
		}).Info("Pipeline Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	if historyRepo != nil {
		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					removed, err := historyRepo.CleanupExpired(ctx, cfg.HistoryTTL)
					if err != nil {
						logger.Log.WithError(err).Warn("history cleanup failed")
						continue
					}
					if removed > 0 {
						logger.Log.WithField("removed", removed).Info("expired history removed")
					}
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Pipeline Service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Pipeline Service stopped")
}
