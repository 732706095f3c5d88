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
	"github.com/reelqueue/platform/pkg/common/kafka"
	"github.com/reelqueue/platform/pkg/common/logger"
	"github.com/reelqueue/platform/pkg/ingest"
	"github.com/reelqueue/platform/pkg/observability/metrics"
)

func main() {
	logger.Init("media-listener")
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q, err := app.NewQueue(ctx, cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to configure queue")
	}

	recorder, _, err := app.NewHistory(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to set up history")
	}
	defer database.ClosePostgres()
	defer database.CloseRedis()

	listener := ingest.NewListener(q.Selector, q.Updater, q.Schema.Sheet, cfg.IngestSourceURLPrefix, recorder)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.MediaReadyTopic, cfg.MediaReadyGroup)
	defer consumer.Close()

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"topic": cfg.MediaReadyTopic,
			"group": cfg.MediaReadyGroup,
		}).Info("Media listener consuming")

		if err := consumer.Consume(ctx, listener.HandleEvent); err != nil && ctx.Err() == nil {
			logger.Log.WithError(err).Fatal("consumer stopped")
		}
	}()

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ListenerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Media listener...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Media listener stopped")
}
