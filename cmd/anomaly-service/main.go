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
	"github.com/vitalis-health/platform/pkg/anomaly"
	"github.com/vitalis-health/platform/pkg/auth"
	"github.com/vitalis-health/platform/pkg/baseline"
	"github.com/vitalis-health/platform/pkg/common/config"
	"github.com/vitalis-health/platform/pkg/common/database"
	"github.com/vitalis-health/platform/pkg/common/kafka"
	"github.com/vitalis-health/platform/pkg/common/logger"
	"github.com/vitalis-health/platform/pkg/observability/metrics"
	"github.com/vitalis-health/platform/pkg/server"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	baselineRepo := baseline.NewRepository(db)
	if err := baselineRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate baseline tables")
	}
	anomalyRepo := anomaly.NewRepository(db)
	if err := anomalyRepo.Migrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate anomaly tables")
	}

	jwtManager, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTTTL)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to initialize jwt manager")
	}

	engine := baseline.NewEngine(baselineRepo, cfg.MinBaselineSamples)
	detector := anomaly.NewService(engine, anomalyRepo, anomaly.DefaultThresholds(), cfg.RecentWindowDays, cfg.BaselineWindowDays)

	scheduler := anomaly.NewScheduler(detector, anomalyRepo, database.GetRedis(), cfg.DetectionInterval, cfg.DetectionDebounceTTL)

	workCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	consumer := kafka.NewConsumer(cfg.SignalEventsTopic, cfg.KafkaGroupID)
	defer consumer.Close()
	go func() {
		if err := consumer.Consume(workCtx, scheduler.HandleSignalEvent); err != nil && workCtx.Err() == nil {
			logger.Log.WithError(err).Error("signal event consumer stopped")
		}
	}()
	go scheduler.RunInterval(workCtx)

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(server.Logging)
	api.Use(server.Recovery)
	api.Use(server.Authenticate(jwtManager))

	anomaly.NewHandler(detector).Register(api)

	address := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.AnomalyServicePort)
	srv := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithField("addr", address).Info("anomaly service listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start anomaly service")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down anomaly service...")
	stopWorkers()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("anomaly service forced to shutdown")
	}
	database.CloseRedis()
	database.ClosePostgres()
	logger.Log.Info("anomaly service stopped")
}
