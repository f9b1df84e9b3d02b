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
	"github.com/vitalis-health/platform/pkg/auth"
	"github.com/vitalis-health/platform/pkg/baseline"
	"github.com/vitalis-health/platform/pkg/catalog"
	"github.com/vitalis-health/platform/pkg/common/config"
	"github.com/vitalis-health/platform/pkg/common/database"
	"github.com/vitalis-health/platform/pkg/common/kafka"
	"github.com/vitalis-health/platform/pkg/common/logger"
	"github.com/vitalis-health/platform/pkg/observability/metrics"
	"github.com/vitalis-health/platform/pkg/proposal"
	"github.com/vitalis-health/platform/pkg/redact"
	"github.com/vitalis-health/platform/pkg/server"
	"github.com/vitalis-health/platform/pkg/signals"
)

func main() {
	logger.Init()
	cfg := config.Load()

	cat, err := catalog.Load(cfg.CatalogOverlayPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load signal catalog")
	}

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	instanceRepo := signals.NewRepository(db)
	if err := instanceRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate signal instance tables")
	}
	proposalRepo := proposal.NewRepository(db)
	if err := proposalRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate proposal tables")
	}
	baselineRepo := baseline.NewRepository(db)
	if err := baselineRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate baseline tables")
	}

	jwtManager, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTTTL)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to initialize jwt manager")
	}

	cache := signals.NewLatestCache(database.GetRedis(), cfg.LatestSignalCacheTTL)
	producer := kafka.NewProducer(cfg.SignalEventsTopic)
	defer producer.Close()

	redactRules, err := redact.LoadRules(cfg.RedactRulesPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load redaction rules")
	}
	scrubber, err := redact.NewScrubber(redactRules)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to compile redaction rules")
	}

	captureService := signals.NewService(cat, instanceRepo, cache, producer)
	proposalService := proposal.NewService(cat, proposalRepo, captureService, scrubber)
	baselineEngine := baseline.NewEngine(baselineRepo, cfg.MinBaselineSamples)

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	sweeper := proposal.NewSweeper(proposalRepo, cfg.ProposalTTL, cfg.ProposalSweepInterval)
	go sweeper.Run(sweepCtx)

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
	api.Use(server.RateLimit(cfg.CaptureRateLimitRPS, cfg.CaptureRateLimitBurst))
	api.Use(server.Authenticate(jwtManager))

	signals.NewHandler(captureService).Register(api)
	proposal.NewHandler(proposalService).Register(api)
	baseline.NewHandler(baselineEngine, cat, cfg.BaselineWindowDays).Register(api)

	address := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.SignalsServicePort)
	srv := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithField("addr", address).Info("signals service listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start signals service")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down signals service...")
	stopSweeper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("signals service forced to shutdown")
	}
	database.CloseRedis()
	database.ClosePostgres()
	logger.Log.Info("signals service stopped")
}
