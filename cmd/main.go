package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"

	"tourbook/cmd/buildCFG"
	"tourbook/internal/api/api"
	"tourbook/internal/auth"
	"tourbook/internal/cache"
	rabbitReader "tourbook/internal/consumerWorker"
	"tourbook/internal/gallery"
	"tourbook/internal/gateway"
	"tourbook/internal/mailer"
	"tourbook/internal/rabbit"
	"tourbook/internal/registration"
	"tourbook/internal/repo"
	"tourbook/internal/service"
)

func main() {
	zlog.Init()
	log := zlog.Logger

	cfg := config.New()
	if err := cfg.Load("config.yaml", "", ""); err != nil {
		log.Fatal().Msgf("failed to load configuration: %v", err)
	}
	serverCfg := buildCFG.BuildServerConfig(cfg, &log)

	masterDSN, slaveDSNs, poolOptions, err := buildCFG.BuildDBConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build DB config")
	}
	db, err := dbpg.New(masterDSN, slaveDSNs, poolOptions)
	if err != nil {
		log.Fatal().Msgf("failed to connect to DB: %v", err)
	}
	if err := db.Master.Ping(); err != nil {
		log.Fatal().Msgf("DB ping failed: %v", err)
	}
	log.Info().Msg("Database connected successfully")

	repository, err := repo.NewRepository(db, &log)
	if err != nil {
		log.Fatal().Msgf("failed to initialize repository: %v", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal().Err(err).Msg("cannot get working directory")
	}
	migrationPath := filepath.Join(cwd, "migrations/postgres")
	if len(os.Args) > 1 && os.Args[1] == "migrate-down" {
		log.Info().Msg("Rolling back migrations...")
		if err := repository.MigrateDown(migrationPath); err != nil {
			log.Fatal().Msgf("failed to rollback migrations: %v", err)
		}
		log.Info().Msg("Migrations rolled back successfully")
		return
	}
	if err := repository.MigrateUp(migrationPath); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	log.Info().Msg("Migrations applied successfully")

	rabbitCfg, err := buildCFG.BuildRabbitConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load RabbitMQ config")
	}
	rmq, err := rabbit.NewRabbit(rabbitCfg.Url, rabbitCfg.Exchange, rabbitCfg.Queue, &log)
	if err != nil {
		log.Fatal().Msgf("Failed to connect to RabbitMQ: %v", err)
	}
	defer rmq.Close()
	publisher := rabbit.NewPublisher(rmq)

	eventCache := cache.New(buildCFG.BuildCacheConfig(cfg), &log)

	photos, err := gallery.NewStorage(serverCfg.UploadsDir, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to prepare uploads directory")
	}

	authCfg := buildCFG.BuildAuthConfig(cfg, &log)
	checker := auth.NewChecker(authCfg.Username, authCfg.Password, authCfg.SessionSecret, authCfg.SessionTTL)

	payments := gateway.NewClient(buildCFG.BuildPaymentConfig(cfg, &log), &log)
	workerCfg := buildCFG.BuildWorkerConfig(cfg)
	flow := registration.NewFlow(payments, repository, publisher, &log, workerCfg.ReservationTimeout)

	mail := mailer.New(buildCFG.BuildMailConfig(cfg), &log)
	reconciler := rabbitReader.NewReconciler(repository, payments, mail, &log)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())

	rabbitReaderer := rabbitReader.NewReader(rmq, reconciler, &log)
	rabbitReaderer.Start(workerCtx)

	staleAfter := workerCfg.ReservationTimeout
	if staleAfter <= 0 {
		staleAfter = registration.DefaultReservationTimeout
	}
	sweeper := rabbitReader.NewSweeper(repository, reconciler, &log, workerCfg.ReconcileInterval, workerCfg.BatchSize, staleAfter)
	go sweeper.Run(workerCtx)

	serviceInstance := service.NewService(service.Deps{
		Repo:      repository,
		Gateway:   payments,
		Flow:      flow,
		Scheduler: publisher,
		Cache:     eventCache,
		Gallery:   photos,
		Auth:      checker,
		Log:       &log,
	})
	app := api.NewRouters(&api.Routers{
		Service:    serviceInstance,
		Auth:       checker,
		Log:        &log,
		Mode:       serverCfg.Mode,
		UploadsDir: photos.Dir(),
		StaticDir:  serverCfg.StaticDir,
	})

	srv := &http.Server{
		Addr:              ":" + serverCfg.Port,
		Handler:           app,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info().Msgf("Starting server on %s", serverCfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("failed to start server: %w", err)
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-signalChan:
		log.Info().Msgf("Received signal %s. Initiating shutdown...", sig)
	case err := <-serverErrChan:
		log.Error().Msgf("Server error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Msgf("Error shutting down server: %v", err)
	}

	cancelWorkers()
	rabbitReaderer.Stop()

	if err := db.Master.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close database")
	}
	log.Info().Msg("Shutdown complete")
}
