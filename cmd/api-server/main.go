package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/provetcare/clinic-server/internal/api"
	"github.com/provetcare/clinic-server/internal/appointment"
	"github.com/provetcare/clinic-server/internal/billing"
	"github.com/provetcare/clinic-server/internal/config"
	"github.com/provetcare/clinic-server/internal/db"
	"github.com/provetcare/clinic-server/internal/document"
	"github.com/provetcare/clinic-server/internal/notification"
	"github.com/provetcare/clinic-server/internal/redisx"
)

const version = "1.0.0"

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "api-server").Logger()
	log.Info().Msg("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("configuration loaded")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	// Connect Redis
	rdb, err := redisx.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	var mailer notification.Mailer
	if cfg.MailConfigured() {
		mailer = notification.NewSMTPMailer(cfg.EmailHost, cfg.EmailPort, cfg.EmailUser, cfg.EmailPassword, cfg.EmailFrom)
		log.Info().Str("host", cfg.EmailHost).Msg("mail transport configured")
	} else {
		log.Warn().Msg("mail credentials absent, notifications run in simulated mode")
	}
	dispatcher := notification.NewDispatcher(mailer, log.With().Str("component", "notification").Logger())

	apptRepo := appointment.NewPgRepository(pgPool)
	apptSvc := appointment.NewService(apptRepo, dispatcher, log.With().Str("component", "appointment").Logger())

	locker := redisx.NewRedisAppointmentLocker(rdb, cfg.LockTTL)
	renderer := document.NewRenderer(cfg.DocumentDir)
	billingRepo := billing.NewPgRepository(pgPool)
	billingSvc := billing.NewService(billingRepo, locker, renderer, log.With().Str("component", "billing").Logger())

	router := api.NewRouter(api.RouterConfig{
		Appointments: apptSvc,
		Billing:      billingSvc,
		PgPool:       pgPool,
		Redis:        rdb,
		JWTSecret:    cfg.JWTSecret,
		Logger:       log,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Fatal().Err(err).Msg("http server error")
	case <-rootCtx.Done():
	}

	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown error")
	}

	// Let in-flight document generation finish before the pool closes.
	billingSvc.Wait()
}
