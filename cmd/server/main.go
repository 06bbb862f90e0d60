package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethan0sc4r/gestione-vinicola/internal/config"
	"github.com/ethan0sc4r/gestione-vinicola/internal/handler"
	"github.com/ethan0sc4r/gestione-vinicola/internal/infra"
	"github.com/ethan0sc4r/gestione-vinicola/internal/middleware"
	"github.com/ethan0sc4r/gestione-vinicola/internal/repository"
	"github.com/ethan0sc4r/gestione-vinicola/internal/router"
	"github.com/ethan0sc4r/gestione-vinicola/internal/scanner"
	"github.com/ethan0sc4r/gestione-vinicola/internal/service"
	"github.com/ethan0sc4r/gestione-vinicola/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg.Env)

	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}
	defaultLimit, err := decimal.NewFromString(cfg.DefaultCreditLimit)
	if err != nil {
		log.Fatal().Err(err).Str("value", cfg.DefaultCreditLimit).Msg("invalid DEFAULT_CREDIT_LIMIT")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Ledger ───────────────────────────────────────────────────────────────
	dispatcher := worker.NewDispatcher(rdb)
	audit := worker.NewAuditChannel(rdb, dispatcher, cfg.AlertEmail)
	ledger := service.NewLedger(service.LedgerDeps{
		Accounts:           repository.NewAccountRepository(db),
		Transactions:       repository.NewTransactionRepository(db),
		Products:           repository.NewProductRepository(db),
		Settings:           repository.NewSettingRepository(db),
		Incidents:          repository.NewIntegrityIncidentRepository(db),
		Hasher:             service.NewIntegrityHasher(cfg.LedgerSecretKey),
		Auditor:            audit,
		DefaultCreditLimit: defaultLimit,
	})
	if err := ledger.Bootstrap(ctx, cfg.GlobalCreditLimit); err != nil {
		log.Fatal().Err(err).Msg("ledger bootstrap failed")
	}

	// ── Background work ──────────────────────────────────────────────────────
	mailer := infra.NewMailer(cfg)
	if !mailer.Configured() {
		log.Warn().Msg("SMTP not configured, integrity alerts will only be logged")
	}
	smtpCB := infra.NewCircuitBreaker(infra.DefaultCBConfig("smtp"))
	worker.StartWorkerPool(ctx, rdb, &worker.WorkerHandlers{
		Alert: worker.NewAlertWorker(mailer, smtpCB),
	}, cfg.WorkerPoolSize)
	worker.StartIntegrityCron(ctx, worker.IntegrityCronConfig{
		Ledger:   ledger,
		Interval: cfg.IntegritySweepInterval,
	})

	limiter := middleware.NewRateLimiter(1000, time.Minute)
	go limiter.Purge(ctx, 5*time.Minute)

	// ── Barcode reader ───────────────────────────────────────────────────────
	// A missing reader is not fatal: codes can still be typed in.
	var src handler.ScanSource
	if cfg.SerialEnabled {
		reader := scanner.NewReader(scannerConfig(cfg), nil, ledger,
			scanner.RedisPublisher(rdb, scanner.EventsChannel),
		)
		if err := reader.Start(ctx); err != nil {
			log.Error().Err(err).Msg("barcode reader unavailable, continuing without it")
		} else {
			src = reader
		}
	}

	r := router.New(cfg, router.Deps{
		DB:      db,
		Redis:   rdb,
		Ledger:  ledger,
		Audit:   audit,
		Scanner: src,
		Limiter: limiter,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("ledger service listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel() // stops workers, cron and the reader loop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	if err := rdb.Close(); err != nil {
		log.Warn().Err(err).Msg("redis close")
	}
	log.Info().Msg("server exited")
}

// setupLogger: dev gets the console writer, production plain JSON.
func setupLogger(env string) {
	zerolog.TimeFieldFormat = time.RFC3339
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

func scannerConfig(cfg *config.Config) scanner.Config {
	return scanner.Config{
		Port:            cfg.SerialPort,
		BaudRate:        cfg.SerialBaudRate,
		DataBits:        cfg.SerialDataBits,
		Parity:          cfg.SerialParity,
		StopBits:        cfg.SerialStopBits,
		ReadTimeout:     cfg.SerialReadTimeout,
		PollInterval:    cfg.SerialPollInterval,
		ErrorBackoff:    cfg.SerialErrorBackoff,
		DuplicateWindow: cfg.SerialDuplicateWindow,
		IgnorePrefix:    cfg.SerialIgnorePrefix,
		IgnoreSuffix:    cfg.SerialIgnoreSuffix,
		Case:            cfg.SerialCase,
		StripSpaces:     cfg.SerialStripSpaces,

		RemoveInnerSpaces: cfg.SerialRemoveSpaces,
	}
}
