// cmd/rehash re-seals account fingerprints offline, e.g. after rotating
// LEDGER_SECRET_KEY.
//
//	rehash            # seal only accounts without a fingerprint
//	rehash -all       # regenerate every fingerprint from current values
//	rehash -verify    # report mismatches, healing them
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/ethan0sc4r/gestione-vinicola/internal/config"
	"github.com/ethan0sc4r/gestione-vinicola/internal/infra"
	"github.com/ethan0sc4r/gestione-vinicola/internal/repository"
	"github.com/ethan0sc4r/gestione-vinicola/internal/service"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

func main() {
	all := flag.Bool("all", false, "regenerate every fingerprint")
	verify := flag.Bool("verify", false, "verify all accounts instead of sealing")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defaultLimit, err := decimal.NewFromString(cfg.DefaultCreditLimit)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid DEFAULT_CREDIT_LIMIT")
	}

	ledger := service.NewLedger(service.LedgerDeps{
		Accounts:           repository.NewAccountRepository(db),
		Transactions:       repository.NewTransactionRepository(db),
		Products:           repository.NewProductRepository(db),
		Settings:           repository.NewSettingRepository(db),
		Incidents:          repository.NewIntegrityIncidentRepository(db),
		Hasher:             service.NewIntegrityHasher(cfg.LedgerSecretKey),
		DefaultCreditLimit: defaultLimit,
	})

	ctx := context.Background()
	switch {
	case *verify:
		flagged, err := ledger.VerifyAll(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("verification failed")
		}
		for _, inc := range flagged {
			log.Warn().Uint("account_id", inc.AccountID).Str("code", inc.AccountCode).
				Str("balance", inc.Balance.StringFixed(2)).Msg("mismatch healed")
		}
		log.Info().Int("flagged", len(flagged)).Msg("done")
	case *all:
		n, err := ledger.ResetFingerprints(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("reset failed")
		}
		log.Info().Int("sealed", n).Msg("done")
	default:
		n, err := ledger.BackfillFingerprints(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("backfill failed")
		}
		log.Info().Int("sealed", n).Msg("done")
	}
}
