package worker

// integrity_cron.go
// Background goroutine that periodically verifies every account fingerprint.

import (
	"context"
	"time"

	"github.com/ethan0sc4r/gestione-vinicola/internal/model"

	"github.com/rs/zerolog/log"
)

// Verifier is satisfied by service.LedgerService.
type Verifier interface {
	VerifyAll(ctx context.Context) ([]model.IntegrityIncident, error)
}

type IntegrityCronConfig struct {
	Ledger   Verifier
	Interval time.Duration
}

// StartIntegrityCron ticks every Interval until ctx is cancelled. A
// non-positive interval disables the sweep.
func StartIntegrityCron(ctx context.Context, cfg IntegrityCronConfig) {
	if cfg.Interval <= 0 {
		log.Info().Msg("integrity_cron: disabled")
		return
	}
	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		log.Info().Dur("interval", cfg.Interval).Msg("integrity_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("integrity_cron: shutting down")
				return
			case <-ticker.C:
				runSweep(ctx, cfg.Ledger)
			}
		}
	}()
}

func runSweep(ctx context.Context, v Verifier) int {
	flagged, err := v.VerifyAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("integrity_cron: sweep failed")
		return 0
	}
	if len(flagged) > 0 {
		log.Warn().Int("flagged", len(flagged)).Msg("integrity_cron: mismatches healed")
	}
	return len(flagged)
}
