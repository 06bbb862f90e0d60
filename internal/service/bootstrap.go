package service

import (
	"context"
	"strings"

	"github.com/ethan0sc4r/gestione-vinicola/internal/model"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Bootstrap prepares a fresh or upgraded database: the register exists, the
// global credit limit is seeded when absent and unsealed rows get a
// fingerprint. It is safe to run on every start.
func (l *Ledger) Bootstrap(ctx context.Context, globalLimit string) error {
	if _, err := l.EnsureRegister(ctx); err != nil {
		return err
	}

	if v := strings.TrimSpace(globalLimit); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil || d.IsNegative() {
			log.Warn().Str("value", v).Msg("bootstrap: ignoring invalid global credit limit seed")
		} else if err := l.settings.SetDefault(ctx, model.SettingCreditLimit, d.StringFixed(2)); err != nil {
			return err
		}
	}

	n, err := l.BackfillFingerprints(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("backfilled", n).Msg("bootstrap: ledger ready")
	return nil
}
