package service

import (
	"strings"

	"github.com/ethan0sc4r/gestione-vinicola/internal/model"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// CreditLimitPolicy decides whether a debit may take a balance negative.
type CreditLimitPolicy struct{}

// EffectiveLimit returns the parsed global override when present and valid,
// otherwise the account's own limit. A malformed override never blocks sales.
func (CreditLimitPolicy) EffectiveLimit(a *model.Account, override *string) decimal.Decimal {
	if override == nil || strings.TrimSpace(*override) == "" {
		return a.CreditLimit
	}
	limit, err := decimal.NewFromString(strings.TrimSpace(*override))
	if err != nil {
		log.Debug().Str("value", *override).Msg("credit_policy: unparseable global limit, using account limit")
		return a.CreditLimit
	}
	return limit
}

// IsAllowed evaluates balance - debit >= -effectiveLimit. The register always
// passes.
func (p CreditLimitPolicy) IsAllowed(a *model.Account, debit decimal.Decimal, override *string) (bool, decimal.Decimal) {
	limit := p.EffectiveLimit(a, override)
	if a.IsRegister() {
		return true, limit
	}
	return a.Balance.Sub(debit).GreaterThanOrEqual(limit.Neg()), limit
}
