package service

import (
	"context"
	"errors"
	"strings"

	"github.com/ethan0sc4r/gestione-vinicola/internal/dto"
	"github.com/ethan0sc4r/gestione-vinicola/internal/model"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AccountAdminService is the narrow surface the admin module uses to create
// and configure accounts without writing balance fields itself.
type AccountAdminService interface {
	CreateAccount(ctx context.Context, req dto.CreateAccountRequest) (*model.Account, error)
	SetCreditLimit(ctx context.Context, accountID uint, limit decimal.Decimal) (*model.Account, error)
	DeleteAccount(ctx context.Context, accountID uint) error
	GlobalCreditLimit(ctx context.Context) (*string, error)
	SetGlobalCreditLimit(ctx context.Context, value *decimal.Decimal) error
}

// ── CreateAccount ─────────────────────────────────────────────────────────────
// New accounts start at zero; money only arrives through ApplyCredit.

func (l *Ledger) CreateAccount(ctx context.Context, req dto.CreateAccountRequest) (*model.Account, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, ErrCodeRequired
	}
	if strings.EqualFold(code, model.RegisterCode) {
		return nil, ErrRegisterProtected
	}
	if _, err := l.accounts.FindByCode(ctx, code); err == nil {
		return nil, ErrDuplicateCode
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	limit := l.defaultLimit
	if req.CreditLimit != nil {
		if req.CreditLimit.IsNegative() {
			return nil, ErrInvalidAmount
		}
		limit = req.CreditLimit.Round(2)
	}

	a := &model.Account{
		Code:        code,
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		Balance:     decimal.Zero,
		CreditLimit: limit,
		Active:      true,
	}
	if err := l.accounts.Create(ctx, a); err != nil {
		// a concurrent create can slip past FindByCode; the lower(code)
		// index catches it
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateCode
		}
		return nil, err
	}

	unlock := l.locks.Lock(a.ID)
	defer unlock()
	if err := runTx(ctx, l.accounts.DB(), func(tx *gorm.DB) error {
		return l.persistState(tx, a)
	}); err != nil {
		return nil, err
	}

	log.Info().Uint("account_id", a.ID).Str("code", a.Code).Msg("account created")
	return a, nil
}

// SetCreditLimit changes the per-account limit; the fingerprint covers it.
func (l *Ledger) SetCreditLimit(ctx context.Context, accountID uint, limit decimal.Decimal) (*model.Account, error) {
	if limit.IsNegative() {
		return nil, ErrInvalidAmount
	}

	unlock := l.locks.Lock(accountID)
	defer unlock()

	var acc *model.Account
	var incidents []model.IntegrityIncident
	err := runTx(ctx, l.accounts.DB(), func(tx *gorm.DB) error {
		a, inc, err := l.loadForUpdate(tx, accountID)
		if err != nil {
			return err
		}
		incidents = appendIncident(incidents, inc)
		a.CreditLimit = limit.Round(2)
		acc = a
		return l.persistState(tx, a)
	})
	if err != nil {
		return nil, err
	}
	l.report(ctx, incidents)
	return acc, nil
}

// DeleteAccount removes an account and, with it, its transactions.
func (l *Ledger) DeleteAccount(ctx context.Context, accountID uint) error {
	a, err := l.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if a.IsRegister() {
		return ErrRegisterProtected
	}

	unlock := l.locks.Lock(accountID)
	defer unlock()
	if err := l.accounts.Delete(ctx, accountID); err != nil {
		return err
	}
	log.Info().Uint("account_id", accountID).Str("code", a.Code).Msg("account deleted with its transactions")
	return nil
}

func (l *Ledger) GlobalCreditLimit(ctx context.Context) (*string, error) {
	return l.globalOverride(ctx)
}

// SetGlobalCreditLimit stores the override; nil removes it.
func (l *Ledger) SetGlobalCreditLimit(ctx context.Context, value *decimal.Decimal) error {
	if value == nil {
		return l.settings.Delete(ctx, model.SettingCreditLimit)
	}
	if value.IsNegative() {
		return ErrInvalidAmount
	}
	return l.settings.Set(ctx, model.SettingCreditLimit, value.StringFixed(2))
}
