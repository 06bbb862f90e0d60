package service

import (
	"context"
	"errors"

	"github.com/ethan0sc4r/gestione-vinicola/internal/dto"
	"github.com/ethan0sc4r/gestione-vinicola/internal/model"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CashRegisterService keeps the register account in step with physical cash.
type CashRegisterService interface {
	EnsureRegister(ctx context.Context) (*model.Account, error)
	Register(ctx context.Context) (*model.Account, error)
	// Withdraw takes cash out of the register only. With all set the whole
	// current balance is withdrawn and amount is ignored.
	Withdraw(ctx context.Context, amount *decimal.Decimal, all bool, operatorID *uint) (*dto.MutationResponse, error)
}

var registerCreditLimit = decimal.NewFromInt(999999)

// EnsureRegister returns the register account, creating it on first use.
func (l *Ledger) EnsureRegister(ctx context.Context) (*model.Account, error) {
	reg, err := l.accounts.FindByCode(ctx, model.RegisterCode)
	if err == nil {
		return reg, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	reg = &model.Account{
		Code:        model.RegisterCode,
		FirstName:   "Cassa",
		LastName:    "",
		CreditLimit: registerCreditLimit,
		Active:      true,
	}
	if err := l.accounts.Create(ctx, reg); err != nil {
		// Lost a creation race: the unique code index rejected the second row.
		if existing, findErr := l.accounts.FindByCode(ctx, model.RegisterCode); findErr == nil {
			return existing, nil
		}
		return nil, err
	}

	unlock := l.locks.Lock(reg.ID)
	defer unlock()
	if err := runTx(ctx, l.accounts.DB(), func(tx *gorm.DB) error {
		return l.persistState(tx, reg)
	}); err != nil {
		return nil, err
	}
	log.Info().Uint("account_id", reg.ID).Msg("cash_register: register account created")
	return reg, nil
}

// Register returns the verified register account.
func (l *Ledger) Register(ctx context.Context) (*model.Account, error) {
	if _, err := l.EnsureRegister(ctx); err != nil {
		return nil, err
	}
	return l.Lookup(ctx, model.RegisterCode)
}

// mirrorTopUp books the register leg of a top-up inside the caller's
// transaction. The caller already holds the register lock.
func (l *Ledger) mirrorTopUp(tx *gorm.DB, registerID uint, credit *model.Transaction) (*model.IntegrityIncident, error) {
	reg, inc, err := l.loadForUpdate(tx, registerID)
	if err != nil {
		return nil, err
	}
	reg.Balance = reg.Balance.Add(credit.Amount)
	if err := l.persistState(tx, reg); err != nil {
		return nil, err
	}
	sourceID := credit.ID
	mirror := &model.Transaction{
		AccountID:           reg.ID,
		OperatorID:          credit.OperatorID,
		Amount:              credit.Amount,
		Kind:                model.KindCredit,
		Tag:                 strPtr(model.TagTopUpMirror),
		ProductName:         strPtr(topUpLabel),
		SourceTransactionID: &sourceID,
	}
	if err := l.txs.CreateTx(tx, mirror); err != nil {
		return nil, err
	}
	return inc, nil
}

// ── Withdraw ──────────────────────────────────────────────────────────────────

func (l *Ledger) Withdraw(ctx context.Context, amount *decimal.Decimal, all bool, operatorID *uint) (*dto.MutationResponse, error) {
	if !all && amount == nil {
		return nil, ErrInvalidAmount
	}
	reg, err := l.EnsureRegister(ctx)
	if err != nil {
		return nil, err
	}

	unlock := l.locks.Lock(reg.ID)
	defer unlock()

	var (
		resp      *dto.MutationResponse
		incidents []model.IntegrityIncident
	)
	err = runTx(ctx, l.accounts.DB(), func(tx *gorm.DB) error {
		a, inc, err := l.loadForUpdate(tx, reg.ID)
		if err != nil {
			return err
		}

		amt := a.Balance
		if !all {
			amt = amount.Round(2)
		}
		if !amt.GreaterThan(oneCent) {
			return ErrInvalidAmount
		}
		if amt.GreaterThan(a.Balance) {
			return ErrInsufficientFunds
		}
		incidents = appendIncident(incidents, inc)

		a.Balance = a.Balance.Sub(amt)
		if err := l.persistState(tx, a); err != nil {
			return err
		}
		row := model.Transaction{
			AccountID:   a.ID,
			OperatorID:  operatorID,
			Amount:      amt.Neg(),
			Kind:        model.KindDebit,
			Tag:         strPtr(model.TagWithdrawal),
			ProductName: strPtr(withdrawalReason),
			Reason:      strPtr(withdrawalReason),
		}
		if err := l.txs.CreateTx(tx, &row); err != nil {
			return err
		}
		resp = mutationResponse(a, row)
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.report(ctx, incidents)
	log.Info().Str("amount", resp.Transactions[0].Amount.Neg().StringFixed(2)).Msg("cash_register: withdrawal recorded")
	return resp, nil
}
