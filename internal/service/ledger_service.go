package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethan0sc4r/gestione-vinicola/internal/dto"
	"github.com/ethan0sc4r/gestione-vinicola/internal/model"
	"github.com/ethan0sc4r/gestione-vinicola/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerService is the mutation surface over account balances. Every
// operation pairs the balance change with a fingerprint recomputation and an
// appended transaction row.
type LedgerService interface {
	Lookup(ctx context.Context, code string) (*model.Account, error)
	GetAccount(ctx context.Context, id uint) (*model.Account, error)
	ApplyCredit(ctx context.Context, accountID uint, amount decimal.Decimal, operatorID *uint) (*dto.MutationResponse, error)
	// ApplyDebit dispatches to RecordCashSale for the register and to
	// ChargeEmployee for everyone else.
	ApplyDebit(ctx context.Context, accountID uint, req dto.DebitRequest, operatorID *uint) (*dto.MutationResponse, error)
	ChargeEmployee(ctx context.Context, accountID uint, req dto.DebitRequest, operatorID *uint) (*dto.MutationResponse, error)
	RecordCashSale(ctx context.Context, req dto.DebitRequest, operatorID *uint) (*dto.MutationResponse, error)
	AdjustBalance(ctx context.Context, accountID uint, newBalance decimal.Decimal, reason string, operatorID *uint) (*dto.MutationResponse, error)
	CancelTransaction(ctx context.Context, transactionID uint, operatorID *uint) (*dto.MutationResponse, error)

	VerifyAll(ctx context.Context) ([]model.IntegrityIncident, error)
	ResetFingerprints(ctx context.Context) (int, error)
	BackfillFingerprints(ctx context.Context) (int, error)

	History(ctx context.Context, accountID uint, limit int) ([]model.Transaction, error)
	Reconcile(ctx context.Context, accountID uint) (*dto.ReconciliationResponse, error)
	CreditStats(ctx context.Context, accountID uint) (*dto.CreditStatsResponse, error)
	SystemStats(ctx context.Context) (*dto.SystemStatsResponse, error)
	DailyReport(ctx context.Context, day time.Time) (*dto.DailyReportResponse, error)
}

// IntegrityAuditor receives fingerprint mismatches after the healing
// transaction has committed.
type IntegrityAuditor interface {
	Report(ctx context.Context, incidents []model.IntegrityIncident)
}

// LedgerDeps wires the ledger. Auditor may be nil.
type LedgerDeps struct {
	Accounts           repository.AccountRepository
	Transactions       repository.TransactionRepository
	Products           repository.ProductRepository
	Settings           repository.SettingRepository
	Incidents          repository.IntegrityIncidentRepository
	Hasher             *IntegrityHasher
	Auditor            IntegrityAuditor
	DefaultCreditLimit decimal.Decimal
	// Clock defaults to time.Now.
	Clock              func() time.Time
}

// Ledger implements LedgerService, CashRegisterService and
// AccountAdminService over one set of per-account locks.
type Ledger struct {
	accounts     repository.AccountRepository
	txs          repository.TransactionRepository
	products     repository.ProductRepository
	settings     repository.SettingRepository
	incidents    repository.IntegrityIncidentRepository
	hasher       *IntegrityHasher
	auditor      IntegrityAuditor
	policy       CreditLimitPolicy
	locks        *accountLocks
	defaultLimit decimal.Decimal
	now          func() time.Time
}

var (
	_ LedgerService       = (*Ledger)(nil)
	_ CashRegisterService = (*Ledger)(nil)
	_ AccountAdminService = (*Ledger)(nil)
)

func NewLedger(deps LedgerDeps) *Ledger {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Ledger{
		accounts:     deps.Accounts,
		txs:          deps.Transactions,
		products:     deps.Products,
		settings:     deps.Settings,
		incidents:    deps.Incidents,
		hasher:       deps.Hasher,
		auditor:      deps.Auditor,
		locks:        newAccountLocks(),
		defaultLimit: deps.DefaultCreditLimit,
		now:          clock,
	}
}

var (
	oneCent          = decimal.New(1, -2)
	topUpLabel       = "Credit top-up"
	customLabel      = "Custom amount"
	withdrawalReason = "Cash withdrawal"
)

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (l *Ledger) GetAccount(ctx context.Context, id uint) (*model.Account, error) {
	a, err := l.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

// ── ApplyCredit ───────────────────────────────────────────────────────────────
// A top-up on an employee is cash entering the register: both legs are
// written in one transaction under both account locks.

func (l *Ledger) ApplyCredit(ctx context.Context, accountID uint, amount decimal.Decimal, operatorID *uint) (*dto.MutationResponse, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	amount = amount.Round(2)

	acc, err := l.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	lockIDs := []uint{acc.ID}
	var registerID uint
	if !acc.IsRegister() {
		reg, err := l.EnsureRegister(ctx)
		if err != nil {
			return nil, err
		}
		registerID = reg.ID
		lockIDs = append(lockIDs, registerID)
	}

	unlock := l.locks.Lock(lockIDs...)
	defer unlock()

	var (
		resp      *dto.MutationResponse
		incidents []model.IntegrityIncident
	)
	err = runTx(ctx, l.accounts.DB(), func(tx *gorm.DB) error {
		a, inc, err := l.loadForUpdate(tx, accountID)
		if err != nil {
			return err
		}
		incidents = appendIncident(incidents, inc)

		a.Balance = a.Balance.Add(amount)
		if err := l.persistState(tx, a); err != nil {
			return err
		}
		credit := &model.Transaction{
			AccountID:   a.ID,
			OperatorID:  operatorID,
			Amount:      amount,
			Kind:        model.KindCredit,
			ProductName: strPtr(topUpLabel),
		}
		if err := l.txs.CreateTx(tx, credit); err != nil {
			return err
		}

		if registerID != 0 {
			inc, err := l.mirrorTopUp(tx, registerID, credit)
			if err != nil {
				return err
			}
			incidents = appendIncident(incidents, inc)
		}

		resp = mutationResponse(a, *credit)
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.report(ctx, incidents)
	log.Info().Uint("account_id", accountID).Str("amount", amount.StringFixed(2)).Msg("ledger: credit applied")
	return resp, nil
}

// ── ApplyDebit ────────────────────────────────────────────────────────────────

func (l *Ledger) ApplyDebit(ctx context.Context, accountID uint, req dto.DebitRequest, operatorID *uint) (*dto.MutationResponse, error) {
	acc, err := l.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acc.IsRegister() {
		return l.RecordCashSale(ctx, req, operatorID)
	}
	return l.ChargeEmployee(ctx, accountID, req, operatorID)
}

// chargeLine is one priced line of a debit.
type chargeLine struct {
	productID *uint
	name      string
	quantity  *int
	unitPrice *decimal.Decimal
	total     decimal.Decimal
}

// resolveCharge prices the request. Product prices are read before any lock
// is taken.
func (l *Ledger) resolveCharge(ctx context.Context, req dto.DebitRequest) ([]chargeLine, decimal.Decimal, error) {
	var lines []chargeLine

	switch {
	case len(req.Items) > 0:
		for _, item := range req.Items {
			if item.Quantity <= 0 {
				continue
			}
			p, err := l.products.FindByID(ctx, item.ProductID)
			if err != nil {
				return nil, decimal.Zero, notFound(err)
			}
			id, qty, price := p.ID, item.Quantity, p.Price
			lines = append(lines, chargeLine{
				productID: &id,
				name:      p.Name,
				quantity:  &qty,
				unitPrice: &price,
				total:     price.Mul(decimal.NewFromInt(int64(qty))),
			})
		}
	case req.CustomAmount != nil:
		if req.CustomAmount.IsNegative() {
			return nil, decimal.Zero, ErrInvalidAmount
		}
		label := strings.TrimSpace(req.CustomLabel)
		if label == "" {
			label = customLabel
		}
		lines = append(lines, chargeLine{name: label, total: req.CustomAmount.Round(2)})
	}

	total := decimal.Zero
	for _, ln := range lines {
		total = total.Add(ln.total)
	}
	if !total.IsPositive() {
		return nil, decimal.Zero, ErrNothingToCharge
	}
	return lines, total, nil
}

// ChargeEmployee debits an ordinary account, subject to the credit limit.
// A refused charge records nothing.
func (l *Ledger) ChargeEmployee(ctx context.Context, accountID uint, req dto.DebitRequest, operatorID *uint) (*dto.MutationResponse, error) {
	lines, total, err := l.resolveCharge(ctx, req)
	if err != nil {
		return nil, err
	}

	override, err := l.globalOverride(ctx)
	if err != nil {
		return nil, err
	}

	unlock := l.locks.Lock(accountID)
	defer unlock()

	var (
		resp      *dto.MutationResponse
		incidents []model.IntegrityIncident
	)
	err = runTx(ctx, l.accounts.DB(), func(tx *gorm.DB) error {
		a, inc, err := l.loadForUpdate(tx, accountID)
		if err != nil {
			return err
		}
		if a.IsRegister() {
			return ErrRegisterProtected
		}
		incidents = appendIncident(incidents, inc)

		if ok, limit := l.policy.IsAllowed(a, total, override); !ok {
			return &InsufficientCreditError{Balance: a.Balance, EffectiveLimit: limit}
		}

		a.Balance = a.Balance.Sub(total)
		if err := l.persistState(tx, a); err != nil {
			return err
		}
		rows, err := l.bookLines(tx, a.ID, lines, operatorID, true, nil)
		if err != nil {
			return err
		}
		resp = mutationResponse(a, rows...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.report(ctx, incidents)
	log.Info().Uint("account_id", accountID).Str("amount", total.StringFixed(2)).Msg("ledger: employee charged")
	return resp, nil
}

// RecordCashSale books a sale paid in cash: the register is the payer and its
// balance grows by the sale total. No limit applies.
func (l *Ledger) RecordCashSale(ctx context.Context, req dto.DebitRequest, operatorID *uint) (*dto.MutationResponse, error) {
	lines, total, err := l.resolveCharge(ctx, req)
	if err != nil {
		return nil, err
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
		incidents = appendIncident(incidents, inc)

		a.Balance = a.Balance.Add(total)
		if err := l.persistState(tx, a); err != nil {
			return err
		}
		rows, err := l.bookLines(tx, a.ID, lines, operatorID, false, strPtr(model.TagCashSale))
		if err != nil {
			return err
		}
		resp = mutationResponse(a, rows...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.report(ctx, incidents)
	log.Info().Str("amount", total.StringFixed(2)).Msg("ledger: cash sale recorded")
	return resp, nil
}

// bookLines writes one debit row per line and takes sold units out of stock.
// Employee rows are negative; register cash-sale rows are positive.
func (l *Ledger) bookLines(tx *gorm.DB, accountID uint, lines []chargeLine, operatorID *uint, negative bool, tag *string) ([]model.Transaction, error) {
	rows := make([]model.Transaction, 0, len(lines))
	for _, ln := range lines {
		amount := ln.total
		if negative {
			amount = amount.Neg()
		}
		name := ln.name
		row := model.Transaction{
			AccountID:   accountID,
			OperatorID:  operatorID,
			Amount:      amount,
			Kind:        model.KindDebit,
			Tag:         tag,
			ProductID:   ln.productID,
			ProductName: &name,
			Quantity:    ln.quantity,
			UnitPrice:   ln.unitPrice,
		}
		if err := l.txs.CreateTx(tx, &row); err != nil {
			return nil, err
		}
		if ln.productID != nil && ln.quantity != nil {
			if err := l.products.UpdateStockTx(tx, *ln.productID, -*ln.quantity); err != nil {
				return nil, err
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ── AdjustBalance ─────────────────────────────────────────────────────────────
// Administrative override. Never touches the register.

func (l *Ledger) AdjustBalance(ctx context.Context, accountID uint, newBalance decimal.Decimal, reason string, operatorID *uint) (*dto.MutationResponse, error) {
	newBalance = newBalance.Round(2)

	unlock := l.locks.Lock(accountID)
	defer unlock()

	var (
		resp      *dto.MutationResponse
		incidents []model.IntegrityIncident
	)
	err := runTx(ctx, l.accounts.DB(), func(tx *gorm.DB) error {
		a, inc, err := l.loadForUpdate(tx, accountID)
		if err != nil {
			return err
		}

		diff := newBalance.Sub(a.Balance)
		if diff.Abs().LessThan(oneCent) {
			return ErrNoChange
		}
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return ErrReasonRequired
		}
		incidents = appendIncident(incidents, inc)

		a.Balance = newBalance
		if err := l.persistState(tx, a); err != nil {
			return err
		}
		row := model.Transaction{
			AccountID:  a.ID,
			OperatorID: operatorID,
			Amount:     diff,
			Kind:       model.KindAdminAdjustment,
			Reason:     &reason,
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
	log.Info().Uint("account_id", accountID).Str("new_balance", newBalance.StringFixed(2)).Msg("ledger: balance adjusted")
	return resp, nil
}

// ── CancelTransaction ─────────────────────────────────────────────────────────
// Subtracting the recorded amount undoes every kind of row: credits come back
// out, debits and withdrawals are added back, adjustments revert by their diff.

func (l *Ledger) CancelTransaction(ctx context.Context, transactionID uint, operatorID *uint) (*dto.MutationResponse, error) {
	orig, err := l.txs.FindByID(ctx, transactionID)
	if err != nil {
		return nil, notFound(err)
	}
	if orig.Kind == model.KindCancellation || orig.HasTag(model.TagTopUpMirror) {
		return nil, ErrNotCancellable
	}

	acc, err := l.GetAccount(ctx, orig.AccountID)
	if err != nil {
		return nil, err
	}
	lockIDs := []uint{acc.ID}
	if orig.Kind == model.KindCredit && !acc.IsRegister() {
		reg, err := l.EnsureRegister(ctx)
		if err != nil {
			return nil, err
		}
		lockIDs = append(lockIDs, reg.ID)
	}

	unlock := l.locks.Lock(lockIDs...)
	defer unlock()

	var (
		resp      *dto.MutationResponse
		incidents []model.IntegrityIncident
	)
	err = runTx(ctx, l.accounts.DB(), func(tx *gorm.DB) error {
		// Re-read under the lock: a concurrent cancellation may have won.
		o, err := l.txs.FindByIDTx(tx, transactionID)
		if err != nil {
			return notFound(err)
		}
		a, inc, err := l.loadForUpdate(tx, o.AccountID)
		if err != nil {
			return err
		}
		incidents = appendIncident(incidents, inc)

		record, err := l.reverse(tx, a, o, operatorID)
		if err != nil {
			return err
		}

		if o.Kind == model.KindCredit && o.Tag == nil && !a.IsRegister() {
			mirror, err := l.txs.FindMirrorTx(tx, o.ID)
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				// top-up booked before register mirroring existed
			case err != nil:
				return err
			default:
				reg, inc, err := l.loadForUpdate(tx, mirror.AccountID)
				if err != nil {
					return err
				}
				incidents = appendIncident(incidents, inc)
				if _, err := l.reverse(tx, reg, mirror, operatorID); err != nil {
					return err
				}
			}
		}

		resp = mutationResponse(a, *record)
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.report(ctx, incidents)
	log.Info().Uint("transaction_id", transactionID).Msg("ledger: transaction cancelled")
	return resp, nil
}

// reverse restores a's balance and stock for o, appends the cancellation
// record and deletes o.
func (l *Ledger) reverse(tx *gorm.DB, a *model.Account, o *model.Transaction, operatorID *uint) (*model.Transaction, error) {
	a.Balance = a.Balance.Sub(o.Amount)
	if err := l.persistState(tx, a); err != nil {
		return nil, err
	}
	if o.ProductID != nil && o.Quantity != nil {
		if err := l.products.UpdateStockTx(tx, *o.ProductID, *o.Quantity); err != nil {
			return nil, err
		}
	}

	origID, origKind := o.ID, o.Kind
	record := &model.Transaction{
		AccountID:           o.AccountID,
		OperatorID:          operatorID,
		Amount:              o.Amount,
		Kind:                model.KindCancellation,
		Tag:                 o.Tag,
		ProductID:           o.ProductID,
		ProductName:         o.ProductName,
		Quantity:            o.Quantity,
		UnitPrice:           o.UnitPrice,
		Reason:              o.Reason,
		SourceTransactionID: &origID,
		OriginalKind:        &origKind,
	}
	if err := l.txs.CreateTx(tx, record); err != nil {
		return nil, err
	}
	if err := l.txs.DeleteTx(tx, o.ID); err != nil {
		return nil, err
	}
	return record, nil
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (l *Ledger) History(ctx context.Context, accountID uint, limit int) ([]model.Transaction, error) {
	if _, err := l.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return l.txs.ListByAccount(ctx, accountID, limit)
}

// Reconcile checks opening balance + ledger net against the stored balance.
func (l *Ledger) Reconcile(ctx context.Context, accountID uint) (*dto.ReconciliationResponse, error) {
	a, err := l.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	totals, err := l.txs.Totals(ctx, accountID)
	if err != nil {
		return nil, err
	}
	expected := a.OpeningBalance.Add(totals.Net)
	return &dto.ReconciliationResponse{
		AccountID:      a.ID,
		OpeningBalance: a.OpeningBalance,
		LedgerNet:      totals.Net,
		Expected:       expected,
		Balance:        a.Balance,
		Balanced:       expected.Equal(a.Balance),
	}, nil
}

func (l *Ledger) CreditStats(ctx context.Context, accountID uint) (*dto.CreditStatsResponse, error) {
	a, err := l.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	totals, err := l.txs.Totals(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &dto.CreditStatsResponse{
		AccountID:     a.ID,
		TotalCredited: totals.Credited,
		TotalSpent:    totals.Spent,
		Balance:       a.Balance,
	}, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// persistState seals the fingerprint and writes balance, limit and
// fingerprint together.
func (l *Ledger) persistState(tx *gorm.DB, a *model.Account) error {
	l.hasher.Seal(a)
	return l.accounts.UpdateLedgerStateTx(tx, a)
}

func (l *Ledger) globalOverride(ctx context.Context) (*string, error) {
	v, ok, err := l.settings.Get(ctx, model.SettingCreditLimit)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (l *Ledger) report(ctx context.Context, incidents []model.IntegrityIncident) {
	if len(incidents) == 0 || l.auditor == nil {
		return
	}
	l.auditor.Report(ctx, incidents)
}

func appendIncident(list []model.IntegrityIncident, inc *model.IntegrityIncident) []model.IntegrityIncident {
	if inc == nil {
		return list
	}
	return append(list, *inc)
}

func strPtr(s string) *string { return &s }

// ToAccountResponse maps an account for API responses.
func ToAccountResponse(a *model.Account) dto.AccountResponse {
	return dto.AccountResponse{
		ID:          a.ID,
		Code:        a.Code,
		FirstName:   a.FirstName,
		LastName:    a.LastName,
		Balance:     a.Balance,
		CreditLimit: a.CreditLimit,
		IsRegister:  a.IsRegister(),
	}
}

func ToTransactionResponse(t model.Transaction) dto.TransactionResponse {
	return dto.TransactionResponse{
		ID:                  t.ID,
		AccountID:           t.AccountID,
		OperatorID:          t.OperatorID,
		Amount:              t.Amount,
		Kind:                t.Kind,
		Tag:                 t.Tag,
		ProductID:           t.ProductID,
		ProductName:         t.ProductName,
		Quantity:            t.Quantity,
		UnitPrice:           t.UnitPrice,
		Reason:              t.Reason,
		SourceTransactionID: t.SourceTransactionID,
		OriginalKind:        t.OriginalKind,
		CreatedAt:           t.CreatedAt,
	}
}

func mutationResponse(a *model.Account, rows ...model.Transaction) *dto.MutationResponse {
	resp := &dto.MutationResponse{
		Account:      ToAccountResponse(a),
		Transactions: make([]dto.TransactionResponse, 0, len(rows)),
	}
	for _, r := range rows {
		resp.Transactions = append(resp.Transactions, ToTransactionResponse(r))
	}
	return resp
}
