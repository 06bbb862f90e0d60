package repository

import (
	"context"
	"time"

	"github.com/ethan0sc4r/gestione-vinicola/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionTotals aggregates an account's ledger for reconciliation and stats.
type TransactionTotals struct {
	Credited decimal.Decimal // sum of positive non-cancellation amounts
	Spent    decimal.Decimal // absolute sum of negative non-cancellation amounts
	Net      decimal.Decimal // sum of all non-cancellation amounts
}

// PeriodTotals sums a time window. Mirror legs are left out of Credited so a
// top-up counts once; cash sales count as debits; withdrawals are separate.
type PeriodTotals struct {
	Credited  decimal.Decimal
	Debited   decimal.Decimal
	Withdrawn decimal.Decimal
	Count     int64
}

// OperatorTotals is one operator's share of a window.
type OperatorTotals struct {
	OperatorID uint
	Credited   decimal.Decimal
	Debited    decimal.Decimal
	Count      int64
}

const (
	creditedExpr = `COALESCE(SUM(CASE WHEN kind = '` + model.KindCredit + `' AND (tag IS NULL OR tag <> '` +
		model.TagTopUpMirror + `') THEN amount ELSE 0 END), 0)`
	debitedExpr = `COALESCE(SUM(CASE WHEN kind = '` + model.KindDebit + `' AND (tag IS NULL OR tag = '` +
		model.TagCashSale + `') THEN ABS(amount) ELSE 0 END), 0)`
	withdrawnExpr = `COALESCE(SUM(CASE WHEN kind = '` + model.KindDebit + `' AND tag = '` +
		model.TagWithdrawal + `' THEN -amount ELSE 0 END), 0)`
)

type TransactionRepository interface {
	FindByID(ctx context.Context, id uint) (*model.Transaction, error)
	ListByAccount(ctx context.Context, accountID uint, limit int) ([]model.Transaction, error)
	Totals(ctx context.Context, accountID uint) (TransactionTotals, error)

	// Count returns all rows when since is zero, else rows created at or after since.
	Count(ctx context.Context, since time.Time) (int64, error)
	// ListBetween returns rows in [from, to), newest first.
	ListBetween(ctx context.Context, from, to time.Time) ([]model.Transaction, error)
	PeriodTotals(ctx context.Context, from, to time.Time) (PeriodTotals, error)
	OperatorTotals(ctx context.Context, from, to time.Time) ([]OperatorTotals, error)

	CreateTx(tx *gorm.DB, t *model.Transaction) error
	FindByIDTx(tx *gorm.DB, id uint) (*model.Transaction, error)
	FindMirrorTx(tx *gorm.DB, sourceID uint) (*model.Transaction, error)
	DeleteTx(tx *gorm.DB, id uint) error

	DB() *gorm.DB
}

type transactionRepo struct{ db *gorm.DB }

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepo{db: db}
}

func (r *transactionRepo) FindByID(ctx context.Context, id uint) (*model.Transaction, error) {
	var t model.Transaction
	err := r.db.WithContext(ctx).First(&t, id).Error
	return &t, err
}

// ListByAccount returns the newest rows first. Ids are assigned in insertion
// order, so ordering by id keeps timestamps monotonic for reports.
func (r *transactionRepo) ListByAccount(ctx context.Context, accountID uint, limit int) ([]model.Transaction, error) {
	var txs []model.Transaction
	q := r.db.WithContext(ctx).Where("account_id = ?", accountID).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&txs).Error
	return txs, err
}

func (r *transactionRepo) Totals(ctx context.Context, accountID uint) (TransactionTotals, error) {
	var row struct {
		Credited decimal.Decimal
		Spent    decimal.Decimal
		Net      decimal.Decimal
	}
	err := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Select(`COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0) AS credited,
			COALESCE(SUM(CASE WHEN amount < 0 THEN -amount ELSE 0 END), 0) AS spent,
			COALESCE(SUM(amount), 0) AS net`).
		Where("account_id = ? AND kind <> ?", accountID, model.KindCancellation).
		Scan(&row).Error
	return TransactionTotals{Credited: row.Credited, Spent: row.Spent, Net: row.Net}, err
}

func (r *transactionRepo) Count(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	q := r.db.WithContext(ctx).Model(&model.Transaction{})
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}
	err := q.Count(&n).Error
	return n, err
}

func (r *transactionRepo) ListBetween(ctx context.Context, from, to time.Time) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("id DESC").
		Find(&txs).Error
	return txs, err
}

func (r *transactionRepo) PeriodTotals(ctx context.Context, from, to time.Time) (PeriodTotals, error) {
	var row PeriodTotals
	err := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Select(creditedExpr+" AS credited, "+debitedExpr+" AS debited, "+withdrawnExpr+" AS withdrawn, COUNT(*) AS count").
		Where("created_at >= ? AND created_at < ?", from, to).
		Scan(&row).Error
	return row, err
}

func (r *transactionRepo) OperatorTotals(ctx context.Context, from, to time.Time) ([]OperatorTotals, error) {
	var rows []OperatorTotals
	err := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Select("operator_id, "+creditedExpr+" AS credited, "+debitedExpr+" AS debited, COUNT(*) AS count").
		Where("operator_id IS NOT NULL AND created_at >= ? AND created_at < ?", from, to).
		Group("operator_id").
		Order("operator_id ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *transactionRepo) CreateTx(tx *gorm.DB, t *model.Transaction) error {
	return tx.Create(t).Error
}

func (r *transactionRepo) FindByIDTx(tx *gorm.DB, id uint) (*model.Transaction, error) {
	var t model.Transaction
	err := tx.First(&t, id).Error
	return &t, err
}

// FindMirrorTx returns the register leg booked for the given top-up.
func (r *transactionRepo) FindMirrorTx(tx *gorm.DB, sourceID uint) (*model.Transaction, error) {
	var t model.Transaction
	err := tx.Where("source_transaction_id = ? AND tag = ?", sourceID, model.TagTopUpMirror).First(&t).Error
	return &t, err
}

func (r *transactionRepo) DeleteTx(tx *gorm.DB, id uint) error {
	return tx.Delete(&model.Transaction{}, id).Error
}

func (r *transactionRepo) DB() *gorm.DB { return r.db }
