package repository

import (
	"context"
	"strings"

	"github.com/ethan0sc4r/gestione-vinicola/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountRepository persists accounts. Balance, credit limit and fingerprint
// are only written through UpdateLedgerStateTx so the three always move
// together; UpdateProfile never touches them.
type AccountRepository interface {
	Create(ctx context.Context, a *model.Account) error
	FindByID(ctx context.Context, id uint) (*model.Account, error)
	// FindByCode matches the external code case-insensitively.
	FindByCode(ctx context.Context, code string) (*model.Account, error)
	List(ctx context.Context) ([]model.Account, error)
	ListIDs(ctx context.Context) ([]uint, error)
	// EmployeeSummary counts employee accounts and sums their balances;
	// the register is excluded.
	EmployeeSummary(ctx context.Context) (AccountSummary, error)
	UpdateProfile(ctx context.Context, a *model.Account) error
	Delete(ctx context.Context, id uint) error

	// FindByIDForUpdateTx loads the row with SELECT ... FOR UPDATE.
	FindByIDForUpdateTx(tx *gorm.DB, id uint) (*model.Account, error)
	UpdateLedgerStateTx(tx *gorm.DB, a *model.Account) error

	DB() *gorm.DB
}

type AccountSummary struct {
	Count        int64
	TotalBalance decimal.Decimal
}

type accountRepo struct{ db *gorm.DB }

func NewAccountRepository(db *gorm.DB) AccountRepository { return &accountRepo{db: db} }

func (r *accountRepo) Create(ctx context.Context, a *model.Account) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *accountRepo) FindByID(ctx context.Context, id uint) (*model.Account, error) {
	var a model.Account
	err := r.db.WithContext(ctx).First(&a, id).Error
	return &a, err
}

func (r *accountRepo) FindByCode(ctx context.Context, code string) (*model.Account, error) {
	var a model.Account
	err := r.db.WithContext(ctx).
		Where("LOWER(code) = ?", strings.ToLower(strings.TrimSpace(code))).
		First(&a).Error
	return &a, err
}

func (r *accountRepo) List(ctx context.Context) ([]model.Account, error) {
	var accounts []model.Account
	err := r.db.WithContext(ctx).Order("last_name ASC, first_name ASC").Find(&accounts).Error
	return accounts, err
}

func (r *accountRepo) ListIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&model.Account{}).Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}

func (r *accountRepo) EmployeeSummary(ctx context.Context) (AccountSummary, error) {
	var row struct {
		Count int64
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).Model(&model.Account{}).
		Select("COUNT(*) AS count, COALESCE(SUM(balance), 0) AS total").
		Where("LOWER(code) <> ?", strings.ToLower(model.RegisterCode)).
		Scan(&row).Error
	return AccountSummary{Count: row.Count, TotalBalance: row.Total}, err
}

func (r *accountRepo) UpdateProfile(ctx context.Context, a *model.Account) error {
	return r.db.WithContext(ctx).Model(&model.Account{}).Where("id = ?", a.ID).Updates(map[string]interface{}{
		"code":       a.Code,
		"first_name": a.FirstName,
		"last_name":  a.LastName,
		"active":     a.Active,
	}).Error
}

// Delete removes the account together with its transactions.
func (r *accountRepo) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", id).Delete(&model.Transaction{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Account{}, id).Error
	})
}

func (r *accountRepo) FindByIDForUpdateTx(tx *gorm.DB, id uint) (*model.Account, error) {
	var a model.Account
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&a, id).Error
	return &a, err
}

func (r *accountRepo) UpdateLedgerStateTx(tx *gorm.DB, a *model.Account) error {
	return tx.Model(&model.Account{}).Where("id = ?", a.ID).Updates(map[string]interface{}{
		"balance":            a.Balance,
		"credit_limit":       a.CreditLimit,
		"credit_fingerprint": a.CreditFingerprint,
	}).Error
}

func (r *accountRepo) DB() *gorm.DB { return r.db }
