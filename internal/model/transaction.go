package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction kinds.
const (
	KindCredit          = "credit"
	KindDebit           = "debit"
	KindAdminAdjustment = "admin_adjustment"
	KindCancellation    = "cancellation"
)

// Transaction tags qualify register movements.
const (
	TagTopUpMirror = "top_up_mirror"
	TagCashSale    = "cash_sale"
	TagWithdrawal  = "withdrawal"
)

// Transaction is an append-only balance mutation. Rows are never updated;
// a cancellation writes a new row and deletes the cancelled one.
type Transaction struct {
	ID          uint             `gorm:"primaryKey"`
	AccountID   uint             `gorm:"not null;index"`
	OperatorID  *uint            `gorm:"index"`
	Amount      decimal.Decimal  `gorm:"type:decimal(10,2);not null"`
	Kind        string           `gorm:"type:varchar(20);not null"`
	Tag         *string          `gorm:"type:varchar(20)"`
	ProductID   *uint            `gorm:"index"`
	ProductName *string          `gorm:"type:varchar(120)"`
	Quantity    *int
	UnitPrice   *decimal.Decimal `gorm:"type:decimal(10,2)"`
	Reason      *string
	// SourceTransactionID links a register mirror leg to its top-up, and a
	// cancellation record to the id of the row it replaced.
	SourceTransactionID *uint     `gorm:"index"`
	OriginalKind        *string   `gorm:"type:varchar(20)"`
	CreatedAt           time.Time `gorm:"index"`
}

func (Transaction) TableName() string { return "transactions" }

// HasTag reports whether the row carries the given tag.
func (t *Transaction) HasTag(tag string) bool {
	return t.Tag != nil && *t.Tag == tag
}
