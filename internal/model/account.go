package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RegisterCode is the external code of the cash register pseudo-account.
const RegisterCode = "CASSA"

// Account is an employee credit account or the cash register.
// Balance, CreditLimit and CreditFingerprint are written together by the
// ledger only (see repository.AccountRepository.UpdateLedgerStateTx).
type Account struct {
	ID                uint            `gorm:"primaryKey"`
	Code              string          `gorm:"type:varchar(64);not null"`
	FirstName         string          `gorm:"type:varchar(100);not null"`
	LastName          string          `gorm:"type:varchar(100);not null"`
	Balance           decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	OpeningBalance    decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	CreditLimit       decimal.Decimal `gorm:"type:decimal(10,2);not null;default:50"`
	CreditFingerprint *string         `gorm:"type:varchar(64)"`
	Active            bool            `gorm:"not null;default:true"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (Account) TableName() string { return "accounts" }

// IsRegister reports whether the account is the cash register.
func (a *Account) IsRegister() bool {
	return strings.EqualFold(a.Code, RegisterCode)
}

func (a *Account) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}
