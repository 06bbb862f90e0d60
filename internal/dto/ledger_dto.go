package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CreditRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type DebitItem struct {
	ProductID uint `json:"product_id" validate:"required"`
	Quantity  int  `json:"quantity"`
}

// DebitRequest charges either line items or a custom amount. Items win when
// both are sent; items with a non-positive quantity are skipped.
type DebitRequest struct {
	Items        []DebitItem      `json:"items"         validate:"omitempty,dive"`
	CustomAmount *decimal.Decimal `json:"custom_amount"`
	CustomLabel  string           `json:"custom_label"  validate:"max=120"`
}

type AdjustBalanceRequest struct {
	NewBalance decimal.Decimal `json:"new_balance"`
	Reason     string          `json:"reason" validate:"max=255"`
}

type WithdrawRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	All    bool             `json:"all"`
}

type CreateAccountRequest struct {
	Code        string           `json:"code"         validate:"required,max=64"`
	FirstName   string           `json:"first_name"   validate:"required,max=100"`
	LastName    string           `json:"last_name"    validate:"max=100"`
	CreditLimit *decimal.Decimal `json:"credit_limit"`
}

type SetCreditLimitRequest struct {
	CreditLimit decimal.Decimal `json:"credit_limit" validate:"min=0"`
}

// GlobalCreditLimitRequest sets the system-wide override; a null value clears it.
type GlobalCreditLimitRequest struct {
	Value *decimal.Decimal `json:"value"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type AccountResponse struct {
	ID          uint            `json:"id"`
	Code        string          `json:"code"`
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	Balance     decimal.Decimal `json:"balance"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
	IsRegister  bool            `json:"is_register"`
}

type TransactionResponse struct {
	ID                  uint             `json:"id"`
	AccountID           uint             `json:"account_id"`
	OperatorID          *uint            `json:"operator_id,omitempty"`
	Amount              decimal.Decimal  `json:"amount"`
	Kind                string           `json:"kind"`
	Tag                 *string          `json:"tag,omitempty"`
	ProductID           *uint            `json:"product_id,omitempty"`
	ProductName         *string          `json:"product_name,omitempty"`
	Quantity            *int             `json:"quantity,omitempty"`
	UnitPrice           *decimal.Decimal `json:"unit_price,omitempty"`
	Reason              *string          `json:"reason,omitempty"`
	SourceTransactionID *uint            `json:"source_transaction_id,omitempty"`
	OriginalKind        *string          `json:"original_kind,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
}

// MutationResponse is returned by every balance-changing operation: the
// account after the change and the rows recorded against it.
type MutationResponse struct {
	Account      AccountResponse       `json:"account"`
	Transactions []TransactionResponse `json:"transactions"`
}

type ReconciliationResponse struct {
	AccountID      uint            `json:"account_id"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	LedgerNet      decimal.Decimal `json:"ledger_net"`
	Expected       decimal.Decimal `json:"expected"`
	Balance        decimal.Decimal `json:"balance"`
	Balanced       bool            `json:"balanced"`
}

type CreditStatsResponse struct {
	AccountID     uint            `json:"account_id"`
	TotalCredited decimal.Decimal `json:"total_credited"`
	TotalSpent    decimal.Decimal `json:"total_spent"`
	Balance       decimal.Decimal `json:"balance"`
}

type GlobalCreditLimitResponse struct {
	Value *string `json:"value"`
}

// SystemStatsResponse is the dashboard summary. Employee figures exclude the
// register, whose balance is reported on its own.
type SystemStatsResponse struct {
	Employees         int64           `json:"employees"`
	OutstandingCredit decimal.Decimal `json:"outstanding_credit"`
	RegisterBalance   decimal.Decimal `json:"register_balance"`
	Transactions      int64           `json:"transactions"`
	TransactionsToday int64           `json:"transactions_today"`
}

type OperatorTotalsResponse struct {
	OperatorID uint            `json:"operator_id"`
	Credited   decimal.Decimal `json:"credited"`
	Debited    decimal.Decimal `json:"debited"`
	Count      int64           `json:"count"`
}

// DailyReportResponse carries one calendar day of ledger activity.
type DailyReportResponse struct {
	Date         string                   `json:"date"`
	Credited     decimal.Decimal          `json:"credited"`
	Debited      decimal.Decimal          `json:"debited"`
	Withdrawn    decimal.Decimal          `json:"withdrawn"`
	Count        int64                    `json:"count"`
	Operators    []OperatorTotalsResponse `json:"operators"`
	Transactions []TransactionResponse    `json:"transactions"`
}
