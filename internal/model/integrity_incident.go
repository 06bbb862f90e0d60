package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Incident sources.
const (
	SourceLookup    = "lookup"
	SourceVerifyAll = "verify_all"
	SourceMutation  = "mutation"
)

// IntegrityIncident records a fingerprint mismatch before the account is
// healed. StoredFingerprint keeps the value that no longer matched.
type IntegrityIncident struct {
	ID                  uint            `gorm:"primaryKey" json:"id"`
	AccountID           uint            `gorm:"not null;index" json:"account_id"`
	AccountCode         string          `gorm:"type:varchar(64);not null" json:"account_code"`
	StoredFingerprint   string          `gorm:"type:varchar(64);not null" json:"stored_fingerprint"`
	ComputedFingerprint string          `gorm:"type:varchar(64);not null" json:"computed_fingerprint"`
	Balance             decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"balance"`
	CreditLimit         decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"credit_limit"`
	Source              string          `gorm:"type:varchar(20);not null" json:"source"`
	DetectedAt          time.Time       `gorm:"not null;index" json:"detected_at"`
}

func (IntegrityIncident) TableName() string { return "integrity_incidents" }
