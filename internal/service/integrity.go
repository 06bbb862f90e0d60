package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/ethan0sc4r/gestione-vinicola/internal/model"

	"github.com/shopspring/decimal"
)

// IntegrityHasher binds an account's id, balance and credit limit to a
// secret. It detects out-of-band writes; it cannot prevent them.
type IntegrityHasher struct {
	secret []byte
}

func NewIntegrityHasher(secret string) *IntegrityHasher {
	return &IntegrityHasher{secret: []byte(secret)}
}

// Fingerprint returns the hex HMAC-SHA256 of "id:balance:limit". Amounts are
// rendered with two decimals so 10 and 10.00 hash identically.
func (h *IntegrityHasher) Fingerprint(id uint, balance, creditLimit decimal.Decimal) string {
	mac := hmac.New(sha256.New, h.secret)
	fmt.Fprintf(mac, "%d:%s:%s", id, balance.StringFixed(2), creditLimit.StringFixed(2))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether the stored fingerprint matches. An account with no
// stored fingerprint verifies: it is a first observation.
func (h *IntegrityHasher) Verify(a *model.Account) bool {
	if a.CreditFingerprint == nil || *a.CreditFingerprint == "" {
		return true
	}
	want := h.Fingerprint(a.ID, a.Balance, a.CreditLimit)
	return hmac.Equal([]byte(want), []byte(*a.CreditFingerprint))
}

// Seal recomputes and stores the fingerprint on a.
func (h *IntegrityHasher) Seal(a *model.Account) {
	fp := h.Fingerprint(a.ID, a.Balance, a.CreditLimit)
	a.CreditFingerprint = &fp
}
