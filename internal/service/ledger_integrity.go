package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethan0sc4r/gestione-vinicola/internal/model"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// loadForUpdate row-locks the account and checks its fingerprint. A mismatch
// is persisted as an incident before the caller re-seals the row.
func (l *Ledger) loadForUpdate(tx *gorm.DB, id uint) (*model.Account, *model.IntegrityIncident, error) {
	a, err := l.accounts.FindByIDForUpdateTx(tx, id)
	if err != nil {
		return nil, nil, notFound(err)
	}
	inc, err := l.recordMismatch(tx, a, model.SourceMutation)
	if err != nil {
		return nil, nil, err
	}
	return a, inc, nil
}

// recordMismatch returns nil when the fingerprint verifies.
func (l *Ledger) recordMismatch(tx *gorm.DB, a *model.Account, source string) (*model.IntegrityIncident, error) {
	if l.hasher.Verify(a) {
		return nil, nil
	}
	inc := &model.IntegrityIncident{
		AccountID:           a.ID,
		AccountCode:         a.Code,
		StoredFingerprint:   *a.CreditFingerprint,
		ComputedFingerprint: l.hasher.Fingerprint(a.ID, a.Balance, a.CreditLimit),
		Balance:             a.Balance,
		CreditLimit:         a.CreditLimit,
		Source:              source,
		DetectedAt:          time.Now().UTC(),
	}
	if err := l.incidents.CreateTx(tx, inc); err != nil {
		return nil, err
	}
	log.Warn().
		Err(ErrIntegrityMismatch).
		Uint("account_id", a.ID).
		Str("code", a.Code).
		Str("balance", a.Balance.StringFixed(2)).
		Str("source", source).
		Msg("integrity: fingerprint mismatch, healing from current values")
	return inc, nil
}

// healLocked verifies the account and re-seals it when the fingerprint is
// missing or wrong. Callers hold the account lock.
func (l *Ledger) healLocked(ctx context.Context, id uint, source string) (*model.Account, *model.IntegrityIncident, error) {
	var (
		acc *model.Account
		inc *model.IntegrityIncident
	)
	err := runTx(ctx, l.accounts.DB(), func(tx *gorm.DB) error {
		a, err := l.accounts.FindByIDForUpdateTx(tx, id)
		if err != nil {
			return notFound(err)
		}
		missing := a.CreditFingerprint == nil || *a.CreditFingerprint == ""
		found, err := l.recordMismatch(tx, a, source)
		if err != nil {
			return err
		}
		if missing || found != nil {
			if err := l.persistState(tx, a); err != nil {
				return err
			}
		}
		acc, inc = a, found
		return nil
	})
	return acc, inc, err
}

// ── Lookup ────────────────────────────────────────────────────────────────────
// A mismatch never fails the lookup: it is recorded, healed and reported.

func (l *Ledger) Lookup(ctx context.Context, code string) (*model.Account, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrNotFound
	}
	found, err := l.accounts.FindByCode(ctx, code)
	if err != nil {
		return nil, notFound(err)
	}

	unlock := l.locks.Lock(found.ID)
	a, inc, err := l.healLocked(ctx, found.ID, model.SourceLookup)
	unlock()
	if err != nil {
		return nil, err
	}

	if inc != nil {
		l.report(ctx, []model.IntegrityIncident{*inc})
	}
	return a, nil
}

// ── VerifyAll ─────────────────────────────────────────────────────────────────
// Each account is checked under its own lock so live mutations interleave
// safely. The returned list holds the pre-heal state of every mismatch.

func (l *Ledger) VerifyAll(ctx context.Context) ([]model.IntegrityIncident, error) {
	ids, err := l.accounts.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	flagged := make([]model.IntegrityIncident, 0)
	for _, id := range ids {
		unlock := l.locks.Lock(id)
		_, inc, err := l.healLocked(ctx, id, model.SourceVerifyAll)
		unlock()
		if errors.Is(err, ErrNotFound) {
			continue // deleted since ListIDs
		}
		if err != nil {
			return flagged, err
		}
		if inc != nil {
			flagged = append(flagged, *inc)
		}
	}

	l.report(ctx, flagged)
	log.Info().Int("checked", len(ids)).Int("flagged", len(flagged)).Msg("integrity: verification pass complete")
	return flagged, nil
}

// ResetFingerprints re-seals every account from its current values. It is the
// administrative "trust the data as it stands" action.
func (l *Ledger) ResetFingerprints(ctx context.Context) (int, error) {
	return l.sealAll(ctx, false)
}

// BackfillFingerprints seals only accounts that have no fingerprint yet.
func (l *Ledger) BackfillFingerprints(ctx context.Context) (int, error) {
	return l.sealAll(ctx, true)
}

func (l *Ledger) sealAll(ctx context.Context, onlyMissing bool) (int, error) {
	ids, err := l.accounts.ListIDs(ctx)
	if err != nil {
		return 0, err
	}
	sealed := 0
	for _, id := range ids {
		unlock := l.locks.Lock(id)
		err := runTx(ctx, l.accounts.DB(), func(tx *gorm.DB) error {
			a, err := l.accounts.FindByIDForUpdateTx(tx, id)
			if err != nil {
				return notFound(err)
			}
			if onlyMissing && a.CreditFingerprint != nil && *a.CreditFingerprint != "" {
				return nil
			}
			sealed++
			return l.persistState(tx, a)
		})
		unlock()
		if err != nil && !errors.Is(err, ErrNotFound) {
			return sealed, err
		}
	}
	log.Info().Int("sealed", sealed).Bool("only_missing", onlyMissing).Msg("integrity: fingerprints sealed")
	return sealed, nil
}
