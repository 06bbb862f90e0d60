package service_test

import (
	"context"
	"testing"

	"github.com/ethan0sc4r/gestione-vinicola/internal/model"
	"github.com/ethan0sc4r/gestione-vinicola/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── IntegrityHasher ──────────────────────────────────────────────────────────

func TestFingerprint(t *testing.T) {
	h := service.NewIntegrityHasher("k1")

	a := h.Fingerprint(1, dec("10"), dec("50"))
	assert.Len(t, a, 64)
	assert.Equal(t, a, h.Fingerprint(1, dec("10.00"), dec("50.000")), "scale must not matter")
	assert.NotEqual(t, a, h.Fingerprint(2, dec("10"), dec("50")))
	assert.NotEqual(t, a, h.Fingerprint(1, dec("10.01"), dec("50")))
	assert.NotEqual(t, a, h.Fingerprint(1, dec("10"), dec("51")))
	assert.NotEqual(t, a, service.NewIntegrityHasher("k2").Fingerprint(1, dec("10"), dec("50")))
}

func TestVerifyAndSeal(t *testing.T) {
	h := service.NewIntegrityHasher("k1")
	acc := &model.Account{ID: 3, Balance: dec("-4.20"), CreditLimit: dec("50")}

	assert.True(t, h.Verify(acc), "missing fingerprint verifies")

	h.Seal(acc)
	require.NotNil(t, acc.CreditFingerprint)
	assert.True(t, h.Verify(acc))

	acc.Balance = dec("100")
	assert.False(t, h.Verify(acc))
}

// ── Lookup ───────────────────────────────────────────────────────────────────

func TestLookup_TrimsAndIgnoresCase(t *testing.T) {
	f := newFixture(t)
	id := f.seedAccount(t, "E001", "3", "50")

	a, err := f.ledger.Lookup(context.Background(), "  e001 ")
	require.NoError(t, err)
	assert.Equal(t, id, a.ID)
	assert.Empty(t, f.store.incidents)
	assert.Empty(t, f.auditor.reported)
}

func TestLookup_NotFound(t *testing.T) {
	f := newFixture(t)
	for _, code := range []string{"", "   ", "NOPE"} {
		_, err := f.ledger.Lookup(context.Background(), code)
		assert.ErrorIs(t, err, service.ErrNotFound, "code %q", code)
	}
}

func TestLookup_HealsTamperedAccountAndRecordsIncident(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.seedAccount(t, "E001", "3", "50")
	stored := *f.account(t, id).CreditFingerprint

	f.tamper(id, "999")

	a, err := f.ledger.Lookup(ctx, "E001")
	require.NoError(t, err)
	assert.Equal(t, "999.00", a.Balance.StringFixed(2))

	healed := f.account(t, id)
	assert.True(t, f.hasher.Verify(&healed))

	require.Len(t, f.store.incidents, 1)
	inc := f.store.incidents[0]
	assert.Equal(t, id, inc.AccountID)
	assert.Equal(t, stored, inc.StoredFingerprint)
	assert.Equal(t, "999.00", inc.Balance.StringFixed(2))
	assert.Equal(t, model.SourceLookup, inc.Source)
	assert.Len(t, f.auditor.reported, 1)

	// healed: a second lookup is quiet
	_, err = f.ledger.Lookup(ctx, "E001")
	require.NoError(t, err)
	assert.Len(t, f.store.incidents, 1)
}

func TestLookup_SealsMissingFingerprintWithoutIncident(t *testing.T) {
	f := newFixture(t)
	id := f.seedAccount(t, "E001", "3", "50")
	f.store.mu.Lock()
	a := f.store.accounts[id]
	a.CreditFingerprint = nil
	f.store.accounts[id] = a
	f.store.mu.Unlock()

	_, err := f.ledger.Lookup(context.Background(), "E001")
	require.NoError(t, err)
	assert.NotNil(t, f.account(t, id).CreditFingerprint)
	assert.Empty(t, f.store.incidents)
}

// ── VerifyAll ────────────────────────────────────────────────────────────────

func TestVerifyAll_FlagsOnceThenIsClean(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seedAccount(t, "E001", "1", "50")
	f.seedAccount(t, "E002", "2", "50")
	c := f.seedAccount(t, "E003", "3", "50")
	f.tamper(a, "10")
	f.tamper(c, "-30")

	flagged, err := f.ledger.VerifyAll(ctx)
	require.NoError(t, err)
	require.Len(t, flagged, 2)
	assert.Equal(t, a, flagged[0].AccountID)
	assert.Equal(t, c, flagged[1].AccountID)
	assert.Equal(t, model.SourceVerifyAll, flagged[0].Source)
	assert.Len(t, f.auditor.reported, 2)

	flagged, err = f.ledger.VerifyAll(ctx)
	require.NoError(t, err)
	assert.NotNil(t, flagged)
	assert.Empty(t, flagged)
}

func TestMutationOnTamperedAccountHealsFirst(t *testing.T) {
	f := newFixture(t)
	id := f.seedAccount(t, "E001", "0", "50")
	f.tamper(id, "20")

	resp, err := f.ledger.ApplyCredit(context.Background(), id, dec("5"), nil)
	require.NoError(t, err)
	assert.Equal(t, "25.00", resp.Account.Balance.StringFixed(2))

	require.Len(t, f.store.incidents, 1)
	assert.Equal(t, model.SourceMutation, f.store.incidents[0].Source)
	acc := f.account(t, id)
	assert.True(t, f.hasher.Verify(&acc))
}

// ── Reset / backfill / bootstrap ─────────────────────────────────────────────

func TestResetAndBackfillFingerprints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seedAccount(t, "E001", "1", "50")
	f.seedAccount(t, "E002", "2", "50")

	f.store.mu.Lock()
	acc := f.store.accounts[a]
	acc.CreditFingerprint = nil
	f.store.accounts[a] = acc
	f.store.mu.Unlock()

	n, err := f.ledger.BackfillFingerprints(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.ledger.ResetFingerprints(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestResetFingerprints_TrustsCurrentValues(t *testing.T) {
	f := newFixture(t)
	id := f.seedAccount(t, "E001", "1", "50")
	f.tamper(id, "77")

	_, err := f.ledger.ResetFingerprints(context.Background())
	require.NoError(t, err)
	acc := f.account(t, id)
	assert.True(t, f.hasher.Verify(&acc))
	assert.Empty(t, f.store.incidents)
}

func TestBootstrap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ledger.Bootstrap(ctx, "50"))
	reg, err := f.ledger.Lookup(ctx, model.RegisterCode)
	require.NoError(t, err)
	assert.True(t, reg.IsRegister())
	assert.Equal(t, "999999.00", reg.CreditLimit.StringFixed(2))
	assert.Equal(t, "50.00", f.store.settings[model.SettingCreditLimit])

	// an operator-set value survives restarts
	f.store.settings[model.SettingCreditLimit] = "75.00"
	require.NoError(t, f.ledger.Bootstrap(ctx, "50"))
	assert.Equal(t, "75.00", f.store.settings[model.SettingCreditLimit])

	ids, _ := (&stubAccountRepo{f.store}).ListIDs(ctx)
	assert.Len(t, ids, 1, "register is created once")
}
