package service_test

import (
	"context"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethan0sc4r/gestione-vinicola/internal/model"
	"github.com/ethan0sc4r/gestione-vinicola/internal/repository"
	"github.com/ethan0sc4r/gestione-vinicola/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ── In-memory store shared by the stub repositories ──────────────────────────
// Every read returns a copy, like rows coming back from the database.

type memStore struct {
	mu        sync.Mutex
	accounts  map[uint]model.Account
	txs       map[uint]model.Transaction
	products  map[uint]model.Product
	settings  map[string]string
	incidents []model.IntegrityIncident
	nextAcc   uint
	nextTx    uint
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[uint]model.Account),
		txs:      make(map[uint]model.Transaction),
		products: make(map[uint]model.Product),
		settings: make(map[string]string),
	}
}

// ── AccountRepository ────────────────────────────────────────────────────────

type stubAccountRepo struct{ s *memStore }

var _ repository.AccountRepository = (*stubAccountRepo)(nil)

func (r *stubAccountRepo) Create(_ context.Context, a *model.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.accounts {
		if strings.EqualFold(existing.Code, a.Code) {
			return gorm.ErrDuplicatedKey
		}
	}
	r.s.nextAcc++
	a.ID = r.s.nextAcc
	a.CreatedAt = time.Now()
	r.s.accounts[a.ID] = *a
	return nil
}

func (r *stubAccountRepo) FindByID(_ context.Context, id uint) (*model.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &a, nil
}

func (r *stubAccountRepo) FindByCode(_ context.Context, code string) (*model.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if strings.EqualFold(a.Code, code) {
			return &a, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubAccountRepo) List(_ context.Context) ([]model.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.Account, 0, len(r.s.accounts))
	for _, a := range r.s.accounts {
		out = append(out, a)
	}
	slices.SortFunc(out, func(x, y model.Account) int { return int(x.ID) - int(y.ID) })
	return out, nil
}

func (r *stubAccountRepo) ListIDs(_ context.Context) ([]uint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := make([]uint, 0, len(r.s.accounts))
	for id := range r.s.accounts {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (r *stubAccountRepo) EmployeeSummary(_ context.Context) (repository.AccountSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sum := repository.AccountSummary{}
	for _, a := range r.s.accounts {
		if a.IsRegister() {
			continue
		}
		sum.Count++
		sum.TotalBalance = sum.TotalBalance.Add(a.Balance)
	}
	return sum, nil
}

func (r *stubAccountRepo) UpdateProfile(_ context.Context, a *model.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.accounts[a.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	cur.Code, cur.FirstName, cur.LastName, cur.Active = a.Code, a.FirstName, a.LastName, a.Active
	r.s.accounts[a.ID] = cur
	return nil
}

func (r *stubAccountRepo) Delete(_ context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.accounts, id)
	for txID, t := range r.s.txs {
		if t.AccountID == id {
			delete(r.s.txs, txID)
		}
	}
	return nil
}

func (r *stubAccountRepo) FindByIDForUpdateTx(_ *gorm.DB, id uint) (*model.Account, error) {
	return r.FindByID(context.Background(), id)
}

func (r *stubAccountRepo) UpdateLedgerStateTx(_ *gorm.DB, a *model.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.accounts[a.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	cur.Balance = a.Balance
	cur.CreditLimit = a.CreditLimit
	cur.CreditFingerprint = a.CreditFingerprint
	r.s.accounts[a.ID] = cur
	return nil
}

func (r *stubAccountRepo) DB() *gorm.DB { return nil }

// ── TransactionRepository ────────────────────────────────────────────────────

type stubTransactionRepo struct{ s *memStore }

var _ repository.TransactionRepository = (*stubTransactionRepo)(nil)

func (r *stubTransactionRepo) FindByID(_ context.Context, id uint) (*model.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.txs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &t, nil
}

func (r *stubTransactionRepo) ListByAccount(_ context.Context, accountID uint, limit int) ([]model.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Transaction
	for _, t := range r.s.txs {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(x, y model.Transaction) int { return int(y.ID) - int(x.ID) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *stubTransactionRepo) Totals(_ context.Context, accountID uint) (repository.TransactionTotals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tot := repository.TransactionTotals{}
	for _, t := range r.s.txs {
		if t.AccountID != accountID || t.Kind == model.KindCancellation {
			continue
		}
		tot.Net = tot.Net.Add(t.Amount)
		if t.Amount.IsPositive() {
			tot.Credited = tot.Credited.Add(t.Amount)
		} else {
			tot.Spent = tot.Spent.Add(t.Amount.Abs())
		}
	}
	return tot, nil
}

func (r *stubTransactionRepo) Count(_ context.Context, since time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, t := range r.s.txs {
		if since.IsZero() || !t.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *stubTransactionRepo) ListBetween(_ context.Context, from, to time.Time) ([]model.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Transaction
	for _, t := range r.s.txs {
		if inWindow(t, from, to) {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(x, y model.Transaction) int { return int(y.ID) - int(x.ID) })
	return out, nil
}

func (r *stubTransactionRepo) PeriodTotals(_ context.Context, from, to time.Time) (repository.PeriodTotals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tot := repository.PeriodTotals{}
	for _, t := range r.s.txs {
		if !inWindow(t, from, to) {
			continue
		}
		tot.Count++
		tot.Credited = tot.Credited.Add(creditedPart(t))
		tot.Debited = tot.Debited.Add(debitedPart(t))
		if t.Kind == model.KindDebit && t.HasTag(model.TagWithdrawal) {
			tot.Withdrawn = tot.Withdrawn.Sub(t.Amount)
		}
	}
	return tot, nil
}

func (r *stubTransactionRepo) OperatorTotals(_ context.Context, from, to time.Time) ([]repository.OperatorTotals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	byOp := make(map[uint]*repository.OperatorTotals)
	for _, t := range r.s.txs {
		if t.OperatorID == nil || !inWindow(t, from, to) {
			continue
		}
		o, ok := byOp[*t.OperatorID]
		if !ok {
			o = &repository.OperatorTotals{OperatorID: *t.OperatorID}
			byOp[*t.OperatorID] = o
		}
		o.Count++
		o.Credited = o.Credited.Add(creditedPart(t))
		o.Debited = o.Debited.Add(debitedPart(t))
	}
	out := make([]repository.OperatorTotals, 0, len(byOp))
	for _, o := range byOp {
		out = append(out, *o)
	}
	slices.SortFunc(out, func(x, y repository.OperatorTotals) int { return int(x.OperatorID) - int(y.OperatorID) })
	return out, nil
}

func inWindow(t model.Transaction, from, to time.Time) bool {
	return !t.CreatedAt.Before(from) && t.CreatedAt.Before(to)
}

func creditedPart(t model.Transaction) decimal.Decimal {
	if t.Kind == model.KindCredit && !t.HasTag(model.TagTopUpMirror) {
		return t.Amount
	}
	return decimal.Zero
}

func debitedPart(t model.Transaction) decimal.Decimal {
	if t.Kind == model.KindDebit && (t.Tag == nil || t.HasTag(model.TagCashSale)) {
		return t.Amount.Abs()
	}
	return decimal.Zero
}

func (r *stubTransactionRepo) CreateTx(_ *gorm.DB, t *model.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextTx++
	t.ID = r.s.nextTx
	t.CreatedAt = time.Now()
	r.s.txs[t.ID] = *t
	return nil
}

func (r *stubTransactionRepo) FindByIDTx(_ *gorm.DB, id uint) (*model.Transaction, error) {
	return r.FindByID(context.Background(), id)
}

func (r *stubTransactionRepo) FindMirrorTx(_ *gorm.DB, sourceID uint) (*model.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.txs {
		if t.SourceTransactionID != nil && *t.SourceTransactionID == sourceID && t.HasTag(model.TagTopUpMirror) {
			return &t, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubTransactionRepo) DeleteTx(_ *gorm.DB, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.txs, id)
	return nil
}

func (r *stubTransactionRepo) DB() *gorm.DB { return nil }

// ── ProductRepository ────────────────────────────────────────────────────────

type stubProductRepo struct{ s *memStore }

var _ repository.ProductRepository = (*stubProductRepo)(nil)

func (r *stubProductRepo) Create(_ context.Context, p *model.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.ID = uint(len(r.s.products) + 1)
	r.s.products[p.ID] = *p
	return nil
}

func (r *stubProductRepo) FindByID(_ context.Context, id uint) (*model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r *stubProductRepo) ListActive(_ context.Context) ([]model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Product
	for _, p := range r.s.products {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *stubProductRepo) UpdateStockTx(_ *gorm.DB, id uint, delta int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.Stock += delta
	r.s.products[id] = p
	return nil
}

func (r *stubProductRepo) DB() *gorm.DB { return nil }

// ── SettingRepository ────────────────────────────────────────────────────────

type stubSettingRepo struct{ s *memStore }

var _ repository.SettingRepository = (*stubSettingRepo)(nil)

func (r *stubSettingRepo) Get(_ context.Context, key string) (string, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.settings[key]
	return v, ok, nil
}

func (r *stubSettingRepo) Set(_ context.Context, key, value string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.settings[key] = value
	return nil
}

func (r *stubSettingRepo) Delete(_ context.Context, key string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.settings, key)
	return nil
}

func (r *stubSettingRepo) SetDefault(_ context.Context, key, value string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.settings[key]; !ok {
		r.s.settings[key] = value
	}
	return nil
}

// ── IntegrityIncidentRepository ──────────────────────────────────────────────

type stubIncidentRepo struct{ s *memStore }

var _ repository.IntegrityIncidentRepository = (*stubIncidentRepo)(nil)

func (r *stubIncidentRepo) CreateTx(_ *gorm.DB, inc *model.IntegrityIncident) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inc.ID = uint(len(r.s.incidents) + 1)
	r.s.incidents = append(r.s.incidents, *inc)
	return nil
}

func (r *stubIncidentRepo) ListRecent(_ context.Context, limit int) ([]model.IntegrityIncident, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := slices.Clone(r.s.incidents)
	slices.Reverse(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ── Auditor ──────────────────────────────────────────────────────────────────

type recordingAuditor struct {
	mu       sync.Mutex
	reported []model.IntegrityIncident
}

func (a *recordingAuditor) Report(_ context.Context, incidents []model.IntegrityIncident) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reported = append(a.reported, incidents...)
}

// ── Fixture ──────────────────────────────────────────────────────────────────

const testSecret = "test-ledger-secret"

type fixture struct {
	ledger  *service.Ledger
	store   *memStore
	hasher  *service.IntegrityHasher
	auditor *recordingAuditor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := newMemStore()
	h := service.NewIntegrityHasher(testSecret)
	aud := &recordingAuditor{}
	l := service.NewLedger(service.LedgerDeps{
		Accounts:           &stubAccountRepo{s},
		Transactions:       &stubTransactionRepo{s},
		Products:           &stubProductRepo{s},
		Settings:           &stubSettingRepo{s},
		Incidents:          &stubIncidentRepo{s},
		Hasher:             h,
		Auditor:            aud,
		DefaultCreditLimit: decimal.NewFromInt(50),
	})
	return &fixture{ledger: l, store: s, hasher: h, auditor: aud}
}

// seedAccount inserts a sealed account directly, bypassing the ledger.
func (f *fixture) seedAccount(t *testing.T, code, balance, limit string) uint {
	t.Helper()
	a := &model.Account{
		Code:        code,
		FirstName:   code,
		Balance:     decimal.RequireFromString(balance),
		CreditLimit: decimal.RequireFromString(limit),
		Active:      true,
	}
	repo := &stubAccountRepo{f.store}
	require.NoError(t, repo.Create(context.Background(), a))
	f.hasher.Seal(a)
	require.NoError(t, repo.UpdateLedgerStateTx(nil, a))
	return a.ID
}

func (f *fixture) seedProduct(t *testing.T, name, price string, stock int) uint {
	t.Helper()
	p := &model.Product{Name: name, Price: decimal.RequireFromString(price), Stock: stock, Active: true}
	require.NoError(t, (&stubProductRepo{f.store}).Create(context.Background(), p))
	return p.ID
}

func (f *fixture) account(t *testing.T, id uint) model.Account {
	t.Helper()
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	a, ok := f.store.accounts[id]
	require.True(t, ok, "account %d missing", id)
	return a
}

func (f *fixture) register(t *testing.T) model.Account {
	t.Helper()
	reg, err := f.ledger.EnsureRegister(context.Background())
	require.NoError(t, err)
	return f.account(t, reg.ID)
}

// tamper writes a balance without resealing, like an out-of-band SQL update.
func (f *fixture) tamper(id uint, balance string) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	a := f.store.accounts[id]
	a.Balance = decimal.RequireFromString(balance)
	f.store.accounts[id] = a
}

// backdate moves every row of accountID to at.
func (f *fixture) backdate(accountID uint, at time.Time) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for id, t := range f.store.txs {
		if t.AccountID == accountID {
			t.CreatedAt = at
			f.store.txs[id] = t
		}
	}
}

func (f *fixture) transactions(accountID uint) []model.Transaction {
	rows, _ := (&stubTransactionRepo{f.store}).ListByAccount(context.Background(), accountID, 0)
	return rows
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}
