package service

import (
	"context"
	"errors"
	"time"

	"github.com/ethan0sc4r/gestione-vinicola/internal/dto"
	"github.com/ethan0sc4r/gestione-vinicola/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// midnight returns the start of t's calendar day in t's location.
func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SystemStats summarises every account and the transaction volume, with
// "today" starting at local midnight.
func (l *Ledger) SystemStats(ctx context.Context) (*dto.SystemStatsResponse, error) {
	summary, err := l.accounts.EmployeeSummary(ctx)
	if err != nil {
		return nil, err
	}
	total, err := l.txs.Count(ctx, time.Time{})
	if err != nil {
		return nil, err
	}
	today, err := l.txs.Count(ctx, midnight(l.now()))
	if err != nil {
		return nil, err
	}

	registerBalance := decimal.Zero
	reg, err := l.accounts.FindByCode(ctx, model.RegisterCode)
	switch {
	case err == nil:
		registerBalance = reg.Balance
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	return &dto.SystemStatsResponse{
		Employees:         summary.Count,
		OutstandingCredit: summary.TotalBalance,
		RegisterBalance:   registerBalance,
		Transactions:      total,
		TransactionsToday: today,
	}, nil
}

// DailyReport returns the rows of day's calendar date (in day's location)
// with credit, debit and withdrawal sums and per-operator totals.
func (l *Ledger) DailyReport(ctx context.Context, day time.Time) (*dto.DailyReportResponse, error) {
	from := midnight(day)
	to := from.AddDate(0, 0, 1)

	totals, err := l.txs.PeriodTotals(ctx, from, to)
	if err != nil {
		return nil, err
	}
	ops, err := l.txs.OperatorTotals(ctx, from, to)
	if err != nil {
		return nil, err
	}
	rows, err := l.txs.ListBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	resp := &dto.DailyReportResponse{
		Date:         from.Format(time.DateOnly),
		Credited:     totals.Credited,
		Debited:      totals.Debited,
		Withdrawn:    totals.Withdrawn,
		Count:        totals.Count,
		Operators:    make([]dto.OperatorTotalsResponse, 0, len(ops)),
		Transactions: make([]dto.TransactionResponse, 0, len(rows)),
	}
	for _, o := range ops {
		resp.Operators = append(resp.Operators, dto.OperatorTotalsResponse{
			OperatorID: o.OperatorID,
			Credited:   o.Credited,
			Debited:    o.Debited,
			Count:      o.Count,
		})
	}
	for _, r := range rows {
		resp.Transactions = append(resp.Transactions, ToTransactionResponse(r))
	}
	return resp, nil
}
