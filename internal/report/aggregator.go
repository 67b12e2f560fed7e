// Package report answers read-only sales queries over the ledger.
package report

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/cafe-pos/internal/ledger"
	"github.com/MikeMC777/cafe-pos/internal/money"
)

// DefaultPopularLimit applies when a caller passes a non-positive limit.
const DefaultPopularLimit = 10

type Aggregator struct {
	repo Repository
}

func NewAggregator(repo Repository) *Aggregator {
	return &Aggregator{repo: repo}
}

// DailySummary aggregates the transactions dated on day. A day without
// sales reports zero count, total and average.
func (a *Aggregator) DailySummary(ctx context.Context, day time.Time) (DailySummary, error) {
	t, err := a.repo.SalesTotals(ctx, ledger.Day(day))
	if err != nil {
		return DailySummary{}, err
	}
	s := DailySummary{
		Date:               day,
		TransactionCount:   t.Count,
		TotalSales:         t.Sum,
		AverageTransaction: money.Zero,
	}
	if t.Count > 0 {
		s.AverageTransaction = money.Round(t.Sum.Div(decimal.NewFromInt(int64(t.Count))))
	}
	return s, nil
}

// PopularItems ranks items sold in r by total quantity, descending.
// Equal quantities are ordered by item name.
func (a *Aggregator) PopularItems(ctx context.Context, r ledger.DateRange, limit int) ([]PopularItem, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultPopularLimit
	}
	items, err := a.repo.PopularItems(ctx, r, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []PopularItem{}
	}
	return items, nil
}

// DailyReport bundles the summary and ranking of one day for rendering.
func (a *Aggregator) DailyReport(ctx context.Context, day time.Time, limit int) (DailyReport, error) {
	s, err := a.DailySummary(ctx, day)
	if err != nil {
		return DailyReport{}, err
	}
	p, err := a.PopularItems(ctx, ledger.Day(day), limit)
	if err != nil {
		return DailyReport{}, err
	}
	return DailyReport{Summary: s, Popular: p}, nil
}
