package sqlitestore

import (
	"context"
	"time"

	"github.com/MikeMC777/cafe-pos/internal/ledger"
	"github.com/MikeMC777/cafe-pos/internal/money"
	"github.com/MikeMC777/cafe-pos/internal/report"
	"github.com/MikeMC777/cafe-pos/internal/storage"
)

func (s *Store) SalesTotals(ctx context.Context, r ledger.DateRange) (report.Totals, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	where, args := s.window("transaction_date", r)
	var (
		t   report.Totals
		sum int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(final_amount), 0)
		FROM transactions
		WHERE `+where, args...).Scan(&t.Count, &sum)
	if err != nil {
		return report.Totals{}, storage.Unavailable("sales totals", err)
	}
	t.Sum = money.FromMinor(sum)
	return t, nil
}

func (s *Store) PopularItems(ctx context.Context, r ledger.DateRange, limit int) ([]report.PopularItem, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	where, args := s.window("t.transaction_date", r)
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT m.id, m.name, m.price,
		       SUM(ti.quantity) AS total_quantity,
		       SUM(ti.total_price)
		FROM transaction_items ti
		JOIN menu_items m ON m.id = ti.menu_item_id
		JOIN transactions t ON t.id = ti.transaction_id
		WHERE `+where+`
		GROUP BY m.id, m.name, m.price
		ORDER BY total_quantity DESC, m.name ASC, m.id ASC
		LIMIT ?
	`, append(args, limit)...)
	if err != nil {
		return nil, storage.Unavailable("popular items", err)
	}
	defer rows.Close()

	var out []report.PopularItem
	for rows.Next() {
		var (
			p              report.PopularItem
			price, revenue int64
		)
		if err := rows.Scan(&p.MenuItemID, &p.Name, &price, &p.TotalQuantity, &revenue); err != nil {
			return nil, err
		}
		p.UnitPrice = money.FromMinor(price)
		p.TotalRevenue = money.FromMinor(revenue)
		out = append(out, p)
	}
	return out, rows.Err()
}
