package report

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeMC777/cafe-pos/internal/ledger"
	"github.com/MikeMC777/cafe-pos/internal/money"
	"github.com/MikeMC777/cafe-pos/internal/storage"
)

// Repository runs the aggregate queries over committed rows.
// PopularItems orders by quantity desc, then item name, then item id.
type Repository interface {
	SalesTotals(ctx context.Context, r ledger.DateRange) (Totals, error)
	PopularItems(ctx context.Context, r ledger.DateRange, limit int) ([]PopularItem, error)
}

type PGRepo struct {
	db  *pgxpool.Pool
	loc *time.Location
}

func NewPGRepo(db *pgxpool.Pool, loc *time.Location) *PGRepo {
	if loc == nil {
		loc = time.Local
	}
	return &PGRepo{db: db, loc: loc}
}

func (r *PGRepo) SalesTotals(ctx context.Context, dr ledger.DateRange) (Totals, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	from, to := dr.Window(r.loc)
	var (
		t   Totals
		sum string
	)
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)::int, COALESCE(SUM(final_amount), 0)::text
		FROM transactions
		WHERE ($1::timestamptz IS NULL OR transaction_date >= $1)
		  AND ($2::timestamptz IS NULL OR transaction_date < $2)
	`, from, to).Scan(&t.Count, &sum)
	if err != nil {
		return Totals{}, storage.Unavailable("sales totals", err)
	}
	if t.Sum, err = money.Parse(sum); err != nil {
		return Totals{}, err
	}
	return t, nil
}

func (r *PGRepo) PopularItems(ctx context.Context, dr ledger.DateRange, limit int) ([]PopularItem, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	from, to := dr.Window(r.loc)
	rows, err := r.db.Query(ctx, `
		SELECT m.id, m.name, m.price::text,
		       SUM(ti.quantity)::bigint AS total_quantity,
		       SUM(ti.total_price)::text
		FROM transaction_items ti
		JOIN menu_items m ON m.id = ti.menu_item_id
		JOIN transactions t ON t.id = ti.transaction_id
		WHERE ($1::timestamptz IS NULL OR t.transaction_date >= $1)
		  AND ($2::timestamptz IS NULL OR t.transaction_date < $2)
		GROUP BY m.id, m.name, m.price
		ORDER BY total_quantity DESC, m.name ASC, m.id ASC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, storage.Unavailable("popular items", err)
	}
	defer rows.Close()

	var out []PopularItem
	for rows.Next() {
		var (
			p              PopularItem
			price, revenue string
		)
		if err := rows.Scan(&p.MenuItemID, &p.Name, &price, &p.TotalQuantity, &revenue); err != nil {
			return nil, err
		}
		if p.UnitPrice, err = money.Parse(price); err != nil {
			return nil, err
		}
		if p.TotalRevenue, err = money.Parse(revenue); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
