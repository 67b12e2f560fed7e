// Package catalog provides read access to categories and menu items.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeMC777/cafe-pos/internal/money"
	"github.com/MikeMC777/cafe-pos/internal/storage"
)

var (
	ErrNotFound = errors.New("menu item not found")
)

// Repository is the catalog store as seen by the engine.
// Listings return available items only; GetMenuItem does not filter.
type Repository interface {
	ListCategories(ctx context.Context) ([]Category, error)
	ListMenuItems(ctx context.Context, categoryID *int64) ([]MenuItem, error)
	GetMenuItem(ctx context.Context, id int64) (*MenuItem, error)
}

// Seeder loads a starter menu into an empty catalog.
type Seeder interface {
	Seed(ctx context.Context, menu []SeedCategory) (bool, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) ListCategories(ctx context.Context) ([]Category, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT id, name, created_at
		FROM categories
		ORDER BY name
	`)
	if err != nil {
		return nil, storage.Unavailable("list categories", err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const selectMenuItem = `
	SELECT m.id, m.name, m.price::text, m.category_id, c.name,
	       COALESCE(m.description, ''), m.is_available, m.created_at
	FROM menu_items m
	JOIN categories c ON c.id = m.category_id
`

func (r *PGRepo) ListMenuItems(ctx context.Context, categoryID *int64) ([]MenuItem, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// Within one category the order collapses to item name.
	rows, err := r.db.Query(ctx, selectMenuItem+`
		WHERE m.is_available
		  AND ($1::bigint IS NULL OR m.category_id = $1)
		ORDER BY c.name, m.name
	`, categoryID)
	if err != nil {
		return nil, storage.Unavailable("list menu items", err)
	}
	defer rows.Close()

	var out []MenuItem
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *PGRepo) GetMenuItem(ctx context.Context, id int64) (*MenuItem, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	m, err := scanMenuItem(r.db.QueryRow(ctx, selectMenuItem+` WHERE m.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storage.Unavailable("get menu item", err)
	}
	return m, nil
}

// Seed inserts menu only when the categories table is empty.
func (r *PGRepo) Seed(ctx context.Context, menu []SeedCategory) (bool, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, storage.Unavailable("seed catalog", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var n int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM categories`).Scan(&n); err != nil {
		return false, storage.Unavailable("seed catalog", err)
	}
	if n > 0 {
		return false, nil
	}
	for _, c := range menu {
		var catID int64
		if err := tx.QueryRow(ctx, `INSERT INTO categories (name) VALUES ($1) RETURNING id`, c.Name).Scan(&catID); err != nil {
			return false, storage.WriteFailed("seed category "+c.Name, err)
		}
		for _, it := range c.Items {
			if err := (MenuItem{Name: it.Name, Price: it.Price}).Validate(); err != nil {
				return false, err
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO menu_items (name, price, category_id, description)
				VALUES ($1, $2, $3, $4)
			`, it.Name, it.Price.StringFixed(money.Scale), catID, it.Description); err != nil {
				return false, storage.WriteFailed("seed item "+it.Name, err)
			}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return false, storage.WriteFailed("seed catalog", err)
	}
	return true, nil
}

func scanMenuItem(row pgx.Row) (*MenuItem, error) {
	var (
		m     MenuItem
		price string
	)
	if err := row.Scan(&m.ID, &m.Name, &price, &m.CategoryID, &m.CategoryName,
		&m.Description, &m.Available, &m.CreatedAt); err != nil {
		return nil, err
	}
	p, err := money.Parse(price)
	if err != nil {
		return nil, err
	}
	m.Price = p
	return &m, nil
}

// Validate checks the fields a stored menu item must carry.
func (m MenuItem) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("menu item name is required")
	}
	if !m.Price.IsPositive() {
		return fmt.Errorf("menu item %q: price must be positive", m.Name)
	}
	return nil
}
