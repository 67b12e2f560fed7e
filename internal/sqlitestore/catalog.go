package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/MikeMC777/cafe-pos/internal/catalog"
	"github.com/MikeMC777/cafe-pos/internal/money"
	"github.com/MikeMC777/cafe-pos/internal/storage"
)

func (s *Store) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id, name, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, storage.Unavailable("list categories", err)
	}
	defer rows.Close()

	var out []catalog.Category
	for rows.Next() {
		var (
			c       catalog.Category
			created int64
		)
		if err := rows.Scan(&c.ID, &c.Name, &created); err != nil {
			return nil, err
		}
		c.CreatedAt = fromMillis(created).In(s.loc)
		out = append(out, c)
	}
	return out, rows.Err()
}

const selectMenuItem = `
	SELECT m.id, m.name, m.price, m.category_id, c.name,
	       COALESCE(m.description, ''), m.is_available, m.created_at
	FROM menu_items m
	JOIN categories c ON c.id = m.category_id
`

func (s *Store) ListMenuItems(ctx context.Context, categoryID *int64) ([]catalog.MenuItem, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := selectMenuItem + ` WHERE m.is_available = 1`
	var args []any
	if categoryID != nil {
		query += ` AND m.category_id = ?`
		args = append(args, *categoryID)
	}
	query += ` ORDER BY c.name, m.name`

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storage.Unavailable("list menu items", err)
	}
	defer rows.Close()

	var out []catalog.MenuItem
	for rows.Next() {
		m, err := s.scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (s *Store) GetMenuItem(ctx context.Context, id int64) (*catalog.MenuItem, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	m, err := s.scanMenuItem(s.sqlDB.QueryRowContext(ctx, selectMenuItem+` WHERE m.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, storage.Unavailable("get menu item", err)
	}
	return m, nil
}

// SetAvailable toggles whether an item shows up in listings.
func (s *Store) SetAvailable(ctx context.Context, id int64, available bool) error {
	res, err := s.sqlDB.ExecContext(ctx, `UPDATE menu_items SET is_available = ? WHERE id = ?`, available, id)
	if err != nil {
		return storage.WriteFailed("set availability", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// Seed inserts menu only when the categories table is empty.
func (s *Store) Seed(ctx context.Context, menu []catalog.SeedCategory) (bool, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return false, storage.Unavailable("seed catalog", err)
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&n); err != nil {
		return false, storage.Unavailable("seed catalog", err)
	}
	if n > 0 {
		return false, nil
	}

	now := toMillis(time.Now())
	for _, c := range menu {
		res, err := tx.ExecContext(ctx, `INSERT INTO categories (name, created_at) VALUES (?, ?)`, c.Name, now)
		if err != nil {
			return false, storage.WriteFailed("seed category "+c.Name, err)
		}
		catID, err := res.LastInsertId()
		if err != nil {
			return false, storage.WriteFailed("seed category "+c.Name, err)
		}
		for _, it := range c.Items {
			if err := (catalog.MenuItem{Name: it.Name, Price: it.Price}).Validate(); err != nil {
				return false, err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO menu_items (name, price, category_id, description, created_at)
				VALUES (?, ?, ?, ?, ?)
			`, it.Name, money.ToMinor(it.Price), catID, nullIfEmpty(it.Description), now); err != nil {
				return false, storage.WriteFailed("seed item "+it.Name, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return false, storage.WriteFailed("seed catalog", err)
	}
	return true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanMenuItem(row scanner) (*catalog.MenuItem, error) {
	var (
		m       catalog.MenuItem
		price   int64
		created int64
	)
	if err := row.Scan(&m.ID, &m.Name, &price, &m.CategoryID, &m.CategoryName,
		&m.Description, &m.Available, &created); err != nil {
		return nil, err
	}
	m.Price = money.FromMinor(price)
	m.CreatedAt = fromMillis(created).In(s.loc)
	return &m, nil
}
