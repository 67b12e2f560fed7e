package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/MikeMC777/cafe-pos/internal/ledger"
	"github.com/MikeMC777/cafe-pos/internal/money"
	"github.com/MikeMC777/cafe-pos/internal/storage"
)

// Create writes the header and every item inside one SQLite transaction.
func (s *Store) Create(ctx context.Context, t *ledger.Transaction, items []ledger.Item) error {
	if len(items) == 0 {
		return ledger.ErrEmptyCart
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.Unavailable("begin commit", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (checkout_id, transaction_date, total_amount, tax_amount,
		                          discount_amount, final_amount, payment_method, customer_name, cashier_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.CheckoutID, toMillis(t.Date), money.ToMinor(t.Subtotal), money.ToMinor(t.Tax),
		money.ToMinor(t.Discount), money.ToMinor(t.Final), t.PaymentMethod,
		nullIfEmpty(t.CustomerName), nullIfEmpty(t.CashierName))
	if err != nil {
		if isUniqueViolation(err, "transactions.checkout_id") {
			return ledger.ErrDuplicateCheckout
		}
		return writeFailed("insert transaction", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return storage.WriteFailed("insert transaction", err)
	}

	if s.afterHeader != nil {
		if err := s.afterHeader(); err != nil {
			return storage.WriteFailed("insert transaction items", err)
		}
	}

	itemIDs := make([]int64, len(items))
	for i, it := range items {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO transaction_items (transaction_id, menu_item_id, quantity, unit_price, total_price, notes)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id, it.MenuItemID, it.Quantity, money.ToMinor(it.UnitPrice), money.ToMinor(it.Total), nullIfEmpty(it.Note))
		if err != nil {
			return writeFailed("insert transaction item", err)
		}
		if itemIDs[i], err = res.LastInsertId(); err != nil {
			return storage.WriteFailed("insert transaction item", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return writeFailed("commit transaction", err)
	}

	t.ID = id
	for i := range items {
		items[i].ID = itemIDs[i]
		items[i].TransactionID = id
	}
	return nil
}

const selectTransaction = `
	SELECT id, checkout_id, transaction_date, total_amount, tax_amount,
	       discount_amount, final_amount, payment_method,
	       COALESCE(customer_name, ''), COALESCE(cashier_name, '')
	FROM transactions
`

func (s *Store) GetByID(ctx context.Context, id int64) (*ledger.Transaction, []ledger.Item, error) {
	return s.getTransaction(ctx, selectTransaction+` WHERE id = ?`, id)
}

func (s *Store) GetByCheckoutID(ctx context.Context, checkoutID string) (*ledger.Transaction, []ledger.Item, error) {
	return s.getTransaction(ctx, selectTransaction+` WHERE checkout_id = ?`, checkoutID)
}

func (s *Store) getTransaction(ctx context.Context, query string, arg any) (*ledger.Transaction, []ledger.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	t, err := s.scanTransaction(s.sqlDB.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, nil, storage.Unavailable("get transaction", err)
	}
	items, err := s.transactionItems(ctx, t.ID)
	if err != nil {
		return nil, nil, err
	}
	return t, items, nil
}

func (s *Store) transactionItems(ctx context.Context, txID int64) ([]ledger.Item, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT ti.id, ti.transaction_id, ti.menu_item_id, m.name, ti.quantity,
		       ti.unit_price, ti.total_price, COALESCE(ti.notes, '')
		FROM transaction_items ti
		JOIN menu_items m ON m.id = ti.menu_item_id
		WHERE ti.transaction_id = ?
		ORDER BY ti.id
	`, txID)
	if err != nil {
		return nil, storage.Unavailable("get transaction items", err)
	}
	defer rows.Close()

	var items []ledger.Item
	for rows.Next() {
		var (
			it           ledger.Item
			price, total int64
		)
		if err := rows.Scan(&it.ID, &it.TransactionID, &it.MenuItemID, &it.ItemName, &it.Quantity,
			&price, &total, &it.Note); err != nil {
			return nil, err
		}
		it.UnitPrice = money.FromMinor(price)
		it.Total = money.FromMinor(total)
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) List(ctx context.Context, r ledger.DateRange) ([]ledger.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	where, args := s.window("transaction_date", r)
	rows, err := s.sqlDB.QueryContext(ctx, selectTransaction+` WHERE `+where+`
		ORDER BY transaction_date DESC, id DESC`, args...)
	if err != nil {
		return nil, storage.Unavailable("list transactions", err)
	}
	defer rows.Close()

	var out []ledger.Transaction
	for rows.Next() {
		t, err := s.scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Store) scanTransaction(row scanner) (*ledger.Transaction, error) {
	var (
		t                              ledger.Transaction
		date                           int64
		subtotal, tax, discount, final int64
	)
	if err := row.Scan(&t.ID, &t.CheckoutID, &date, &subtotal, &tax, &discount, &final,
		&t.PaymentMethod, &t.CustomerName, &t.CashierName); err != nil {
		return nil, err
	}
	t.Date = fromMillis(date).In(s.loc)
	t.Subtotal = money.FromMinor(subtotal)
	t.Tax = money.FromMinor(tax)
	t.Discount = money.FromMinor(discount)
	t.Final = money.FromMinor(final)
	return &t, nil
}
