package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/cafe-pos/internal/money"
	"github.com/MikeMC777/cafe-pos/internal/storage"
)

var (
	ErrNotFound          = errors.New("transaction not found")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidDiscount   = errors.New("discount must be between zero and the taxed total")
	ErrInvalidPayment    = errors.New("unknown payment method")
	ErrDuplicateCheckout = errors.New("checkout already committed")
)

// Repository persists transactions. Create must store the header and every
// item in one enclosing write transaction, or nothing at all.
type Repository interface {
	Create(ctx context.Context, t *Transaction, items []Item) error
	GetByID(ctx context.Context, id int64) (*Transaction, []Item, error)
	GetByCheckoutID(ctx context.Context, checkoutID string) (*Transaction, []Item, error)
	List(ctx context.Context, r DateRange) ([]Transaction, error)
}

type PGRepo struct {
	db  *pgxpool.Pool
	loc *time.Location

	// afterHeader runs between the header and item inserts; tests use it
	// to inject a failure mid-commit.
	afterHeader func() error
}

func NewPGRepo(db *pgxpool.Pool, loc *time.Location) *PGRepo {
	if loc == nil {
		loc = time.Local
	}
	return &PGRepo{db: db, loc: loc}
}

func (r *PGRepo) Create(ctx context.Context, t *Transaction, items []Item) error {
	if len(items) == 0 {
		return ErrEmptyCart
	}
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return storage.Unavailable("begin commit", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.QueryRow(ctx, `
    INSERT INTO transactions (checkout_id, transaction_date, total_amount, tax_amount,
                              discount_amount, final_amount, payment_method, customer_name, cashier_name)
    VALUES ($1,$2,$3,$4,$5,$6,$7,NULLIF($8,''),NULLIF($9,''))
    RETURNING id
  `, t.CheckoutID, t.Date, fixed(t.Subtotal), fixed(t.Tax), fixed(t.Discount), fixed(t.Final),
		t.PaymentMethod, t.CustomerName, t.CashierName).Scan(&t.ID); err != nil {
		if isCheckoutConflict(err) {
			return ErrDuplicateCheckout
		}
		return writeFailed("insert transaction", err)
	}

	if r.afterHeader != nil {
		if err := r.afterHeader(); err != nil {
			return storage.WriteFailed("insert transaction items", err)
		}
	}

	for i := range items {
		it := &items[i]
		it.TransactionID = t.ID
		if err := tx.QueryRow(ctx, `
      INSERT INTO transaction_items (transaction_id, menu_item_id, quantity, unit_price, total_price, notes)
      VALUES ($1,$2,$3,$4,$5,NULLIF($6,''))
      RETURNING id
    `, t.ID, it.MenuItemID, it.Quantity, fixed(it.UnitPrice), fixed(it.Total), it.Note).Scan(&it.ID); err != nil {
			return writeFailed("insert transaction item", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return writeFailed("commit transaction", err)
	}
	return nil
}

const selectTransaction = `
    SELECT id, checkout_id, transaction_date, total_amount::text, tax_amount::text,
           discount_amount::text, final_amount::text, payment_method,
           COALESCE(customer_name,''), COALESCE(cashier_name,'')
    FROM transactions
`

func (r *PGRepo) GetByID(ctx context.Context, id int64) (*Transaction, []Item, error) {
	return r.getOne(ctx, selectTransaction+` WHERE id=$1`, id)
}

func (r *PGRepo) GetByCheckoutID(ctx context.Context, checkoutID string) (*Transaction, []Item, error) {
	return r.getOne(ctx, selectTransaction+` WHERE checkout_id=$1`, checkoutID)
}

func (r *PGRepo) getOne(ctx context.Context, query string, arg any) (*Transaction, []Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	t, err := r.scanTransaction(r.db.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, storage.Unavailable("get transaction", err)
	}
	items, err := r.getItems(ctx, t.ID)
	if err != nil {
		return nil, nil, err
	}
	return t, items, nil
}

func (r *PGRepo) getItems(ctx context.Context, txID int64) ([]Item, error) {
	rows, err := r.db.Query(ctx, `
    SELECT ti.id, ti.transaction_id, ti.menu_item_id, m.name, ti.quantity,
           ti.unit_price::text, ti.total_price::text, COALESCE(ti.notes,'')
    FROM transaction_items ti
    JOIN menu_items m ON m.id = ti.menu_item_id
    WHERE ti.transaction_id = $1
    ORDER BY ti.id
  `, txID)
	if err != nil {
		return nil, storage.Unavailable("get transaction items", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			it           Item
			price, total string
		)
		if err := rows.Scan(&it.ID, &it.TransactionID, &it.MenuItemID, &it.ItemName, &it.Quantity,
			&price, &total, &it.Note); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = money.Parse(price); err != nil {
			return nil, err
		}
		if it.Total, err = money.Parse(total); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *PGRepo) List(ctx context.Context, dr DateRange) ([]Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	from, to := dr.Window(r.loc)
	rows, err := r.db.Query(ctx, selectTransaction+`
    WHERE ($1::timestamptz IS NULL OR transaction_date >= $1)
      AND ($2::timestamptz IS NULL OR transaction_date < $2)
    ORDER BY transaction_date DESC, id DESC
  `, from, to)
	if err != nil {
		return nil, storage.Unavailable("list transactions", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := r.scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *PGRepo) scanTransaction(row pgx.Row) (*Transaction, error) {
	var (
		t                              Transaction
		subtotal, tax, discount, final string
	)
	if err := row.Scan(&t.ID, &t.CheckoutID, &t.Date, &subtotal, &tax, &discount, &final,
		&t.PaymentMethod, &t.CustomerName, &t.CashierName); err != nil {
		return nil, err
	}
	var err error
	if t.Subtotal, err = money.Parse(subtotal); err != nil {
		return nil, err
	}
	if t.Tax, err = money.Parse(tax); err != nil {
		return nil, err
	}
	if t.Discount, err = money.Parse(discount); err != nil {
		return nil, err
	}
	if t.Final, err = money.Parse(final); err != nil {
		return nil, err
	}
	t.Date = t.Date.In(r.loc)
	return &t, nil
}

func isCheckoutConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "transactions_checkout_id_key"
}

// writeFailed treats integrity violations (SQLSTATE class 23) as rejected;
// anything else may succeed on retry.
func writeFailed(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return storage.Rejected(op, err)
	}
	return storage.WriteFailed(op, err)
}

func fixed(d decimal.Decimal) string { return d.StringFixed(money.Scale) }
