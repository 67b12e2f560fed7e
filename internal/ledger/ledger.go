// Package ledger commits finalized carts as transactions and reads them back.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MikeMC777/cafe-pos/internal/cart"
	"github.com/MikeMC777/cafe-pos/internal/money"
	"github.com/MikeMC777/cafe-pos/internal/storage"
)

type Config struct {
	TaxRate decimal.Decimal
	// DefaultCashier is recorded when a payment names no cashier.
	DefaultCashier string
	Location       *time.Location
	// MaxAttempts bounds commit attempts on transient write failures.
	MaxAttempts   uint
	RetryInterval time.Duration
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

type Ledger struct {
	repo Repository
	cfg  Config
	log  *zap.Logger
}

func New(repo Repository, cfg Config, log *zap.Logger) *Ledger {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 100 * time.Millisecond
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{repo: repo, cfg: cfg, log: log}
}

func (l *Ledger) TaxRate() decimal.Decimal { return l.cfg.TaxRate }

type committed struct {
	t     *Transaction
	items []Item
}

// Commit prices lines at the configured tax rate and stores them as one
// transaction. Validation happens before any write. A retry that finds the
// checkout already stored returns the stored transaction.
func (l *Ledger) Commit(ctx context.Context, lines []cart.Line, p Payment) (*Transaction, []Item, error) {
	if len(lines) == 0 {
		return nil, nil, ErrEmptyCart
	}
	for _, ln := range lines {
		if ln.Quantity < 1 {
			return nil, nil, fmt.Errorf("line %q: %w", ln.Name, cart.ErrInvalidQuantity)
		}
	}
	method, err := normalizeMethod(p.Method)
	if err != nil {
		return nil, nil, err
	}

	totals := cart.ComputeTotals(lines, l.cfg.TaxRate)
	discount := money.Round(p.Discount)
	if discount.IsNegative() || discount.GreaterThan(totals.Total) {
		return nil, nil, ErrInvalidDiscount
	}

	checkoutID := p.CheckoutID
	if checkoutID == "" {
		checkoutID = uuid.NewString()
	}
	cashier := strings.TrimSpace(p.CashierName)
	if cashier == "" {
		cashier = l.cfg.DefaultCashier
	}
	header := Transaction{
		CheckoutID:    checkoutID,
		Date:          l.cfg.Now().In(l.cfg.Location),
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		Discount:      discount,
		Final:         totals.Total.Sub(discount),
		PaymentMethod: method,
		CustomerName:  strings.TrimSpace(p.CustomerName),
		CashierName:   cashier,
	}
	items := make([]Item, 0, len(lines))
	for _, ln := range lines {
		items = append(items, Item{
			MenuItemID: ln.MenuItemID,
			ItemName:   ln.Name,
			Quantity:   ln.Quantity,
			UnitPrice:  ln.UnitPrice,
			Total:      ln.Total(),
			Note:       ln.Note,
		})
	}

	attempt := 0
	op := func() (committed, error) {
		attempt++
		t := header
		its := append([]Item(nil), items...)
		err := l.repo.Create(ctx, &t, its)
		switch {
		case err == nil:
			return committed{&t, its}, nil
		case errors.Is(err, ErrDuplicateCheckout):
			// An earlier attempt committed but its acknowledgement was lost.
			st, sits, gerr := l.repo.GetByCheckoutID(ctx, checkoutID)
			if gerr != nil {
				return committed{}, backoff.Permanent(gerr)
			}
			return committed{st, sits}, nil
		case storage.IsTransient(err):
			l.log.Warn("commit attempt failed",
				zap.String("checkout_id", checkoutID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return committed{}, err
		default:
			return committed{}, backoff.Permanent(err)
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.cfg.RetryInterval
	res, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(l.cfg.MaxAttempts),
	)
	if err != nil {
		return nil, nil, err
	}
	l.log.Info("transaction committed",
		zap.Int64("transaction_id", res.t.ID),
		zap.String("checkout_id", checkoutID),
		zap.String("final_amount", res.t.Final.StringFixed(2)),
		zap.Int("items", len(res.items)))
	return res.t, res.items, nil
}

func (l *Ledger) Get(ctx context.Context, id int64) (*Transaction, []Item, error) {
	return l.repo.GetByID(ctx, id)
}

// List returns transactions in the range, newest first.
func (l *Ledger) List(ctx context.Context, r DateRange) ([]Transaction, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return l.repo.List(ctx, r)
}

func normalizeMethod(m string) (string, error) {
	m = strings.TrimSpace(m)
	if m == "" {
		return PaymentCash, nil
	}
	for _, known := range PaymentMethods {
		if strings.EqualFold(m, known) {
			return known, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPayment, m)
}
