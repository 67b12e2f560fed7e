package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/cafe-pos/internal/cart"
	"github.com/MikeMC777/cafe-pos/internal/storage"
)

//
// ---------- IN-MEMORY REPO ----------
//

// memRepo implements Repository in memory. failCreate makes the next N
// Create calls fail; lostAck stores the rows before failing.
type memRepo struct {
	txs        []Transaction
	items      map[int64][]Item
	creates    int
	failCreate int
	failErr    error
	lostAck    bool
	loc        *time.Location
}

func newMemRepo() *memRepo {
	return &memRepo{items: map[int64][]Item{}, loc: time.UTC}
}

func (m *memRepo) Create(ctx context.Context, t *Transaction, items []Item) error {
	m.creates++
	if len(items) == 0 {
		return ErrEmptyCart
	}
	for _, existing := range m.txs {
		if existing.CheckoutID == t.CheckoutID {
			return ErrDuplicateCheckout
		}
	}
	store := func() {
		t.ID = int64(len(m.txs) + 1)
		for i := range items {
			items[i].ID = int64(i + 1)
			items[i].TransactionID = t.ID
		}
		m.txs = append(m.txs, *t)
		m.items[t.ID] = append([]Item(nil), items...)
	}
	if m.failCreate > 0 {
		m.failCreate--
		if m.lostAck {
			store()
		}
		return m.failErr
	}
	store()
	return nil
}

func (m *memRepo) GetByID(ctx context.Context, id int64) (*Transaction, []Item, error) {
	for _, t := range m.txs {
		if t.ID == id {
			cp := t
			return &cp, m.items[id], nil
		}
	}
	return nil, nil, ErrNotFound
}

func (m *memRepo) GetByCheckoutID(ctx context.Context, checkoutID string) (*Transaction, []Item, error) {
	for _, t := range m.txs {
		if t.CheckoutID == checkoutID {
			cp := t
			return &cp, m.items[t.ID], nil
		}
	}
	return nil, nil, ErrNotFound
}

func (m *memRepo) List(ctx context.Context, r DateRange) ([]Transaction, error) {
	from, to := r.Window(m.loc)
	var out []Transaction
	for _, t := range m.txs {
		if from != nil && t.Date.Before(*from) {
			continue
		}
		if to != nil && !t.Date.Before(*to) {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

//
// ---------- HELPERS ----------
//

var fixedNow = time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)

func newLedger(repo Repository, attempts uint) *Ledger {
	return New(repo, Config{
		TaxRate:        decimal.RequireFromString("0.10"),
		DefaultCashier: "Kasir",
		Location:       time.UTC,
		MaxAttempts:    attempts,
		RetryInterval:  time.Millisecond,
		Now:            func() time.Time { return fixedNow },
	}, nil)
}

func sampleLines() []cart.Line {
	return []cart.Line{
		{MenuItemID: 1, Name: "Espresso", UnitPrice: decimal.NewFromInt(15000), Quantity: 2},
		{MenuItemID: 3, Name: "Cappuccino", UnitPrice: decimal.NewFromInt(22000), Quantity: 1, Note: "oat milk"},
	}
}

//
// ---------- TESTS ----------
//

func TestCommitStoresHeaderAndItems(t *testing.T) {
	repo := newMemRepo()
	l := newLedger(repo, 1)

	tx, items, err := l.Commit(context.Background(), sampleLines(), Payment{CustomerName: " Budi "})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if tx.ID == 0 {
		t.Fatalf("transaction id not assigned")
	}
	checks := []struct {
		name string
		got  decimal.Decimal
		want int64
	}{
		{"subtotal", tx.Subtotal, 52000},
		{"tax", tx.Tax, 5200},
		{"discount", tx.Discount, 0},
		{"final", tx.Final, 57200},
	}
	for _, c := range checks {
		if !c.got.Equal(decimal.NewFromInt(c.want)) {
			t.Errorf("%s = %s, want %d", c.name, c.got, c.want)
		}
	}
	if tx.PaymentMethod != PaymentCash || tx.CashierName != "Kasir" || tx.CustomerName != "Budi" {
		t.Errorf("payment fields = %q/%q/%q", tx.PaymentMethod, tx.CashierName, tx.CustomerName)
	}
	if !tx.Date.Equal(fixedNow) {
		t.Errorf("date = %s, want %s", tx.Date, fixedNow)
	}

	_, stored, err := repo.GetByID(context.Background(), tx.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(stored) != 2 || len(items) != 2 {
		t.Fatalf("stored items = %d, returned = %d, want 2", len(stored), len(items))
	}
	if stored[0].Quantity != 2 || !stored[0].UnitPrice.Equal(decimal.NewFromInt(15000)) {
		t.Errorf("item 0 = %+v", stored[0])
	}
	if stored[1].Quantity != 1 || !stored[1].UnitPrice.Equal(decimal.NewFromInt(22000)) || stored[1].Note != "oat milk" {
		t.Errorf("item 1 = %+v", stored[1])
	}
}

func TestCommitEmptyCartWritesNothing(t *testing.T) {
	repo := newMemRepo()
	_, _, err := newLedger(repo, 3).Commit(context.Background(), nil, Payment{})
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("err = %v, want ErrEmptyCart", err)
	}
	if repo.creates != 0 || len(repo.txs) != 0 {
		t.Fatalf("repo touched: creates=%d rows=%d", repo.creates, len(repo.txs))
	}
}

func TestCommitValidatesBeforeWriting(t *testing.T) {
	tests := []struct {
		name    string
		lines   []cart.Line
		payment Payment
		want    error
	}{
		{"zero quantity", []cart.Line{{MenuItemID: 1, UnitPrice: decimal.NewFromInt(1), Quantity: 0}}, Payment{}, cart.ErrInvalidQuantity},
		{"negative discount", sampleLines(), Payment{Discount: decimal.NewFromInt(-1)}, ErrInvalidDiscount},
		{"discount above total", sampleLines(), Payment{Discount: decimal.NewFromInt(57201)}, ErrInvalidDiscount},
		{"unknown method", sampleLines(), Payment{Method: "Barter"}, ErrInvalidPayment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo()
			_, _, err := newLedger(repo, 1).Commit(context.Background(), tt.lines, tt.payment)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if repo.creates != 0 {
				t.Fatalf("repo.Create called %d times", repo.creates)
			}
		})
	}
}

func TestCommitAppliesDiscountAndMethod(t *testing.T) {
	tx, _, err := newLedger(newMemRepo(), 1).Commit(context.Background(), sampleLines(), Payment{
		Method:   "e-wallet",
		Discount: decimal.NewFromInt(7200),
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if !tx.Final.Equal(decimal.NewFromInt(50000)) {
		t.Fatalf("final = %s, want 50000", tx.Final)
	}
	if !tx.Final.Equal(tx.Subtotal.Add(tx.Tax).Sub(tx.Discount)) {
		t.Fatalf("final does not balance: %+v", tx)
	}
	if tx.PaymentMethod != PaymentEWallet {
		t.Fatalf("method = %q", tx.PaymentMethod)
	}
}

func TestCommitRetriesTransientFailures(t *testing.T) {
	repo := newMemRepo()
	repo.failCreate = 2
	repo.failErr = storage.WriteFailed("insert transaction", fmt.Errorf("database is locked"))

	tx, _, err := newLedger(repo, 3).Commit(context.Background(), sampleLines(), Payment{})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if repo.creates != 3 {
		t.Fatalf("creates = %d, want 3", repo.creates)
	}
	if len(repo.txs) != 1 || repo.txs[0].ID != tx.ID {
		t.Fatalf("stored = %d rows", len(repo.txs))
	}
}

func TestCommitGivesUpAfterMaxAttempts(t *testing.T) {
	repo := newMemRepo()
	repo.failCreate = 5
	repo.failErr = storage.Unavailable("begin commit", fmt.Errorf("connection refused"))

	_, _, err := newLedger(repo, 2).Commit(context.Background(), sampleLines(), Payment{})
	if !errors.Is(err, storage.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if repo.creates != 2 || len(repo.txs) != 0 {
		t.Fatalf("creates = %d rows = %d", repo.creates, len(repo.txs))
	}
}

func TestCommitDoesNotRetryPermanentErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"unclassified", errors.New("boom")},
		{"constraint", storage.Rejected("insert transaction item", errors.New("FOREIGN KEY constraint failed"))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMemRepo()
			repo.failCreate = 3
			repo.failErr = tc.err

			_, _, err := newLedger(repo, 3).Commit(context.Background(), sampleLines(), Payment{})
			if !errors.Is(err, tc.err) || repo.creates != 1 {
				t.Fatalf("err = %v creates = %d", err, repo.creates)
			}
		})
	}
}

func TestCommitRoundsDiscountToMinorUnits(t *testing.T) {
	repo := newMemRepo()
	tx, _, err := newLedger(repo, 1).Commit(context.Background(), sampleLines(), Payment{
		Discount: decimal.RequireFromString("0.005"),
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if tx.Discount.String() != "0.01" || tx.Final.String() != "57199.99" {
		t.Fatalf("discount = %s final = %s", tx.Discount, tx.Final)
	}
	if !tx.Final.Equal(tx.Subtotal.Add(tx.Tax).Sub(tx.Discount)) {
		t.Fatalf("final does not balance: %+v", tx)
	}
	if _, _, err := newLedger(newMemRepo(), 1).Commit(context.Background(), sampleLines(), Payment{
		Discount: decimal.RequireFromString("-0.004"),
	}); err != nil {
		t.Fatalf("a discount rounding to zero is valid: %v", err)
	}
}

func TestCommitRetryAfterLostAckIsAtMostOnce(t *testing.T) {
	repo := newMemRepo()
	repo.failCreate = 1
	repo.lostAck = true
	repo.failErr = storage.WriteFailed("commit transaction", fmt.Errorf("connection reset"))

	tx, items, err := newLedger(repo, 3).Commit(context.Background(), sampleLines(), Payment{CheckoutID: "chk-1"})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(repo.txs) != 1 {
		t.Fatalf("stored %d transactions, want exactly 1", len(repo.txs))
	}
	if tx.CheckoutID != "chk-1" || len(items) != 2 {
		t.Fatalf("tx = %+v items = %d", tx, len(items))
	}
}

func TestListNewestFirstWithinRange(t *testing.T) {
	repo := newMemRepo()
	day := func(d, h int) time.Time { return time.Date(2026, time.March, d, h, 0, 0, 0, time.UTC) }
	for i, ts := range []time.Time{day(1, 8), day(2, 9), day(2, 18), day(4, 10)} {
		ts := ts
		l := New(repo, Config{TaxRate: decimal.Zero, Location: time.UTC, Now: func() time.Time { return ts }}, nil)
		if _, _, err := l.Commit(context.Background(), sampleLines(), Payment{CheckoutID: fmt.Sprint(i)}); err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
	}
	l := newLedger(repo, 1)

	got, err := l.List(context.Background(), DateRange{Start: day(2, 0), End: day(3, 0)})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || !got[0].Date.Equal(day(2, 18)) || !got[1].Date.Equal(day(2, 9)) {
		t.Fatalf("range result = %+v", got)
	}

	all, _ := l.List(context.Background(), DateRange{})
	if len(all) != 4 || !all[0].Date.Equal(day(4, 10)) {
		t.Fatalf("full history = %d rows", len(all))
	}

	if _, err := l.List(context.Background(), DateRange{Start: day(5, 0), End: day(1, 0)}); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("inverted range err = %v", err)
	}
}

func TestGetUnknownTransaction(t *testing.T) {
	_, _, err := newLedger(newMemRepo(), 1).Get(context.Background(), 42)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
