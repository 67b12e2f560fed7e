// Package checkout turns the active cart into a committed sale and hands the
// receipt and reports to the render queue.
package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MikeMC777/cafe-pos/internal/cart"
	"github.com/MikeMC777/cafe-pos/internal/ledger"
	"github.com/MikeMC777/cafe-pos/internal/render"
	"github.com/MikeMC777/cafe-pos/internal/report"
)

// Details are the checkout-time inputs that do not live in the cart.
type Details struct {
	CheckoutID    string          `json:"checkout_id"`
	CustomerName  string          `json:"customer_name"`
	PaymentMethod string          `json:"payment_method"`
	CashierName   string          `json:"cashier_name"`
	Discount      decimal.Decimal `json:"discount"`
}

// Outcome is a committed sale. Receipt is nil when no receipt job could be
// queued; the sale is stored either way.
type Outcome struct {
	Transaction *ledger.Transaction `json:"transaction"`
	Items       []ledger.Item       `json:"items"`
	Receipt     *render.Ticket      `json:"-"`
}

type Committer interface {
	Commit(ctx context.Context, lines []cart.Line, p ledger.Payment) (*ledger.Transaction, []ledger.Item, error)
}

type Reporter interface {
	DailyReport(ctx context.Context, day time.Time, limit int) (report.DailyReport, error)
}

type ReceiptRenderer interface {
	Write(t *ledger.Transaction, items []ledger.Item) (string, error)
}

type ReportRenderer interface {
	Write(r report.DailyReport) (string, error)
}

type Service struct {
	ledger   Committer
	reports  Reporter
	queue    *render.Queue
	receipt  ReceiptRenderer
	workbook ReportRenderer
	log      *zap.Logger
}

func NewService(l Committer, reports Reporter, q *render.Queue, receipt ReceiptRenderer, workbook ReportRenderer, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{ledger: l, reports: reports, queue: q, receipt: receipt, workbook: workbook, log: log}
}

// Checkout commits c and marks it committed. Nothing is written for an
// empty or already committed cart.
func (s *Service) Checkout(ctx context.Context, c *cart.Cart, d Details) (*Outcome, error) {
	if c.State() == cart.StateCommitted {
		return nil, cart.ErrCommitted
	}
	if c.IsEmpty() {
		return nil, ledger.ErrEmptyCart
	}

	tx, items, err := s.ledger.Commit(ctx, c.Lines(), ledger.Payment{
		CheckoutID:   d.CheckoutID,
		Method:       strings.TrimSpace(d.PaymentMethod),
		CustomerName: d.CustomerName,
		CashierName:  d.CashierName,
		Discount:     d.Discount,
	})
	if err != nil {
		return nil, err
	}
	c.MarkCommitted()

	out := &Outcome{Transaction: tx, Items: items}
	if s.queue != nil && s.receipt != nil {
		ticket, err := s.queue.Submit("receipt", func(context.Context) (string, error) {
			return s.receipt.Write(tx, items)
		})
		if err != nil {
			s.log.Warn("receipt not queued", zap.Int64("transaction_id", tx.ID), zap.Error(err))
		}
		out.Receipt = ticket
	}
	return out, nil
}

// ExportDailyReport queues the workbook for day. The aggregate queries run
// on the render worker.
func (s *Service) ExportDailyReport(ctx context.Context, day time.Time) (*render.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := "daily_report " + day.Format(ledger.DateLayout)
	return s.queue.Submit(name, func(jobCtx context.Context) (string, error) {
		r, err := s.reports.DailyReport(jobCtx, day, report.DefaultPopularLimit)
		if err != nil {
			return "", err
		}
		return s.workbook.Write(r)
	})
}
