package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/cafe-pos/internal/cart"
	"github.com/MikeMC777/cafe-pos/internal/catalog"
	"github.com/MikeMC777/cafe-pos/internal/checkout"
	"github.com/MikeMC777/cafe-pos/internal/httpx"
	"github.com/MikeMC777/cafe-pos/internal/ledger"
	"github.com/MikeMC777/cafe-pos/internal/render"
	"github.com/MikeMC777/cafe-pos/internal/report"
	"github.com/MikeMC777/cafe-pos/internal/storage"
)

var errBadInput = errors.New("invalid input")

func badInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadInput, fmt.Sprintf(format, args...))
}

func writeError(c *gin.Context, err error) {
	code := httpx.StatusOf(err,
		httpx.Status{Code: http.StatusNotFound, Errs: []error{catalog.ErrNotFound, ledger.ErrNotFound}},
		httpx.Status{Code: http.StatusBadRequest, Errs: []error{
			errBadInput, ledger.ErrEmptyCart, ledger.ErrInvalidDiscount, ledger.ErrInvalidPayment,
			ledger.ErrInvalidRange, cart.ErrInvalidQuantity, cart.ErrIndexOutOfRange,
			cart.ErrItemUnavailable, cart.ErrCommitted, storage.ErrRejected,
		}},
		httpx.Status{Code: http.StatusServiceUnavailable, Errs: []error{
			storage.ErrUnavailable, render.ErrQueueFull, render.ErrQueueClosed,
		}},
	)
	c.JSON(code, httpx.HTTPError{Error: err.Error()})
}

// counter owns the single active cart. Every cart access goes through with.
type counter struct {
	mu   sync.Mutex
	cart *cart.Cart
}

func newCounter(rate decimal.Decimal) *counter {
	return &counter{cart: cart.New(rate)}
}

func (k *counter) with(fn func(c *cart.Cart) error) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return fn(k.cart)
}

type cartView struct {
	State  cart.State  `json:"state"`
	Lines  []cart.Line `json:"lines"`
	Totals cart.Totals `json:"totals"`
}

func viewOf(c *cart.Cart) cartView {
	return cartView{State: c.State(), Lines: c.Lines(), Totals: c.Totals()}
}

//
// ---------- REQUESTS ----------
//

type addItemRequest struct {
	MenuItemID int64  `json:"menu_item_id" binding:"required"`
	Quantity   int    `json:"quantity"`
	Note       string `json:"note"`
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type checkoutRequest struct {
	CheckoutID    string          `json:"checkout_id"`
	CustomerName  string          `json:"customer_name"`
	PaymentMethod string          `json:"payment_method"`
	CashierName   string          `json:"cashier_name"`
	Discount      decimal.Decimal `json:"discount"`
}

type checkoutResponse struct {
	Transaction  *ledger.Transaction `json:"transaction"`
	Items        []ledger.Item       `json:"items"`
	ReceiptJobID string              `json:"receipt_job_id,omitempty"`
}

//
// ---------- HEALTH ----------
//

func healthzHandler(ping func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				writeError(c, storage.Unavailable("ping", err))
				return
			}
		}
		c.String(http.StatusOK, "ok")
	}
}

//
// ---------- CATALOG ----------
//

func listCategoriesHandler(repo catalog.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		cats, err := repo.ListCategories(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		if cats == nil {
			cats = []catalog.Category{}
		}
		c.JSON(http.StatusOK, cats)
	}
}

func listMenuItemsHandler(repo catalog.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var categoryID *int64
		if raw := c.Query("category_id"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				writeError(c, badInput("category_id must be an integer"))
				return
			}
			categoryID = &id
		}
		items, err := repo.ListMenuItems(c.Request.Context(), categoryID)
		if err != nil {
			writeError(c, err)
			return
		}
		if items == nil {
			items = []catalog.MenuItem{}
		}
		c.JSON(http.StatusOK, items)
	}
}

func getMenuItemHandler(repo catalog.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := int64Param(c, "id")
		if !ok {
			return
		}
		item, err := repo.GetMenuItem(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

//
// ---------- CART ----------
//

func getCartHandler(k *counter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var v cartView
		_ = k.with(func(ct *cart.Cart) error {
			v = viewOf(ct)
			return nil
		})
		c.JSON(http.StatusOK, v)
	}
}

func addCartItemHandler(repo catalog.Repository, k *counter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, badInput("invalid json: %v", err))
			return
		}
		if req.Quantity == 0 {
			req.Quantity = 1
		}
		item, err := repo.GetMenuItem(c.Request.Context(), req.MenuItemID)
		if err != nil {
			writeError(c, err)
			return
		}
		var v cartView
		err = k.with(func(ct *cart.Cart) error {
			if err := ct.AddItem(*item, req.Quantity, req.Note); err != nil {
				return err
			}
			v = viewOf(ct)
			return nil
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

func setCartLineHandler(k *counter) gin.HandlerFunc {
	return func(c *gin.Context) {
		index, ok := intParam(c, "index")
		if !ok {
			return
		}
		var req setQuantityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, badInput("invalid json: %v", err))
			return
		}
		var v cartView
		err := k.with(func(ct *cart.Cart) error {
			if err := ct.SetQuantity(index, req.Quantity); err != nil {
				return err
			}
			v = viewOf(ct)
			return nil
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

func removeCartLineHandler(k *counter) gin.HandlerFunc {
	return func(c *gin.Context) {
		index, ok := intParam(c, "index")
		if !ok {
			return
		}
		var v cartView
		err := k.with(func(ct *cart.Cart) error {
			if err := ct.RemoveLine(index); err != nil {
				return err
			}
			v = viewOf(ct)
			return nil
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

func clearCartHandler(k *counter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var v cartView
		_ = k.with(func(ct *cart.Cart) error {
			ct.Clear()
			v = viewOf(ct)
			return nil
		})
		c.JSON(http.StatusOK, v)
	}
}

//
// ---------- CHECKOUT ----------
//

func checkoutHandler(svc *checkout.Service, k *counter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req checkoutRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				writeError(c, badInput("invalid json: %v", err))
				return
			}
		}
		var out *checkout.Outcome
		err := k.with(func(ct *cart.Cart) error {
			var err error
			out, err = svc.Checkout(c.Request.Context(), ct, checkout.Details{
				CheckoutID:    req.CheckoutID,
				CustomerName:  req.CustomerName,
				PaymentMethod: req.PaymentMethod,
				CashierName:   req.CashierName,
				Discount:      req.Discount,
			})
			return err
		})
		if err != nil {
			writeError(c, err)
			return
		}
		resp := checkoutResponse{Transaction: out.Transaction, Items: out.Items}
		if out.Receipt != nil {
			resp.ReceiptJobID = out.Receipt.ID
		}
		c.JSON(http.StatusCreated, resp)
	}
}

//
// ---------- TRANSACTIONS ----------
//

func listTransactionsHandler(l *ledger.Ledger, loc *time.Location) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, ok := rangeQuery(c, loc)
		if !ok {
			return
		}
		txs, err := l.List(c.Request.Context(), r)
		if err != nil {
			writeError(c, err)
			return
		}
		if txs == nil {
			txs = []ledger.Transaction{}
		}
		c.JSON(http.StatusOK, txs)
	}
}

func getTransactionHandler(l *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := int64Param(c, "id")
		if !ok {
			return
		}
		t, items, err := l.Get(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"transaction": t, "items": items})
	}
}

//
// ---------- REPORTS ----------
//

func dailySummaryHandler(agg *report.Aggregator, loc *time.Location, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		day, ok := dayQuery(c, loc, now)
		if !ok {
			return
		}
		s, err := agg.DailySummary(c.Request.Context(), day)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, s)
	}
}

func popularItemsHandler(agg *report.Aggregator, loc *time.Location) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, ok := rangeQuery(c, loc)
		if !ok {
			return
		}
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				writeError(c, badInput("limit must be an integer"))
				return
			}
			limit = n
		}
		items, err := agg.PopularItems(c.Request.Context(), r, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

// downloadDailyReportHandler streams the workbook instead of queueing it.
func downloadDailyReportHandler(agg *report.Aggregator, loc *time.Location, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		day, ok := dayQuery(c, loc, now)
		if !ok {
			return
		}
		r, err := agg.DailyReport(c.Request.Context(), day, report.DefaultPopularLimit)
		if err != nil {
			writeError(c, err)
			return
		}
		buf, err := render.BuildDailyReport(r)
		if err != nil {
			writeError(c, err)
			return
		}
		c.Header("Content-Disposition", "attachment; filename=daily_report_"+day.Format(ledger.DateLayout)+".xlsx")
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
	}
}

func exportDailyReportHandler(svc *checkout.Service, loc *time.Location, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		day, ok := dayQuery(c, loc, now)
		if !ok {
			return
		}
		t, err := svc.ExportDailyReport(c.Request.Context(), day)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"job_id": t.ID})
	}
}

func getJobHandler(q *render.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, ok := q.Lookup(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, httpx.HTTPError{Error: "job not found"})
			return
		}
		c.JSON(http.StatusOK, t.Status())
	}
}

//
// ---------- PARAMS ----------
//

func int64Param(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		writeError(c, badInput("%s must be an integer", name))
		return 0, false
	}
	return v, true
}

func intParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		writeError(c, badInput("%s must be an integer", name))
		return 0, false
	}
	return v, true
}

func dayQuery(c *gin.Context, loc *time.Location, now func() time.Time) (time.Time, bool) {
	raw := c.Query("date")
	if raw == "" {
		n := now().In(loc)
		return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc), true
	}
	d, err := ledger.ParseDate(raw, loc)
	if err != nil {
		writeError(c, badInput("date: %v", err))
		return time.Time{}, false
	}
	return d, true
}

func rangeQuery(c *gin.Context, loc *time.Location) (ledger.DateRange, bool) {
	var r ledger.DateRange
	for _, q := range []struct {
		key string
		dst *time.Time
	}{{"start", &r.Start}, {"end", &r.End}} {
		raw := c.Query(q.key)
		if raw == "" {
			continue
		}
		d, err := ledger.ParseDate(raw, loc)
		if err != nil {
			writeError(c, badInput("%s: %v", q.key, err))
			return ledger.DateRange{}, false
		}
		*q.dst = d
	}
	return r, true
}
