package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/MikeMC777/cafe-pos/internal/catalog"
	"github.com/MikeMC777/cafe-pos/internal/config"
	"github.com/MikeMC777/cafe-pos/internal/render"
	"github.com/MikeMC777/cafe-pos/internal/report"
	"github.com/MikeMC777/cafe-pos/internal/sqlitestore"
	"github.com/MikeMC777/cafe-pos/internal/storage"
)

func init() { gin.SetMode(gin.TestMode) }

//
// ---------- STUBS & FAKES ----------
//

// downCatalog answers every call as if the database were gone.
type downCatalog struct{}

var errDown = errors.New("connection refused")

func (downCatalog) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	return nil, storage.Unavailable("list categories", errDown)
}

func (downCatalog) ListMenuItems(ctx context.Context, categoryID *int64) ([]catalog.MenuItem, error) {
	return nil, storage.Unavailable("list menu items", errDown)
}

func (downCatalog) GetMenuItem(ctx context.Context, id int64) (*catalog.MenuItem, error) {
	return nil, storage.Unavailable("get menu item", errDown)
}

var testMenu = []catalog.SeedCategory{
	{Name: "Minuman", Items: []catalog.SeedItem{
		{Name: "Espresso", Price: decimal.NewFromInt(15000)},
		{Name: "Cappuccino", Price: decimal.NewFromInt(22000), Description: "with foam"},
	}},
	{Name: "Camilan", Items: []catalog.SeedItem{
		{Name: "Croissant", Price: decimal.NewFromInt(15000)},
	}},
}

type testServer struct {
	t      *testing.T
	app    *app
	router *gin.Engine
	items  map[string]catalog.MenuItem
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	store, err := sqlitestore.Open(filepath.Join(dir, "pos.db"), time.UTC)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := store.Seed(context.Background(), testMenu); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cfg := config.Config{
		Store:           config.StoreSQLite,
		TaxRate:         decimal.RequireFromString("0.10"),
		CashierName:     "Kasir",
		CommitRetries:   1,
		Location:        time.UTC,
		DisplayLang:     "id",
		CurrencySymbol:  "Rp",
		ReceiptsDir:     filepath.Join(dir, "receipts"),
		ReportsDir:      filepath.Join(dir, "reports"),
		RenderWorkers:   1,
		RenderQueueSize: 8,
	}
	b := &backend{catalog: store, seeder: store, ledger: store, report: store, ping: store.Ping}
	a := newApp(cfg, b, zap.NewNop())
	t.Cleanup(func() { _ = a.queue.Close() })

	items, err := store.ListMenuItems(context.Background(), nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	byName := map[string]catalog.MenuItem{}
	for _, it := range items {
		byName[it.Name] = it
	}
	return &testServer{t: t, app: a, router: newRouter(a), items: byName}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) add(name string, qty int) *httptest.ResponseRecorder {
	s.t.Helper()
	it, ok := s.items[name]
	if !ok {
		s.t.Fatalf("unknown item %q", name)
	}
	return s.do(http.MethodPost, "/cart/items", gin.H{"menu_item_id": it.ID, "quantity": qty})
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode: %v body=%s", err, rec.Body.String())
	}
	return v
}

//
// ---------- TESTS ----------
//

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID")
	}
}

func TestMenuItemsFilterAndLookup(t *testing.T) {
	s := newTestServer(t)

	cats := decode[[]catalog.Category](t, s.do(http.MethodGet, "/categories", nil))
	if len(cats) != 2 || cats[0].Name != "Camilan" {
		t.Fatalf("categories=%+v", cats)
	}

	rec := s.do(http.MethodGet, "/menu-items?category_id="+itoa(cats[0].ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	items := decode[[]catalog.MenuItem](t, rec)
	if len(items) != 1 || items[0].Name != "Croissant" {
		t.Fatalf("items=%+v", items)
	}

	if rec := s.do(http.MethodGet, "/menu-items?category_id=abc", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec := s.do(http.MethodGet, "/menu-items/9999", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	item := decode[catalog.MenuItem](t, s.do(http.MethodGet, "/menu-items/"+itoa(s.items["Cappuccino"].ID), nil))
	if item.Description != "with foam" || !item.Price.Equal(decimal.NewFromInt(22000)) {
		t.Fatalf("item=%+v", item)
	}
}

func TestCartMergesAndTotals(t *testing.T) {
	s := newTestServer(t)

	s.add("Espresso", 1)
	s.add("Cappuccino", 1)
	rec := s.add("Espresso", 1)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	v := decode[cartView](t, rec)
	if len(v.Lines) != 2 || v.Lines[0].Name != "Espresso" || v.Lines[0].Quantity != 2 {
		t.Fatalf("lines=%+v", v.Lines)
	}
	if !v.Totals.Subtotal.Equal(decimal.NewFromInt(52000)) || !v.Totals.Total.Equal(decimal.NewFromInt(57200)) {
		t.Fatalf("totals=%+v", v.Totals)
	}

	if rec := s.do(http.MethodPut, "/cart/lines/1", gin.H{"quantity": 0}); rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec := s.do(http.MethodDelete, "/cart/lines/5", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	v = decode[cartView](t, s.do(http.MethodDelete, "/cart/lines/0", nil))
	if len(v.Lines) != 1 || v.Lines[0].Name != "Cappuccino" {
		t.Fatalf("after remove=%+v", v.Lines)
	}
}

func TestCheckoutFlow(t *testing.T) {
	s := newTestServer(t)
	s.add("Espresso", 2)
	s.add("Cappuccino", 1)

	rec := s.do(http.MethodPost, "/checkout", gin.H{"payment_method": "Cash", "customer_name": "Budi"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	out := decode[checkoutResponse](t, rec)
	if !out.Transaction.Final.Equal(decimal.NewFromInt(57200)) || len(out.Items) != 2 {
		t.Fatalf("out=%+v", out)
	}
	if out.ReceiptJobID == "" {
		t.Fatal("no receipt job queued")
	}

	v := decode[cartView](t, s.do(http.MethodGet, "/cart", nil))
	if v.State != "committed" {
		t.Fatalf("state=%s", v.State)
	}
	if rec := s.add("Croissant", 1); rec.Code != http.StatusBadRequest {
		t.Fatalf("add after checkout status=%d body=%s", rec.Code, rec.Body.String())
	}

	v = decode[cartView](t, s.do(http.MethodDelete, "/cart", nil))
	if v.State != "active" || len(v.Lines) != 0 {
		t.Fatalf("after clear=%+v", v)
	}

	got := decode[struct {
		Transaction struct {
			ID int64 `json:"id"`
		} `json:"transaction"`
	}](t, s.do(http.MethodGet, "/transactions/"+itoa(out.Transaction.ID), nil))
	if got.Transaction.ID != out.Transaction.ID {
		t.Fatalf("got=%+v", got)
	}
	if rec := s.do(http.MethodGet, "/transactions/9999", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	sum := decode[report.DailySummary](t, s.do(http.MethodGet, "/reports/daily", nil))
	if sum.TransactionCount != 1 || !sum.TotalSales.Equal(decimal.NewFromInt(57200)) {
		t.Fatalf("summary=%+v", sum)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/checkout", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	txs := decode[[]json.RawMessage](t, s.do(http.MethodGet, "/transactions", nil))
	if len(txs) != 0 {
		t.Fatalf("transactions=%d", len(txs))
	}
}

func TestCheckoutRejectsUnknownPayment(t *testing.T) {
	s := newTestServer(t)
	s.add("Espresso", 1)
	rec := s.do(http.MethodPost, "/checkout", gin.H{"payment_method": "Barter"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if v := decode[cartView](t, s.do(http.MethodGet, "/cart", nil)); v.State != "active" || len(v.Lines) != 1 {
		t.Fatalf("cart=%+v", v)
	}
}

func TestTransactionsRejectBadRange(t *testing.T) {
	s := newTestServer(t)
	for _, q := range []string{"?start=2026-03-05&end=2026-03-01", "?start=yesterday"} {
		if rec := s.do(http.MethodGet, "/transactions"+q, nil); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s status=%d body=%s", q, rec.Code, rec.Body.String())
		}
	}
}

func TestDailySummaryOnEmptyDay(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/reports/daily?date=2020-01-01", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	sum := decode[report.DailySummary](t, rec)
	if sum.TransactionCount != 0 || !sum.TotalSales.IsZero() || !sum.AverageTransaction.IsZero() {
		t.Fatalf("summary=%+v", sum)
	}
	pop := decode[[]report.PopularItem](t, s.do(http.MethodGet, "/reports/popular?start=2020-01-01&end=2020-01-01", nil))
	if len(pop) != 0 {
		t.Fatalf("popular=%+v", pop)
	}
}

func TestDownloadDailyReport(t *testing.T) {
	s := newTestServer(t)
	s.add("Croissant", 3)
	if rec := s.do(http.MethodPost, "/checkout", nil); rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec := s.do(http.MethodGet, "/reports/daily.xlsx", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	name, err := f.GetCellValue(render.SheetPopular, "B2")
	if err != nil || name != "Croissant" {
		t.Fatalf("B2=%q err=%v", name, err)
	}
}

func TestExportDailyReportJob(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/reports/daily/export?date=2026-03-01", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	id := decode[map[string]string](t, rec)["job_id"]

	ticket, ok := s.app.queue.Lookup(id)
	if !ok {
		t.Fatalf("job %s not found", id)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := ticket.Wait(ctx); err != nil {
		t.Fatalf("job: %v", err)
	}

	st := decode[render.Status](t, s.do(http.MethodGet, "/jobs/"+id, nil))
	if st.State != render.StateDone || filepath.Base(st.Path) != "daily_report_2026-03-01.xlsx" {
		t.Fatalf("status=%+v", st)
	}
	if rec := s.do(http.MethodGet, "/jobs/nope", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestStoreUnavailableIs503(t *testing.T) {
	s := newTestServer(t)
	s.app.catalog = downCatalog{}
	router := newRouter(s.app)

	for _, path := range []string{"/categories", "/menu-items"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s status=%d body=%s", path, rec.Code, rec.Body.String())
		}
	}
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
