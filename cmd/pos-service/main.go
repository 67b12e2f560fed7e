package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/MikeMC777/cafe-pos/internal/catalog"
	"github.com/MikeMC777/cafe-pos/internal/checkout"
	"github.com/MikeMC777/cafe-pos/internal/config"
	"github.com/MikeMC777/cafe-pos/internal/httpx"
	"github.com/MikeMC777/cafe-pos/internal/ledger"
	"github.com/MikeMC777/cafe-pos/internal/logging"
	"github.com/MikeMC777/cafe-pos/internal/money"
	"github.com/MikeMC777/cafe-pos/internal/pgmigrate"
	"github.com/MikeMC777/cafe-pos/internal/render"
	"github.com/MikeMC777/cafe-pos/internal/report"
	"github.com/MikeMC777/cafe-pos/internal/sqlitestore"
)

const usage = "usage: pos-service [serve|migrate|seed]"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cmd, cfg, logger); err != nil {
		logger.Fatal("pos-service failed", zap.String("cmd", cmd), zap.Error(err))
	}
}

func run(ctx context.Context, cmd string, cfg config.Config, log *zap.Logger) error {
	switch cmd {
	case "serve", "migrate", "seed":
	default:
		return errors.New(usage)
	}
	log.Info("config loaded", cfg.Fields()...)

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	if err := b.migrate(ctx, log); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	switch cmd {
	case "migrate":
		log.Info("migrations applied", zap.String("store", cfg.Store))
		return nil
	case "seed":
		seeded, err := b.seeder.Seed(ctx, catalog.DefaultMenu)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		log.Info("seed finished", zap.Bool("inserted", seeded))
		return nil
	}
	return serve(ctx, cfg, b, log)
}

// backend is one storage choice behind the three repositories.
type backend struct {
	catalog catalog.Repository
	seeder  catalog.Seeder
	ledger  ledger.Repository
	report  report.Repository
	migrate func(ctx context.Context, log *zap.Logger) error
	ping    func(ctx context.Context) error
	close   func()
}

func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	if cfg.Store == config.StorePostgres {
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		cat := catalog.NewPGRepo(pool)
		return &backend{
			catalog: cat,
			seeder:  cat,
			ledger:  ledger.NewPGRepo(pool, cfg.Location),
			report:  report.NewPGRepo(pool, cfg.Location),
			migrate: func(ctx context.Context, log *zap.Logger) error { return pgmigrate.Apply(ctx, pool, log) },
			ping:    pool.Ping,
			close:   pool.Close,
		}, nil
	}

	if err := os.MkdirAll(dirOf(cfg.SQLitePath), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite dir: %w", err)
	}
	store, err := sqlitestore.Open(cfg.SQLitePath, cfg.Location)
	if err != nil {
		return nil, err
	}
	return &backend{
		catalog: store,
		seeder:  store,
		ledger:  store,
		report:  store,
		// Open has already applied the embedded migrations.
		migrate: func(context.Context, *zap.Logger) error { return nil },
		ping:    store.Ping,
		close:   func() { _ = store.Close() },
	}, nil
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if os.IsPathSeparator(path[i]) {
			return path[:i]
		}
	}
	return "."
}

// app holds what the handlers need.
type app struct {
	catalog  catalog.Repository
	ledger   *ledger.Ledger
	agg      *report.Aggregator
	checkout *checkout.Service
	queue    *render.Queue
	counter  *counter
	loc      *time.Location
	now      func() time.Time
	ping     func(ctx context.Context) error
	log      *zap.Logger
}

func newApp(cfg config.Config, b *backend, log *zap.Logger) *app {
	l := ledger.New(b.ledger, ledger.Config{
		TaxRate:        cfg.TaxRate,
		DefaultCashier: cfg.CashierName,
		Location:       cfg.Location,
		MaxAttempts:    cfg.CommitRetries,
	}, log.Named("ledger"))
	agg := report.NewAggregator(b.report)
	q := render.NewQueue(cfg.RenderWorkers, cfg.RenderQueueSize, log.Named("render"))
	receipts := &render.ReceiptWriter{
		Dir:     cfg.ReceiptsDir,
		TaxRate: cfg.TaxRate,
		Money:   money.NewFormatter(cfg.DisplayLang, cfg.CurrencySymbol),
	}
	reports := &render.ReportWriter{Dir: cfg.ReportsDir}

	return &app{
		catalog:  b.catalog,
		ledger:   l,
		agg:      agg,
		checkout: checkout.NewService(l, agg, q, receipts, reports, log.Named("checkout")),
		queue:    q,
		counter:  newCounter(cfg.TaxRate),
		loc:      cfg.Location,
		now:      time.Now,
		ping:     b.ping,
		log:      log,
	}
}

func newRouter(a *app) *gin.Engine {
	r := gin.New()
	r.Use(httpx.RequestID(), httpx.Logger(a.log), httpx.Recovery(a.log))

	r.GET("/healthz", healthzHandler(a.ping))

	r.GET("/categories", listCategoriesHandler(a.catalog))
	r.GET("/menu-items", listMenuItemsHandler(a.catalog))
	r.GET("/menu-items/:id", getMenuItemHandler(a.catalog))

	r.GET("/cart", getCartHandler(a.counter))
	r.POST("/cart/items", addCartItemHandler(a.catalog, a.counter))
	r.PUT("/cart/lines/:index", setCartLineHandler(a.counter))
	r.DELETE("/cart/lines/:index", removeCartLineHandler(a.counter))
	r.DELETE("/cart", clearCartHandler(a.counter))

	r.POST("/checkout", checkoutHandler(a.checkout, a.counter))

	r.GET("/transactions", listTransactionsHandler(a.ledger, a.loc))
	r.GET("/transactions/:id", getTransactionHandler(a.ledger))

	r.GET("/reports/daily", dailySummaryHandler(a.agg, a.loc, a.now))
	r.GET("/reports/daily.xlsx", downloadDailyReportHandler(a.agg, a.loc, a.now))
	r.POST("/reports/daily/export", exportDailyReportHandler(a.checkout, a.loc, a.now))
	r.GET("/reports/popular", popularItemsHandler(a.agg, a.loc))
	r.GET("/jobs/:id", getJobHandler(a.queue))

	return r
}

func serve(ctx context.Context, cfg config.Config, b *backend, log *zap.Logger) error {
	a := newApp(cfg, b, log)
	defer func() {
		if err := a.queue.Close(); err != nil {
			log.Warn("render queue close", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(a),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("pos-service listening", zap.String("addr", cfg.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
