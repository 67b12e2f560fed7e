package report

import (
	"time"

	"github.com/shopspring/decimal"
)

// Totals is the raw aggregate a repository returns for a window.
// Sum is zero, never null, when Count is zero.
type Totals struct {
	Count int
	Sum   decimal.Decimal
}

type DailySummary struct {
	Date               time.Time       `json:"date"`
	TransactionCount   int             `json:"transaction_count"`
	TotalSales         decimal.Decimal `json:"total_sales"`
	AverageTransaction decimal.Decimal `json:"average_transaction"`
}

// PopularItem ranks one menu item by quantity sold. UnitPrice is the
// item's current catalog price.
type PopularItem struct {
	MenuItemID    int64           `json:"menu_item_id"`
	Name          string          `json:"name"`
	UnitPrice     decimal.Decimal `json:"price"`
	TotalQuantity int64           `json:"total_quantity"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
}

// DailyReport is what the report renderer receives.
type DailyReport struct {
	Summary DailySummary  `json:"summary"`
	Popular []PopularItem `json:"popular_items"`
}
