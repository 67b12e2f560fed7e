package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// MenuItem is a purchasable catalog entry. Price keeps two minor-unit digits.
type MenuItem struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	CategoryID   int64           `json:"category_id"`
	CategoryName string          `json:"category_name"`
	Description  string          `json:"description,omitempty"`
	Available    bool            `json:"is_available"`
	CreatedAt    time.Time       `json:"created_at"`
}

// SeedCategory groups the menu inserted into an empty catalog.
type SeedCategory struct {
	Name  string
	Items []SeedItem
}

type SeedItem struct {
	Name        string
	Price       decimal.Decimal
	Description string
}
