package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is the immutable header of a completed sale.
// Final == Subtotal + Tax - Discount.
type Transaction struct {
	ID            int64           `json:"id"`
	CheckoutID    string          `json:"checkout_id"`
	Date          time.Time       `json:"transaction_date"`
	Subtotal      decimal.Decimal `json:"total_amount"`
	Tax           decimal.Decimal `json:"tax_amount"`
	Discount      decimal.Decimal `json:"discount_amount"`
	Final         decimal.Decimal `json:"final_amount"`
	PaymentMethod string          `json:"payment_method"`
	CustomerName  string          `json:"customer_name,omitempty"`
	CashierName   string          `json:"cashier_name,omitempty"`
}

// Item is one sold line. UnitPrice is the price at sale time.
type Item struct {
	ID            int64           `json:"id"`
	TransactionID int64           `json:"transaction_id"`
	MenuItemID    int64           `json:"menu_item_id"`
	ItemName      string          `json:"item_name,omitempty"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Total         decimal.Decimal `json:"total_price"`
	Note          string          `json:"notes,omitempty"`
}

const (
	PaymentCash       = "Cash"
	PaymentCreditCard = "Credit Card"
	PaymentDebitCard  = "Debit Card"
	PaymentEWallet    = "E-Wallet"
)

// PaymentMethods lists the accepted payment methods in display order.
var PaymentMethods = []string{PaymentCash, PaymentCreditCard, PaymentDebitCard, PaymentEWallet}

// Payment carries the checkout-time details that are not cart lines.
type Payment struct {
	// CheckoutID identifies one logical checkout across retries.
	// Empty means a new id is generated.
	CheckoutID   string
	Method       string
	CustomerName string
	CashierName  string
	Discount     decimal.Decimal
}
