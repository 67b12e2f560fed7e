package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/cafe-pos/internal/ledger"
	"github.com/MikeMC777/cafe-pos/internal/money"
)

const receiptWidth = 40

// DefaultHeader is printed at the top of every receipt.
var DefaultHeader = []string{"CAFE POS SYSTEM", "Jl. Contoh No. 123, Kota", "Telp: (021) 12345678"}

// ReceiptWriter writes plain-text receipts into Dir.
type ReceiptWriter struct {
	Dir     string
	Header  []string
	TaxRate decimal.Decimal
	Money   *money.Formatter
	// Now stamps the file name; nil means time.Now.
	Now func() time.Time
}

// Write renders t and returns the path of the new file,
// receipt_<id>_<yyyymmdd_hhmmss>.txt.
func (w *ReceiptWriter) Write(t *ledger.Transaction, items []ledger.Item) (string, error) {
	if t == nil {
		return "", fmt.Errorf("receipt: transaction is required")
	}
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("receipt dir: %w", err)
	}
	name := fmt.Sprintf("receipt_%d_%s.txt", t.ID, now().Format("20060102_150405"))
	path := filepath.Join(w.Dir, name)
	if err := os.WriteFile(path, []byte(w.Format(t, items)), 0o644); err != nil {
		return "", fmt.Errorf("write receipt: %w", err)
	}
	return path, nil
}

// Format returns the receipt text.
func (w *ReceiptWriter) Format(t *ledger.Transaction, items []ledger.Item) string {
	f := w.Money
	if f == nil {
		f = money.NewFormatter("id", "Rp")
	}
	header := w.Header
	if header == nil {
		header = DefaultHeader
	}
	rule := strings.Repeat("=", receiptWidth)
	thin := strings.Repeat("-", receiptWidth)

	var lines []string
	lines = append(lines, rule)
	for _, h := range header {
		lines = append(lines, center(h))
	}
	lines = append(lines, rule)

	cashier := t.CashierName
	if cashier == "" {
		cashier = "Kasir"
	}
	customer := t.CustomerName
	if customer == "" {
		customer = "-"
	}
	lines = append(lines,
		fmt.Sprintf("No. Transaksi: #%d", t.ID),
		fmt.Sprintf("Tanggal:       %s", t.Date.Format("02/01/2006 15:04")),
		fmt.Sprintf("Kasir:         %s", cashier),
		fmt.Sprintf("Pelanggan:     %s", customer),
		fmt.Sprintf("Metode Bayar:  %s", t.PaymentMethod),
		thin,
	)

	for _, it := range items {
		name := it.ItemName
		if r := []rune(name); len(r) > 20 {
			name = string(r[:20])
		}
		lines = append(lines, fmt.Sprintf("%d x %s @ %s", it.Quantity, name, f.Format(it.UnitPrice)))
		lines = append(lines, amountRow("", f.Format(it.Total)))
		if it.Note != "" {
			lines = append(lines, "  ("+it.Note+")")
		}
	}

	lines = append(lines, thin)
	lines = append(lines, amountRow("Subtotal:", f.Format(t.Subtotal)))
	lines = append(lines, amountRow(fmt.Sprintf("Pajak (%s%%):", w.TaxRate.Shift(2).String()), f.Format(t.Tax)))
	if t.Discount.IsPositive() {
		lines = append(lines, amountRow("Diskon:", "-"+f.Format(t.Discount)))
	}
	lines = append(lines, thin)
	lines = append(lines, amountRow("TOTAL:", f.Format(t.Final)))
	lines = append(lines, rule)
	lines = append(lines, center("Terima kasih atas kunjungan Anda!"), center("Selamat menikmati!"))
	lines = append(lines, rule)

	return strings.Join(lines, "\n") + "\n"
}

func amountRow(label, amount string) string {
	pad := receiptWidth - len(label) - len(amount)
	if pad < 1 {
		pad = 1
	}
	return label + strings.Repeat(" ", pad) + amount
}

func center(s string) string {
	pad := (receiptWidth - len(s)) / 2
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + s
}
