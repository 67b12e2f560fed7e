package render

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/MikeMC777/cafe-pos/internal/ledger"
	"github.com/MikeMC777/cafe-pos/internal/report"
)

const (
	SheetSummary = "Ringkasan"
	SheetPopular = "Menu Terlaris"
)

// ReportWriter writes daily report workbooks into Dir.
type ReportWriter struct {
	Dir string
}

// Write saves r as daily_report_<yyyy-mm-dd>.xlsx and returns the path.
func (w *ReportWriter) Write(r report.DailyReport) (string, error) {
	buf, err := BuildDailyReport(r)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("report dir: %w", err)
	}
	path := filepath.Join(w.Dir, "daily_report_"+r.Summary.Date.Format(ledger.DateLayout)+".xlsx")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// BuildDailyReport renders r as an xlsx workbook with a summary sheet and a
// popular-items sheet.
func BuildDailyReport(r report.DailyReport) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 3})
	if err != nil {
		return nil, fmt.Errorf("money style: %w", err)
	}

	writeRow := func(sheet string, row int, values ...any) error {
		for i, v := range values {
			cell, err := excelize.CoordinatesToCellName(i+1, row)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
		return nil
	}

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, err
	}
	s := r.Summary
	total, _ := s.TotalSales.Float64()
	avg, _ := s.AverageTransaction.Float64()
	rows := [][]any{
		{"Laporan Harian", s.Date.Format(ledger.DateLayout)},
		{"Jumlah Transaksi", s.TransactionCount},
		{"Total Penjualan", total},
		{"Rata-rata Transaksi", avg},
	}
	for i, row := range rows {
		if err := writeRow(SheetSummary, i+1, row...); err != nil {
			return nil, fmt.Errorf("summary sheet: %w", err)
		}
	}
	_ = f.SetCellStyle(SheetSummary, "A1", "A4", headerStyle)
	_ = f.SetCellStyle(SheetSummary, "B3", "B4", moneyStyle)
	_ = f.SetColWidth(SheetSummary, "A", "A", 22)

	if _, err := f.NewSheet(SheetPopular); err != nil {
		return nil, err
	}
	headers := []any{"No", "Item", "Harga", "Jumlah Terjual", "Pendapatan"}
	if err := writeRow(SheetPopular, 1, headers...); err != nil {
		return nil, fmt.Errorf("popular sheet: %w", err)
	}
	_ = f.SetCellStyle(SheetPopular, "A1", "E1", headerStyle)
	for i, p := range r.Popular {
		price, _ := p.UnitPrice.Float64()
		revenue, _ := p.TotalRevenue.Float64()
		if err := writeRow(SheetPopular, i+2, i+1, p.Name, price, p.TotalQuantity, revenue); err != nil {
			return nil, fmt.Errorf("popular sheet: %w", err)
		}
	}
	if len(r.Popular) > 0 {
		last := len(r.Popular) + 1
		_ = f.SetCellStyle(SheetPopular, "C2", fmt.Sprintf("C%d", last), moneyStyle)
		_ = f.SetCellStyle(SheetPopular, "E2", fmt.Sprintf("E%d", last), moneyStyle)
	}
	_ = f.SetColWidth(SheetPopular, "B", "B", 24)
	_ = f.AutoFilter(SheetPopular, "A1:E1", []excelize.AutoFilterOptions{})
	_ = f.SetPanes(SheetPopular, &excelize.Panes{Freeze: true, Split: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf, nil
}
