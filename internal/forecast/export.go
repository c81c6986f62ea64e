package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Forecast"

var exportHeaders = []string{
	"Material Code",
	"Material",
	"Unit",
	"Purchases",
	"Purchases (12m)",
	"Avg Days Between Orders",
	"Monthly Consumption",
	"Last Purchase",
	"Predicted Next Order",
	"Consistency",
	"Recommendation",
	"Reason",
}

// ExportXLSX renders the current report as a workbook.
func (s *Service) ExportXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()
	report, err := s.Report(ctx)
	if err != nil {
		return nil, err
	}
	buf, err := WriteXLSX(report)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "forecast.export.xlsx.ok",
		slog.Int("rows", len(report.Forecasts)),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return buf, nil
}

// WriteXLSX writes one row per forecast under a header row, followed by materials without
// enough history.
func WriteXLSX(report Report) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}
	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(exportSheet, cell, h)
	}

	row := 2
	write := func(col int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(exportSheet, cell, v)
	}
	for _, fc := range report.Forecasts {
		consumption, _ := fc.MonthlyConsumption.Float64()
		write(1, fc.Code)
		write(2, fc.Name)
		write(3, fc.Unit)
		write(4, fc.EventCount)
		write(5, fc.EventsLast12Months)
		write(6, fc.AverageLeadTimeDays)
		write(7, consumption)
		write(8, fc.LastPurchase.Format("2006-01-02"))
		write(9, fc.PredictedNextOrder.Format("2006-01-02"))
		write(10, fc.ConsistencyScore)
		write(11, string(fc.Recommendation))
		write(12, fc.Reason)
		row++
	}
	for _, m := range report.Insufficient {
		write(1, m.Code)
		write(2, m.Name)
		write(4, m.Events)
		write(12, "insufficient purchase history")
		row++
	}

	_ = f.SetColWidth(exportSheet, "A", "A", 16)
	_ = f.SetColWidth(exportSheet, "B", "B", 32)
	_ = f.SetColWidth(exportSheet, "C", "G", 14)
	_ = f.SetColWidth(exportSheet, "H", "K", 18)
	_ = f.SetColWidth(exportSheet, "L", "L", 56)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
