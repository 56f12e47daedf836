package report

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/xuri/excelize/v2"

	"energywatch/internal/observability/metrics"
)

const summarySheet = "Summary"

var reportHeader = []string{
	"Organization", "Equipment", "Alarm", "Alarm Rule", "Schedule",
	"Active Time, HH:mm", "Energy consumed, kWh",
}

// WriteOrgReport writes one day's table into the organization's report
// workbook under a Report_<date> sheet, replacing that sheet when the day is
// re-run. Other days' sheets in the workbook are untouched.
func WriteOrgReport(path, date string, rows []Row) error {
	started := time.Now()
	err := writeOrgReport(path, date, rows)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveReportWrite("xlsx", result, time.Since(started))
	return err
}

func writeOrgReport(path, date string, rows []Row) error {
	sheet := "Report_" + date
	f, created, err := openWorkbook(path, sheet)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := writeTable(f, sheet, reportHeader, rowsToCells(rows, "")); err != nil {
		return err
	}
	if created {
		return f.SaveAs(path)
	}
	return f.Save()
}

// UpdateSummary merges one day's rows into the rolling cross-day summary
// workbook, keyed by (date, organization): existing rows for the same key
// are dropped before the new ones are appended. The totals row never enters
// the summary.
func UpdateSummary(path, date, org string, rows []Row) error {
	started := time.Now()
	err := updateSummary(path, date, org, rows)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveReportWrite("summary_xlsx", result, time.Since(started))
	return err
}

func updateSummary(path, date, org string, rows []Row) error {
	existing, err := ReadSummary(path)
	if err != nil {
		return err
	}
	var kept [][]any
	for _, cells := range existing {
		if len(cells) >= 2 && cells[0] == date && cells[1] == org {
			continue
		}
		row := make([]any, len(cells))
		for j, cell := range cells {
			row[j] = cell
		}
		kept = append(kept, row)
	}
	for _, row := range rows {
		if row.Equipment == SummaryEquipment {
			continue
		}
		kept = append(kept, rowCells(row, date))
	}

	f, created, err := openWorkbook(path, summarySheet)
	if err != nil {
		return err
	}
	defer f.Close()

	header := append([]string{"Date"}, reportHeader...)
	if err := writeTable(f, summarySheet, header, kept); err != nil {
		return err
	}
	if created {
		return f.SaveAs(path)
	}
	return f.Save()
}

// ReadSummary loads the summary workbook's data rows. Only a missing
// workbook or sheet reads as empty; a workbook that exists but cannot be
// opened is an error, never an empty history.
func ReadSummary(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("report: opening summary workbook: %w", err)
	}
	defer f.Close()
	rows, err := f.GetRows(summarySheet)
	if err != nil {
		var missing excelize.ErrSheetNotExist
		if errors.As(err, &missing) {
			return nil, nil
		}
		return nil, fmt.Errorf("report: reading summary workbook: %w", err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}
	return rows[1:], nil
}

// openWorkbook opens path with sheet recreated empty, or builds a fresh
// workbook whose only sheet is sheet when path does not exist. An existing
// file that fails to open propagates its error so a corrupt workbook is
// never overwritten. Recreation renames the stale sheet first so the
// workbook never drops to zero sheets mid-replace.
func openWorkbook(path, sheet string) (*excelize.File, bool, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, false, fmt.Errorf("report: opening workbook: %w", err)
		}
		f = excelize.NewFile()
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return nil, false, err
		}
		return f, true, nil
	}
	if idx, _ := f.GetSheetIndex(sheet); idx != -1 {
		stale := sheet + "_stale"
		if err := f.SetSheetName(sheet, stale); err != nil {
			return nil, false, err
		}
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, false, err
		}
		if err := f.DeleteSheet(stale); err != nil {
			return nil, false, err
		}
	} else if _, err := f.NewSheet(sheet); err != nil {
		return nil, false, err
	}
	return f, false, nil
}

// writeTable fills a sheet: styled header row, data rows, report column
// widths (identity columns wide, value columns narrower).
func writeTable(f *excelize.File, sheet string, header []string, rows [][]any) error {
	headerCells := make([]any, len(header))
	for i, h := range header {
		headerCells[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerCells); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := row
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C0C0C0"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
			WrapText:   true,
		},
	})
	if err != nil {
		return err
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastHeader, style); err != nil {
		return err
	}

	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", "C", 20); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "D", lastCol, 15)
}

func rowsToCells(rows []Row, date string) [][]any {
	out := make([][]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowCells(row, date))
	}
	return out
}

// rowCells renders one row; a non-empty date prepends a Date column.
func rowCells(row Row, date string) []any {
	cells := []any{
		row.Organization, row.Equipment, row.Alarm, row.Rule, row.Schedule,
		row.ActiveTime, row.EnergyKWh,
	}
	if date != "" {
		cells = append([]any{date}, cells...)
	}
	return cells
}
