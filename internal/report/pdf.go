package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"energywatch/internal/observability/metrics"
)

// BuildPDF renders one day's report table as a PDF document.
func BuildPDF(org, date string, rows []Row) ([]byte, error) {
	started := time.Now()
	out, err := buildPDF(org, date, rows)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveReportWrite("pdf", result, time.Since(started))
	return out, err
}

func buildPDF(org, date string, rows []Row) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Alarm Activity Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Organization: %s", org))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Date: %s", date))
	pdf.Ln(8)

	widths := []float64{40, 45, 40, 55, 50, 20, 25}
	headers := reportHeader

	pdf.SetFont("Arial", "B", 9)
	for i, header := range headers {
		pdf.CellFormat(widths[i], 6, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range rows {
		pdf.CellFormat(widths[0], 6, row.Organization, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, row.Equipment, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 6, row.Alarm, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], 6, row.Rule, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[4], 6, row.Schedule, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[5], 6, row.ActiveTime, "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[6], 6, fmt.Sprintf("%.2f", row.EnergyKWh), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
