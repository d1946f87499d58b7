package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ashmitsharp/receivables-api/internal/models"
)

// WriteKPIsCSV writes one line per KPI: title, raw value, formatted value
func WriteKPIsCSV(w io.Writer, values []KPIValue) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"KPI", "Valor", "Valor Formatado"}); err != nil {
		return err
	}
	for _, v := range values {
		row := []string{v.Title, strconv.FormatFloat(v.Value, 'f', -1, 64), v.FormattedValue}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Report sheet names
const (
	ReportKPISheet     = "KPIs"
	ReportRecordsSheet = "Notas Fiscais"
	ReportRegionSheet  = "Receita por UF"
	ReportMonthlySheet = "Recebido x Aberto"
)

// BuildReportXLSX renders the KPIs, the filtered invoices and the main chart
// series as a workbook
func BuildReportXLSX(values []KPIValue, charts ChartSet, records []models.Invoice) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ReportKPISheet); err != nil {
		return nil, err
	}
	for _, sheet := range []string{ReportRecordsSheet, ReportRegionSheet, ReportMonthlySheet} {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}

	// KPIs
	writeRow(f, ReportKPISheet, 1, "KPI", "Valor", "Valor Formatado")
	for i, v := range values {
		writeRow(f, ReportKPISheet, i+2, v.Title, v.Value, v.FormattedValue)
	}
	_ = f.SetColWidth(ReportKPISheet, "A", "A", 36)
	_ = f.SetColWidth(ReportKPISheet, "B", "C", 20)

	// Invoices, using the same headers the upload expects
	header := make([]any, len(InvoiceColumns))
	for i, h := range InvoiceColumns {
		header[i] = h
	}
	writeRow(f, ReportRecordsSheet, 1, header...)
	for i, inv := range records {
		writeRow(f, ReportRecordsSheet, i+2,
			inv.Number,
			inv.CompanyName,
			dateCell(inv.IssueDate),
			inv.GrossAmount.InexactFloat64(),
			inv.TaxWithheld.InexactFloat64(),
			inv.NetAmount.InexactFloat64(),
			inv.Region,
			inv.City,
			inv.TaxID,
			inv.PaymentStatusRaw,
			dateCell(inv.PaymentDate),
			daysCell(inv.DaysToPay),
			inv.ReconciledStatus,
			inv.ReceivedFlag,
			dateCell(inv.ExpectedReceiptDate),
		)
	}
	_ = f.SetColWidth(ReportRecordsSheet, "A", "A", 14)
	_ = f.SetColWidth(ReportRecordsSheet, "B", "B", 32)
	_ = f.SetColWidth(ReportRecordsSheet, "C", "F", 16)
	_ = f.SetColWidth(ReportRecordsSheet, "I", "I", 22)

	// Chart series
	writeRow(f, ReportRegionSheet, 1, "UF", "Receita Líquida")
	for i, p := range charts.RevenueByRegion {
		writeRow(f, ReportRegionSheet, i+2, p.Label, p.Value)
	}

	writeRow(f, ReportMonthlySheet, 1, "Mês", "Recebido", "Em Aberto")
	for i, p := range charts.MonthlyReceivedOutstanding {
		writeRow(f, ReportMonthlySheet, i+2, p.Label, p.Received, p.Outstanding)
	}

	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, cells ...any) {
	for col, v := range cells {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func dateCell(t *time.Time) any {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func daysCell(d *int) any {
	if d == nil {
		return ""
	}
	return *d
}
