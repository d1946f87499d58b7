package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ashmitsharp/receivables-api/internal/models"
	"github.com/ashmitsharp/receivables-api/internal/services"
)

type company struct {
	name   string
	taxID  string
	region string
	city   string
}

var companies = []company{
	{"Alpha Tecnologia Ltda", "12345678000195", "SP", "São Paulo"},
	{"Beta Serviços SA", "98765432000110", "RJ", "Rio de Janeiro"},
	{"Gama Engenharia Ltda", "11222333000181", "MG", "Belo Horizonte"},
	{"Delta Logística ME", "44555666000177", "PR", "Curitiba"},
	{"Épsilon Consultoria", "77888999000133", "SP", "Campinas"},
	{"Zeta Comércio Ltda", "22333444000155", "RS", "Porto Alegre"},
	{"Ômega Saúde SA", "55666777000199", "BA", "Salvador"},
}

func main() {
	out := flag.String("out", "testdata/notas_fiscais_exemplo.xlsx", "output workbook path")
	rows := flag.Int("rows", 120, "number of invoices")
	seed := flag.Int64("seed", 42, "random seed")
	asOf := flag.String("as-of", "2024-06-30", "reference date (YYYY-MM-DD)")
	flag.Parse()

	ref, err := time.Parse("2006-01-02", *asOf)
	if err != nil {
		log.Fatalf("invalid -as-of: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		log.Fatalf("create output dir: %v", err)
	}
	if err := generate(*out, *rows, rand.New(rand.NewSource(*seed)), ref); err != nil {
		log.Fatalf("generate: %v", err)
	}
	fmt.Printf("✅ Wrote %d invoices to %s\n", *rows, *out)
}

func generate(path string, n int, rng *rand.Rand, ref time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := services.InvoiceSheetName
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	// Headers
	for i, h := range services.InvoiceColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		row := invoiceRow(i, rng, ref)
		for colIdx, val := range row {
			if val == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, i+2)
			f.SetCellValue(sheet, cell, val)
			if _, ok := val.(time.Time); ok {
				f.SetCellStyle(sheet, cell, cell, dateStyle)
			}
		}
	}

	f.SetColWidth(sheet, "B", "B", 28)
	f.SetColWidth(sheet, "C", "C", 12)
	f.SetColWidth(sheet, "I", "I", 18)

	return f.SaveAs(path)
}

// invoiceRow returns the cells of one invoice in InvoiceColumns order
func invoiceRow(i int, rng *rand.Rand, ref time.Time) []interface{} {
	c := companies[rng.Intn(len(companies))]
	issued := ref.AddDate(0, 0, -rng.Intn(180))
	gross := float64(500+rng.Intn(20000)) + float64(rng.Intn(100))/100
	tax := gross * 0.05
	net := gross - tax
	expected := issued.AddDate(0, 0, 30)

	var (
		statusRaw  = "Aberto"
		reconciled = models.StatusUnpaid
		received   = models.FlagOutstanding
		paidAt     interface{}
		daysToPay  interface{}
	)

	// roughly 70% paid, split between early, on time and late
	if rng.Float64() < 0.7 {
		days := 5 + rng.Intn(60)
		paid := issued.AddDate(0, 0, days)
		if !paid.After(ref) {
			statusRaw = "Pago"
			received = models.FlagReceived
			paidAt = paid
			daysToPay = days
			switch {
			case days < 25:
				reconciled = models.StatusEarly
			case days <= 30:
				reconciled = models.StatusOnTime
			default:
				reconciled = models.StatusLate
			}
		}
	}

	return []interface{}{
		fmt.Sprintf("NF-%05d", i+1),
		c.name,
		issued,
		gross,
		tax,
		net,
		c.region,
		c.city,
		c.taxID,
		statusRaw,
		paidAt,
		daysToPay,
		reconciled,
		received,
		expected,
	}
}
