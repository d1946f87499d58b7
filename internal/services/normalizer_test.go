package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashmitsharp/receivables-api/internal/logger"
	"github.com/ashmitsharp/receivables-api/internal/models"
)

var testNow = time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newTestNormalizer() *Normalizer {
	return NewNormalizer(logger.Discard(), fixedClock)
}

// rawInvoice builds a complete sheet row; callers override individual cells
func rawInvoice(n int) models.RawRecord {
	return models.RawRecord{
		ColNumber:           models.TextCell(fmt.Sprintf("NF-%03d", n)),
		ColCompanyName:      models.TextCell(fmt.Sprintf("Cliente %d Ltda", n)),
		ColIssueDate:        models.DateCell(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		ColGrossAmount:      models.NumberCell(1000),
		ColTaxWithheld:      models.NumberCell(50),
		ColNetAmount:        models.NumberCell(950),
		ColRegion:           models.TextCell("SP"),
		ColCity:             models.TextCell("São Paulo"),
		ColTaxID:            models.TextCell("12345678000195"),
		ColPaymentStatus:    models.TextCell("Pago"),
		ColPaymentDate:      models.EmptyCell(),
		ColDaysToPay:        models.EmptyCell(),
		ColReconciledStatus: models.TextCell(models.StatusOnTime),
		ColReceived:         models.TextCell(models.FlagOutstanding),
		ColExpectedReceipt:  models.DateCell(time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)),
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name string
		cell models.CellValue
		want *time.Time
	}{
		{"serial number", models.NumberCell(44562), datePtr(2022, 1, 1)},
		{"serial epoch", models.NumberCell(25569), datePtr(1970, 1, 1)},
		{"zero serial is empty", models.NumberCell(0), nil},
		{"date passthrough", models.DateCell(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)), datePtr(2024, 1, 15)},
		{"iso text", models.TextCell("2024-01-15"), datePtr(2024, 1, 15)},
		{"iso text with spaces", models.TextCell(" 2024-01-15 "), datePtr(2024, 1, 15)},
		{"us text", models.TextCell("01/15/2024"), datePtr(2024, 1, 15)},
		{"rfc3339 text", models.TextCell("2024-01-15T00:00:00Z"), datePtr(2024, 1, 15)},
		{"garbage", models.TextCell("not a date"), nil},
		{"empty text", models.TextCell(""), nil},
		{"empty cell", models.EmptyCell(), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDate(tt.cell)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name string
		cell models.CellValue
		want string
	}{
		{"number passthrough", models.NumberCell(1500.5), "1500.5"},
		{"currency text", models.TextCell("R$ 1,500.00"), "1500"},
		{"comma decimal misreads", models.TextCell("1.234,56"), "1.23456"},
		{"negative", models.TextCell("-250"), "-250"},
		{"stops at second sign", models.TextCell("12-34"), "12"},
		{"trailing dot", models.TextCell("5."), "5"},
		{"leading dot", models.TextCell(".75"), "0.75"},
		{"letters only", models.TextCell("abc"), "0"},
		{"lone minus", models.TextCell("-"), "0"},
		{"empty", models.EmptyCell(), "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := decimal.RequireFromString(tt.want)
			got := ParseAmount(tt.cell)
			assert.True(t, want.Equal(got), "want %s, got %s", want, got)
		})
	}
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "ACME", CleanText(models.TextCell("  ACME \t")))
	assert.Equal(t, "42", CleanText(models.NumberCell(42)))
	assert.Equal(t, "", CleanText(models.NumberCell(0)))
	assert.Equal(t, "", CleanText(models.EmptyCell()))
}

func TestCleanTaxID(t *testing.T) {
	tests := []struct {
		name string
		cell models.CellValue
		want string
	}{
		{"bare digits", models.TextCell("12345678000195"), "12.345.678/0001-95"},
		{"already punctuated", models.TextCell("12.345.678/0001-95"), "12.345.678/0001-95"},
		{"numeric cell", models.NumberCell(12345678000195), "12.345.678/0001-95"},
		{"too short", models.TextCell("123.456"), "123456"},
		{"extra digits kept", models.TextCell("123456780001951"), "12.345.678/0001-951"},
		{"empty", models.EmptyCell(), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanTaxID(tt.cell))
		})
	}
}

func TestNormalize_MapsColumns(t *testing.T) {
	row := rawInvoice(1)
	row[ColDaysToPay] = models.NumberCell(12.6)
	row[ColCompanyName] = models.TextCell("  Alpha Ltda ")

	invoices, diag, err := newTestNormalizer().Normalize([]models.RawRecord{row})
	require.NoError(t, err)
	require.Len(t, invoices, 1)

	inv := invoices[0]
	assert.Equal(t, 0, inv.ID)
	assert.Equal(t, "NF-001", inv.Number)
	assert.Equal(t, "Alpha Ltda", inv.CompanyName)
	assert.Equal(t, "12.345.678/0001-95", inv.TaxID)
	assert.True(t, decimal.NewFromInt(1000).Equal(inv.GrossAmount))
	assert.True(t, decimal.NewFromInt(50).Equal(inv.TaxWithheld))
	assert.True(t, decimal.NewFromInt(950).Equal(inv.NetAmount))
	assert.Equal(t, "SP", inv.Region)
	assert.Equal(t, "São Paulo", inv.City)
	assert.Equal(t, models.StatusOnTime, inv.ReconciledStatus)
	assert.Nil(t, inv.PaymentDate)
	require.NotNil(t, inv.DaysToPay)
	assert.Equal(t, 13, *inv.DaysToPay)
	assert.Equal(t, 30, inv.DaysOpen)
	assert.Equal(t, models.Bucket0To30, inv.AgingBucket)
	assert.Equal(t, "2024-03", inv.IssueMonth)

	assert.Equal(t, 1, diag.TotalRows)
	assert.Equal(t, 1, diag.ValidRows)
	assert.Empty(t, diag.DroppedRows)
	assert.Empty(t, diag.MissingFields)
}

func TestNormalize_DropsMalformedRow(t *testing.T) {
	raw := make([]models.RawRecord, 10)
	for i := range raw {
		raw[i] = rawInvoice(i + 1)
	}
	raw[2][ColGrossAmount] = models.ErrorCell("#REF!")

	invoices, diag, err := newTestNormalizer().Normalize(raw)
	require.NoError(t, err)

	assert.Len(t, invoices, 9)
	assert.Equal(t, 10, diag.TotalRows)
	assert.Equal(t, 9, diag.ValidRows)
	require.Len(t, diag.DroppedRows, 1)
	assert.Equal(t, 3, diag.DroppedRows[0].Row)
	assert.Contains(t, diag.DroppedRows[0].Reason, "#REF!")

	for _, inv := range invoices {
		assert.NotEqual(t, 2, inv.ID)
	}
	assert.Equal(t, 3, invoices[2].ID)
}

func TestNormalize_ErrorInOptionalColumnKeepsRow(t *testing.T) {
	broken := rawInvoice(2)
	broken[ColExpectedReceipt] = models.ErrorCell("#N/A")
	broken[ColTaxWithheld] = models.ErrorCell("#REF!")

	invoices, diag, err := newTestNormalizer().Normalize([]models.RawRecord{rawInvoice(1), broken})
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	assert.Empty(t, diag.DroppedRows)
	assert.Empty(t, diag.MissingFields)

	inv := invoices[1]
	assert.Nil(t, inv.ExpectedReceiptDate)
	assert.True(t, inv.TaxWithheld.IsZero())
	assert.False(t, inv.GrossAmount.IsZero())

	require.Len(t, diag.CellWarnings, 2)
	columns := []string{diag.CellWarnings[0].Column, diag.CellWarnings[1].Column}
	assert.ElementsMatch(t, []string{ColExpectedReceipt, ColTaxWithheld}, columns)
	for _, w := range diag.CellWarnings {
		assert.Equal(t, 2, w.Row)
		assert.Equal(t, 1, w.RecordID)
	}
}

func TestNormalize_ErrorInUnmappedColumnIsIgnored(t *testing.T) {
	row := rawInvoice(1)
	row["Observações"] = models.ErrorCell("#DIV/0!")

	invoices, diag, err := newTestNormalizer().Normalize([]models.RawRecord{row})
	require.NoError(t, err)
	assert.Len(t, invoices, 1)
	assert.Empty(t, diag.DroppedRows)
}

func TestNormalize_AgingBoundaries(t *testing.T) {
	thirty := rawInvoice(1)
	thirty[ColIssueDate] = models.DateCell(testNow.AddDate(0, 0, -30))

	thirtyOne := rawInvoice(2)
	thirtyOne[ColIssueDate] = models.DateCell(testNow.AddDate(0, 0, -31))

	received := rawInvoice(3)
	received[ColIssueDate] = models.DateCell(testNow.AddDate(0, 0, -200))
	received[ColReceived] = models.TextCell(" Recebido ")

	invoices, _, err := newTestNormalizer().Normalize([]models.RawRecord{thirty, thirtyOne, received})
	require.NoError(t, err)
	require.Len(t, invoices, 3)

	assert.Equal(t, 30, invoices[0].DaysOpen)
	assert.Equal(t, models.Bucket0To30, invoices[0].AgingBucket)
	assert.Equal(t, 31, invoices[1].DaysOpen)
	assert.Equal(t, models.Bucket31To60, invoices[1].AgingBucket)
	assert.Equal(t, 0, invoices[2].DaysOpen)
	assert.Equal(t, models.Bucket0To30, invoices[2].AgingBucket)
}

func TestNormalize_DecomposedHeaders(t *testing.T) {
	row := rawInvoice(1)
	delete(row, ColNumber)
	row["Nu\u0301mero"] = models.TextCell("NF-999")

	invoices, _, err := newTestNormalizer().Normalize([]models.RawRecord{row})
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, "NF-999", invoices[0].Number)
}

func TestNormalize_ReportsMissingFields(t *testing.T) {
	row := rawInvoice(1)
	row[ColGrossAmount] = models.TextCell("  ")
	row[ColIssueDate] = models.TextCell("sem data")

	invoices, diag, err := newTestNormalizer().Normalize([]models.RawRecord{rawInvoice(0), row})
	require.NoError(t, err)
	assert.Len(t, invoices, 2)

	require.Len(t, diag.MissingFields, 1)
	issue := diag.MissingFields[0]
	assert.Equal(t, 2, issue.Row)
	assert.Equal(t, 1, issue.RecordID)
	assert.Equal(t, []string{FieldGrossAmount, FieldIssueDate}, issue.Fields)

	assert.True(t, invoices[1].GrossAmount.IsZero())
	assert.Equal(t, "", invoices[1].IssueMonth)
}

func TestNormalize_NoValidRows(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		invoices, diag, err := newTestNormalizer().Normalize(nil)
		assert.ErrorIs(t, err, ErrNoValidRows)
		assert.Nil(t, invoices)
		assert.Equal(t, 0, diag.TotalRows)
	})

	t.Run("every row malformed", func(t *testing.T) {
		a := rawInvoice(1)
		a[ColIssueDate] = models.ErrorCell("#VALUE!")
		b := rawInvoice(2)
		b[ColNetAmount] = models.ErrorCell("#N/A")

		_, diag, err := newTestNormalizer().Normalize([]models.RawRecord{a, b})
		assert.ErrorIs(t, err, ErrNoValidRows)
		assert.Len(t, diag.DroppedRows, 2)
	})
}
