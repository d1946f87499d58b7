package services

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/ashmitsharp/receivables-api/internal/models"
)

// Spreadsheet headers understood by the normalizer. Matching is exact
// (case and accents included) after NFC normalization.
const (
	ColNumber           = "Número"
	ColCompanyName      = "Razão Social"
	ColIssueDate        = "Data de Emissão"
	ColGrossAmount      = "Valor da Nota"
	ColTaxWithheld      = "ISS"
	ColNetAmount        = "Valor Líquido"
	ColRegion           = "ESTADO"
	ColCity             = "CIDADE"
	ColTaxID            = "CNPJ"
	ColPaymentStatus    = "STATUS DE PAGAMENTO"
	ColPaymentDate      = "Data de Pagamento"
	ColDaysToPay        = "Dias para Pagamento"
	ColReconciledStatus = "Status Conciliado"
	ColReceived         = "Recebido"
	ColExpectedReceipt  = "Previsão de Recebimento"
)

// InvoiceColumns lists every recognised header in sheet order
var InvoiceColumns = []string{
	ColNumber, ColCompanyName, ColIssueDate, ColGrossAmount, ColTaxWithheld,
	ColNetAmount, ColRegion, ColCity, ColTaxID, ColPaymentStatus,
	ColPaymentDate, ColDaysToPay, ColReconciledStatus, ColReceived, ColExpectedReceipt,
}

// Required fields reported by the missing-field diagnostic
const (
	FieldGrossAmount = "grossAmount"
	FieldNetAmount   = "netAmount"
	FieldIssueDate   = "issueDate"
)

// Spreadsheet serial day of 1970-01-01 in the 1900 date system
const excelUnixEpochSerial = 25569

var (
	leadingDecimal = regexp.MustCompile(`^-?(?:\d+(?:\.\d*)?|\.\d+)`)
	taxIDPattern   = regexp.MustCompile(`(\d{2})(\d{3})(\d{3})(\d{4})(\d{2})`)

	dateLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"2006/01/02",
		"01/02/2006",
		"1/2/2006",
		"01-02-2006",
		"Jan 2, 2006",
		"January 2, 2006",
		"2 Jan 2006",
		"Mon Jan 2 2006",
	}
)

// requiredColumns cannot fall back to an empty value; an error literal in
// one of them drops the row
var requiredColumns = map[string]bool{
	ColIssueDate:   true,
	ColGrossAmount: true,
	ColNetAmount:   true,
}

// Normalizer turns raw spreadsheet rows into invoices
type Normalizer struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewNormalizer creates a normalizer. now is read once per Normalize call and
// drives the days-open calculation; nil means time.Now.
func NewNormalizer(logger *slog.Logger, now func() time.Time) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Normalizer{logger: logger, now: now}
}

// Normalize converts every raw row it can. Rows that fail are dropped and
// reported in the diagnostics; only an empty result is an error.
func (n *Normalizer) Normalize(raw []models.RawRecord) ([]models.Invoice, *models.Diagnostics, error) {
	now := n.now()
	diag := &models.Diagnostics{
		TotalRows:     len(raw),
		DroppedRows:   []models.RowIssue{},
		MissingFields: []models.MissingFieldsIssue{},
		CellWarnings:  []models.CellIssue{},
	}

	invoices := make([]models.Invoice, 0, len(raw))
	for index, row := range raw {
		inv, missing, warnings, err := n.normalizeRow(index, row, now)
		if err != nil {
			n.logger.Warn("skipping row", "row", index+1, "error", err)
			diag.DroppedRows = append(diag.DroppedRows, models.RowIssue{Row: index + 1, Reason: err.Error()})
			continue
		}
		if len(missing) > 0 {
			diag.MissingFields = append(diag.MissingFields, models.MissingFieldsIssue{
				Row:      index + 1,
				RecordID: inv.ID,
				Fields:   missing,
			})
		}
		for _, w := range warnings {
			w.Row = index + 1
			w.RecordID = inv.ID
			diag.CellWarnings = append(diag.CellWarnings, w)
		}
		invoices = append(invoices, inv)
	}
	diag.ValidRows = len(invoices)

	if len(invoices) == 0 {
		return nil, diag, ErrNoValidRows
	}
	if len(diag.MissingFields) > 0 {
		n.logger.Warn("rows with missing required fields", "count", len(diag.MissingFields))
	}
	if len(diag.CellWarnings) > 0 {
		n.logger.Warn("spreadsheet errors read as empty", "count", len(diag.CellWarnings))
	}
	n.logger.Info("normalization finished", "rows", diag.TotalRows, "valid", diag.ValidRows, "dropped", len(diag.DroppedRows))

	return invoices, diag, nil
}

// normalizeRow builds one invoice. A panic anywhere in here only costs this row.
func (n *Normalizer) normalizeRow(index int, raw models.RawRecord, now time.Time) (inv models.Invoice, missing []string, warnings []models.CellIssue, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while normalizing: %v", r)
		}
	}()

	cells := make(map[string]models.CellValue, len(raw))
	for header, value := range raw {
		cells[norm.NFC.String(header)] = value
	}

	get := make(map[string]models.CellValue, len(InvoiceColumns))
	for _, header := range InvoiceColumns {
		cell, ok := cells[norm.NFC.String(header)]
		if !ok {
			cell = models.EmptyCell()
		}
		switch cell.Kind {
		case models.CellEmpty, models.CellNumber, models.CellText, models.CellDate:
		case models.CellError:
			if requiredColumns[header] {
				return inv, nil, nil, fmt.Errorf("column %q holds spreadsheet error %s", header, cell.Text)
			}
			warnings = append(warnings, models.CellIssue{
				Column: header,
				Reason: "spreadsheet error " + cell.Text + " read as empty",
			})
			cell = models.EmptyCell()
		default:
			return inv, nil, nil, fmt.Errorf("column %q: unsupported cell kind %s", header, cell.Kind)
		}
		get[header] = cell
	}

	inv.ID = index
	inv.Number = CleanText(get[ColNumber])
	inv.CompanyName = CleanText(get[ColCompanyName])
	inv.TaxID = CleanTaxID(get[ColTaxID])

	inv.IssueDate = ParseDate(get[ColIssueDate])
	inv.PaymentDate = ParseDate(get[ColPaymentDate])
	inv.ExpectedReceiptDate = ParseDate(get[ColExpectedReceipt])

	inv.GrossAmount = ParseAmount(get[ColGrossAmount])
	inv.TaxWithheld = ParseAmount(get[ColTaxWithheld])
	inv.NetAmount = ParseAmount(get[ColNetAmount])
	inv.DaysToPay = parseDays(get[ColDaysToPay])

	inv.Region = CleanText(get[ColRegion])
	inv.City = CleanText(get[ColCity])
	inv.PaymentStatusRaw = CleanText(get[ColPaymentStatus])
	inv.ReconciledStatus = CleanText(get[ColReconciledStatus])
	inv.ReceivedFlag = CleanText(get[ColReceived])

	applyDerivedFields(&inv, now)

	if isBlank(get[ColGrossAmount]) {
		missing = append(missing, FieldGrossAmount)
	}
	if isBlank(get[ColNetAmount]) {
		missing = append(missing, FieldNetAmount)
	}
	if inv.IssueDate == nil {
		missing = append(missing, FieldIssueDate)
	}

	return inv, missing, warnings, nil
}

// ParseDate converts a cell to a date. Numbers are spreadsheet serial days
// (1900 system); text is tried against a fixed set of layouts. Anything that
// does not parse becomes nil.
func ParseDate(c models.CellValue) *time.Time {
	if c.IsFalsy() {
		return nil
	}

	switch c.Kind {
	case models.CellDate:
		t := c.Date
		return &t
	case models.CellNumber:
		return serialToTime(c.Number)
	case models.CellText:
		return parseDateString(strings.TrimSpace(c.Text))
	default:
		return nil
	}
}

func serialToTime(serial float64) *time.Time {
	if math.IsNaN(serial) || math.IsInf(serial, 0) {
		return nil
	}
	ms := (serial - excelUnixEpochSerial) * 86400 * 1000
	t := time.UnixMilli(int64(ms)).UTC()
	return &t
}

func parseDateString(s string) *time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// ParseAmount converts a cell to a decimal amount. Every character other than
// digits, '.' and '-' is dropped before parsing, so "R$ 1,500.00" is 1500 but
// the comma-decimal "1.234,56" reads as 1.23456. Unparseable input is 0.
func ParseAmount(c models.CellValue) decimal.Decimal {
	if c.Kind == models.CellNumber {
		if math.IsNaN(c.Number) || math.IsInf(c.Number, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat(c.Number)
	}
	if c.IsFalsy() {
		return decimal.Zero
	}

	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, c.String())

	literal := strings.TrimSuffix(leadingDecimal.FindString(cleaned), ".")
	if literal == "" || literal == "-" {
		return decimal.Zero
	}

	amount, err := decimal.NewFromString(literal)
	if err != nil {
		return decimal.Zero
	}
	return amount
}

// parseDays reads the days-to-pay column; a blank cell stays nil
func parseDays(c models.CellValue) *int {
	if isBlank(c) {
		return nil
	}
	days := int(ParseAmount(c).Round(0).IntPart())
	return &days
}

// CleanText trims a cell rendered as text; empty and zero values become ""
func CleanText(c models.CellValue) string {
	if c.IsFalsy() {
		return ""
	}
	return strings.TrimSpace(c.String())
}

// CleanTaxID keeps only digits and punctuates the first 14 as NN.NNN.NNN/NNNN-NN.
// Shorter inputs are returned as bare digits.
func CleanTaxID(c models.CellValue) string {
	if c.IsFalsy() {
		return ""
	}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, c.String())

	loc := taxIDPattern.FindStringSubmatchIndex(digits)
	if loc == nil {
		return digits
	}
	group := func(i int) string { return digits[loc[2*i]:loc[2*i+1]] }
	formatted := fmt.Sprintf("%s.%s.%s/%s-%s", group(1), group(2), group(3), group(4), group(5))
	return digits[:loc[0]] + formatted + digits[loc[1]:]
}

func isBlank(c models.CellValue) bool {
	switch c.Kind {
	case models.CellEmpty:
		return true
	case models.CellText:
		return strings.TrimSpace(c.Text) == ""
	default:
		return false
	}
}
