package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reconciled payment outcomes as written by the source spreadsheet
const (
	StatusOnTime = "Pago no Prazo"
	StatusLate   = "Pago com Atraso"
	StatusEarly  = "Pago Antecipado"
	StatusUnpaid = "Não Pago"
)

// Values of the "Recebido" column
const (
	FlagReceived    = "Recebido"
	FlagOutstanding = "Em aberto"
)

// Aging buckets, lowest first
const (
	Bucket0To30  = "0-30"
	Bucket31To60 = "31-60"
	Bucket61To90 = "61-90"
	Bucket90Plus = "90+"

	NotInformed = "Não informado"
	MonthLayout = "2006-01"
)

// AgingBuckets lists every bucket in display order
var AgingBuckets = []string{Bucket0To30, Bucket31To60, Bucket61To90, Bucket90Plus}

// Invoice is one normalized row of the receivables spreadsheet
type Invoice struct {
	ID                  int             `json:"id"` // data-row position in the source sheet
	Number              string          `json:"number"`
	CompanyName         string          `json:"companyName"`
	TaxID               string          `json:"taxId"`
	IssueDate           *time.Time      `json:"issueDate"`
	PaymentDate         *time.Time      `json:"paymentDate"`
	ExpectedReceiptDate *time.Time      `json:"expectedReceiptDate"`
	GrossAmount         decimal.Decimal `json:"grossAmount"`
	TaxWithheld         decimal.Decimal `json:"taxWithheld"`
	NetAmount           decimal.Decimal `json:"netAmount"`
	PaymentStatusRaw    string          `json:"paymentStatusRaw"`
	ReconciledStatus    string          `json:"reconciledStatus"`
	ReceivedFlag        string          `json:"receivedFlag"`
	Region              string          `json:"region"`
	City                string          `json:"city"`
	DaysToPay           *int            `json:"daysToPay"`
	DaysOpen            int             `json:"daysOpen"`
	AgingBucket         string          `json:"agingBucket"`
	IssueMonth          string          `json:"issueMonth"`
}

// IsReceived reports whether the invoice has been paid
func (i Invoice) IsReceived() bool { return i.ReceivedFlag == FlagReceived }

// IsOutstanding reports whether the invoice is explicitly marked as open
func (i Invoice) IsOutstanding() bool { return i.ReceivedFlag == FlagOutstanding }

// Diagnostics collects the non-fatal findings of a load
type Diagnostics struct {
	TotalRows     int                  `json:"totalRows"`
	ValidRows     int                  `json:"validRows"`
	DroppedRows   []RowIssue           `json:"droppedRows"`
	MissingFields []MissingFieldsIssue `json:"missingFields"`
	CellWarnings  []CellIssue          `json:"cellWarnings"`
}

// RowIssue explains why a sheet row was left out of the dataset.
// Row is 1-based over the data rows (the header row is not counted).
type RowIssue struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// CellIssue flags a cell of a kept record that was read as empty
type CellIssue struct {
	Row      int    `json:"row"`
	RecordID int    `json:"recordId"`
	Column   string `json:"column"`
	Reason   string `json:"reason"`
}

// MissingFieldsIssue flags a kept record that lacks required fields
type MissingFieldsIssue struct {
	Row      int      `json:"row"`
	RecordID int      `json:"recordId"`
	Fields   []string `json:"fields"`
}
