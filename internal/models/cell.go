package models

import (
	"strconv"
	"time"
)

// CellKind identifies which member of CellValue is populated
type CellKind int

const (
	CellEmpty CellKind = iota
	CellNumber
	CellText
	CellDate
	CellError // spreadsheet error literal such as #REF! or #DIV/0!
)

func (k CellKind) String() string {
	switch k {
	case CellEmpty:
		return "empty"
	case CellNumber:
		return "number"
	case CellText:
		return "text"
	case CellDate:
		return "date"
	case CellError:
		return "error"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// CellValue is a single spreadsheet cell resolved at the workbook boundary
type CellValue struct {
	Kind   CellKind
	Number float64
	Text   string
	Date   time.Time
}

// RawRecord maps a spreadsheet header to the cell found under it in one row
type RawRecord map[string]CellValue

func EmptyCell() CellValue               { return CellValue{Kind: CellEmpty} }
func NumberCell(n float64) CellValue     { return CellValue{Kind: CellNumber, Number: n} }
func TextCell(s string) CellValue        { return CellValue{Kind: CellText, Text: s} }
func DateCell(t time.Time) CellValue     { return CellValue{Kind: CellDate, Date: t} }
func ErrorCell(literal string) CellValue { return CellValue{Kind: CellError, Text: literal} }

// IsFalsy reports whether the cell would be treated as "no value" by the
// dashboard: empty cells, zero numbers, empty text and zero dates.
func (c CellValue) IsFalsy() bool {
	switch c.Kind {
	case CellEmpty:
		return true
	case CellNumber:
		return c.Number == 0
	case CellText:
		return c.Text == ""
	case CellDate:
		return c.Date.IsZero()
	default:
		return false
	}
}

// String renders the cell the way it would appear when coerced to text
func (c CellValue) String() string {
	switch c.Kind {
	case CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case CellText, CellError:
		return c.Text
	case CellDate:
		return c.Date.Format(time.RFC3339)
	default:
		return ""
	}
}
