package services

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"

	"github.com/ashmitsharp/receivables-api/internal/models"
)

// InvoiceSheetName is the sheet read when present; otherwise the first sheet is used
const InvoiceSheetName = "Notas Fiscais"

// Workbook is the raw content of the sheet that was read
type Workbook struct {
	Sheet   string
	Headers []string
	Records []models.RawRecord
}

// Parser reads invoice workbooks (.xlsx and legacy .xls)
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new workbook parser
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// ParseFile reads the invoice sheet from r. The format is picked from the
// filename extension. Any failure to open or read the workbook wraps
// ErrWorkbookUnreadable.
func (p *Parser) ParseFile(r io.Reader, filename string) (*Workbook, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return p.parseXLSX(r)
	case ".xls":
		return p.parseXLS(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Ext(filename))
	}
}

func (p *Parser) parseXLSX(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkbookUnreadable, err)
	}
	defer f.Close()

	sheet := InvoiceSheetName
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: workbook has no sheets", ErrWorkbookUnreadable)
		}
		sheet = sheets[0]
		p.logger.Warn("invoice sheet not found, using first sheet", "expected", InvoiceSheetName, "sheet", sheet)
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkbookUnreadable, err)
	}

	wb := &Workbook{Sheet: sheet, Records: []models.RawRecord{}}
	if len(rows) == 0 {
		return wb, nil
	}
	wb.Headers = rows[0]

	for r := 1; r < len(rows); r++ {
		record := make(models.RawRecord)
		for c, raw := range rows[r] {
			if c >= len(wb.Headers) || wb.Headers[c] == "" || raw == "" {
				continue
			}
			cellName, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				continue
			}
			cellType, err := f.GetCellType(sheet, cellName)
			if err != nil {
				cellType = excelize.CellTypeUnset
			}
			record[wb.Headers[c]] = xlsxCell(cellType, raw)
		}
		// Blank rows are skipped
		if len(record) == 0 {
			continue
		}
		wb.Records = append(wb.Records, record)
	}

	p.logger.Debug("workbook parsed", "format", "xlsx", "sheet", sheet, "rows", len(wb.Records))
	return wb, nil
}

// xlsxCell resolves a raw cell value using the cell type recorded in the sheet
func xlsxCell(cellType excelize.CellType, raw string) models.CellValue {
	switch cellType {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
		return models.TextCell(raw)
	case excelize.CellTypeBool:
		if raw == "1" || strings.EqualFold(raw, "true") {
			return models.TextCell("true")
		}
		return models.TextCell("false")
	case excelize.CellTypeError:
		return models.ErrorCell(raw)
	case excelize.CellTypeDate:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return models.DateCell(t.UTC())
			}
		}
		return models.TextCell(raw)
	default:
		return looseCell(raw)
	}
}

// looseCell treats numeric-looking text as a number
func looseCell(raw string) models.CellValue {
	if raw == "" {
		return models.EmptyCell()
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return models.NumberCell(n)
	}
	return models.TextCell(raw)
}

// parseXLS reads a BIFF workbook. The reader library only opens files, so
// the upload is spooled to a temporary file first.
func (p *Parser) parseXLS(r io.Reader) (*Workbook, error) {
	tempFile, err := os.CreateTemp("", "upload-*.xls")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tempFile.Name())
	defer tempFile.Close()

	if _, err := io.Copy(tempFile, r); err != nil {
		return nil, fmt.Errorf("failed to spool workbook: %w", err)
	}
	tempFile.Close()

	workbook, err := openXLS(tempFile.Name())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkbookUnreadable, err)
	}

	sheetIndex := -1
	names := make([]string, 0, workbook.GetNumberSheets())
	for i := 0; i < workbook.GetNumberSheets(); i++ {
		sheet, err := workbook.GetSheet(i)
		if err != nil || sheet == nil {
			names = append(names, "")
			continue
		}
		names = append(names, sheet.GetName())
		if sheet.GetName() == InvoiceSheetName && sheetIndex < 0 {
			sheetIndex = i
		}
	}
	if sheetIndex < 0 {
		if len(names) == 0 {
			return nil, fmt.Errorf("%w: workbook has no sheets", ErrWorkbookUnreadable)
		}
		sheetIndex = 0
		p.logger.Warn("invoice sheet not found, using first sheet", "expected", InvoiceSheetName, "sheet", names[0])
	}

	sheet, err := workbook.GetSheet(sheetIndex)
	if err != nil || sheet == nil {
		return nil, fmt.Errorf("%w: cannot read sheet %d", ErrWorkbookUnreadable, sheetIndex)
	}

	var grid [][]string
	for i := 0; i <= int(sheet.GetNumberRows()); i++ {
		row, err := sheet.GetRow(i)
		if err != nil || row == nil {
			grid = append(grid, nil)
			continue
		}
		var values []string
		for _, col := range row.GetCols() {
			if col != nil {
				values = append(values, col.GetString())
			} else {
				values = append(values, "")
			}
		}
		grid = append(grid, values)
	}

	wb := &Workbook{Sheet: sheet.GetName(), Records: []models.RawRecord{}}
	if len(grid) == 0 {
		return wb, nil
	}
	wb.Headers = grid[0]

	for _, values := range grid[1:] {
		record := make(models.RawRecord)
		for c, raw := range values {
			if c >= len(wb.Headers) || wb.Headers[c] == "" || strings.TrimSpace(raw) == "" {
				continue
			}
			record[wb.Headers[c]] = looseCell(raw)
		}
		if len(record) == 0 {
			continue
		}
		wb.Records = append(wb.Records, record)
	}

	p.logger.Debug("workbook parsed", "format", "xls", "sheet", wb.Sheet, "rows", len(wb.Records))
	return wb, nil
}

// openXLS guards against panics inside the BIFF decoder on corrupt input
func openXLS(path string) (wb xls.Workbook, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("corrupt xls: %v", r)
		}
	}()
	return xls.OpenFile(path)
}

// ParseBytes is ParseFile over an in-memory upload
func (p *Parser) ParseBytes(data []byte, filename string) (*Workbook, error) {
	return p.ParseFile(bytes.NewReader(data), filename)
}
