package services

import (
	"errors"
	"fmt"

	"github.com/ashmitsharp/receivables-api/internal/models"
)

var (
	// ErrWorkbookUnreadable means the upload could not be decoded as a workbook
	ErrWorkbookUnreadable = errors.New("workbook unreadable")
	// ErrNoValidRows means every row was dropped during normalization
	ErrNoValidRows = errors.New("no valid rows found in workbook")
	// ErrUnsupportedFile means the upload is not an .xlsx or .xls file
	ErrUnsupportedFile = errors.New("unsupported file type")
	// ErrNoDataset is returned by read operations before the first successful load
	ErrNoDataset = errors.New("no dataset loaded")
	// ErrUnknownKPI is returned when a KPI id is not registered
	ErrUnknownKPI = errors.New("unknown KPI")
)

// LoadError is a fatal load failure. Nothing is installed when it is returned.
type LoadError struct {
	Filename    string
	Err         error
	Diagnostics *models.Diagnostics // set when normalization ran
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Filename, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
