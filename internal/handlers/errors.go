package handlers

import (
	"errors"

	"github.com/ashmitsharp/receivables-api/internal/services"
	"github.com/ashmitsharp/receivables-api/internal/utils"
)

// serviceError maps service errors onto API errors
func serviceError(err error) error {
	switch {
	case errors.Is(err, services.ErrNoDataset):
		return utils.NewConflictError("no dataset loaded; upload a workbook first")
	case errors.Is(err, services.ErrUnknownKPI):
		return utils.NewNotFoundError("KPI")
	case errors.Is(err, services.ErrUnsupportedFile):
		return utils.NewBadRequestError("unsupported file type", err.Error())
	case errors.Is(err, services.ErrWorkbookUnreadable):
		return utils.NewBadRequestError("failed to read workbook", err.Error())
	case errors.Is(err, services.ErrNoValidRows):
		var details any = err.Error()
		var loadErr *services.LoadError
		if errors.As(err, &loadErr) && loadErr.Diagnostics != nil {
			details = loadErr.Diagnostics
		}
		return utils.NewUnprocessableError("no valid rows found in workbook", details)
	case errors.Is(err, services.ErrInvalidTheme):
		return utils.NewBadRequestError(err.Error(), nil)
	default:
		return utils.NewInternalError(err)
	}
}
