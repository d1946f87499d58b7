package handlers

import (
	"bytes"
	"context"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/ashmitsharp/receivables-api/internal/models"
	"github.com/ashmitsharp/receivables-api/internal/services"
	"github.com/ashmitsharp/receivables-api/internal/utils"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// DashboardService is the read side of the loaded dataset
type DashboardService interface {
	Dataset() (*services.Dataset, error)
	Summary() (services.Summary, error)
	Statistics() (services.Statistics, error)
	Records(filtered bool) ([]models.Invoice, error)
	Snapshot(ctx context.Context) (*services.DashboardSnapshot, error)
	KPIs(ctx context.Context) ([]services.KPIValue, error)
	KPI(id string) (services.KPIValue, error)
	KPIDefinitions() []services.KPIDefinition
	Charts(ctx context.Context) (services.ChartSet, error)
	ExportKPIsCSV(ctx context.Context, w io.Writer) error
	ExportReport(ctx context.Context) ([]byte, error)
}

// DashboardHandler serves the dataset, KPIs, charts and exports
type DashboardHandler struct {
	dashboard DashboardService
}

func NewDashboardHandler(dashboard DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// GetDataset handles GET /v1/dataset
func (h *DashboardHandler) GetDataset(c fiber.Ctx) error {
	dataset, err := h.dashboard.Dataset()
	if err != nil {
		return serviceError(err)
	}
	summary, err := h.dashboard.Summary()
	if err != nil {
		return serviceError(err)
	}
	stats, err := h.dashboard.Statistics()
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(fiber.Map{
		"dataset":    dataset,
		"summary":    summary,
		"statistics": stats,
	})
}

// GetRecords handles GET /v1/records
// Query params: view (filtered|all, default filtered), page, page_size
func (h *DashboardHandler) GetRecords(c fiber.Ctx) error {
	// 1. Parse query parameters
	view := c.Query("view", "filtered")
	if view != "filtered" && view != "all" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "view must be filtered or all",
		})
	}

	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "page must be a positive integer",
		})
	}
	pageSize, err := strconv.Atoi(c.Query("page_size", strconv.Itoa(defaultPageSize)))
	if err != nil || pageSize < 1 || pageSize > maxPageSize {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "page_size must be between 1 and " + strconv.Itoa(maxPageSize),
		})
	}

	// 2. Fetch records
	records, err := h.dashboard.Records(view == "filtered")
	if err != nil {
		return serviceError(err)
	}

	// 3. Slice the requested page
	total := len(records)
	start := total
	if page-1 < total/pageSize+1 {
		start = min((page-1)*pageSize, total)
	}
	end := min(start+pageSize, total)

	return utils.PaginatedResponse(c, records[start:end], page, pageSize, total)
}

// GetKPIs handles GET /v1/kpis
func (h *DashboardHandler) GetKPIs(c fiber.Ctx) error {
	values, err := h.dashboard.KPIs(c.Context())
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(fiber.Map{"kpis": values})
}

// GetKPI handles GET /v1/kpis/:id
func (h *DashboardHandler) GetKPI(c fiber.Ctx) error {
	value, err := h.dashboard.KPI(c.Params("id"))
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(value)
}

// GetKPIDefinitions handles GET /v1/kpi-definitions
func (h *DashboardHandler) GetKPIDefinitions(c fiber.Ctx) error {
	defs := h.dashboard.KPIDefinitions()

	out := make([]fiber.Map, 0, len(defs))
	for _, def := range defs {
		out = append(out, fiber.Map{
			"id":     def.ID,
			"title":  def.Title,
			"format": def.Format,
		})
	}
	return c.JSON(fiber.Map{"definitions": out})
}

// GetCharts handles GET /v1/charts
func (h *DashboardHandler) GetCharts(c fiber.Ctx) error {
	charts, err := h.dashboard.Charts(c.Context())
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(charts)
}

// GetDashboard handles GET /v1/dashboard
func (h *DashboardHandler) GetDashboard(c fiber.Ctx) error {
	snapshot, err := h.dashboard.Snapshot(c.Context())
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(snapshot)
}

// ExportKPIsCSV handles GET /v1/export/kpis.csv
func (h *DashboardHandler) ExportKPIsCSV(c fiber.Ctx) error {
	var buf bytes.Buffer
	if err := h.dashboard.ExportKPIsCSV(c.Context(), &buf); err != nil {
		return serviceError(err)
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="kpis.csv"`)
	return c.Send(buf.Bytes())
}

// ExportReport handles GET /v1/export/report.xlsx
func (h *DashboardHandler) ExportReport(c fiber.Ctx) error {
	data, err := h.dashboard.ExportReport(c.Context())
	if err != nil {
		return serviceError(err)
	}

	c.Set(fiber.HeaderContentType, services.MimeXLSX)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="relatorio-recebiveis.xlsx"`)
	return c.Send(data)
}
