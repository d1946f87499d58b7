package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/ashmitsharp/receivables-api/internal/models"
	"github.com/ashmitsharp/receivables-api/internal/services"
	"github.com/ashmitsharp/receivables-api/internal/utils"
)

// FilterController edits and applies the dashboard filters
type FilterController interface {
	FilterState() models.FilterState
	FiltersPending() bool
	UpdateFilters(state models.FilterState)
	ApplyFilters(ctx context.Context) error
	ResetFilters(ctx context.Context)
	FilterOptions() (models.FilterOptions, error)
	Summary() (services.Summary, error)
}

// FiltersHandler handles the /v1/filters routes
type FiltersHandler struct {
	filters FilterController
}

func NewFiltersHandler(filters FilterController) *FiltersHandler {
	return &FiltersHandler{filters: filters}
}

// FilterRequest is the PUT /v1/filters body. Dates are YYYY-MM-DD or RFC 3339.
type FilterRequest struct {
	DateStart      string   `json:"dateStart"`
	DateEnd        string   `json:"dateEnd"`
	Region         string   `json:"region"`
	CounterpartyID string   `json:"counterpartyId"`
	Statuses       []string `json:"statuses"`
}

// toState validates the request and converts it to a filter state
func (r FilterRequest) toState() (models.FilterState, error) {
	start, err := parseFilterDate("dateStart", r.DateStart)
	if err != nil {
		return models.FilterState{}, err
	}
	end, err := parseFilterDate("dateEnd", r.DateEnd)
	if err != nil {
		return models.FilterState{}, err
	}
	if start != nil && end != nil && end.Before(*start) {
		return models.FilterState{}, fmt.Errorf("dateEnd must not be before dateStart")
	}

	var statuses []string
	for _, s := range r.Statuses {
		if s = strings.TrimSpace(s); s != "" {
			statuses = append(statuses, s)
		}
	}

	return models.FilterState{
		DateStart:      start,
		DateEnd:        end,
		Region:         strings.TrimSpace(r.Region),
		CounterpartyID: strings.TrimSpace(r.CounterpartyID),
		Statuses:       statuses,
	}, nil
}

func parseFilterDate(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("%s must be YYYY-MM-DD or RFC 3339", field)
	}
	t = t.UTC()
	return &t, nil
}

func (h *FiltersHandler) stateResponse(pending bool) fiber.Map {
	state := h.filters.FilterState()
	return fiber.Map{
		"filters":        state,
		"active_filters": state.ActiveCount(),
		"pending":        pending,
	}
}

// GetFilters handles GET /v1/filters
func (h *FiltersHandler) GetFilters(c fiber.Ctx) error {
	return c.JSON(h.stateResponse(h.filters.FiltersPending()))
}

// UpdateFilters handles PUT /v1/filters. The new state is applied after the
// debounce period.
func (h *FiltersHandler) UpdateFilters(c fiber.Ctx) error {
	// 1. Parse request body
	var req FilterRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	// 2. Validate
	state, err := req.toState()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	// 3. Schedule
	h.filters.UpdateFilters(state)

	return c.Status(fiber.StatusAccepted).JSON(h.stateResponse(true))
}

// ApplyFilters handles POST /v1/filters/apply
func (h *FiltersHandler) ApplyFilters(c fiber.Ctx) error {
	if err := h.filters.ApplyFilters(c.Context()); err != nil {
		return serviceError(err)
	}
	summary, err := h.filters.Summary()
	if err != nil {
		return serviceError(err)
	}

	resp := h.stateResponse(false)
	resp["summary"] = summary
	return c.JSON(resp)
}

// ResetFilters handles DELETE /v1/filters
func (h *FiltersHandler) ResetFilters(c fiber.Ctx) error {
	h.filters.ResetFilters(c.Context())
	return utils.SuccessResponse(c, h.stateResponse(false))
}

// GetOptions handles GET /v1/filters/options
func (h *FiltersHandler) GetOptions(c fiber.Ctx) error {
	options, err := h.filters.FilterOptions()
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(options)
}
