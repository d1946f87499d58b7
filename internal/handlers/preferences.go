package handlers

import (
	"context"

	"github.com/gofiber/fiber/v3"

	"github.com/ashmitsharp/receivables-api/internal/utils"
)

// ThemeService reads and writes the theme preference
type ThemeService interface {
	Get(ctx context.Context) string
	Set(ctx context.Context, theme string) error
	Toggle(ctx context.Context) (string, error)
}

// PreferencesHandler handles the /v1/preferences routes
type PreferencesHandler struct {
	theme ThemeService
}

func NewPreferencesHandler(theme ThemeService) *PreferencesHandler {
	return &PreferencesHandler{theme: theme}
}

// ThemeRequest is the PUT /v1/preferences/theme body
type ThemeRequest struct {
	Theme string `json:"theme"`
}

// GetTheme handles GET /v1/preferences/theme
func (h *PreferencesHandler) GetTheme(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"theme": h.theme.Get(c.Context())})
}

// SetTheme handles PUT /v1/preferences/theme
func (h *PreferencesHandler) SetTheme(c fiber.Ctx) error {
	var req ThemeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if err := h.theme.Set(c.Context(), req.Theme); err != nil {
		return serviceError(err)
	}
	return utils.SuccessResponse(c, fiber.Map{"theme": req.Theme})
}

// ToggleTheme handles POST /v1/preferences/theme/toggle
func (h *PreferencesHandler) ToggleTheme(c fiber.Ctx) error {
	theme, err := h.theme.Toggle(c.Context())
	if err != nil {
		return serviceError(err)
	}
	return utils.SuccessResponse(c, fiber.Map{"theme": theme})
}
