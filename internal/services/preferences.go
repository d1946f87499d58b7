package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Preference slots
const (
	FiltersPreferenceKey = "dashboard-filters"
	ThemePreferenceKey   = "dashboard-theme"
)

// Themes
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// ErrInvalidTheme is returned for anything other than light or dark
var ErrInvalidTheme = errors.New("theme must be light or dark")

// PreferenceStore is a small string key/value store for UI preferences
type PreferenceStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// ThemeService reads and writes the theme slot
type ThemeService struct {
	store  PreferenceStore
	logger *slog.Logger
}

// NewThemeService creates a theme service backed by store
func NewThemeService(store PreferenceStore, logger *slog.Logger) *ThemeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ThemeService{store: store, logger: logger}
}

// Get returns the saved theme, falling back to light when the slot is
// empty, unreadable or holds an unknown value
func (s *ThemeService) Get(ctx context.Context) string {
	value, ok, err := s.store.Get(ctx, ThemePreferenceKey)
	if err != nil {
		s.logger.Warn("failed to read theme preference", "error", err)
		return ThemeLight
	}
	if !ok || (value != ThemeLight && value != ThemeDark) {
		return ThemeLight
	}
	return value
}

// Set saves theme
func (s *ThemeService) Set(ctx context.Context, theme string) error {
	if theme != ThemeLight && theme != ThemeDark {
		return fmt.Errorf("%w: %q", ErrInvalidTheme, theme)
	}
	if err := s.store.Set(ctx, ThemePreferenceKey, theme); err != nil {
		return fmt.Errorf("failed to save theme: %w", err)
	}
	return nil
}

// Toggle flips between light and dark and returns the new theme
func (s *ThemeService) Toggle(ctx context.Context) (string, error) {
	next := ThemeDark
	if s.Get(ctx) == ThemeDark {
		next = ThemeLight
	}
	if err := s.Set(ctx, next); err != nil {
		return "", err
	}
	return next, nil
}
