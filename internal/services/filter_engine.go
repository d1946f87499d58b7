package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ashmitsharp/receivables-api/internal/models"
)

// DefaultFilterDebounce is the quiet period before a filter change is applied
const DefaultFilterDebounce = 300 * time.Millisecond

const filterStateSchema = `{
	"type": "object",
	"properties": {
		"dateStart": {"type": ["string", "null"], "format": "date-time"},
		"dateEnd": {"type": ["string", "null"], "format": "date-time"},
		"region": {"type": "string"},
		"counterpartyId": {"type": "string"},
		"statuses": {"type": ["array", "null"], "items": {"type": "string"}}
	}
}`

// FilterEngine holds the active filter state and derives the filtered view
// from the full dataset. State changes are applied after a debounce period
// and persisted to the preference store.
type FilterEngine struct {
	mu      sync.Mutex
	applyMu sync.Mutex
	state   models.FilterState

	store     PreferenceStore
	schema    *jsonschema.Schema
	debouncer *Debouncer
	logger    *slog.Logger

	// source returns the full dataset; ok is false when nothing is loaded
	source func() (records []models.Invoice, ok bool)
	// onApply receives every newly derived view
	onApply func(state models.FilterState, view []models.Invoice)
}

// NewFilterEngine creates a filter engine. source and onApply must not call
// back into the engine.
func NewFilterEngine(
	store PreferenceStore,
	debounce time.Duration,
	source func() ([]models.Invoice, bool),
	onApply func(models.FilterState, []models.Invoice),
	logger *slog.Logger,
) (*FilterEngine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	schema, err := compileFilterStateSchema()
	if err != nil {
		return nil, err
	}

	e := &FilterEngine{
		store:   store,
		schema:  schema,
		logger:  logger,
		source:  source,
		onApply: onApply,
	}
	e.debouncer = NewDebouncer(debounce, func() {
		e.apply(context.Background())
	})
	return e, nil
}

func compileFilterStateSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource("filter-state.json", strings.NewReader(filterStateSchema)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("filter-state.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// State returns a copy of the current filter state
func (e *FilterEngine) State() models.FilterState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// ActiveCount returns how many filter categories are in use
func (e *FilterEngine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.ActiveCount()
}

// Pending reports whether a debounced apply is waiting
func (e *FilterEngine) Pending() bool {
	return e.debouncer.Pending()
}

// Update replaces the filter state and schedules a debounced apply
func (e *FilterEngine) Update(state models.FilterState) {
	e.mu.Lock()
	e.state = state.Clone()
	e.mu.Unlock()

	e.debouncer.Trigger()
}

// Apply cancels any pending apply and derives the view now. With no dataset
// loaded the state is only saved and nil is returned.
func (e *FilterEngine) Apply(ctx context.Context) []models.Invoice {
	e.debouncer.Cancel()
	return e.apply(ctx)
}

// Reset clears every filter, removes the saved state and applies
func (e *FilterEngine) Reset(ctx context.Context) []models.Invoice {
	e.debouncer.Cancel()

	e.mu.Lock()
	e.state = models.FilterState{}
	e.mu.Unlock()

	if err := e.store.Delete(ctx, FiltersPreferenceKey); err != nil {
		e.logger.Warn("failed to clear saved filters", "error", err)
	}
	return e.apply(ctx)
}

// Restore loads the saved filter state. Unreadable or invalid saved state
// is discarded and the engine starts with no filters. A change still waiting
// on the debounce is newer than anything saved and is kept instead.
func (e *FilterEngine) Restore(ctx context.Context) models.FilterState {
	if e.debouncer.Cancel() {
		state := e.State()
		e.persist(ctx, state)
		return state
	}

	state := e.loadSaved(ctx)

	e.mu.Lock()
	e.state = state
	e.mu.Unlock()

	return state.Clone()
}

func (e *FilterEngine) loadSaved(ctx context.Context) models.FilterState {
	raw, ok, err := e.store.Get(ctx, FiltersPreferenceKey)
	if err != nil {
		e.logger.Warn("failed to read saved filters", "error", err)
		return models.FilterState{}
	}
	if !ok || raw == "" {
		return models.FilterState{}
	}

	state, err := e.decodeState(raw)
	if err != nil {
		e.logger.Warn("discarding saved filters", "error", err)
		if err := e.store.Delete(ctx, FiltersPreferenceKey); err != nil {
			e.logger.Warn("failed to clear saved filters", "error", err)
		}
		return models.FilterState{}
	}

	e.logger.Info("saved filters restored", "active", state.ActiveCount())
	return state
}

func (e *FilterEngine) decodeState(raw string) (models.FilterState, error) {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return models.FilterState{}, fmt.Errorf("unmarshal saved filters: %w", err)
	}
	if err := e.schema.Validate(doc); err != nil {
		return models.FilterState{}, fmt.Errorf("saved filters do not match schema: %w", err)
	}

	var state models.FilterState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return models.FilterState{}, fmt.Errorf("decode saved filters: %w", err)
	}
	return state, nil
}

func (e *FilterEngine) apply(ctx context.Context) []models.Invoice {
	e.applyMu.Lock()
	defer e.applyMu.Unlock()

	state := e.State()
	records, ok := e.source()
	if !ok {
		e.persist(ctx, state)
		return nil
	}

	view := ApplyFilters(records, state)
	e.persist(ctx, state)

	if e.onApply != nil {
		e.onApply(state, view)
	}

	e.logger.Debug("filters applied", "matched", len(view), "total", len(records), "active", state.ActiveCount())
	return view
}

// persist saves state; an empty state clears the slot instead
func (e *FilterEngine) persist(ctx context.Context, state models.FilterState) {
	if state.IsEmpty() {
		if err := e.store.Delete(ctx, FiltersPreferenceKey); err != nil {
			e.logger.Warn("failed to clear saved filters", "error", err)
		}
		return
	}

	data, err := json.Marshal(state)
	if err != nil {
		e.logger.Warn("failed to encode filters", "error", err)
		return
	}
	if err := e.store.Set(ctx, FiltersPreferenceKey, string(data)); err != nil {
		e.logger.Warn("failed to save filters", "error", err)
	}
}

// Close runs any pending apply so the last change is saved
func (e *FilterEngine) Close() {
	e.debouncer.Flush()
}
