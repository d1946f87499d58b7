package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/ashmitsharp/receivables-api/internal/models"
)

// DefaultCacheTTL bounds how long a computed snapshot is reused
const DefaultCacheTTL = 15 * time.Minute

// Dataset is one successfully loaded workbook
type Dataset struct {
	ID          string              `json:"id"`
	SourceName  string              `json:"sourceName"`
	Sheet       string              `json:"sheet"`
	LoadedAt    time.Time           `json:"loadedAt"`
	Records     []models.Invoice    `json:"-"`
	Diagnostics *models.Diagnostics `json:"diagnostics"`
}

// Summary is the header line of the dashboard
type Summary struct {
	DatasetID       string    `json:"datasetId"`
	SourceName      string    `json:"sourceName"`
	TotalRecords    int       `json:"totalRecords"`
	FilteredRecords int       `json:"filteredRecords"`
	ActiveFilters   int       `json:"activeFilters"`
	LastUpdate      time.Time `json:"lastUpdate"`
}

// DashboardSnapshot is everything the dashboard renders for the current view
type DashboardSnapshot struct {
	DatasetID   string             `json:"datasetId"`
	ViewVersion uint64             `json:"viewVersion"`
	Filters     models.FilterState `json:"filters"`
	Summary     Summary            `json:"summary"`
	KPIs        []KPIValue         `json:"kpis"`
	Charts      ChartSet           `json:"charts"`
	GeneratedAt time.Time          `json:"generatedAt"`
}

// DashboardOptions configures a Dashboard
type DashboardOptions struct {
	Store          PreferenceStore
	FilterDebounce time.Duration
	CacheTTL       time.Duration
	Now            func() time.Time
	Logger         *slog.Logger
}

// Dashboard owns the loaded dataset, the filtered view derived from it and
// everything computed over that view. Loads are serialized; reads never
// observe a partially installed dataset.
type Dashboard struct {
	loadMu sync.Mutex

	mu          sync.RWMutex
	dataset     *Dataset
	view        []models.Invoice
	applied     models.FilterState
	viewVersion uint64

	parser     *Parser
	normalizer *Normalizer
	filters    *FilterEngine
	kpis       *KPIRegistry
	cache      *cache.Cache
	logger     *slog.Logger
	now        func() time.Time
}

// NewDashboard wires the parsing, filtering and KPI services together
func NewDashboard(opts DashboardOptions) (*Dashboard, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("preference store is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}

	d := &Dashboard{
		parser:     NewParser(opts.Logger),
		normalizer: NewNormalizer(opts.Logger, opts.Now),
		kpis:       NewKPIRegistry(opts.Now),
		cache:      cache.New(opts.CacheTTL, 2*opts.CacheTTL),
		logger:     opts.Logger,
		now:        opts.Now,
	}

	filters, err := NewFilterEngine(opts.Store, opts.FilterDebounce, d.records, d.installView, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("filter engine: %w", err)
	}
	d.filters = filters

	return d, nil
}

// records is the filter engine's source
func (d *Dashboard) records() ([]models.Invoice, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.dataset == nil {
		return nil, false
	}
	return d.dataset.Records, true
}

// installView is the filter engine's sink
func (d *Dashboard) installView(state models.FilterState, view []models.Invoice) {
	d.mu.Lock()
	d.view = view
	d.applied = state
	d.viewVersion++
	d.mu.Unlock()
}

// Load parses and normalizes a workbook and installs it as the current
// dataset. On error nothing changes. Saved filters are restored and applied
// to the new dataset.
func (d *Dashboard) Load(ctx context.Context, r io.Reader, filename string) (*Dataset, error) {
	d.loadMu.Lock()
	defer d.loadMu.Unlock()

	started := d.now()

	wb, err := d.parser.ParseFile(r, filename)
	if err != nil {
		return nil, &LoadError{Filename: filename, Err: err}
	}

	invoices, diag, err := d.normalizer.Normalize(wb.Records)
	if err != nil {
		return nil, &LoadError{Filename: filename, Err: err, Diagnostics: diag}
	}

	ds := &Dataset{
		ID:          uuid.NewString(),
		SourceName:  filename,
		Sheet:       wb.Sheet,
		LoadedAt:    d.now(),
		Records:     invoices,
		Diagnostics: diag,
	}

	d.mu.Lock()
	d.dataset = ds
	d.view = invoices
	d.applied = models.FilterState{}
	d.viewVersion++
	d.mu.Unlock()

	d.cache.Flush()

	restored := d.filters.Restore(ctx)
	d.filters.Apply(ctx)

	d.logger.Info("dataset loaded",
		"dataset", ds.ID,
		"file", filename,
		"sheet", ds.Sheet,
		"records", len(invoices),
		"dropped", len(diag.DroppedRows),
		"activeFilters", restored.ActiveCount(),
		"duration", d.now().Sub(started).String(),
	)
	return ds, nil
}

// LoadBytes is Load over an in-memory upload
func (d *Dashboard) LoadBytes(ctx context.Context, data []byte, filename string) (*Dataset, error) {
	return d.Load(ctx, bytes.NewReader(data), filename)
}

// Dataset returns the installed dataset
func (d *Dashboard) Dataset() (*Dataset, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.dataset == nil {
		return nil, ErrNoDataset
	}
	return d.dataset, nil
}

// Records returns the filtered view, or every record when filtered is false
func (d *Dashboard) Records(filtered bool) ([]models.Invoice, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.dataset == nil {
		return nil, ErrNoDataset
	}
	if filtered {
		return d.view, nil
	}
	return d.dataset.Records, nil
}

// Statistics summarizes the full dataset
func (d *Dashboard) Statistics() (Statistics, error) {
	ds, err := d.Dataset()
	if err != nil {
		return Statistics{}, err
	}

	key := "stats:" + ds.ID
	if cached, found := d.cache.Get(key); found {
		return cached.(Statistics), nil
	}
	stats := ComputeStatistics(ds.Records)
	d.cache.Set(key, stats, cache.DefaultExpiration)
	return stats, nil
}

// FilterOptions lists the values available for filtering the full dataset
func (d *Dashboard) FilterOptions() (models.FilterOptions, error) {
	ds, err := d.Dataset()
	if err != nil {
		return models.FilterOptions{}, err
	}

	key := "options:" + ds.ID
	if cached, found := d.cache.Get(key); found {
		return cached.(models.FilterOptions), nil
	}
	opts := BuildFilterOptions(ds.Records)
	d.cache.Set(key, opts, cache.DefaultExpiration)
	return opts, nil
}

// Summary reports record counts and the load time
func (d *Dashboard) Summary() (Summary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.dataset == nil {
		return Summary{}, ErrNoDataset
	}
	return d.summaryLocked(), nil
}

func (d *Dashboard) summaryLocked() Summary {
	return Summary{
		DatasetID:       d.dataset.ID,
		SourceName:      d.dataset.SourceName,
		TotalRecords:    len(d.dataset.Records),
		FilteredRecords: len(d.view),
		ActiveFilters:   d.applied.ActiveCount(),
		LastUpdate:      d.dataset.LoadedAt,
	}
}

// Snapshot computes KPIs and chart series over the current view. Results are
// cached until the dataset or the view changes.
func (d *Dashboard) Snapshot(ctx context.Context) (*DashboardSnapshot, error) {
	d.mu.RLock()
	if d.dataset == nil {
		d.mu.RUnlock()
		return nil, ErrNoDataset
	}
	view := d.view
	snap := &DashboardSnapshot{
		DatasetID:   d.dataset.ID,
		ViewVersion: d.viewVersion,
		Filters:     d.applied.Clone(),
		Summary:     d.summaryLocked(),
	}
	d.mu.RUnlock()

	key := fmt.Sprintf("snapshot:%s:%d", snap.DatasetID, snap.ViewVersion)
	if cached, found := d.cache.Get(key); found {
		return cached.(*DashboardSnapshot), nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap.KPIs = d.kpis.Compute(view)
	snap.Charts = BuildCharts(view)
	snap.GeneratedAt = d.now()

	d.cache.Set(key, snap, cache.DefaultExpiration)
	return snap, nil
}

// KPIs returns every KPI over the current view
func (d *Dashboard) KPIs(ctx context.Context) ([]KPIValue, error) {
	snap, err := d.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.KPIs, nil
}

// KPI returns a single KPI over the current view
func (d *Dashboard) KPI(id string) (KPIValue, error) {
	view, err := d.Records(true)
	if err != nil {
		return KPIValue{}, err
	}
	return d.kpis.ComputeOne(id, view)
}

// KPIDefinitions lists the registered KPIs in display order
func (d *Dashboard) KPIDefinitions() []KPIDefinition {
	return d.kpis.Definitions()
}

// Charts returns every chart series over the current view
func (d *Dashboard) Charts(ctx context.Context) (ChartSet, error) {
	snap, err := d.Snapshot(ctx)
	if err != nil {
		return ChartSet{}, err
	}
	return snap.Charts, nil
}

// FilterState returns the filter state being edited, which may not be
// applied yet
func (d *Dashboard) FilterState() models.FilterState {
	return d.filters.State()
}

// FiltersPending reports whether a debounced apply is waiting
func (d *Dashboard) FiltersPending() bool {
	return d.filters.Pending()
}

// UpdateFilters replaces the filter state; the view follows after the
// debounce period
func (d *Dashboard) UpdateFilters(state models.FilterState) {
	d.filters.Update(state)
}

// ApplyFilters applies the current filter state immediately
func (d *Dashboard) ApplyFilters(ctx context.Context) error {
	if _, err := d.Dataset(); err != nil {
		return err
	}
	d.filters.Apply(ctx)
	return nil
}

// ResetFilters clears every filter and the saved state
func (d *Dashboard) ResetFilters(ctx context.Context) {
	d.filters.Reset(ctx)
}

// ExportKPIsCSV writes the current KPIs as CSV
func (d *Dashboard) ExportKPIsCSV(ctx context.Context, w io.Writer) error {
	values, err := d.KPIs(ctx)
	if err != nil {
		return err
	}
	return WriteKPIsCSV(w, values)
}

// ExportReport renders the current view as an xlsx report
func (d *Dashboard) ExportReport(ctx context.Context) ([]byte, error) {
	snap, err := d.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	view, err := d.Records(true)
	if err != nil {
		return nil, err
	}

	data, err := BuildReportXLSX(snap.KPIs, snap.Charts, view)
	if err != nil {
		return nil, err
	}
	d.logger.Info("report exported", "dataset", snap.DatasetID, "records", len(view), "bytes", len(data))
	return data, nil
}

// Close stops background filter work
func (d *Dashboard) Close() {
	d.filters.Close()
}
