package services

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashmitsharp/receivables-api/internal/logger"
	"github.com/ashmitsharp/receivables-api/internal/models"
)

func newTestDashboard(t *testing.T, store PreferenceStore, debounce time.Duration) *Dashboard {
	t.Helper()
	d, err := NewDashboard(DashboardOptions{
		Store:          store,
		FilterDebounce: debounce,
		Now:            fixedClock,
		Logger:         logger.Discard(),
	})
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d
}

func loadFixture(t *testing.T, d *Dashboard) *Dataset {
	t.Helper()
	data := buildWorkbook(t, InvoiceSheetName, invoiceSheetRows())
	ds, err := d.LoadBytes(context.Background(), data, "notas.xlsx")
	require.NoError(t, err)
	return ds
}

func TestNewDashboard_RequiresStore(t *testing.T) {
	_, err := NewDashboard(DashboardOptions{})
	assert.Error(t, err)
}

func TestDashboard_NoDataset(t *testing.T) {
	d := newTestDashboard(t, NewMockPreferenceStore(), 0)
	ctx := context.Background()

	_, err := d.Dataset()
	assert.ErrorIs(t, err, ErrNoDataset)
	_, err = d.Records(true)
	assert.ErrorIs(t, err, ErrNoDataset)
	_, err = d.Snapshot(ctx)
	assert.ErrorIs(t, err, ErrNoDataset)
	_, err = d.Statistics()
	assert.ErrorIs(t, err, ErrNoDataset)
	_, err = d.Summary()
	assert.ErrorIs(t, err, ErrNoDataset)
	_, err = d.FilterOptions()
	assert.ErrorIs(t, err, ErrNoDataset)
	assert.ErrorIs(t, d.ApplyFilters(ctx), ErrNoDataset)
}

func TestDashboard_Load(t *testing.T) {
	d := newTestDashboard(t, NewMockPreferenceStore(), 0)
	ds := loadFixture(t, d)

	assert.NotEmpty(t, ds.ID)
	assert.Equal(t, "notas.xlsx", ds.SourceName)
	assert.Equal(t, InvoiceSheetName, ds.Sheet)
	assert.Equal(t, testNow, ds.LoadedAt)
	assert.Len(t, ds.Records, 2)
	assert.Equal(t, 2, ds.Diagnostics.ValidRows)

	all, err := d.Records(false)
	require.NoError(t, err)
	view, err := d.Records(true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Len(t, view, 2)

	summary, err := d.Summary()
	require.NoError(t, err)
	assert.Equal(t, Summary{
		DatasetID:       ds.ID,
		SourceName:      "notas.xlsx",
		TotalRecords:    2,
		FilteredRecords: 2,
		LastUpdate:      testNow,
	}, summary)

	stats, err := d.Statistics()
	require.NoError(t, err)
	assert.Equal(t, []string{"RJ", "SP"}, stats.Regions)
	assert.Equal(t, "3000", stats.Financials.TotalGross.String())
}

func TestDashboard_FailedLoadKeepsPreviousDataset(t *testing.T) {
	d := newTestDashboard(t, NewMockPreferenceStore(), 0)
	first := loadFixture(t, d)
	ctx := context.Background()

	headerOnly := buildWorkbook(t, InvoiceSheetName, invoiceSheetRows()[:1])

	tests := []struct {
		name     string
		data     []byte
		filename string
		wantErr  error
	}{
		{name: "not a workbook", data: []byte("definitely not a zip"), filename: "notas.xlsx", wantErr: ErrWorkbookUnreadable},
		{name: "wrong extension", data: []byte("a,b"), filename: "notas.csv", wantErr: ErrUnsupportedFile},
		{name: "no data rows", data: headerOnly, filename: "notas.xlsx", wantErr: ErrNoValidRows},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := d.LoadBytes(ctx, tt.data, tt.filename)
			assert.Nil(t, ds)
			assert.ErrorIs(t, err, tt.wantErr)

			var loadErr *LoadError
			require.ErrorAs(t, err, &loadErr)
			assert.Equal(t, tt.filename, loadErr.Filename)

			current, err := d.Dataset()
			require.NoError(t, err)
			assert.Equal(t, first.ID, current.ID)
		})
	}
}

func TestDashboard_LoadRestoresSavedFilters(t *testing.T) {
	store := NewMockPreferenceStore()
	require.NoError(t, store.Set(context.Background(), FiltersPreferenceKey, `{"region":"RJ"}`))

	d := newTestDashboard(t, store, 0)
	loadFixture(t, d)

	assert.Equal(t, "RJ", d.FilterState().Region)

	view, err := d.Records(true)
	require.NoError(t, err)
	require.Len(t, view, 1)
	assert.Equal(t, "RJ", view[0].Region)

	summary, err := d.Summary()
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ActiveFilters)
	assert.Equal(t, 1, summary.FilteredRecords)
	assert.Equal(t, 2, summary.TotalRecords)
}

func TestDashboard_FiltersSetBeforeLoadSurvive(t *testing.T) {
	store := NewMockPreferenceStore()
	require.NoError(t, store.Set(context.Background(), FiltersPreferenceKey, `{"region":"SP"}`))

	d := newTestDashboard(t, store, time.Hour)
	d.UpdateFilters(models.FilterState{Region: "RJ"})
	assert.ErrorIs(t, d.ApplyFilters(context.Background()), ErrNoDataset)
	assert.True(t, d.FiltersPending())

	loadFixture(t, d)

	assert.Equal(t, "RJ", d.FilterState().Region)
	view, err := d.Records(true)
	require.NoError(t, err)
	require.Len(t, view, 1)
	assert.Equal(t, "RJ", view[0].Region)

	raw, ok := store.raw(FiltersPreferenceKey)
	require.True(t, ok)
	assert.Contains(t, raw, `"region":"RJ"`)
}

func TestDashboard_SnapshotCache(t *testing.T) {
	d := newTestDashboard(t, NewMockPreferenceStore(), time.Hour)
	loadFixture(t, d)
	ctx := context.Background()

	first, err := d.Snapshot(ctx)
	require.NoError(t, err)
	second, err := d.Snapshot(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)

	d.UpdateFilters(models.FilterState{Region: "SP"})
	assert.True(t, d.FiltersPending())

	// the edit is not applied until the debounce fires or apply is called
	unchanged, err := d.Snapshot(ctx)
	require.NoError(t, err)
	assert.Same(t, first, unchanged)

	require.NoError(t, d.ApplyFilters(ctx))
	assert.False(t, d.FiltersPending())

	third, err := d.Snapshot(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Greater(t, third.ViewVersion, first.ViewVersion)
	assert.Equal(t, "SP", third.Filters.Region)
	assert.Equal(t, 1, third.Summary.FilteredRecords)

	count, err := d.KPI("numero-notas")
	require.NoError(t, err)
	assert.Equal(t, 1.0, count.Value)
}

func TestDashboard_DebouncedUpdate(t *testing.T) {
	store := NewMockPreferenceStore()
	d := newTestDashboard(t, store, 10*time.Millisecond)
	loadFixture(t, d)

	d.UpdateFilters(models.FilterState{Region: "RJ"})

	assert.Eventually(t, func() bool {
		view, err := d.Records(true)
		return err == nil && len(view) == 1
	}, time.Second, 5*time.Millisecond)

	saved, ok := store.raw(FiltersPreferenceKey)
	require.True(t, ok)
	assert.Contains(t, saved, `"region":"RJ"`)
}

func TestDashboard_ResetFilters(t *testing.T) {
	store := NewMockPreferenceStore()
	require.NoError(t, store.Set(context.Background(), FiltersPreferenceKey, `{"region":"RJ"}`))
	d := newTestDashboard(t, store, 0)
	loadFixture(t, d)

	d.ResetFilters(context.Background())

	view, err := d.Records(true)
	require.NoError(t, err)
	assert.Len(t, view, 2)
	assert.True(t, d.FilterState().IsEmpty())
	_, ok := store.raw(FiltersPreferenceKey)
	assert.False(t, ok)
}

func TestDashboard_KPI(t *testing.T) {
	d := newTestDashboard(t, NewMockPreferenceStore(), 0)
	loadFixture(t, d)

	value, err := d.KPI("faturamento-bruto")
	require.NoError(t, err)
	assert.Equal(t, 3000.0, value.Value)

	_, err = d.KPI("nope")
	assert.ErrorIs(t, err, ErrUnknownKPI)

	assert.Len(t, d.KPIDefinitions(), len(NewKPIRegistry(fixedClock).Definitions()))
}

func TestDashboard_Exports(t *testing.T) {
	d := newTestDashboard(t, NewMockPreferenceStore(), 0)
	loadFixture(t, d)
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, d.ExportKPIsCSV(ctx, &buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "KPI,Valor,Valor Formatado", lines[0])
	assert.Len(t, lines, len(d.KPIDefinitions())+1)

	report, err := d.ExportReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x50, 0x4B, 0x03, 0x04}, report[:4])
}
