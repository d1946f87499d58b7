package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/require"

	"github.com/ashmitsharp/receivables-api/internal/models"
	"github.com/ashmitsharp/receivables-api/internal/services"
	"github.com/ashmitsharp/receivables-api/internal/utils"
)

// MockStorageService is a mock implementation of StorageService for testing
type MockStorageService struct {
	GenerateUploadKeyFunc    func(filename string) (string, error)
	GeneratePresignedURLFunc func(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
	UploadFileFunc           func(ctx context.Context, key, contentType string, body io.Reader) error
	DownloadFileFunc         func(ctx context.Context, key string) (io.ReadCloser, error)
	DeleteFileFunc           func(ctx context.Context, key string) error

	deleted []string
}

func (m *MockStorageService) GenerateUploadKey(filename string) (string, error) {
	if m.GenerateUploadKeyFunc != nil {
		return m.GenerateUploadKeyFunc(filename)
	}
	return fmt.Sprintf("uploads/1699564800-mock-%s", filename), nil
}

func (m *MockStorageService) GeneratePresignedURL(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	if m.GeneratePresignedURLFunc != nil {
		return m.GeneratePresignedURLFunc(ctx, key, contentType, expiry)
	}
	return fmt.Sprintf("https://s3.amazonaws.com/bucket/%s?signature=mock", key), nil
}

func (m *MockStorageService) UploadFile(ctx context.Context, key, contentType string, body io.Reader) error {
	if m.UploadFileFunc != nil {
		return m.UploadFileFunc(ctx, key, contentType, body)
	}
	return nil
}

func (m *MockStorageService) DownloadFile(ctx context.Context, key string) (io.ReadCloser, error) {
	if m.DownloadFileFunc != nil {
		return m.DownloadFileFunc(ctx, key)
	}
	return nil, fmt.Errorf("file not found")
}

func (m *MockStorageService) DeleteFile(ctx context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	if m.DeleteFileFunc != nil {
		return m.DeleteFileFunc(ctx, key)
	}
	return nil
}

// MockDatasetLoader is a mock implementation of DatasetLoader for testing
type MockDatasetLoader struct {
	LoadBytesFunc func(ctx context.Context, data []byte, filename string) (*services.Dataset, error)
}

func (m *MockDatasetLoader) LoadBytes(ctx context.Context, data []byte, filename string) (*services.Dataset, error) {
	if m.LoadBytesFunc != nil {
		return m.LoadBytesFunc(ctx, data, filename)
	}
	return testDataset(filename), nil
}

// MockDashboard implements DashboardService and FilterController
type MockDashboard struct {
	DatasetFunc       func() (*services.Dataset, error)
	RecordsFunc       func(filtered bool) ([]models.Invoice, error)
	SnapshotFunc      func(ctx context.Context) (*services.DashboardSnapshot, error)
	KPIFunc           func(id string) (services.KPIValue, error)
	ExportReportFunc  func(ctx context.Context) ([]byte, error)
	ApplyFiltersFunc  func(ctx context.Context) error
	FilterOptionsFunc func() (models.FilterOptions, error)

	state   models.FilterState
	pending bool
	applied int
	resets  int
}

func (m *MockDashboard) Dataset() (*services.Dataset, error) {
	if m.DatasetFunc != nil {
		return m.DatasetFunc()
	}
	return nil, services.ErrNoDataset
}

func (m *MockDashboard) Summary() (services.Summary, error) {
	ds, err := m.Dataset()
	if err != nil {
		return services.Summary{}, err
	}
	return services.Summary{
		DatasetID:       ds.ID,
		SourceName:      ds.SourceName,
		TotalRecords:    len(ds.Records),
		FilteredRecords: len(ds.Records),
		ActiveFilters:   m.state.ActiveCount(),
		LastUpdate:      ds.LoadedAt,
	}, nil
}

func (m *MockDashboard) Statistics() (services.Statistics, error) {
	ds, err := m.Dataset()
	if err != nil {
		return services.Statistics{}, err
	}
	return services.ComputeStatistics(ds.Records), nil
}

func (m *MockDashboard) Records(filtered bool) ([]models.Invoice, error) {
	if m.RecordsFunc != nil {
		return m.RecordsFunc(filtered)
	}
	return nil, services.ErrNoDataset
}

func (m *MockDashboard) Snapshot(ctx context.Context) (*services.DashboardSnapshot, error) {
	if m.SnapshotFunc != nil {
		return m.SnapshotFunc(ctx)
	}
	return nil, services.ErrNoDataset
}

func (m *MockDashboard) KPIs(ctx context.Context) ([]services.KPIValue, error) {
	snap, err := m.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.KPIs, nil
}

func (m *MockDashboard) KPI(id string) (services.KPIValue, error) {
	if m.KPIFunc != nil {
		return m.KPIFunc(id)
	}
	return services.KPIValue{}, services.ErrNoDataset
}

func (m *MockDashboard) KPIDefinitions() []services.KPIDefinition {
	return services.NewKPIRegistry(nil).Definitions()
}

func (m *MockDashboard) Charts(ctx context.Context) (services.ChartSet, error) {
	snap, err := m.Snapshot(ctx)
	if err != nil {
		return services.ChartSet{}, err
	}
	return snap.Charts, nil
}

func (m *MockDashboard) ExportKPIsCSV(ctx context.Context, w io.Writer) error {
	values, err := m.KPIs(ctx)
	if err != nil {
		return err
	}
	return services.WriteKPIsCSV(w, values)
}

func (m *MockDashboard) ExportReport(ctx context.Context) ([]byte, error) {
	if m.ExportReportFunc != nil {
		return m.ExportReportFunc(ctx)
	}
	return nil, services.ErrNoDataset
}

func (m *MockDashboard) FilterState() models.FilterState { return m.state.Clone() }

func (m *MockDashboard) FiltersPending() bool { return m.pending }

func (m *MockDashboard) UpdateFilters(state models.FilterState) {
	m.state = state
	m.pending = true
}

func (m *MockDashboard) ApplyFilters(ctx context.Context) error {
	if m.ApplyFiltersFunc != nil {
		if err := m.ApplyFiltersFunc(ctx); err != nil {
			return err
		}
	}
	m.pending = false
	m.applied++
	return nil
}

func (m *MockDashboard) ResetFilters(ctx context.Context) {
	m.state = models.FilterState{}
	m.pending = false
	m.resets++
}

func (m *MockDashboard) FilterOptions() (models.FilterOptions, error) {
	if m.FilterOptionsFunc != nil {
		return m.FilterOptionsFunc()
	}
	return models.FilterOptions{}, services.ErrNoDataset
}

// MockThemeService is a mock implementation of ThemeService for testing
type MockThemeService struct {
	theme   string
	SetFunc func(ctx context.Context, theme string) error
}

func (m *MockThemeService) Get(ctx context.Context) string {
	if m.theme == "" {
		return services.ThemeLight
	}
	return m.theme
}

func (m *MockThemeService) Set(ctx context.Context, theme string) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, theme)
	}
	if theme != services.ThemeLight && theme != services.ThemeDark {
		return services.ErrInvalidTheme
	}
	m.theme = theme
	return nil
}

func (m *MockThemeService) Toggle(ctx context.Context) (string, error) {
	next := services.ThemeDark
	if m.Get(ctx) == services.ThemeDark {
		next = services.ThemeLight
	}
	return next, m.Set(ctx, next)
}

var testLoadedAt = time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)

func testDataset(filename string) *services.Dataset {
	return &services.Dataset{
		ID:         "c0ffee00-0000-4000-8000-000000000001",
		SourceName: filename,
		Sheet:      services.InvoiceSheetName,
		LoadedAt:   testLoadedAt,
		Records:    testInvoices(),
		Diagnostics: &models.Diagnostics{
			TotalRows:     4,
			ValidRows:     3,
			DroppedRows:   []models.RowIssue{{Row: 2, Reason: "bad row"}},
			MissingFields: []models.MissingFieldsIssue{},
		},
	}
}

func testInvoices() []models.Invoice {
	return []models.Invoice{
		{ID: 0, Number: "NF-1", Region: "SP", TaxID: "11.111.111/0001-11", ReconciledStatus: models.StatusOnTime},
		{ID: 1, Number: "NF-2", Region: "RJ", TaxID: "22.222.222/0001-22", ReconciledStatus: models.StatusUnpaid},
		{ID: 3, Number: "NF-3", Region: "SP", TaxID: "11.111.111/0001-11", ReconciledStatus: models.StatusLate},
	}
}

// loadedDashboard is a MockDashboard with testDataset installed
func loadedDashboard() *MockDashboard {
	ds := testDataset("notas.xlsx")
	return &MockDashboard{
		DatasetFunc: func() (*services.Dataset, error) { return ds, nil },
		RecordsFunc: func(filtered bool) ([]models.Invoice, error) {
			if filtered {
				return ds.Records[:2], nil
			}
			return ds.Records, nil
		},
		SnapshotFunc: func(ctx context.Context) (*services.DashboardSnapshot, error) {
			return &services.DashboardSnapshot{
				DatasetID:   ds.ID,
				ViewVersion: 3,
				KPIs: []services.KPIValue{
					{ID: "numero-notas", Title: "Nº de Notas", Format: services.FormatCount, Value: 3, FormattedValue: "3"},
				},
				Charts: services.BuildCharts(ds.Records),
			}, nil
		},
		KPIFunc: func(id string) (services.KPIValue, error) {
			if id != "numero-notas" {
				return services.KPIValue{}, services.ErrUnknownKPI
			}
			return services.KPIValue{ID: id, Value: 3, FormattedValue: "3"}, nil
		},
		ExportReportFunc: func(ctx context.Context) ([]byte, error) {
			return []byte{0x50, 0x4B, 0x03, 0x04}, nil
		},
		FilterOptionsFunc: func() (models.FilterOptions, error) {
			return services.BuildFilterOptions(ds.Records), nil
		},
	}
}

// newTestApp returns a fiber app with the production error handler
func newTestApp() *fiber.App {
	return fiber.New(fiber.Config{ErrorHandler: utils.ErrorHandler})
}

// xlsxBytes starts with the ZIP signature the validator looks for
var xlsxBytes = []byte{0x50, 0x4B, 0x03, 0x04, 0x14, 0x00, 0x06, 0x00}

// multipartRequest builds a POST with a single "file" part
func multipartRequest(t *testing.T, target, filename, contentType string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var result map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}
