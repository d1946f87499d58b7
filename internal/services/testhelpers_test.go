package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ashmitsharp/receivables-api/internal/models"
)

// MockPreferenceStore is an in-memory PreferenceStore whose calls can be overridden
type MockPreferenceStore struct {
	mu     sync.Mutex
	values map[string]string

	GetFunc    func(ctx context.Context, key string) (string, bool, error)
	SetFunc    func(ctx context.Context, key, value string) error
	DeleteFunc func(ctx context.Context, key string) error
}

func NewMockPreferenceStore() *MockPreferenceStore {
	return &MockPreferenceStore{values: map[string]string{}}
}

func (m *MockPreferenceStore) Get(ctx context.Context, key string) (string, bool, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MockPreferenceStore) Set(ctx context.Context, key, value string) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MockPreferenceStore) Delete(ctx context.Context, key string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MockPreferenceStore) raw(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

var errStoreDown = errors.New("store unavailable")

// invoiceBuilder keeps fixture construction readable
type invoiceBuilder struct{ inv models.Invoice }

func newInvoice(id int) *invoiceBuilder {
	return &invoiceBuilder{inv: models.Invoice{
		ID:          id,
		AgingBucket: models.Bucket0To30,
		GrossAmount: decimal.Zero,
		NetAmount:   decimal.Zero,
		TaxWithheld: decimal.Zero,
	}}
}

func (b *invoiceBuilder) issued(year int, month time.Month, day int) *invoiceBuilder {
	b.inv.IssueDate = datePtr(year, month, day)
	b.inv.IssueMonth = IssueMonth(b.inv.IssueDate)
	return b
}

func (b *invoiceBuilder) expected(year int, month time.Month, day int) *invoiceBuilder {
	b.inv.ExpectedReceiptDate = datePtr(year, month, day)
	return b
}

func (b *invoiceBuilder) amounts(gross, net, tax float64) *invoiceBuilder {
	b.inv.GrossAmount = decimal.NewFromFloat(gross)
	b.inv.NetAmount = decimal.NewFromFloat(net)
	b.inv.TaxWithheld = decimal.NewFromFloat(tax)
	return b
}

func (b *invoiceBuilder) company(taxID, name string) *invoiceBuilder {
	b.inv.TaxID = taxID
	b.inv.CompanyName = name
	return b
}

func (b *invoiceBuilder) region(region string) *invoiceBuilder {
	b.inv.Region = region
	return b
}

func (b *invoiceBuilder) status(status string) *invoiceBuilder {
	b.inv.ReconciledStatus = status
	return b
}

func (b *invoiceBuilder) received(days int) *invoiceBuilder {
	b.inv.ReceivedFlag = models.FlagReceived
	b.inv.DaysToPay = &days
	b.inv.DaysOpen = 0
	b.inv.AgingBucket = models.Bucket0To30
	return b
}

func (b *invoiceBuilder) open(daysOpen int) *invoiceBuilder {
	b.inv.ReceivedFlag = models.FlagOutstanding
	b.inv.DaysOpen = daysOpen
	b.inv.AgingBucket = AgingBucketFor(daysOpen)
	return b
}

func (b *invoiceBuilder) build() models.Invoice { return b.inv }
