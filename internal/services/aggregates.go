package services

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ashmitsharp/receivables-api/internal/models"
)

// RegionChartLimit caps the revenue-by-region series
const RegionChartLimit = 10

// Point is one labelled value of a chart series. Key is the raw grouping
// value; Label is its display form.
type Point struct {
	Key   string  `json:"key"`
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ComparisonPoint holds received and outstanding net amounts for one month
type ComparisonPoint struct {
	Key         string  `json:"key"`
	Label       string  `json:"label"`
	Received    float64 `json:"received"`
	Outstanding float64 `json:"outstanding"`
}

// ChartSet is every grouped series the dashboard draws
type ChartSet struct {
	StatusDistribution         []Point           `json:"statusDistribution"`
	AgingDistribution          []Point           `json:"agingDistribution"`
	MonthlyDSO                 []Point           `json:"monthlyDso"`
	RevenueByRegion            []Point           `json:"revenueByRegion"`
	MonthlyReceivedOutstanding []ComparisonPoint `json:"monthlyReceivedOutstanding"`
}

// BuildCharts computes every series over records
func BuildCharts(records []models.Invoice) ChartSet {
	return ChartSet{
		StatusDistribution:         StatusDistribution(records),
		AgingDistribution:          AgingDistribution(records),
		MonthlyDSO:                 MonthlyDSO(records),
		RevenueByRegion:            RevenueByRegion(records),
		MonthlyReceivedOutstanding: MonthlyReceivedOutstanding(records),
	}
}

// orderedSums accumulates values per key and remembers first-seen order
type orderedSums struct {
	keys   []string
	totals map[string]decimal.Decimal
}

func newOrderedSums() *orderedSums {
	return &orderedSums{totals: map[string]decimal.Decimal{}}
}

func (s *orderedSums) add(key string, v decimal.Decimal) {
	current, seen := s.totals[key]
	if !seen {
		s.keys = append(s.keys, key)
		current = decimal.Zero
	}
	s.totals[key] = current.Add(v)
}

func orInformed(s string) string {
	if s == "" {
		return models.NotInformed
	}
	return s
}

// StatusDistribution counts invoices per reconciled status in first-seen order
func StatusDistribution(records []models.Invoice) []Point {
	sums := newOrderedSums()
	one := decimal.NewFromInt(1)
	for _, inv := range records {
		sums.add(orInformed(inv.ReconciledStatus), one)
	}

	points := make([]Point, 0, len(sums.keys))
	for _, k := range sums.keys {
		points = append(points, Point{Key: k, Label: k, Value: sums.totals[k].InexactFloat64()})
	}
	return points
}

// AgingDistribution sums the net amount of open invoices per aging bucket,
// always listing the four buckets in order
func AgingDistribution(records []models.Invoice) []Point {
	if len(records) == 0 {
		return []Point{}
	}

	totals := make(map[string]decimal.Decimal, len(models.AgingBuckets))
	for _, b := range models.AgingBuckets {
		totals[b] = decimal.Zero
	}
	for _, inv := range records {
		if !inv.IsOutstanding() {
			continue
		}
		bucket := inv.AgingBucket
		if _, ok := totals[bucket]; !ok {
			bucket = models.Bucket0To30
		}
		totals[bucket] = totals[bucket].Add(inv.NetAmount)
	}

	points := make([]Point, 0, len(models.AgingBuckets))
	for _, b := range models.AgingBuckets {
		points = append(points, Point{Key: b, Label: b, Value: totals[b].InexactFloat64()})
	}
	return points
}

// MonthlyDSO averages days-to-pay of received invoices per issue month
func MonthlyDSO(records []models.Invoice) []Point {
	type acc struct{ days, count int }
	months := map[string]*acc{}

	for _, inv := range records {
		if inv.IssueMonth == "" || inv.DaysToPay == nil || *inv.DaysToPay == 0 || !inv.IsReceived() {
			continue
		}
		a, ok := months[inv.IssueMonth]
		if !ok {
			a = &acc{}
			months[inv.IssueMonth] = a
		}
		a.days += *inv.DaysToPay
		a.count++
	}

	keys := make([]string, 0, len(months))
	for k := range months {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	points := make([]Point, 0, len(keys))
	for _, k := range keys {
		a := months[k]
		points = append(points, Point{Key: k, Label: MonthLabel(k), Value: float64(a.days) / float64(a.count)})
	}
	return points
}

// RevenueByRegion sums net amounts per region, largest first, keeping the
// first-seen order on ties, capped at RegionChartLimit entries
func RevenueByRegion(records []models.Invoice) []Point {
	sums := newOrderedSums()
	for _, inv := range records {
		sums.add(orInformed(inv.Region), inv.NetAmount)
	}

	keys := append([]string(nil), sums.keys...)
	sort.SliceStable(keys, func(i, j int) bool {
		return sums.totals[keys[i]].GreaterThan(sums.totals[keys[j]])
	})
	if len(keys) > RegionChartLimit {
		keys = keys[:RegionChartLimit]
	}

	points := make([]Point, 0, len(keys))
	for _, k := range keys {
		points = append(points, Point{Key: k, Label: k, Value: sums.totals[k].InexactFloat64()})
	}
	return points
}

// MonthlyReceivedOutstanding splits net amounts per issue month into received
// and everything else. Months sort ascending; invoices without a month are
// grouped under "Não informado", which sorts after every month.
func MonthlyReceivedOutstanding(records []models.Invoice) []ComparisonPoint {
	type acc struct{ received, outstanding decimal.Decimal }
	months := map[string]*acc{}

	for _, inv := range records {
		key := orInformed(inv.IssueMonth)
		a, ok := months[key]
		if !ok {
			a = &acc{received: decimal.Zero, outstanding: decimal.Zero}
			months[key] = a
		}
		if inv.IsReceived() {
			a.received = a.received.Add(inv.NetAmount)
		} else {
			a.outstanding = a.outstanding.Add(inv.NetAmount)
		}
	}

	keys := make([]string, 0, len(months))
	for k := range months {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	points := make([]ComparisonPoint, 0, len(keys))
	for _, k := range keys {
		a := months[k]
		points = append(points, ComparisonPoint{
			Key:         k,
			Label:       MonthLabel(k),
			Received:    a.received.InexactFloat64(),
			Outstanding: a.outstanding.InexactFloat64(),
		})
	}
	return points
}
