package services

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ashmitsharp/receivables-api/internal/models"
)

// DateRange is the earliest and latest issue date of a dataset
type DateRange struct {
	Min *time.Time `json:"min"`
	Max *time.Time `json:"max"`
}

// Financials are the dataset-wide amount totals
type Financials struct {
	TotalGross decimal.Decimal `json:"totalGross"`
	TotalNet   decimal.Decimal `json:"totalNet"`
	TotalTax   decimal.Decimal `json:"totalTax"`
}

// Statistics summarizes a set of invoices
type Statistics struct {
	TotalRecords int            `json:"totalRecords"`
	DateRange    DateRange      `json:"dateRange"`
	Financials   Financials     `json:"financials"`
	Status       map[string]int `json:"status"`
	Regions      []string       `json:"regions"`
	TaxIDs       []string       `json:"taxIds"`
}

// ComputeStatistics walks records once and collects the dataset overview
func ComputeStatistics(records []models.Invoice) Statistics {
	stats := Statistics{
		TotalRecords: len(records),
		Financials: Financials{
			TotalGross: decimal.Zero,
			TotalNet:   decimal.Zero,
			TotalTax:   decimal.Zero,
		},
		Status: map[string]int{},
	}

	regions := map[string]struct{}{}
	taxIDs := map[string]struct{}{}

	for _, inv := range records {
		if inv.IssueDate != nil {
			if stats.DateRange.Min == nil || inv.IssueDate.Before(*stats.DateRange.Min) {
				t := *inv.IssueDate
				stats.DateRange.Min = &t
			}
			if stats.DateRange.Max == nil || inv.IssueDate.After(*stats.DateRange.Max) {
				t := *inv.IssueDate
				stats.DateRange.Max = &t
			}
		}

		stats.Financials.TotalGross = stats.Financials.TotalGross.Add(inv.GrossAmount)
		stats.Financials.TotalNet = stats.Financials.TotalNet.Add(inv.NetAmount)
		stats.Financials.TotalTax = stats.Financials.TotalTax.Add(inv.TaxWithheld)

		stats.Status[orInformed(inv.ReconciledStatus)]++

		if inv.Region != "" {
			regions[inv.Region] = struct{}{}
		}
		if inv.TaxID != "" {
			taxIDs[inv.TaxID] = struct{}{}
		}
	}

	stats.Regions = sortedKeys(regions)
	stats.TaxIDs = sortedKeys(taxIDs)
	return stats
}
