package services

import (
	"slices"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/ashmitsharp/receivables-api/internal/models"
)

// ApplyFilters returns the records matching every active filter, in their
// original order. The input slice is never modified.
func ApplyFilters(records []models.Invoice, state models.FilterState) []models.Invoice {
	out := make([]models.Invoice, 0, len(records))
	for _, inv := range records {
		if matchesFilters(inv, state) {
			out = append(out, inv)
		}
	}
	return out
}

func matchesFilters(inv models.Invoice, state models.FilterState) bool {
	// Records without an issue date fail any date bound
	if state.DateStart != nil {
		if inv.IssueDate == nil || inv.IssueDate.Before(*state.DateStart) {
			return false
		}
	}
	if state.DateEnd != nil {
		if inv.IssueDate == nil || inv.IssueDate.After(*state.DateEnd) {
			return false
		}
	}
	if state.Region != "" && inv.Region != state.Region {
		return false
	}
	if state.CounterpartyID != "" && inv.TaxID != state.CounterpartyID {
		return false
	}
	if len(state.Statuses) > 0 && !slices.Contains(state.Statuses, inv.ReconciledStatus) {
		return false
	}
	return true
}

// BuildFilterOptions lists the selectable values present in records.
// Counterparties need both a tax id and a company name; when a tax id
// appears with several names the last one wins.
func BuildFilterOptions(records []models.Invoice) models.FilterOptions {
	regions := map[string]struct{}{}
	statuses := map[string]struct{}{}
	names := map[string]string{}

	for _, inv := range records {
		if inv.Region != "" {
			regions[inv.Region] = struct{}{}
		}
		if inv.ReconciledStatus != "" {
			statuses[inv.ReconciledStatus] = struct{}{}
		}
		if inv.TaxID != "" && inv.CompanyName != "" {
			names[inv.TaxID] = inv.CompanyName
		}
	}

	counterparties := make([]models.Counterparty, 0, len(names))
	for taxID, name := range names {
		counterparties = append(counterparties, models.Counterparty{TaxID: taxID, CompanyName: name})
	}

	col := collate.New(language.BrazilianPortuguese)
	sort.SliceStable(counterparties, func(i, j int) bool {
		if c := col.CompareString(counterparties[i].CompanyName, counterparties[j].CompanyName); c != 0 {
			return c < 0
		}
		return counterparties[i].TaxID < counterparties[j].TaxID
	})

	return models.FilterOptions{
		Regions:        sortedKeys(regions),
		Counterparties: counterparties,
		Statuses:       sortedKeys(statuses),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
