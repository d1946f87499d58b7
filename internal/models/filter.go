package models

import "time"

// FilterState is the user's current selection of dashboard filters.
// Every field is optional; the zero value filters nothing.
type FilterState struct {
	DateStart      *time.Time `json:"dateStart"`
	DateEnd        *time.Time `json:"dateEnd"`
	Region         string     `json:"region"`
	CounterpartyID string     `json:"counterpartyId"`
	Statuses       []string   `json:"statuses"`
}

// IsEmpty reports whether no filter is active
func (f FilterState) IsEmpty() bool {
	return f.ActiveCount() == 0
}

// ActiveCount returns how many filter categories are in use. A date range
// counts once whether one or both bounds are set.
func (f FilterState) ActiveCount() int {
	count := 0
	if f.DateStart != nil || f.DateEnd != nil {
		count++
	}
	if f.Region != "" {
		count++
	}
	if f.CounterpartyID != "" {
		count++
	}
	if len(f.Statuses) > 0 {
		count++
	}
	return count
}

// Clone returns a deep copy so callers cannot mutate shared state
func (f FilterState) Clone() FilterState {
	out := FilterState{
		Region:         f.Region,
		CounterpartyID: f.CounterpartyID,
	}
	if f.DateStart != nil {
		t := *f.DateStart
		out.DateStart = &t
	}
	if f.DateEnd != nil {
		t := *f.DateEnd
		out.DateEnd = &t
	}
	if f.Statuses != nil {
		out.Statuses = append([]string(nil), f.Statuses...)
	}
	return out
}

// FilterOptions lists the values a user can pick from for the current dataset
type FilterOptions struct {
	Regions        []string       `json:"regions"`
	Counterparties []Counterparty `json:"counterparties"`
	Statuses       []string       `json:"statuses"`
}

// Counterparty pairs a formatted tax id with the company name seen for it
type Counterparty struct {
	TaxID       string `json:"taxId"`
	CompanyName string `json:"companyName"`
}
