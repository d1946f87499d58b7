package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ashmitsharp/receivables-api/internal/models"
)

// KPIDefinition is a named reduction over a set of invoices
type KPIDefinition struct {
	ID     string
	Title  string
	Format KPIFormat
	Reduce func(records []models.Invoice) float64
}

// Display tones for KPI cards
const (
	TonePrimary = "primary"
	ToneSuccess = "success"
	ToneWarning = "warning"
	ToneError   = "error"
)

// KPIValue is a computed KPI ready for display
type KPIValue struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Format         KPIFormat `json:"format"`
	Value          float64   `json:"value"`
	FormattedValue string    `json:"formattedValue"`
	Tone           string    `json:"tone"`
	Insight        string    `json:"insight,omitempty"`
}

// KPIRegistry holds the fixed, ordered set of dashboard KPIs
type KPIRegistry struct {
	defs  []KPIDefinition
	index map[string]int
}

// NewKPIRegistry builds the registry. now is read whenever a KPI depends on
// the current date.
func NewKPIRegistry(now func() time.Time) *KPIRegistry {
	if now == nil {
		now = time.Now
	}

	defs := []KPIDefinition{
		{"faturamento-bruto", "Faturamento Bruto Total", FormatCurrency, func(rs []models.Invoice) float64 {
			return sumGross(rs).InexactFloat64()
		}},
		{"faturamento-liquido", "Faturamento Líquido Total", FormatCurrency, func(rs []models.Invoice) float64 {
			return sumNet(rs).InexactFloat64()
		}},
		{"numero-notas", "Nº de Notas", FormatCount, func(rs []models.Invoice) float64 {
			return float64(len(rs))
		}},
		{"ticket-medio-bruto", "Ticket Médio Bruto", FormatCurrency, func(rs []models.Invoice) float64 {
			return average(sumGross(rs), len(rs))
		}},
		{"ticket-medio-liquido", "Ticket Médio Líquido", FormatCurrency, func(rs []models.Invoice) float64 {
			return average(sumNet(rs), len(rs))
		}},
		{"top5-cnpjs", "Top 5 CNPJs - % Receita", FormatPercentage, topCounterpartiesShare(5)},
		{"valor-recebido", "Valor Recebido", FormatCurrency, func(rs []models.Invoice) float64 {
			return sumNet(filterInvoices(rs, models.Invoice.IsReceived)).InexactFloat64()
		}},
		{"valor-em-aberto", "Valor em Aberto", FormatCurrency, func(rs []models.Invoice) float64 {
			return sumNet(filterInvoices(rs, models.Invoice.IsOutstanding)).InexactFloat64()
		}},
		{"percentual-recebido", "% Recebido", FormatPercentage, func(rs []models.Invoice) float64 {
			return percentOf(sumNet(filterInvoices(rs, models.Invoice.IsReceived)), sumGross(rs))
		}},
		{"dso", "DSO (Dias Médios p/ Receber)", FormatDays, func(rs []models.Invoice) float64 {
			return averageDaysToPay(filterInvoices(rs, models.Invoice.IsReceived))
		}},
		{"notas-prazo", "% Notas Pagas no Prazo", FormatPercentage, statusShare(models.StatusOnTime)},
		{"notas-atraso", "% Notas Pagas com Atraso", FormatPercentage, statusShare(models.StatusLate)},
		{"notas-antecipadas", "% Notas Antecipadas", FormatPercentage, statusShare(models.StatusEarly)},
		{"valor-antecipado", "Valor Antecipado", FormatCurrency, func(rs []models.Invoice) float64 {
			return sumNet(filterInvoices(rs, hasStatus(models.StatusEarly))).InexactFloat64()
		}},
		{"atraso-medio", "Atraso Médio - Notas Atrasadas", FormatDays, func(rs []models.Invoice) float64 {
			return averageDaysToPay(filterInvoices(rs, hasStatus(models.StatusLate)))
		}},
		{"previsao-30d", "Previsão de Recebimento (≤ 30d)", FormatCurrency, func(rs []models.Invoice) float64 {
			horizon := now().Add(30 * day)
			return sumNet(filterInvoices(rs, func(inv models.Invoice) bool {
				return inv.IsOutstanding() && inv.ExpectedReceiptDate != nil && !inv.ExpectedReceiptDate.After(horizon)
			})).InexactFloat64()
		}},
		{"aging-0-30", "Aging 0-30", FormatCurrency, agingTotal(models.Bucket0To30)},
		{"aging-31-60", "Aging 31-60", FormatCurrency, agingTotal(models.Bucket31To60)},
		{"aging-61-90", "Aging 61-90", FormatCurrency, agingTotal(models.Bucket61To90)},
		{"aging-90-plus", "Aging 90+", FormatCurrency, agingTotal(models.Bucket90Plus)},
		{"notas-90-plus", "Notas Abertas > 90 dias (#)", FormatCount, func(rs []models.Invoice) float64 {
			return float64(len(filterInvoices(rs, func(inv models.Invoice) bool {
				return inv.IsOutstanding() && inv.DaysOpen > 90
			})))
		}},
		{"maior-atraso", "Maior Atraso Individual", FormatDays, func(rs []models.Invoice) float64 {
			longest := 0
			for _, inv := range rs {
				if inv.IsOutstanding() && inv.DaysOpen > longest {
					longest = inv.DaysOpen
				}
			}
			return float64(longest)
		}},
		{"iss-total", "ISS Retido Total", FormatCurrency, func(rs []models.Invoice) float64 {
			return sumTax(rs).InexactFloat64()
		}},
		{"iss-percentual", "ISS Retido % sobre Bruto", FormatPercentage, func(rs []models.Invoice) float64 {
			return percentOf(sumTax(rs), sumGross(rs))
		}},
		{"iss-medio", "ISS Retido médio por NF", FormatCurrency, func(rs []models.Invoice) float64 {
			return average(sumTax(rs), len(rs))
		}},
		{"sem-status", "Linhas sem Status de Pagamento", FormatCount, func(rs []models.Invoice) float64 {
			return float64(len(filterInvoices(rs, func(inv models.Invoice) bool {
				return strings.TrimSpace(inv.PaymentStatusRaw) == ""
			})))
		}},
	}

	index := make(map[string]int, len(defs))
	for i, d := range defs {
		index[d.ID] = i
	}
	return &KPIRegistry{defs: defs, index: index}
}

// Definitions returns the KPIs in display order
func (r *KPIRegistry) Definitions() []KPIDefinition {
	return append([]KPIDefinition(nil), r.defs...)
}

// Compute evaluates every KPI over records
func (r *KPIRegistry) Compute(records []models.Invoice) []KPIValue {
	values := make([]KPIValue, 0, len(r.defs))
	for _, d := range r.defs {
		values = append(values, evaluate(d, records))
	}
	return values
}

// ComputeOne evaluates a single KPI by id
func (r *KPIRegistry) ComputeOne(id string, records []models.Invoice) (KPIValue, error) {
	i, ok := r.index[id]
	if !ok {
		return KPIValue{}, fmt.Errorf("%w: %s", ErrUnknownKPI, id)
	}
	return evaluate(r.defs[i], records), nil
}

func evaluate(d KPIDefinition, records []models.Invoice) KPIValue {
	value := d.Reduce(records)
	return KPIValue{
		ID:             d.ID,
		Title:          d.Title,
		Format:         d.Format,
		Value:          value,
		FormattedValue: FormatValue(value, d.Format),
		Tone:           kpiTone(d.ID, value),
		Insight:        kpiInsight(d.ID, value),
	}
}

// kpiTone picks the card accent: delay KPIs are red when non-zero, open
// amounts are amber, received amounts are green
func kpiTone(id string, value float64) string {
	switch {
	case strings.Contains(id, "atraso") || strings.Contains(id, "90-plus"):
		if value > 0 {
			return ToneError
		}
		return ToneSuccess
	case strings.Contains(id, "recebido") || strings.Contains(id, "prazo"):
		return ToneSuccess
	case strings.Contains(id, "aberto") || strings.Contains(id, "sem-status"):
		if value > 0 {
			return ToneWarning
		}
		return ToneSuccess
	default:
		return TonePrimary
	}
}

func kpiInsight(id string, value float64) string {
	switch id {
	case "dso":
		if value > 45 {
			return "DSO acima da média"
		}
		if value < 30 {
			return "DSO excelente"
		}
	case "notas-atraso":
		if value > 30 {
			return "Alto índice de atraso"
		}
		if value < 10 {
			return "Baixo índice de atraso"
		}
	case "aging-90-plus":
		if value > 0 {
			return "Atenção necessária"
		}
	case "percentual-recebido":
		if value > 80 {
			return "Boa taxa de recebimento"
		}
		if value < 60 {
			return "Taxa baixa de recebimento"
		}
	}
	return ""
}

func filterInvoices(records []models.Invoice, keep func(models.Invoice) bool) []models.Invoice {
	out := make([]models.Invoice, 0, len(records))
	for _, inv := range records {
		if keep(inv) {
			out = append(out, inv)
		}
	}
	return out
}

func hasStatus(status string) func(models.Invoice) bool {
	return func(inv models.Invoice) bool { return inv.ReconciledStatus == status }
}

func sumBy(records []models.Invoice, amount func(models.Invoice) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, inv := range records {
		total = total.Add(amount(inv))
	}
	return total
}

func sumGross(rs []models.Invoice) decimal.Decimal {
	return sumBy(rs, func(inv models.Invoice) decimal.Decimal { return inv.GrossAmount })
}

func sumNet(rs []models.Invoice) decimal.Decimal {
	return sumBy(rs, func(inv models.Invoice) decimal.Decimal { return inv.NetAmount })
}

func sumTax(rs []models.Invoice) decimal.Decimal {
	return sumBy(rs, func(inv models.Invoice) decimal.Decimal { return inv.TaxWithheld })
}

func average(total decimal.Decimal, n int) float64 {
	if n == 0 {
		return 0
	}
	return total.Div(decimal.NewFromInt(int64(n))).InexactFloat64()
}

func percentOf(part, whole decimal.Decimal) float64 {
	if !whole.IsPositive() {
		return 0
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

// averageDaysToPay averages the positive days-to-pay values
func averageDaysToPay(records []models.Invoice) float64 {
	total, count := 0, 0
	for _, inv := range records {
		if inv.DaysToPay != nil && *inv.DaysToPay > 0 {
			total += *inv.DaysToPay
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return float64(total) / float64(count)
}

func statusShare(status string) func([]models.Invoice) float64 {
	return func(rs []models.Invoice) float64 {
		if len(rs) == 0 {
			return 0
		}
		matched := len(filterInvoices(rs, hasStatus(status)))
		return float64(matched) / float64(len(rs)) * 100
	}
}

func agingTotal(bucket string) func([]models.Invoice) float64 {
	return func(rs []models.Invoice) float64 {
		return sumNet(filterInvoices(rs, func(inv models.Invoice) bool {
			return inv.IsOutstanding() && inv.AgingBucket == bucket
		})).InexactFloat64()
	}
}

// topCounterpartiesShare is the share of net revenue held by the n largest
// tax ids; rows without a tax id are grouped together
func topCounterpartiesShare(n int) func([]models.Invoice) float64 {
	return func(rs []models.Invoice) float64 {
		total := sumNet(rs)
		if !total.IsPositive() {
			return 0
		}

		byTaxID := map[string]decimal.Decimal{}
		for _, inv := range rs {
			key := inv.TaxID
			if key == "" {
				key = models.NotInformed
			}
			byTaxID[key] = byTaxID[key].Add(inv.NetAmount)
		}

		revenues := make([]decimal.Decimal, 0, len(byTaxID))
		for _, v := range byTaxID {
			revenues = append(revenues, v)
		}
		sort.Slice(revenues, func(i, j int) bool { return revenues[i].GreaterThan(revenues[j]) })
		if len(revenues) > n {
			revenues = revenues[:n]
		}

		top := decimal.Zero
		for _, v := range revenues {
			top = top.Add(v)
		}
		return percentOf(top, total)
	}
}
