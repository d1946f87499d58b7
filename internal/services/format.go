package services

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// KPIFormat selects how a KPI value is displayed
type KPIFormat string

const (
	FormatCurrency   KPIFormat = "currency"
	FormatPercentage KPIFormat = "percentage"
	FormatCount      KPIFormat = "count"
	FormatDays       KPIFormat = "days"
)

var ptBR = message.NewPrinter(language.BrazilianPortuguese)

// pt-BR abbreviated month names, January first
var shortMonths = [...]string{"jan.", "fev.", "mar.", "abr.", "mai.", "jun.", "jul.", "ago.", "set.", "out.", "nov.", "dez."}

// FormatValue renders a KPI value for display in pt-BR. NaN and infinities render as "-".
func FormatValue(value float64, format KPIFormat) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "-"
	}

	switch format {
	case FormatCurrency:
		return FormatCurrencyBRL(value)
	case FormatPercentage:
		return ptBR.Sprint(number.Percent(value/100, number.Scale(1)))
	case FormatCount:
		return ptBR.Sprint(number.Decimal(math.Round(value), number.Scale(0)))
	case FormatDays:
		days := int(math.Round(value))
		if days == 1 {
			return "1 dia"
		}
		return fmt.Sprintf("%d dias", days)
	default:
		return fmt.Sprint(value)
	}
}

// FormatCurrencyBRL renders value as Brazilian reais with two decimals
func FormatCurrencyBRL(value float64) string {
	sign := ""
	if value < 0 {
		sign = "-"
		value = -value
	}
	return sign + "R$ " + ptBR.Sprint(number.Decimal(value, number.Scale(2)))
}

// MonthLabel turns a YYYY-MM key into a short pt-BR label ("jan. de 2024").
// Keys that are not months are returned unchanged.
func MonthLabel(key string) string {
	var year, month int
	if _, err := fmt.Sscanf(key, "%4d-%2d", &year, &month); err != nil || month < 1 || month > 12 {
		return key
	}
	return fmt.Sprintf("%s de %d", shortMonths[month-1], year)
}
