package diff

import (
	"fmt"
	"strings"
	"time"

	"dealroom/api/internal/document"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Placeholder renders absent, blank, or unparsable values.
const Placeholder = "—"

func yesNo(value bool) string {
	if value {
		return "Yes"
	}
	return "No"
}

func text(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Placeholder
	}
	return trimmed
}

func money(value decimal.NullDecimal) string {
	if !value.Valid {
		return Placeholder
	}
	return currency(value.Decimal)
}

// currency renders whole amounts without cents ("$450,000") and fractional
// amounts with two places ("$1,250.50").
func currency(value decimal.Decimal) string {
	printer := message.NewPrinter(language.AmericanEnglish)
	sign := ""
	if value.IsNegative() {
		sign = "-"
		value = value.Abs()
	}
	rounded := value.Round(2)
	whole := rounded.Truncate(0)
	if rounded.Equal(whole) {
		return sign + printer.Sprintf("$%d", whole.IntPart())
	}
	cents := rounded.Sub(whole).Shift(2).IntPart()
	return sign + printer.Sprintf("$%d", whole.IntPart()) + fmt.Sprintf(".%02d", cents)
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"}

func date(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Placeholder
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.Format("Jan 2, 2006")
		}
	}
	return Placeholder
}

func days(value *int) string {
	if value == nil {
		return Placeholder
	}
	if *value == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", *value)
}

func concession(value document.SellerConcession) string {
	switch value.Type {
	case document.ConcessionAmount:
		return currency(value.Value)
	case document.ConcessionPercent:
		return value.Value.String() + "% of price"
	case document.ConcessionNone, "":
		return "None"
	default:
		return Placeholder
	}
}

func contingency(value document.Contingency) string {
	if !value.Included {
		return yesNo(false)
	}
	if value.Days == nil {
		return yesNo(true)
	}
	return yesNo(true) + " (" + days(value.Days) + ")"
}

func list(values []string) string {
	cleaned := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return Placeholder
	}
	return strings.Join(cleaned, ", ")
}
