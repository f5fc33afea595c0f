package money

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.French)

// Format renders an euro amount the way French invoices print it,
// e.g. 1 200,00 €.
func Format(amount float64) string {
	return printer.Sprintf("%.2f €", amount)
}

// Percent renders a rate such as a VAT rate, e.g. 5,5 %.
func Percent(rate float64) string {
	return printer.Sprintf("%.1f %%", rate)
}
