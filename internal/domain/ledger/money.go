package ledger

import "github.com/shopspring/decimal"

// CreditsPerPound is the fixed exchange rate of the accounting currency.
const CreditsPerPound = 100

var creditsPerPound = decimal.NewFromInt(CreditsPerPound)

// FormatCredits renders a credit amount in pounds, e.g. 1234 -> "£12.34".
func FormatCredits(credits int64) string {
	amount := decimal.NewFromInt(credits).Div(creditsPerPound)
	if amount.IsNegative() {
		return "-£" + amount.Abs().StringFixed(2)
	}
	return "£" + amount.StringFixed(2)
}
