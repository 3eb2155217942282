// Package metering converts raw resource consumption into credits.
//
// All conversions round up to the next whole credit, so any non-zero
// consumption is charged at least one credit. Non-positive inputs price
// to zero, which callers treat as "nothing to record".
package metering

import "github.com/shopspring/decimal"

var (
	msPerMinute    = decimal.NewFromInt(60_000)
	tokensPerUnit  = decimal.NewFromInt(1_000)
	defaultPerMin  = decimal.NewFromInt(1)
	defaultInputK  = decimal.NewFromInt(1)
	defaultOutputK = decimal.NewFromInt(5)
)

// Rates holds the credit prices for each kind of consumption.
// Model-specific token pricing would extend this with a per-model table.
type Rates struct {
	// CreditsPerMinute is charged for wall-clock sandbox time
	CreditsPerMinute decimal.Decimal
	// InputCreditsPer1K is charged per 1000 LLM input tokens
	InputCreditsPer1K decimal.Decimal
	// OutputCreditsPer1K is charged per 1000 LLM output tokens
	OutputCreditsPer1K decimal.Decimal
}

// DefaultRates returns the platform's list prices
func DefaultRates() Rates {
	return Rates{
		CreditsPerMinute:   defaultPerMin,
		InputCreditsPer1K:  defaultInputK,
		OutputCreditsPer1K: defaultOutputK,
	}
}

// DurationCredits prices durationMs of wall-clock usage: ceil(durationMs * rate / 60000)
func (r Rates) DurationCredits(durationMs int64) int64 {
	if durationMs <= 0 {
		return 0
	}
	credits := decimal.NewFromInt(durationMs).Mul(r.CreditsPerMinute).Div(msPerMinute)
	return ceilPositive(credits)
}

// TokenCredits prices LLM usage: ceil(in/1000 * inputRate + out/1000 * outputRate).
// The sum is taken over the raw counts; a total that is not positive prices to zero.
func (r Rates) TokenCredits(inputTokens, outputTokens int64) int64 {
	in := decimal.NewFromInt(inputTokens).Div(tokensPerUnit).Mul(r.InputCreditsPer1K)
	out := decimal.NewFromInt(outputTokens).Div(tokensPerUnit).Mul(r.OutputCreditsPer1K)
	return ceilPositive(in.Add(out))
}

func ceilPositive(d decimal.Decimal) int64 {
	if !d.IsPositive() {
		return 0
	}
	return d.Ceil().IntPart()
}
