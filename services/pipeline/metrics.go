package pipeline

import (
	"github.com/shopspring/decimal"

	"lof_arb_api/models"
)

// Compute derives the premium rate and day-over-day change for one joined
// record. Pure function, no I/O. Returns false when the record has no usable
// valuation, which excludes it rather than dividing by zero.
//
// Premium rate: (price − valuation) / valuation × 100.
// Percentages are rounded to two decimals for presentation; intermediate
// arithmetic runs at full decimal precision.
func Compute(rec models.FundRecord) (models.FundRecord, bool) {
	if rec.Valuation <= 0 {
		return rec, false
	}

	price := decimal.NewFromFloat(rec.Price)
	valuation := decimal.NewFromFloat(rec.Valuation)
	hundred := decimal.NewFromInt(100)

	rec.PremiumRate = price.Sub(valuation).
		Div(valuation).
		Mul(hundred).
		Round(2).
		InexactFloat64()

	if rec.PriorClose > 0 {
		prior := decimal.NewFromFloat(rec.PriorClose)
		rec.ChangePct = price.Sub(prior).
			Div(prior).
			Mul(hundred).
			Round(2).
			InexactFloat64()
	}

	return rec, true
}
