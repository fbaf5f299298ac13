package usecase

import (
	"github.com/shopspring/decimal"

	"github.com/openprocurement/auction-worker/internal/domain"
)

// CalculateCoeficient derives a bidder's ranking coefficient from the
// tender features and the bidder's selected parameters:
// 1 + the sum of the selected option values. Computed exactly once per
// bidder per auction run and reused for every ranking pass.
func CalculateCoeficient(features []domain.Feature, parameters []domain.Parameter) decimal.Decimal {
	coeficient := decimal.NewFromInt(1)
	if len(features) == 0 {
		return coeficient
	}
	byCode := make(map[string]decimal.Decimal, len(parameters))
	for _, p := range parameters {
		byCode[p.Code] = decimal.NewFromFloat(p.Value)
	}
	for _, f := range features {
		if v, ok := byCode[f.Code]; ok {
			coeficient = coeficient.Add(v)
		}
	}
	return coeficient
}

// Cooking turns a raw bid amount into the amount used for ranking. In this
// cost-minimizing reverse auction qualitative advantages divide the raw
// amount, so feature-rich bidders rank as if they were cheaper. With a unit
// coefficient the ranking amount equals the raw amount.
func Cooking(amount float64, coeficient decimal.Decimal) decimal.Decimal {
	raw := decimal.NewFromFloat(amount)
	if coeficient.Equal(decimal.NewFromInt(1)) {
		return raw
	}
	return raw.Div(coeficient)
}
