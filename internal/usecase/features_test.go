package usecase

import (
	"testing"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/openprocurement/auction-worker/internal/domain"
)

func TestCalculateCoeficient_NoFeatures(t *testing.T) {
	c := CalculateCoeficient(nil, nil)
	check.True(t, c.Equal(decimal.NewFromInt(1)))
}

func TestCalculateCoeficient_SumsSelectedOptions(t *testing.T) {
	features := []domain.Feature{
		{Code: "delivery", Enum: []domain.FeatureOption{{Value: 0.05}, {Value: 0.1}}},
		{Code: "warranty", Enum: []domain.FeatureOption{{Value: 0.02}}},
	}
	parameters := []domain.Parameter{
		{Code: "delivery", Value: 0.1},
		{Code: "warranty", Value: 0.02},
	}

	c := CalculateCoeficient(features, parameters)
	check.Equal(t, "1.12", c.String())
}

func TestCalculateCoeficient_IgnoresUnknownParameters(t *testing.T) {
	features := []domain.Feature{
		{Code: "delivery", Enum: []domain.FeatureOption{{Value: 0.05}}},
	}
	parameters := []domain.Parameter{
		{Code: "delivery", Value: 0.05},
		{Code: "unrelated", Value: 0.9},
	}

	c := CalculateCoeficient(features, parameters)
	check.Equal(t, "1.05", c.String())
}

func TestCalculateCoeficient_Deterministic(t *testing.T) {
	features := []domain.Feature{
		{Code: "a", Enum: []domain.FeatureOption{{Value: 0.03}}},
		{Code: "b", Enum: []domain.FeatureOption{{Value: 0.07}}},
	}
	parameters := []domain.Parameter{
		{Code: "b", Value: 0.07},
		{Code: "a", Value: 0.03},
	}

	first := CalculateCoeficient(features, parameters)
	for i := 0; i < 50; i++ {
		check.Equal(t, first.String(), CalculateCoeficient(features, parameters).String())
	}
}

func TestCooking_UnitCoeficientIsIdentity(t *testing.T) {
	got := Cooking(480000, decimal.NewFromInt(1))
	check.Equal(t, "480000", got.String())
}

func TestCooking_DividesByCoeficient(t *testing.T) {
	c := decimal.RequireFromString("1.12")
	got := Cooking(112, c)
	check.Equal(t, "100", got.String())
}

func TestCooking_WeightedAmountRanksLower(t *testing.T) {
	// A feature-rich bidder at 100 must beat a featureless bidder at 95
	// once its coefficient passes the price gap.
	rich := Cooking(100, decimal.RequireFromString("1.12"))
	plain := Cooking(95, decimal.NewFromInt(1))
	check.True(t, rich.LessThan(plain))
}
