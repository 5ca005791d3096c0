package construction

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/estatehub/marketplace/internal/app/core/service"
)

func TestEstimateBuild(t *testing.T) {
	est, err := EstimateBuild(EstimateInput{
		AreaSqm:   100,
		Bedrooms:  2,
		Bathrooms: 1,
		Extras:    []string{"Pool", "pool"},
	})
	require.NoError(t, err)
	require.Equal(t, 140000.0, est.BaseCost)
	require.Equal(t, 207000.0, est.Subtotal)
	require.Equal(t, 4140.0, est.Permits)
	require.Equal(t, 20700.0, est.Contingency)
	require.Equal(t, 231840.0, est.Total)
	require.Equal(t, 5, est.DurationMonths)

	categories := make([]string, 0, len(est.Lines))
	var baseShare float64
	for _, line := range est.Lines {
		categories = append(categories, line.Category)
		if len(categories) <= len(breakdown) {
			baseShare += line.Amount
		}
	}
	require.Equal(t, []string{"foundation", "structure", "roofing", "mep", "finishing", "labor_overhead", "bedrooms", "bathrooms", "extra_pool"}, categories)
	require.InDelta(t, est.BaseCost, baseShare, 0.01)
	require.Equal(t, 16800.0, est.Lines[0].Amount)
}

func TestEstimateBuildMultipliers(t *testing.T) {
	est, err := EstimateBuild(EstimateInput{AreaSqm: 200, Floors: 3, Quality: QualityPremium, Region: "Urban"})
	require.NoError(t, err)
	require.Equal(t, 605000.0, est.BaseCost)
	require.Equal(t, 12, est.DurationMonths)

	luxury, err := EstimateBuild(EstimateInput{AreaSqm: 200, Floors: 3, Quality: QualityLuxury, Region: "urban"})
	require.NoError(t, err)
	require.Greater(t, luxury.Total, est.Total)
}

func TestEstimateBuildValidation(t *testing.T) {
	cases := map[string]EstimateInput{
		"area":    {AreaSqm: 0},
		"floors":  {AreaSqm: 10, Floors: -1},
		"rooms":   {AreaSqm: 10, Bedrooms: -2},
		"quality": {AreaSqm: 10, Quality: "gold"},
		"region":  {AreaSqm: 10, Region: "moon"},
		"extra":   {AreaSqm: 10, Extras: []string{"helipad"}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := EstimateBuild(in)
			if !errors.Is(err, service.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestEstimateRenovation(t *testing.T) {
	est, err := EstimateRenovation(RenovationInput{
		AreaSqm: 80,
		Scope:   ScopeFull,
		Rooms:   []string{"kitchen", "bathroom", "Kitchen"},
		Quality: QualityPremium,
	})
	require.NoError(t, err)
	require.Len(t, est.Lines, 3)
	require.Equal(t, 100800.0, est.BaseCost)
	require.Equal(t, 134400.0, est.Subtotal)
	require.Equal(t, 157248.0, est.Total)
	require.Equal(t, 3, est.DurationMonths)

	_, err = EstimateRenovation(RenovationInput{AreaSqm: 80, Scope: "demolish"})
	require.ErrorIs(t, err, service.ErrValidation)
	_, err = EstimateRenovation(RenovationInput{AreaSqm: 80, Rooms: []string{"garage"}})
	require.ErrorIs(t, err, service.ErrValidation)
}

func TestRateCardIsACopy(t *testing.T) {
	card := RateCard()
	card.BaseRates[QualityBasic] = 1
	require.Equal(t, 900.0, RateCard().BaseRates[QualityBasic])
	require.Equal(t, []string{"coastal", "default", "rural", "suburban", "urban"}, card.Regions)
	require.Equal(t, service.LayerCalculator, Descriptor().Layer)
}
