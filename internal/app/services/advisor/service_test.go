package advisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/estatehub/marketplace/internal/app/core/service"
	"github.com/estatehub/marketplace/internal/app/domain/property"
	"github.com/estatehub/marketplace/internal/app/services/properties"
	"github.com/estatehub/marketplace/internal/app/storage/memory"
	"github.com/estatehub/marketplace/pkg/logger"
)

func newAdvisor(t *testing.T) (*Service, *properties.Service) {
	t.Helper()
	store := memory.New()
	props := properties.New(store, store, store, nil, properties.Options{SearchTTL: time.Minute}, logger.NewDiscard())
	return New(props, logger.NewDiscard()), props
}

func mustCreate(t *testing.T, props *properties.Service, title, city string, typ property.Type, featured bool) property.Property {
	t.Helper()
	p, err := props.Create(context.Background(), "owner", property.Property{
		Title:       title,
		Type:        typ,
		ListingType: property.ListingSale,
		Price:       250000,
		Location:    property.Location{City: city},
		Featured:    featured,
	})
	require.NoError(t, err)
	return p
}

func names(strategies []Strategy) []string {
	out := make([]string, 0, len(strategies))
	for _, s := range strategies {
		out = append(out, s.Name)
	}
	return out
}

func TestBusinessModelIncomeIsDeterministic(t *testing.T) {
	svc, _ := newAdvisor(t)
	req := Request{Budget: 500000, City: "Lisbon", Goal: "Income", RiskTolerance: "low"}

	first, err := svc.GenerateBusinessModel(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.GenerateBusinessModel(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, first, second)

	require.Len(t, first.Strategies, 3)
	require.Equal(t, "long_term_rental", first.Strategies[0].Name)
	require.Equal(t, 5, first.HorizonYears)
	require.Equal(t, 2000000.0, first.AssumedPrice)
	for i := 1; i < len(first.Strategies); i++ {
		require.GreaterOrEqual(t, first.Strategies[i-1].Score, first.Strategies[i].Score)
	}
	top := first.Strategies[0]
	require.Equal(t, "low", top.RiskLevel)
	require.NotEmpty(t, top.Steps)
	require.InDelta(t, top.Projection.Revenue-top.Projection.Costs, top.Projection.Profit, 0.02)
}

func TestBusinessModelGrowthShortHorizon(t *testing.T) {
	svc, _ := newAdvisor(t)
	model, err := svc.GenerateBusinessModel(context.Background(), Request{
		Budget: 150000, Goal: "growth", RiskTolerance: "high", HorizonYears: 2,
	})
	require.NoError(t, err)
	require.Equal(t, "fix_and_flip", model.Strategies[0].Name)
	require.NotContains(t, names(model.Strategies), "build_to_rent")
	require.NotContains(t, names(model.Strategies), "commercial_lease")
}

func TestBusinessModelValidation(t *testing.T) {
	svc, _ := newAdvisor(t)
	cases := map[string]Request{
		"budget":  {Budget: 0},
		"too low": {Budget: 20000},
		"goal":    {Budget: 100000, Goal: "fame"},
		"risk":    {Budget: 100000, RiskTolerance: "extreme"},
		"horizon": {Budget: 100000, HorizonYears: 99},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.GenerateBusinessModel(context.Background(), req)
			require.ErrorIs(t, err, service.ErrValidation)
		})
	}
}

func TestBusinessModelUsesProperty(t *testing.T) {
	svc, props := newAdvisor(t)
	p := mustCreate(t, props, "Harbour flat", "Porto", property.TypeApartment, false)

	model, err := svc.GenerateBusinessModel(context.Background(), Request{Budget: 100000, City: "Lisbon", PropertyID: p.ID})
	require.NoError(t, err)
	require.Equal(t, "Porto", model.City)
	require.Equal(t, 250000.0, model.AssumedPrice)

	_, err = svc.GenerateBusinessModel(context.Background(), Request{Budget: 100000, PropertyID: "missing"})
	require.Error(t, err)
}

func TestRecommendFromFavorites(t *testing.T) {
	svc, props := newAdvisor(t)
	ctx := context.Background()
	fav := mustCreate(t, props, "Liked flat", "Lisbon", property.TypeApartment, false)
	sameBoth := mustCreate(t, props, "Alfama flat", "Lisbon", property.TypeApartment, false)
	sameCity := mustCreate(t, props, "Belem house", "lisbon", property.TypeHouse, false)
	sameType := mustCreate(t, props, "Porto flat", "Porto", property.TypeApartment, false)
	mustCreate(t, props, "Faro villa", "Faro", property.TypeVilla, true)

	_, err := props.AddFavorite(ctx, "u1", fav.ID)
	require.NoError(t, err)

	recs, err := svc.Recommend(ctx, "u1", 10)
	require.NoError(t, err)
	ids := make([]string, 0, len(recs))
	for _, p := range recs {
		ids = append(ids, p.ID)
	}
	require.Equal(t, []string{sameBoth.ID, sameCity.ID, sameType.ID}, ids)
}

func TestRecommendFallsBackToFeatured(t *testing.T) {
	svc, props := newAdvisor(t)
	mustCreate(t, props, "Plain", "Faro", property.TypeHouse, false)
	featured := mustCreate(t, props, "Showcase", "Faro", property.TypeVilla, true)

	recs, err := svc.Recommend(context.Background(), "nobody", 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, featured.ID, recs[0].ID)
}
