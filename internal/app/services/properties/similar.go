package properties

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/estatehub/marketplace/internal/app/domain/property"
)

type scored struct {
	property property.Property
	score    float64
}

// Similar ranks other available listings by how closely they resemble id.
func (s *Service) Similar(ctx context.Context, id string, limit int) ([]property.Property, error) {
	base, err := s.store.GetProperty(ctx, id)
	if err != nil {
		return nil, err
	}
	limit = clampLimit(limit)

	candidates := make(map[string]property.Property)
	for _, f := range []property.Filter{
		{City: base.Location.City, Status: property.StatusAvailable, PageSize: property.MaxPageSize},
		{Type: base.Type, Status: property.StatusAvailable, PageSize: property.MaxPageSize},
	} {
		items, _, err := s.store.SearchProperties(ctx, f)
		if err != nil {
			return nil, err
		}
		for _, p := range items {
			if p.ID != base.ID {
				candidates[p.ID] = p
			}
		}
	}

	ranked := make([]scored, 0, len(candidates))
	for _, p := range candidates {
		ranked = append(ranked, scored{property: p, score: similarity(base, p)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].property.ID < ranked[j].property.ID
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]property.Property, len(ranked))
	for i, r := range ranked {
		out[i] = r.property
	}
	return out, nil
}

func similarity(base, other property.Property) float64 {
	var score float64
	if base.Location.City != "" && strings.EqualFold(base.Location.City, other.Location.City) {
		score += 3
	}
	if base.Type == other.Type {
		score += 2
	}
	if base.ListingType == other.ListingType {
		score += 0.5
	}
	if base.Price > 0 && math.Abs(other.Price-base.Price) <= base.Price*0.25 {
		score += 2
	}
	score += math.Max(0, 1-0.25*math.Abs(float64(base.Bedrooms-other.Bedrooms)))
	return score
}
