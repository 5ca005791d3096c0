package advisor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/estatehub/marketplace/internal/app/domain/property"
)

const (
	defaultRecommendations = 6
	maxRecommendations     = 50
	candidatePageSize      = 100
)

// Recommend returns available listings that share a city or type with the
// user's favorites, best matches first. Users without favorites, or whose
// favorites match nothing, get the featured listings.
func (s *Service) Recommend(ctx context.Context, userID string, limit int) ([]property.Property, error) {
	if limit <= 0 {
		limit = defaultRecommendations
	}
	if limit > maxRecommendations {
		limit = maxRecommendations
	}

	favorites, err := s.listings.ListFavorites(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}

	cities := make(map[string]struct{})
	types := make(map[property.Type]struct{})
	skip := make(map[string]struct{}, len(favorites))
	for _, fav := range favorites {
		skip[fav.ID] = struct{}{}
		if city := strings.ToLower(fav.Location.City); city != "" {
			cities[city] = struct{}{}
		}
		types[fav.Type] = struct{}{}
	}

	type scored struct {
		p     property.Property
		score int
	}
	seen := make(map[string]struct{})
	var candidates []scored
	collect := func(filter property.Filter) error {
		filter.Status = property.StatusAvailable
		filter.PageSize = candidatePageSize
		page, err := s.listings.Search(ctx, filter)
		if err != nil {
			return err
		}
		for _, p := range page.Items {
			if _, fav := skip[p.ID]; fav {
				continue
			}
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			sc := 0
			if _, ok := cities[strings.ToLower(p.Location.City)]; ok {
				sc += 2
			}
			if _, ok := types[p.Type]; ok {
				sc++
			}
			candidates = append(candidates, scored{p: p, score: sc})
		}
		return nil
	}
	for _, city := range sortedKeys(cities) {
		if err := collect(property.Filter{City: city}); err != nil {
			return nil, fmt.Errorf("search city %s: %w", city, err)
		}
	}
	for _, typ := range sortedKeys(types) {
		if err := collect(property.Filter{Type: typ}); err != nil {
			return nil, fmt.Errorf("search type %s: %w", typ, err)
		}
	}

	if len(candidates) == 0 {
		return s.listings.Featured(ctx, limit)
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.p.Featured != b.p.Featured {
			return a.p.Featured
		}
		if a.p.Views != b.p.Views {
			return a.p.Views > b.p.Views
		}
		return a.p.ID < b.p.ID
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]property.Property, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.p)
	}
	return out, nil
}

func sortedKeys[K ~string](m map[K]struct{}) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
