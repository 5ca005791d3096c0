package scraper

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync/atomic"
)

// DefaultCities seed the mock source when none are configured.
var DefaultCities = []string{"Lisbon", "Porto", "Madrid", "Barcelona", "Berlin"}

var (
	mockStreets    = []string{"Oak", "Harbour", "Market", "Garden", "Station", "River", "Hill"}
	mockFeatures   = []string{"parking", "balcony", "pool", "garden", "elevator", "air_conditioning", "fireplace", "sea_view"}
	mockAdjectives = []string{"Bright", "Renovated", "Spacious", "Quiet", "Modern", "Charming", "Central"}

	mockTypes = []struct {
		kind     string
		noun     string
		perSqm   float64
		minArea  float64
		maxBeds  int
		listings []string
	}{
		{"apartment", "apartment", 4200, 45, 4, []string{"sale", "rent"}},
		{"house", "house", 3300, 90, 6, []string{"sale", "sale", "auction"}},
		{"villa", "villa", 5200, 180, 7, []string{"sale", "auction"}},
		{"commercial", "retail unit", 2800, 60, 0, []string{"sale", "rent"}},
		{"land", "building plot", 350, 300, 0, []string{"sale", "auction"}},
	}
)

// MockSource fabricates plausible listings. Each run shifts the window of
// references by half the count, so consecutive runs both update and create.
type MockSource struct {
	name   string
	seed   int64
	count  int
	cities []string
	runs   atomic.Int64
}

// NewMockSource returns a source producing count listings per run.
func NewMockSource(seed int64, count int, cities []string) *MockSource {
	if count <= 0 {
		count = 10
	}
	if len(cities) == 0 {
		cities = DefaultCities
	}
	return &MockSource{
		name:   "mock",
		seed:   seed,
		count:  count,
		cities: append([]string(nil), cities...),
	}
}

func (m *MockSource) Name() string { return m.name }

// Fetch generates the next run.
func (m *MockSource) Fetch(ctx context.Context) ([]Listing, error) {
	run := m.runs.Add(1) - 1
	return m.Generate(ctx, run)
}

// Generate returns the listings of the given run. Equal seeds and runs yield
// equal listings.
func (m *MockSource) Generate(ctx context.Context, run int64) ([]Listing, error) {
	rng := rand.New(rand.NewSource(m.seed*7919 + run))
	start := int(run) * m.count / 2

	out := make([]Listing, 0, m.count)
	for i := 0; i < m.count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		index := start + i
		// The reference decides the kind and city so a listing keeps its
		// identity across runs; only price and extras drift.
		identity := rand.New(rand.NewSource(m.seed*104729 + int64(index)))
		kind := mockTypes[identity.Intn(len(mockTypes))]
		city := m.cities[identity.Intn(len(m.cities))]
		area := math.Round(kind.minArea + identity.Float64()*kind.minArea*2)
		beds := 0
		if kind.maxBeds > 0 {
			beds = 1 + identity.Intn(kind.maxBeds)
		}
		baths := 0
		if beds > 0 {
			baths = 1 + beds/3
		}
		listingType := kind.listings[identity.Intn(len(kind.listings))]

		price := area * kind.perSqm * (0.85 + rng.Float64()*0.3)
		if listingType == "rent" {
			price = price * 0.004
		}
		price = math.Round(price/100) * 100
		if price < 100 {
			price = 100
		}

		picked := make([]string, 0, 3)
		for _, f := range mockFeatures {
			if rng.Intn(4) == 0 {
				picked = append(picked, f)
			}
		}

		out = append(out, Listing{
			Ref:         fmt.Sprintf("%d-%05d", m.seed, index),
			Title:       fmt.Sprintf("%s %s in %s", mockAdjectives[identity.Intn(len(mockAdjectives))], kind.noun, city),
			Description: fmt.Sprintf("%.0f sqm %s close to %s Street.", area, kind.noun, mockStreets[identity.Intn(len(mockStreets))]),
			Type:        kind.kind,
			ListingType: listingType,
			Price:       price,
			Currency:    "EUR",
			Address:     fmt.Sprintf("%d %s Street", 1+identity.Intn(200), mockStreets[identity.Intn(len(mockStreets))]),
			City:        city,
			AreaSqm:     area,
			Bedrooms:    beds,
			Bathrooms:   baths,
			YearBuilt:   1950 + identity.Intn(75),
			Features:    picked,
			Images:      []string{fmt.Sprintf("https://images.estatehub.example/mock/%d-%05d.jpg", m.seed, index)},
		})
	}
	return out, nil
}
