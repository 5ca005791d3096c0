// Package construction estimates new-build and renovation costs from fixed
// rate tables.
package construction

import (
	"math"
	"sort"
	"strings"

	"github.com/estatehub/marketplace/internal/app/core/service"
)

// Quality selects the finish level.
type Quality string

const (
	QualityBasic    Quality = "basic"
	QualityStandard Quality = "standard"
	QualityPremium  Quality = "premium"
	QualityLuxury   Quality = "luxury"
)

// Base cost per square metre by quality.
var baseRates = map[Quality]float64{
	QualityBasic:    900,
	QualityStandard: 1400,
	QualityPremium:  2200,
	QualityLuxury:   3500,
}

// Renovation multiplier by quality.
var qualityFactors = map[Quality]float64{
	QualityBasic:    0.8,
	QualityStandard: 1,
	QualityPremium:  1.4,
	QualityLuxury:   2,
}

var regionMultipliers = map[string]float64{
	"default":  1,
	"urban":    1.25,
	"suburban": 1.05,
	"rural":    0.85,
	"coastal":  1.15,
}

var extraCosts = map[string]float64{
	"garage":      25000,
	"pool":        45000,
	"basement":    60000,
	"solar":       18000,
	"landscaping": 12000,
}

const (
	bedroomCost  = 5000
	bathroomCost = 12000

	permitShare      = 0.02
	contingencyShare = 0.10
)

// Shares of the base cost, in presentation order.
var breakdown = []struct {
	Category string
	Share    float64
}{
	{"foundation", 0.12},
	{"structure", 0.28},
	{"roofing", 0.08},
	{"mep", 0.18},
	{"finishing", 0.22},
	{"labor_overhead", 0.12},
}

// EstimateInput describes a new build.
type EstimateInput struct {
	AreaSqm   float64  `json:"area_sqm"`
	Floors    int      `json:"floors"`
	Quality   Quality  `json:"quality"`
	Region    string   `json:"region"`
	Bedrooms  int      `json:"bedrooms"`
	Bathrooms int      `json:"bathrooms"`
	Extras    []string `json:"extras"`
}

// Line is one costed item.
type Line struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// Estimate is a costed build or renovation.
type Estimate struct {
	Lines          []Line  `json:"lines"`
	BaseCost       float64 `json:"base_cost"`
	Subtotal       float64 `json:"subtotal"`
	Permits        float64 `json:"permits"`
	Contingency    float64 `json:"contingency"`
	Total          float64 `json:"total"`
	CostPerSqm     float64 `json:"cost_per_sqm"`
	DurationMonths int     `json:"duration_months"`
}

// EstimateBuild prices a new build.
func EstimateBuild(in EstimateInput) (Estimate, error) {
	if in.AreaSqm <= 0 {
		return Estimate{}, service.Invalid("area_sqm must be positive")
	}
	if in.Floors == 0 {
		in.Floors = 1
	}
	if in.Floors < 1 || in.Floors > 60 {
		return Estimate{}, service.Invalid("floors must be between 1 and 60")
	}
	if in.Bedrooms < 0 || in.Bathrooms < 0 {
		return Estimate{}, service.Invalid("room counts cannot be negative")
	}
	quality, err := parseQuality(in.Quality)
	if err != nil {
		return Estimate{}, err
	}
	multiplier, err := regionMultiplier(in.Region)
	if err != nil {
		return Estimate{}, err
	}

	base := in.AreaSqm * baseRates[quality] * multiplier * (1 + 0.05*float64(in.Floors-1))

	lines := make([]Line, 0, len(breakdown)+2+len(in.Extras))
	for _, b := range breakdown {
		lines = append(lines, Line{Category: b.Category, Amount: round(base * b.Share)})
	}
	subtotal := base
	if in.Bedrooms > 0 {
		amount := float64(in.Bedrooms) * bedroomCost
		lines = append(lines, Line{Category: "bedrooms", Amount: amount})
		subtotal += amount
	}
	if in.Bathrooms > 0 {
		amount := float64(in.Bathrooms) * bathroomCost
		lines = append(lines, Line{Category: "bathrooms", Amount: amount})
		subtotal += amount
	}
	extras, err := normalizeKeys(in.Extras, extraCosts, "extra")
	if err != nil {
		return Estimate{}, err
	}
	for _, extra := range extras {
		lines = append(lines, Line{Category: "extra_" + extra, Amount: extraCosts[extra]})
		subtotal += extraCosts[extra]
	}

	permits := subtotal * permitShare
	contingency := subtotal * contingencyShare
	total := subtotal + permits + contingency
	return Estimate{
		Lines:          lines,
		BaseCost:       round(base),
		Subtotal:       round(subtotal),
		Permits:        round(permits),
		Contingency:    round(contingency),
		Total:          round(total),
		CostPerSqm:     round(total / in.AreaSqm),
		DurationMonths: buildDuration(in.AreaSqm, in.Floors, quality),
	}, nil
}

func buildDuration(area float64, floors int, quality Quality) int {
	months := 4 + area/150 + float64(floors-1)*2
	switch quality {
	case QualityPremium:
		months += 2
	case QualityLuxury:
		months += 3
	}
	return int(math.Ceil(months))
}

func parseQuality(q Quality) (Quality, error) {
	q = Quality(strings.ToLower(strings.TrimSpace(string(q))))
	if q == "" {
		return QualityStandard, nil
	}
	if _, ok := baseRates[q]; !ok {
		return "", service.Invalid("unknown quality %q", q)
	}
	return q, nil
}

func regionMultiplier(region string) (float64, error) {
	region = strings.ToLower(strings.TrimSpace(region))
	if region == "" {
		region = "default"
	}
	multiplier, ok := regionMultipliers[region]
	if !ok {
		return 0, service.Invalid("unknown region %q", region)
	}
	return multiplier, nil
}

// normalizeKeys lowercases, deduplicates and checks values against table,
// preserving first-seen order.
func normalizeKeys(values []string, table map[string]float64, kind string) ([]string, error) {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := table[v]; !ok {
			return nil, service.Invalid("unknown %s %q", kind, v)
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out, nil
}

// Rates is the published rate card.
type Rates struct {
	BaseRates         map[Quality]float64 `json:"base_rates_per_sqm"`
	RegionMultipliers map[string]float64  `json:"region_multipliers"`
	Extras            map[string]float64  `json:"extras"`
	RenovationScopes  map[Scope]float64   `json:"renovation_scopes_per_sqm"`
	RenovationRooms   map[string]float64  `json:"renovation_rooms"`
	Regions           []string            `json:"regions"`
}

// RateCard returns a copy of every rate table.
func RateCard() Rates {
	regions := make([]string, 0, len(regionMultipliers))
	for r := range regionMultipliers {
		regions = append(regions, r)
	}
	sort.Strings(regions)
	return Rates{
		BaseRates:         copyMap(baseRates),
		RegionMultipliers: copyMap(regionMultipliers),
		Extras:            copyMap(extraCosts),
		RenovationScopes:  copyMap(scopeRates),
		RenovationRooms:   copyMap(roomCosts),
		Regions:           regions,
	}
}

func copyMap[K comparable](in map[K]float64) map[K]float64 {
	out := make(map[K]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}

// Descriptor describes the estimators for status reporting.
func Descriptor() service.Descriptor {
	return service.Descriptor{
		Name:         "construction",
		Domain:       "construction",
		Layer:        service.LayerCalculator,
		Capabilities: []string{"estimate", "renovation", "rates"},
	}
}
