package construction

import (
	"strings"

	"github.com/estatehub/marketplace/internal/app/core/service"
)

// Scope is how deep a renovation goes.
type Scope string

const (
	ScopeCosmetic Scope = "cosmetic"
	ScopeModerate Scope = "moderate"
	ScopeFull     Scope = "full"
)

var scopeRates = map[Scope]float64{
	ScopeCosmetic: 150,
	ScopeModerate: 450,
	ScopeFull:     900,
}

var roomCosts = map[string]float64{
	"kitchen":  15000,
	"bathroom": 9000,
	"bedroom":  3000,
	"living":   4000,
	"roof":     20000,
	"exterior": 10000,
}

const renovationContingency = 0.15

// RenovationInput describes work on an existing property.
type RenovationInput struct {
	AreaSqm float64  `json:"area_sqm"`
	Scope   Scope    `json:"scope"`
	Rooms   []string `json:"rooms"`
	Quality Quality  `json:"quality"`
}

// EstimateRenovation prices a renovation. Room work and the per-area rate both
// scale with quality.
func EstimateRenovation(in RenovationInput) (Estimate, error) {
	if in.AreaSqm <= 0 {
		return Estimate{}, service.Invalid("area_sqm must be positive")
	}
	scope := Scope(strings.ToLower(strings.TrimSpace(string(in.Scope))))
	if scope == "" {
		scope = ScopeModerate
	}
	rate, ok := scopeRates[scope]
	if !ok {
		return Estimate{}, service.Invalid("unknown scope %q", in.Scope)
	}
	quality, err := parseQuality(in.Quality)
	if err != nil {
		return Estimate{}, err
	}
	factor := qualityFactors[quality]

	base := in.AreaSqm * rate * factor
	lines := []Line{{Category: "scope_" + string(scope), Amount: round(base)}}
	subtotal := base

	rooms, err := normalizeKeys(in.Rooms, roomCosts, "room")
	if err != nil {
		return Estimate{}, err
	}
	for _, room := range rooms {
		amount := roomCosts[room] * factor
		lines = append(lines, Line{Category: "room_" + room, Amount: round(amount)})
		subtotal += amount
	}

	permits := subtotal * permitShare
	contingency := subtotal * renovationContingency
	total := subtotal + permits + contingency

	months := 1 + int(in.AreaSqm/100)
	if scope == ScopeFull {
		months += 2
	}
	return Estimate{
		Lines:          lines,
		BaseCost:       round(base),
		Subtotal:       round(subtotal),
		Permits:        round(permits),
		Contingency:    round(contingency),
		Total:          round(total),
		CostPerSqm:     round(total / in.AreaSqm),
		DurationMonths: months,
	}, nil
}
