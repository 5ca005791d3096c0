// Package advisor generates rule-based investment strategies and listing
// recommendations.
package advisor

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/estatehub/marketplace/internal/app/core/service"
	"github.com/estatehub/marketplace/internal/app/domain/property"
	"github.com/estatehub/marketplace/internal/app/services/finance"
	"github.com/estatehub/marketplace/pkg/logger"
)

const (
	riskLow = iota + 1
	riskMedium
	riskHigh
)

const (
	// Assumed financing when the advisor sizes a purchase from a budget.
	assumedDownShare = 0.25
	assumedRate      = 6.5
	assumedYears     = 30

	defaultHorizon = 5
	maxHorizon     = 30
	topStrategies  = 3
)

// Listings is the slice of the property service the advisor reads.
type Listings interface {
	Lookup(ctx context.Context, id string) (property.Property, error)
	ListFavorites(ctx context.Context, userID string) ([]property.Property, error)
	Search(ctx context.Context, filter property.Filter) (property.Page, error)
	Featured(ctx context.Context, limit int) ([]property.Property, error)
}

// Service builds business models and recommendations.
type Service struct {
	listings Listings
	log      *logger.Logger
}

// New constructs an advisor.
func New(listings Listings, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("advisor")
	}
	return &Service{listings: listings, log: log}
}

// Descriptor advertises the service.
func (s *Service) Descriptor() service.Descriptor {
	return service.Descriptor{
		Name:         "advisor",
		Domain:       "advisor",
		Layer:        service.LayerCalculator,
		Capabilities: []string{"business-model", "recommendations"},
	}
}

// Request describes an investor.
type Request struct {
	Budget        float64 `json:"budget"`
	City          string  `json:"city"`
	Goal          string  `json:"goal"`
	RiskTolerance string  `json:"risk_tolerance"`
	HorizonYears  int     `json:"horizon_years"`
	PropertyID    string  `json:"property_id,omitempty"`
}

// Projection is the financial outcome over the horizon.
type Projection struct {
	Revenue         float64 `json:"revenue"`
	Costs           float64 `json:"costs"`
	Profit          float64 `json:"profit"`
	MonthlyCashFlow float64 `json:"monthly_cash_flow"`
	ProjectedValue  float64 `json:"projected_value"`
}

// Strategy is one ranked recommendation.
type Strategy struct {
	Name                 string     `json:"name"`
	Summary              string     `json:"summary"`
	CapitalRequired      float64    `json:"capital_required"`
	ExpectedAnnualReturn float64    `json:"expected_annual_return"`
	RiskLevel            string     `json:"risk_level"`
	Score                float64    `json:"score"`
	Steps                []string   `json:"steps"`
	Projection           Projection `json:"projection"`
}

// BusinessModel is the advisor's answer.
type BusinessModel struct {
	Budget        float64    `json:"budget"`
	City          string     `json:"city,omitempty"`
	Goal          string     `json:"goal"`
	RiskTolerance string     `json:"risk_tolerance"`
	HorizonYears  int        `json:"horizon_years"`
	PropertyID    string     `json:"property_id,omitempty"`
	AssumedPrice  float64    `json:"assumed_price"`
	Strategies    []Strategy `json:"strategies"`
}

// GenerateBusinessModel scores the strategy catalog and returns the best
// three. Equal requests always produce equal models.
func (s *Service) GenerateBusinessModel(ctx context.Context, req Request) (BusinessModel, error) {
	req, tolerance, err := normalizeRequest(req)
	if err != nil {
		return BusinessModel{}, err
	}

	price := req.Budget / assumedDownShare
	if req.PropertyID != "" {
		p, err := s.listings.Lookup(ctx, req.PropertyID)
		if err != nil {
			return BusinessModel{}, fmt.Errorf("lookup property: %w", err)
		}
		if p.Price <= 0 {
			return BusinessModel{}, service.Invalid("property %s has no price", p.ID)
		}
		price = p.Price
		req.City = p.Location.City
	}
	down := math.Min(req.Budget, price)

	strategies := make([]Strategy, 0, len(catalog))
	for _, st := range catalog {
		if req.Budget < st.minBudget {
			continue
		}
		projection, annualReturn, err := project(st, price, down, req.HorizonYears)
		if err != nil {
			return BusinessModel{}, err
		}
		strategies = append(strategies, Strategy{
			Name:                 st.name,
			Summary:              st.summary,
			CapitalRequired:      round(math.Max(st.minBudget, down)),
			ExpectedAnnualReturn: annualReturn,
			RiskLevel:            riskName(st.risk),
			Score:                round(score(st, req.Goal, tolerance, req.HorizonYears, annualReturn)),
			Steps:                append([]string(nil), st.steps...),
			Projection:           projection,
		})
	}
	if len(strategies) == 0 {
		return BusinessModel{}, service.Invalid("budget is below the minimum of every strategy")
	}
	sort.SliceStable(strategies, func(i, j int) bool {
		if strategies[i].Score != strategies[j].Score {
			return strategies[i].Score > strategies[j].Score
		}
		return strategies[i].Name < strategies[j].Name
	})
	if len(strategies) > topStrategies {
		strategies = strategies[:topStrategies]
	}

	s.log.WithField("goal", req.Goal).WithField("top", strategies[0].Name).Debug("business model generated")
	return BusinessModel{
		Budget:        req.Budget,
		City:          req.City,
		Goal:          req.Goal,
		RiskTolerance: req.RiskTolerance,
		HorizonYears:  req.HorizonYears,
		PropertyID:    req.PropertyID,
		AssumedPrice:  round(price),
		Strategies:    strategies,
	}, nil
}

func normalizeRequest(req Request) (Request, int, error) {
	if req.Budget <= 0 {
		return req, 0, service.Invalid("budget must be positive")
	}
	req.City = strings.TrimSpace(req.City)
	req.PropertyID = strings.TrimSpace(req.PropertyID)
	req.Goal = strings.ToLower(strings.TrimSpace(req.Goal))
	switch req.Goal {
	case "":
		req.Goal = "balanced"
	case "income", "growth", "balanced":
	default:
		return req, 0, service.Invalid("goal must be income, growth or balanced")
	}
	req.RiskTolerance = strings.ToLower(strings.TrimSpace(req.RiskTolerance))
	var tolerance int
	switch req.RiskTolerance {
	case "low":
		tolerance = riskLow
	case "", "medium":
		req.RiskTolerance = "medium"
		tolerance = riskMedium
	case "high":
		tolerance = riskHigh
	default:
		return req, 0, service.Invalid("risk_tolerance must be low, medium or high")
	}
	if req.HorizonYears == 0 {
		req.HorizonYears = defaultHorizon
	}
	if req.HorizonYears < 1 || req.HorizonYears > maxHorizon {
		return req, 0, service.Invalid("horizon_years must be between 1 and %d", maxHorizon)
	}
	return req, tolerance, nil
}

// project runs the strategy through the investment calculator.
func project(st strategy, price, down float64, horizon int) (Projection, float64, error) {
	rent := price * st.rentShare / 100
	expenses := rent * st.expenseShare / 100
	if rent == 0 {
		expenses = price * st.expenseShare / 100
	}
	result, err := finance.Investment(finance.InvestmentInput{
		Price:            price,
		DownPayment:      down,
		AnnualRate:       assumedRate,
		Years:            assumedYears,
		MonthlyRent:      rent,
		MonthlyExpenses:  expenses,
		AppreciationRate: st.appreciation,
		HoldYears:        horizon,
	})
	if err != nil {
		return Projection{}, 0, fmt.Errorf("project %s: %w", st.name, err)
	}
	months := float64(horizon * 12)
	revenue := rent*months + (result.ProjectedValue - price)
	return Projection{
		Revenue:         round(revenue),
		Costs:           round(revenue - result.TotalProfit),
		Profit:          result.TotalProfit,
		MonthlyCashFlow: result.MonthlyCashFlow,
		ProjectedValue:  result.ProjectedValue,
	}, round(result.TotalROI / float64(horizon)), nil
}

// score weighs goal fit (50), risk fit (30), horizon fit (10) and return.
func score(st strategy, goal string, tolerance, horizon int, annualReturn float64) float64 {
	var weight float64
	switch goal {
	case "income":
		weight = st.incomeWeight
	case "growth":
		weight = st.growthWeight
	default:
		weight = (st.incomeWeight + st.growthWeight) / 2
	}
	total := weight * 50

	gap := st.risk - tolerance
	switch {
	case gap > 0:
		total += 30 - 20*float64(gap)
	case gap < 0:
		total += 30 - 5*float64(-gap)
	default:
		total += 30
	}

	if horizon >= st.minHorizon && horizon <= st.maxHorizon {
		total += 10
	}
	return total + math.Max(-10, math.Min(annualReturn, 30))/3
}

func riskName(level int) string {
	switch level {
	case riskLow:
		return "low"
	case riskHigh:
		return "high"
	default:
		return "medium"
	}
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}
