package finance

import (
	"math"

	"github.com/estatehub/marketplace/internal/app/core/service"
)

const (
	maxYears = 50
	maxRate  = 30
)

// MortgageInput describes a fixed-rate loan. Principal wins over
// Price-DownPayment when both are set.
type MortgageInput struct {
	Principal       float64 `json:"principal"`
	Price           float64 `json:"price"`
	DownPayment     float64 `json:"down_payment"`
	AnnualRate      float64 `json:"annual_rate"`
	Years           int     `json:"years"`
	IncludeSchedule bool    `json:"include_schedule"`
}

// AmortizationRow is one monthly payment.
type AmortizationRow struct {
	Period    int     `json:"period"`
	Payment   float64 `json:"payment"`
	Principal float64 `json:"principal"`
	Interest  float64 `json:"interest"`
	Balance   float64 `json:"balance"`
}

// MortgageResult summarizes the loan.
type MortgageResult struct {
	Principal      float64           `json:"principal"`
	MonthlyPayment float64           `json:"monthly_payment"`
	Payments       int               `json:"payments"`
	TotalPaid      float64           `json:"total_paid"`
	TotalInterest  float64           `json:"total_interest"`
	LoanToValue    float64           `json:"loan_to_value,omitempty"`
	Schedule       []AmortizationRow `json:"schedule,omitempty"`
}

// Mortgage computes the monthly payment P*r/(1-(1+r)^-n) of a loan.
func Mortgage(in MortgageInput) (MortgageResult, error) {
	if err := checkTerm(in.AnnualRate, in.Years); err != nil {
		return MortgageResult{}, err
	}
	principal := in.Principal
	if principal == 0 {
		if in.Price <= 0 {
			return MortgageResult{}, service.Invalid("principal or price is required")
		}
		if in.DownPayment < 0 || in.DownPayment >= in.Price {
			return MortgageResult{}, service.Invalid("down_payment must be between 0 and price")
		}
		principal = in.Price - in.DownPayment
	}
	if principal <= 0 {
		return MortgageResult{}, service.Invalid("principal must be positive")
	}

	n := in.Years * 12
	payment := monthlyPayment(principal, in.AnnualRate, n)
	total := payment * float64(n)
	result := MortgageResult{
		Principal:      round(principal),
		MonthlyPayment: round(payment),
		Payments:       n,
		TotalPaid:      round(total),
		TotalInterest:  round(total - principal),
	}
	if in.Price > 0 {
		result.LoanToValue = round(principal / in.Price * 100)
	}
	if in.IncludeSchedule {
		result.Schedule = amortize(principal, in.AnnualRate, n, payment)
	}
	return result, nil
}

func checkTerm(rate float64, years int) error {
	if years < 1 || years > maxYears {
		return service.Invalid("years must be between 1 and %d", maxYears)
	}
	if rate < 0 || rate > maxRate || math.IsNaN(rate) {
		return service.Invalid("annual_rate must be between 0 and %d", maxRate)
	}
	return nil
}

func monthlyRate(annual float64) float64 {
	return annual / 100 / 12
}

func monthlyPayment(principal, annualRate float64, n int) float64 {
	r := monthlyRate(annualRate)
	if r == 0 {
		return principal / float64(n)
	}
	return principal * r / (1 - math.Pow(1+r, -float64(n)))
}

// presentValue is the loan a monthly payment can service.
func presentValue(payment, annualRate float64, n int) float64 {
	r := monthlyRate(annualRate)
	if r == 0 {
		return payment * float64(n)
	}
	return payment * (1 - math.Pow(1+r, -float64(n))) / r
}

// balanceAfter is the outstanding principal after k payments.
func balanceAfter(principal, annualRate float64, n, k int) float64 {
	if k >= n {
		return 0
	}
	r := monthlyRate(annualRate)
	if r == 0 {
		return principal - principal/float64(n)*float64(k)
	}
	growth := math.Pow(1+r, float64(k))
	payment := monthlyPayment(principal, annualRate, n)
	return principal*growth - payment*(growth-1)/r
}

func amortize(principal, annualRate float64, n int, payment float64) []AmortizationRow {
	r := monthlyRate(annualRate)
	rows := make([]AmortizationRow, 0, n)
	balance := principal
	for period := 1; period <= n; period++ {
		interest := balance * r
		toPrincipal := payment - interest
		if period == n {
			toPrincipal = balance
		}
		balance -= toPrincipal
		if balance < 0 {
			balance = 0
		}
		rows = append(rows, AmortizationRow{
			Period:    period,
			Payment:   round(toPrincipal + interest),
			Principal: round(toPrincipal),
			Interest:  round(interest),
			Balance:   round(balance),
		})
	}
	return rows
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}

// Descriptor describes the calculators for status reporting.
func Descriptor() service.Descriptor {
	return service.Descriptor{
		Name:         "finance",
		Domain:       "finance",
		Layer:        service.LayerCalculator,
		Capabilities: []string{"mortgage", "affordability", "rental-yield", "investment", "rent-vs-buy"},
	}
}
