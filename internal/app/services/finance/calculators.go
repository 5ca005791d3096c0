package finance

import (
	"math"

	"github.com/estatehub/marketplace/internal/app/core/service"
)

// DefaultMaxDTI is the share of gross income lenders allow for debt service.
const DefaultMaxDTI = 0.36

// AffordabilityInput describes a buyer's finances.
type AffordabilityInput struct {
	MonthlyIncome float64 `json:"monthly_income"`
	MonthlyDebts  float64 `json:"monthly_debts"`
	DownPayment   float64 `json:"down_payment"`
	AnnualRate    float64 `json:"annual_rate"`
	Years         int     `json:"years"`
	MaxDTI        float64 `json:"max_dti"`
}

// AffordabilityResult is the largest purchase the buyer can carry.
type AffordabilityResult struct {
	MaxMonthlyPayment float64 `json:"max_monthly_payment"`
	MaxLoan           float64 `json:"max_loan"`
	MaxPrice          float64 `json:"max_price"`
	DebtToIncome      float64 `json:"debt_to_income"`
}

// Affordability derives the maximum price from a debt-to-income ceiling.
func Affordability(in AffordabilityInput) (AffordabilityResult, error) {
	if in.MonthlyIncome <= 0 {
		return AffordabilityResult{}, service.Invalid("monthly_income must be positive")
	}
	if in.MonthlyDebts < 0 || in.DownPayment < 0 {
		return AffordabilityResult{}, service.Invalid("debts and down_payment cannot be negative")
	}
	if err := checkTerm(in.AnnualRate, in.Years); err != nil {
		return AffordabilityResult{}, err
	}
	dti := in.MaxDTI
	if dti == 0 {
		dti = DefaultMaxDTI
	}
	if dti < 0 || dti > 1 {
		return AffordabilityResult{}, service.Invalid("max_dti must be between 0 and 1")
	}

	payment := math.Max(0, in.MonthlyIncome*dti-in.MonthlyDebts)
	loan := presentValue(payment, in.AnnualRate, in.Years*12)
	return AffordabilityResult{
		MaxMonthlyPayment: round(payment),
		MaxLoan:           round(loan),
		MaxPrice:          round(loan + in.DownPayment),
		DebtToIncome:      round(in.MonthlyDebts / in.MonthlyIncome * 100),
	}, nil
}

// RentalYieldInput describes a let property.
type RentalYieldInput struct {
	Price          float64 `json:"price"`
	MonthlyRent    float64 `json:"monthly_rent"`
	AnnualExpenses float64 `json:"annual_expenses"`
	VacancyRate    float64 `json:"vacancy_rate"`
}

// RentalYieldResult reports yields in percent.
type RentalYieldResult struct {
	AnnualRent     float64 `json:"annual_rent"`
	GrossYield     float64 `json:"gross_yield"`
	NetYield       float64 `json:"net_yield"`
	AnnualCashFlow float64 `json:"annual_cash_flow"`
	CapRate        float64 `json:"cap_rate"`
}

// RentalYield computes gross and net yield. The cap rate also discounts
// vacancy.
func RentalYield(in RentalYieldInput) (RentalYieldResult, error) {
	if in.Price <= 0 || in.MonthlyRent <= 0 {
		return RentalYieldResult{}, service.Invalid("price and monthly_rent must be positive")
	}
	if in.AnnualExpenses < 0 {
		return RentalYieldResult{}, service.Invalid("annual_expenses cannot be negative")
	}
	if in.VacancyRate < 0 || in.VacancyRate >= 100 {
		return RentalYieldResult{}, service.Invalid("vacancy_rate must be between 0 and 100")
	}
	annual := in.MonthlyRent * 12
	effective := annual * (1 - in.VacancyRate/100)
	noi := effective - in.AnnualExpenses
	return RentalYieldResult{
		AnnualRent:     round(annual),
		GrossYield:     round(annual / in.Price * 100),
		NetYield:       round((annual - in.AnnualExpenses) / in.Price * 100),
		AnnualCashFlow: round(noi),
		CapRate:        round(noi / in.Price * 100),
	}, nil
}

// InvestmentInput describes a leveraged buy-to-let.
type InvestmentInput struct {
	Price            float64 `json:"price"`
	DownPayment      float64 `json:"down_payment"`
	AnnualRate       float64 `json:"annual_rate"`
	Years            int     `json:"years"`
	MonthlyRent      float64 `json:"monthly_rent"`
	MonthlyExpenses  float64 `json:"monthly_expenses"`
	AppreciationRate float64 `json:"appreciation_rate"`
	HoldYears        int     `json:"hold_years"`
}

// InvestmentResult projects returns at the end of the hold.
type InvestmentResult struct {
	MonthlyMortgage  float64 `json:"monthly_mortgage"`
	MonthlyCashFlow  float64 `json:"monthly_cash_flow"`
	AnnualCashFlow   float64 `json:"annual_cash_flow"`
	CashOnCash       float64 `json:"cash_on_cash"`
	ProjectedValue   float64 `json:"projected_value"`
	RemainingBalance float64 `json:"remaining_balance"`
	Equity           float64 `json:"equity"`
	TotalProfit      float64 `json:"total_profit"`
	TotalROI         float64 `json:"total_roi"`
}

// Investment projects cash flow, equity and ROI over HoldYears.
func Investment(in InvestmentInput) (InvestmentResult, error) {
	if in.Price <= 0 {
		return InvestmentResult{}, service.Invalid("price must be positive")
	}
	if in.DownPayment <= 0 || in.DownPayment > in.Price {
		return InvestmentResult{}, service.Invalid("down_payment must be positive and at most price")
	}
	if in.MonthlyRent < 0 || in.MonthlyExpenses < 0 {
		return InvestmentResult{}, service.Invalid("rent and expenses cannot be negative")
	}
	if in.HoldYears < 1 || in.HoldYears > maxYears {
		return InvestmentResult{}, service.Invalid("hold_years must be between 1 and %d", maxYears)
	}
	if err := checkTerm(in.AnnualRate, in.Years); err != nil {
		return InvestmentResult{}, err
	}

	loan := in.Price - in.DownPayment
	n := in.Years * 12
	var payment, balance float64
	if loan > 0 {
		payment = monthlyPayment(loan, in.AnnualRate, n)
		balance = balanceAfter(loan, in.AnnualRate, n, in.HoldYears*12)
	}
	monthly := in.MonthlyRent - in.MonthlyExpenses - payment
	annual := monthly * 12
	value := in.Price * math.Pow(1+in.AppreciationRate/100, float64(in.HoldYears))
	equity := value - balance
	profit := equity - in.DownPayment + annual*float64(in.HoldYears)

	return InvestmentResult{
		MonthlyMortgage:  round(payment),
		MonthlyCashFlow:  round(monthly),
		AnnualCashFlow:   round(annual),
		CashOnCash:       round(annual / in.DownPayment * 100),
		ProjectedValue:   round(value),
		RemainingBalance: round(balance),
		Equity:           round(equity),
		TotalProfit:      round(profit),
		TotalROI:         round(profit / in.DownPayment * 100),
	}, nil
}

// RentVsBuyInput compares owning with renting an equivalent home.
type RentVsBuyInput struct {
	Price            float64 `json:"price"`
	DownPayment      float64 `json:"down_payment"`
	AnnualRate       float64 `json:"annual_rate"`
	Years            int     `json:"years"`
	MonthlyRent      float64 `json:"monthly_rent"`
	RentGrowth       float64 `json:"rent_growth"`
	AppreciationRate float64 `json:"appreciation_rate"`
	HoldYears        int     `json:"hold_years"`
	MaintenanceRate  float64 `json:"maintenance_rate"`
}

// RentVsBuyResult compares the net cost of each option over the hold.
type RentVsBuyResult struct {
	TotalRentCost  float64 `json:"total_rent_cost"`
	TotalBuyCost   float64 `json:"total_buy_cost"`
	NetBuyCost     float64 `json:"net_buy_cost"`
	EquityBuilt    float64 `json:"equity_built"`
	BreakEvenYear  int     `json:"break_even_year,omitempty"`
	Recommendation string  `json:"recommendation"`
}

// RentVsBuy weighs cumulative rent against the cost of owning minus equity.
// Maintenance defaults to 1% of the price per year.
func RentVsBuy(in RentVsBuyInput) (RentVsBuyResult, error) {
	if in.Price <= 0 || in.MonthlyRent <= 0 {
		return RentVsBuyResult{}, service.Invalid("price and monthly_rent must be positive")
	}
	if in.DownPayment < 0 || in.DownPayment > in.Price {
		return RentVsBuyResult{}, service.Invalid("down_payment must be between 0 and price")
	}
	if in.HoldYears < 1 || in.HoldYears > maxYears {
		return RentVsBuyResult{}, service.Invalid("hold_years must be between 1 and %d", maxYears)
	}
	if err := checkTerm(in.AnnualRate, in.Years); err != nil {
		return RentVsBuyResult{}, err
	}
	maintenance := in.MaintenanceRate
	if maintenance == 0 {
		maintenance = 1
	}

	loan := in.Price - in.DownPayment
	n := in.Years * 12
	var payment float64
	if loan > 0 {
		payment = monthlyPayment(loan, in.AnnualRate, n)
	}

	var (
		rentTotal, buyTotal, netBuy, equity float64
		breakEven                           int
	)
	rent := in.MonthlyRent
	for year := 1; year <= in.HoldYears; year++ {
		rentTotal += rent * 12
		rent *= 1 + in.RentGrowth/100

		paidMonths := year * 12
		if paidMonths > n {
			paidMonths = n
		}
		buyTotal = in.DownPayment + payment*float64(paidMonths) + in.Price*maintenance/100*float64(year)
		value := in.Price * math.Pow(1+in.AppreciationRate/100, float64(year))
		var balance float64
		if loan > 0 {
			balance = balanceAfter(loan, in.AnnualRate, n, year*12)
		}
		equity = value - balance
		netBuy = buyTotal - equity
		if breakEven == 0 && netBuy < rentTotal {
			breakEven = year
		}
	}

	recommendation := "rent"
	if netBuy < rentTotal {
		recommendation = "buy"
	}
	return RentVsBuyResult{
		TotalRentCost:  round(rentTotal),
		TotalBuyCost:   round(buyTotal),
		NetBuyCost:     round(netBuy),
		EquityBuilt:    round(equity),
		BreakEvenYear:  breakEven,
		Recommendation: recommendation,
	}, nil
}
