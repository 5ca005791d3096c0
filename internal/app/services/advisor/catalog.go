package advisor

// strategy is a catalog entry. Rates are percentages; rent and expense
// shares drive the finance projection.
type strategy struct {
	name         string
	summary      string
	minBudget    float64
	risk         int
	incomeWeight float64
	growthWeight float64
	// Monthly rent as a percent of the purchase price. Zero for strategies
	// that only realise appreciation.
	rentShare float64
	// Operating expenses as a percent of rent, or of price per month when
	// there is no rent.
	expenseShare float64
	appreciation float64
	minHorizon   int
	maxHorizon   int
	steps        []string
}

var catalog = []strategy{
	{
		name:         "long_term_rental",
		summary:      "Buy a residential unit and let it on annual leases for steady income.",
		minBudget:    50000,
		risk:         riskLow,
		incomeWeight: 0.9,
		growthWeight: 0.4,
		rentShare:    0.6,
		expenseShare: 30,
		appreciation: 3,
		minHorizon:   3,
		maxHorizon:   30,
		steps: []string{
			"Shortlist units near transport and schools",
			"Secure a fixed-rate mortgage for the balance",
			"Screen tenants and sign a 12-month lease",
			"Reserve 5% of rent for repairs",
		},
	},
	{
		name:         "short_term_rental",
		summary:      "Furnish a unit in a tourist area and rent it by the night.",
		minBudget:    80000,
		risk:         riskMedium,
		incomeWeight: 1,
		growthWeight: 0.3,
		rentShare:    0.9,
		expenseShare: 45,
		appreciation: 3,
		minHorizon:   2,
		maxHorizon:   15,
		steps: []string{
			"Confirm local short-let regulations",
			"Furnish and photograph the unit",
			"List on booking platforms with dynamic pricing",
			"Contract cleaning and guest support",
		},
	},
	{
		name:         "fix_and_flip",
		summary:      "Buy a distressed property, renovate it and resell within a short horizon.",
		minBudget:    100000,
		risk:         riskHigh,
		incomeWeight: 0.2,
		growthWeight: 1,
		expenseShare: 0.3,
		appreciation: 12,
		minHorizon:   1,
		maxHorizon:   3,
		steps: []string{
			"Source below-market properties at auction",
			"Price the renovation with the construction estimator",
			"Renovate on a fixed schedule",
			"Relist at after-repair value",
		},
	},
	{
		name:         "commercial_lease",
		summary:      "Acquire a small commercial space and lease it to a business tenant.",
		minBudget:    250000,
		risk:         riskMedium,
		incomeWeight: 0.8,
		growthWeight: 0.5,
		rentShare:    0.7,
		expenseShare: 20,
		appreciation: 2,
		minHorizon:   5,
		maxHorizon:   30,
		steps: []string{
			"Target retail or office space with foot traffic",
			"Negotiate a triple-net lease",
			"Verify zoning and fit-out obligations",
		},
	},
	{
		name:         "land_banking",
		summary:      "Hold land in a growth corridor until development value rises.",
		minBudget:    30000,
		risk:         riskHigh,
		incomeWeight: 0,
		growthWeight: 0.9,
		expenseShare: 0.05,
		appreciation: 7,
		minHorizon:   5,
		maxHorizon:   30,
		steps: []string{
			"Study planned infrastructure and zoning changes",
			"Buy land outright to avoid carrying debt",
			"Re-evaluate when permits are issued nearby",
		},
	},
	{
		name:         "co_living",
		summary:      "Convert a large home into furnished rooms let individually.",
		minBudget:    120000,
		risk:         riskMedium,
		incomeWeight: 0.95,
		growthWeight: 0.4,
		rentShare:    1,
		expenseShare: 40,
		appreciation: 3,
		minHorizon:   3,
		maxHorizon:   20,
		steps: []string{
			"Find a house with four or more bedrooms",
			"Add shared amenities and en-suite bathrooms",
			"Market rooms to students and young professionals",
			"Manage house rules and turnover",
		},
	},
	{
		name:         "build_to_rent",
		summary:      "Develop a small multi-unit building designed for long-term tenants.",
		minBudget:    300000,
		risk:         riskMedium,
		incomeWeight: 0.7,
		growthWeight: 0.7,
		rentShare:    0.65,
		expenseShare: 25,
		appreciation: 4,
		minHorizon:   5,
		maxHorizon:   30,
		steps: []string{
			"Acquire a plot with residential zoning",
			"Estimate build cost and duration",
			"Arrange construction finance",
			"Lease units before completion",
		},
	},
}
