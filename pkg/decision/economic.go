// Package decision turns a cascade simulation result into operational
// guidance: economic exposure, a mitigation playbook and a restoration order.
package decision

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dd0wney/gridcascade/pkg/cascade"
)

// ErrEmptyResult is returned when a result has no cascade order.
var ErrEmptyResult = errors.New("simulation result has no failed nodes")

// Cost model constants.
var (
	EnergyPricePerMWh   = decimal.NewFromInt(120)
	CrewHourlyRate      = decimal.NewFromInt(350)
	DispatchCostPerNode = decimal.NewFromInt(1500)
	CrewHoursPerNode    = decimal.NewFromFloat(1.5)
)

// Outage duration model: a base restoration time plus half an hour per wave.
const (
	BaseOutageHours    = 2.0
	OutageHoursPerWave = 0.5
)

// Severity classifies the overall exposure.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityModerate Severity = "MODERATE"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// severityTiers is checked top-down; either threshold is enough.
var severityTiers = []struct {
	severity  Severity
	customers int
	cost      decimal.Decimal
}{
	{SeverityCritical, 50000, decimal.NewFromInt(10_000_000)},
	{SeverityHigh, 10000, decimal.NewFromInt(1_000_000)},
	{SeverityModerate, 1000, decimal.NewFromInt(100_000)},
}

// CostLine is one subtotal of the breakdown.
type CostLine struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Basis    string          `json:"basis"`
}

// EconomicImpact is the output of EstimateEconomicImpact. Monetary amounts
// are USD rounded to cents; TotalEstimatedCost is the exact sum of the three
// subtotals.
type EconomicImpact struct {
	SimulationID       string          `json:"simulation_id"`
	PatientZero        string          `json:"patient_zero"`
	CustomersAffected  int             `json:"customers_affected"`
	AffectedCapacityMW float64         `json:"affected_capacity_mw"`
	OutageHours        float64         `json:"outage_hours"`
	RegulatoryPenalty  decimal.Decimal `json:"regulatory_penalty"`
	LostRevenue        decimal.Decimal `json:"lost_revenue"`
	RestorationCost    decimal.Decimal `json:"restoration_cost"`
	TotalEstimatedCost decimal.Decimal `json:"total_estimated_cost"`
	Breakdown          []CostLine      `json:"breakdown"`
	Severity           Severity        `json:"severity"`
	Summary            string          `json:"summary"`
}

// OutageHours estimates outage duration from cascade depth.
func OutageHours(maxDepth int) float64 {
	return BaseOutageHours + OutageHoursPerWave*float64(maxDepth)
}

// PenaltyRate returns the per-customer regulatory penalty for a customer count.
func PenaltyRate(customers int) decimal.Decimal {
	switch {
	case customers < 1000:
		return decimal.Zero
	case customers < 10000:
		return decimal.NewFromInt(5)
	case customers < 50000:
		return decimal.NewFromInt(10)
	default:
		return decimal.NewFromInt(20)
	}
}

// DurationFactor scales penalties for long outages.
func DurationFactor(hours float64) decimal.Decimal {
	switch {
	case hours > 12:
		return decimal.NewFromInt(2)
	case hours > 4:
		return decimal.NewFromFloat(1.5)
	default:
		return decimal.NewFromInt(1)
	}
}

// Classify returns the severity tier for a customer count and total cost.
func Classify(customers int, total decimal.Decimal) Severity {
	for _, tier := range severityTiers {
		if customers >= tier.customers || total.GreaterThanOrEqual(tier.cost) {
			return tier.severity
		}
	}
	return SeverityLow
}

// EstimateEconomicImpact prices the outage described by res.
func EstimateEconomicImpact(res *cascade.Result) (*EconomicImpact, error) {
	if err := ValidateResult(res); err != nil {
		return nil, err
	}

	customers := res.EstimatedCustomersAffected
	hours := OutageHours(res.MaxCascadeDepth)
	hoursDec := decimal.NewFromFloat(hours)
	nodes := decimal.NewFromInt(int64(res.TotalAffectedNodes))

	rate := PenaltyRate(customers)
	factor := DurationFactor(hours)
	penalty := decimal.NewFromInt(int64(customers)).Mul(rate).Mul(factor).Round(2)

	lostRevenue := decimal.NewFromFloat(res.AffectedCapacityMW).Mul(hoursDec).Mul(EnergyPricePerMWh).Round(2)

	crewHours := nodes.Mul(CrewHoursPerNode)
	restoration := crewHours.Mul(CrewHourlyRate).Add(nodes.Mul(DispatchCostPerNode)).Round(2)

	total := penalty.Add(lostRevenue).Add(restoration)

	impact := &EconomicImpact{
		SimulationID:       res.SimulationID,
		PatientZero:        res.PatientZero,
		CustomersAffected:  customers,
		AffectedCapacityMW: res.AffectedCapacityMW,
		OutageHours:        hours,
		RegulatoryPenalty:  penalty,
		LostRevenue:        lostRevenue,
		RestorationCost:    restoration,
		TotalEstimatedCost: total,
		Breakdown: []CostLine{
			{
				Category: "regulatory_penalty",
				Amount:   penalty,
				Basis:    fmt.Sprintf("%d customers x $%s x %s duration factor", customers, rate.StringFixed(2), factor.String()),
			},
			{
				Category: "lost_revenue",
				Amount:   lostRevenue,
				Basis:    fmt.Sprintf("%.2f MW x %.1f h x $%s/MWh", res.AffectedCapacityMW, hours, EnergyPricePerMWh.String()),
			},
			{
				Category: "restoration_cost",
				Amount:   restoration,
				Basis: fmt.Sprintf("%s crew-hours x $%s/h + %d dispatches x $%s",
					crewHours.String(), CrewHourlyRate.String(), res.TotalAffectedNodes, DispatchCostPerNode.String()),
			},
		},
		Severity: Classify(customers, total),
	}

	impact.Summary = fmt.Sprintf(
		"%s exposure: %d nodes down from %s, about %d customers out for an estimated %.1f h. Total estimated cost $%s (penalties $%s, lost revenue $%s, restoration $%s).",
		impact.Severity, res.TotalAffectedNodes, res.PatientZero, customers, hours,
		total.StringFixed(2), penalty.StringFixed(2), lostRevenue.StringFixed(2), restoration.StringFixed(2))

	return impact, nil
}
