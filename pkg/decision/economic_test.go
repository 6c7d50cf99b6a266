package decision

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/gridcascade/pkg/cascade"
)

func TestEconomicImpactSmallCascade(t *testing.T) {
	impact, err := EstimateEconomicImpact(treeResult())
	require.NoError(t, err)

	assert.Equal(t, 750, impact.CustomersAffected)
	assert.InDelta(t, 3.0, impact.OutageHours, 1e-9)
	assert.True(t, impact.RegulatoryPenalty.IsZero(), "under 1,000 customers carries no penalty")
	assert.Equal(t, "7599.60", impact.LostRevenue.StringFixed(2))
	assert.Equal(t, "12150.00", impact.RestorationCost.StringFixed(2))
	assert.Equal(t, "19749.60", impact.TotalEstimatedCost.StringFixed(2))
	assert.Equal(t, SeverityLow, impact.Severity)
	assert.Len(t, impact.Breakdown, 3)
	assert.Contains(t, impact.Summary, "LOW")
}

func TestEconomicImpactExtremeColdHub(t *testing.T) {
	impact, err := EstimateEconomicImpact(largeResult())
	require.NoError(t, err)

	assert.Equal(t, "1296000.00", impact.RegulatoryPenalty.StringFixed(2))
	assert.Equal(t, "209400.00", impact.LostRevenue.StringFixed(2))
	assert.Equal(t, "2626425.00", impact.RestorationCost.StringFixed(2))
	assert.Equal(t, SeverityCritical, impact.Severity)
}

func TestEconomicImpactTotalIsExactSum(t *testing.T) {
	for _, res := range []*cascade.Result{treeResult(), largeResult()} {
		impact, err := EstimateEconomicImpact(res)
		require.NoError(t, err)

		sum := decimal.Zero
		for _, line := range impact.Breakdown {
			sum = sum.Add(line.Amount)
		}
		assert.True(t, sum.Equal(impact.TotalEstimatedCost), "breakdown %s != total %s", sum, impact.TotalEstimatedCost)
		assert.True(t, impact.RegulatoryPenalty.Add(impact.LostRevenue).Add(impact.RestorationCost).Equal(impact.TotalEstimatedCost))
	}
}

func TestPenaltyTiers(t *testing.T) {
	tests := []struct {
		customers int
		want      int64
	}{
		{0, 0}, {999, 0}, {1000, 5}, {9999, 5}, {10000, 10}, {49999, 10}, {50000, 20}, {1_000_000, 20},
	}
	for _, tt := range tests {
		assert.True(t, PenaltyRate(tt.customers).Equal(decimal.NewFromInt(tt.want)), "PenaltyRate(%d)", tt.customers)
	}

	assert.Equal(t, "1", DurationFactor(4).String())
	assert.Equal(t, "1.5", DurationFactor(4.5).String())
	assert.Equal(t, "1.5", DurationFactor(12).String())
	assert.Equal(t, "2", DurationFactor(12.5).String())
}

func TestLongOutageDoublesPenalty(t *testing.T) {
	res := chainResult(40, 22) // 2000 customers, 13 hours

	impact, err := EstimateEconomicImpact(res)
	require.NoError(t, err)
	assert.Equal(t, "20000.00", impact.RegulatoryPenalty.StringFixed(2))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		customers int
		cost      int64
		want      Severity
	}{
		{"quiet", 10, 5_000, SeverityLow},
		{"moderate by customers", 1_000, 0, SeverityModerate},
		{"moderate by cost", 0, 100_000, SeverityModerate},
		{"high by customers", 10_000, 0, SeverityHigh},
		{"high by cost", 5, 1_000_000, SeverityHigh},
		{"critical by customers", 50_000, 0, SeverityCritical},
		{"critical by cost", 0, 10_000_000, SeverityCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.customers, decimal.NewFromInt(tt.cost)))
		})
	}
}

func TestEconomicImpactRejectsEmptyResult(t *testing.T) {
	_, err := EstimateEconomicImpact(&cascade.Result{})
	assert.ErrorIs(t, err, ErrEmptyResult)
	_, err = EstimateEconomicImpact(nil)
	assert.ErrorIs(t, err, ErrEmptyResult)
}
