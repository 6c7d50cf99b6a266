package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/gridcascade/pkg/cascade"
)

func TestValidateResultAcceptsSimulatorShapes(t *testing.T) {
	for _, res := range []*cascade.Result{treeResult(), largeResult(), chainResult(40, 22)} {
		assert.NoError(t, ValidateResult(res), res.SimulationID)
	}
}

func TestValidateResultRejectsInconsistentResults(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*cascade.Result)
	}{
		{"patient zero not first", func(r *cascade.Result) {
			r.CascadeOrder[0], r.CascadeOrder[1] = r.CascadeOrder[1], r.CascadeOrder[0]
		}},
		{"patient zero id mismatch", func(r *cascade.Result) { r.PatientZero = "TX-2" }},
		{"patient zero has a cause", func(r *cascade.Result) { r.CascadeOrder[0].CausedBy = "TX-1" }},
		{"duplicate node", func(r *cascade.Result) { r.CascadeOrder[5].NodeID = "POLE-1" }},
		{"missing node id", func(r *cascade.Result) { r.CascadeOrder[3].NodeID = "" }},
		{"cause fails later", func(r *cascade.Result) { r.CascadeOrder[1].CausedBy = "POLE-2" }},
		{"negative transformers", func(r *cascade.Result) {
			r.CascadeOrder[2].DownstreamTransformers = -1
			r.EstimatedCustomersAffected -= 100
		}},
		{"negative capacity", func(r *cascade.Result) { r.CascadeOrder[3].CapacityKW = -50 }},
		{"negative wave", func(r *cascade.Result) { r.CascadeOrder[4].WaveDepth = -1 }},
		{"inflated customers", func(r *cascade.Result) { r.EstimatedCustomersAffected = 999999 }},
		{"inflated node count", func(r *cascade.Result) { r.TotalAffectedNodes = 60 }},
		{"inflated capacity", func(r *cascade.Result) { r.AffectedCapacityMW *= 10 }},
		{"inflated depth", func(r *cascade.Result) { r.MaxCascadeDepth = 22 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := treeResult()
			tt.mutate(res)
			assert.ErrorIs(t, ValidateResult(res), ErrInvalidResult)
		})
	}
}

func TestDecisionsRejectPatientZeroOutOfOrder(t *testing.T) {
	res := treeResult()
	res.CascadeOrder[0], res.CascadeOrder[1] = res.CascadeOrder[1], res.CascadeOrder[0]

	_, err := SequenceRestoration(res)
	assert.ErrorIs(t, err, ErrInvalidResult)
	_, err = GeneratePlaybook(res)
	assert.ErrorIs(t, err, ErrInvalidResult)
	_, err = EstimateEconomicImpact(res)
	assert.ErrorIs(t, err, ErrInvalidResult)

	plan, err := SequenceRestoration(treeResult())
	require.NoError(t, err)
	assert.Equal(t, "SUB-1", plan.Steps[0].NodeID)
}

func TestValidateResultEmpty(t *testing.T) {
	assert.ErrorIs(t, ValidateResult(nil), ErrEmptyResult)
	assert.ErrorIs(t, ValidateResult(&cascade.Result{}), ErrEmptyResult)
}
