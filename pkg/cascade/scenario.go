package cascade

import (
	"errors"
	"fmt"
)

var (
	// ErrPatientZeroNotFound is returned when the origin node is not in the topology.
	ErrPatientZeroNotFound = errors.New("patient zero not found")
	// ErrInvalidParameters is returned for out-of-range simulation parameters.
	ErrInvalidParameters = errors.New("invalid simulation parameters")
	// ErrUnknownScenario is returned when a scenario name is not in the catalog.
	ErrUnknownScenario = errors.New("unknown scenario")
)

// Scenario is a named, immutable set of stress parameters.
type Scenario struct {
	Name                string  `json:"name"`
	Description         string  `json:"description"`
	TemperatureC        float64 `json:"temperature_c"`
	LoadMultiplier      float64 `json:"load_multiplier"`
	FailureThreshold    float64 `json:"failure_threshold"`
	HistoricalReference string  `json:"historical_reference,omitempty"`
}

// Parameters returns the scenario's stress tuple.
func (s Scenario) Parameters() Parameters {
	return Parameters{
		TemperatureC:     s.TemperatureC,
		LoadMultiplier:   s.LoadMultiplier,
		FailureThreshold: s.FailureThreshold,
	}
}

// ScenarioBaseline is used when a request names no scenario.
const ScenarioBaseline = "baseline"

var catalog = []Scenario{
	{
		Name:             ScenarioBaseline,
		Description:      "Mild weather at nominal load",
		TemperatureC:     20,
		LoadMultiplier:   1.0,
		FailureThreshold: 0.3,
	},
	{
		Name:                "extreme_cold",
		Description:         "Deep freeze with heating demand far above seasonal peak",
		TemperatureC:        -10,
		LoadMultiplier:      1.8,
		FailureThreshold:    0.15,
		HistoricalReference: "Winter Storm Uri, Texas, February 2021",
	},
	{
		Name:                "extreme_heat",
		Description:         "Sustained heat wave with air-conditioning load",
		TemperatureC:        43,
		LoadMultiplier:      1.5,
		FailureThreshold:    0.2,
		HistoricalReference: "California rotating outages, August 2020",
	},
	{
		Name:                "storm_damage",
		Description:         "Wind and falling vegetation weaken lines at moderate load",
		TemperatureC:        15,
		LoadMultiplier:      1.2,
		FailureThreshold:    0.1,
		HistoricalReference: "Mid-Atlantic derecho, June 2012",
	},
	{
		Name:             "peak_demand",
		Description:      "Warm evening peak at the edge of planned capacity",
		TemperatureC:     32,
		LoadMultiplier:   1.4,
		FailureThreshold: 0.25,
	},
}

// Scenarios returns the catalog in a fixed order.
func Scenarios() []Scenario {
	out := make([]Scenario, len(catalog))
	copy(out, catalog)
	return out
}

// LookupScenario finds a scenario by name.
func LookupScenario(name string) (Scenario, error) {
	for _, s := range catalog {
		if s.Name == name {
			return s, nil
		}
	}
	return Scenario{}, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
}
