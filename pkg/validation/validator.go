package validation

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/dd0wney/gridcascade/pkg/cascade"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	MaxNodeIDLength = 128

	nodeIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:/-]*$`)
)

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("scenario", func(fl validator.FieldLevel) bool {
		_, err := cascade.LookupScenario(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation("nodeid", func(fl validator.FieldLevel) bool {
		return nodeIDPattern.MatchString(fl.Field().String())
	})
}

// SimulateRequest is the body of a simulation request.
type SimulateRequest struct {
	PatientZeroID    string   `json:"patient_zero_id" validate:"required,max=128,nodeid"`
	ScenarioName     string   `json:"scenario_name" validate:"omitempty,scenario"`
	TemperatureC     *float64 `json:"temperature_c" validate:"omitempty,gte=-60,lte=60"`
	LoadMultiplier   *float64 `json:"load_multiplier" validate:"omitempty,gt=0,lte=5"`
	FailureThreshold *float64 `json:"failure_threshold" validate:"omitempty,gte=0,lte=1"`
	MaxWaves         int      `json:"max_waves" validate:"omitempty,min=1,max=100"`
	MaxNodes         int      `json:"max_nodes" validate:"omitempty,min=1,max=1000000"`
}

// CascadeRequest converts the validated body into a simulator request.
func (r *SimulateRequest) CascadeRequest() cascade.Request {
	return cascade.Request{
		PatientZeroID:    r.PatientZeroID,
		ScenarioName:     r.ScenarioName,
		TemperatureC:     r.TemperatureC,
		LoadMultiplier:   r.LoadMultiplier,
		FailureThreshold: r.FailureThreshold,
		MaxWaves:         r.MaxWaves,
		MaxNodes:         r.MaxNodes,
	}
}

// CandidatesQuery holds the patient-zero candidate query parameters.
type CandidatesQuery struct {
	Limit     int  `validate:"min=0,max=1000"`
	OnlyExact bool `validate:"-"`
}

// ValidateSimulateRequest validates a simulation request body.
func ValidateSimulateRequest(req *SimulateRequest) error {
	if req == nil {
		return errors.New("simulate request cannot be nil")
	}
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// ValidateCandidatesQuery validates candidate query parameters.
func ValidateCandidatesQuery(q *CandidatesQuery) error {
	if q == nil {
		return errors.New("candidates query cannot be nil")
	}
	if err := validate.Struct(q); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// ValidateNodeID validates a node identifier taken from a path parameter.
func ValidateNodeID(id string) error {
	if id == "" {
		return errors.New("node id cannot be empty")
	}
	if len(id) > MaxNodeIDLength {
		return fmt.Errorf("node id exceeds maximum length of %d characters", MaxNodeIDLength)
	}
	if !nodeIDPattern.MatchString(id) {
		return fmt.Errorf("node id %q contains invalid characters", id)
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	// Return the first validation error in a user-friendly format
	for _, e := range validationErrs {
		field := e.Field()
		param := e.Param()

		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "min", "gte":
			return fmt.Errorf("%s: must be at least %s", field, param)
		case "max", "lte":
			return fmt.Errorf("%s: must not exceed %s", field, param)
		case "gt":
			return fmt.Errorf("%s: must be greater than %s", field, param)
		case "scenario":
			return fmt.Errorf("%s: unknown scenario %q", field, e.Value())
		case "nodeid":
			return fmt.Errorf("%s: contains invalid characters", field)
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}

	return err
}
