package mission

import (
	_ "embed"
	"fmt"
)

//go:embed builtin/site_survey.yaml
var builtinPlan []byte

// BuiltinName is the plan reference that selects the bundled demo plan
// in place of a file path.
const BuiltinName = "builtin"

// BuiltinPlan returns the demo plan bundled with wayfarer.
func BuiltinPlan() (*Plan, error) {
	plan, err := ParsePlan(builtinPlan)
	if err != nil {
		return nil, fmt.Errorf("parse builtin plan: %w", err)
	}
	plan.Source = BuiltinName
	return plan, nil
}
