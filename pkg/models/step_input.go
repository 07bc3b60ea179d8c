package models

import "encoding/json"

// DeriveFunc computes a step's input from the execution context at the
// moment the step runs.
type DeriveFunc func(ectx *ExecutionContext) map[string]any

// StepInput is the tagged variant for a step's input specification: either a
// static mapping (the JSON document form) or a function of the execution
// context (set programmatically). Derive wins when both are present.
type StepInput struct {
	Static map[string]any
	Derive DeriveFunc
}

func StaticInput(values map[string]any) StepInput {
	return StepInput{Static: values}
}

func DerivedInput(fn DeriveFunc) StepInput {
	return StepInput{Derive: fn}
}

// Resolve produces the input passed to the provider, exactly once per step
// attempt series.
func (in StepInput) Resolve(ectx *ExecutionContext) map[string]any {
	if in.Derive != nil {
		return in.Derive(ectx)
	}

	if in.Static == nil {
		return map[string]any{}
	}

	return in.Static
}

func (in StepInput) MarshalJSON() ([]byte, error) {
	return json.Marshal(in.Static)
}

func (in *StepInput) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &in.Static)
}
