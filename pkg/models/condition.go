package models

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

type ConditionOperator string

const (
	OperatorEqual       ConditionOperator = "eq"
	OperatorNotEqual    ConditionOperator = "neq"
	OperatorGreaterThan ConditionOperator = "gt"
	OperatorLessThan    ConditionOperator = "lt"
	OperatorIn          ConditionOperator = "in"
	OperatorContains    ConditionOperator = "contains"
)

// Condition gates a workflow step. Field is a dotted path into the execution
// context data ("order.total"), Value is the comparison operand.
type Condition struct {
	Field    string            `json:"field"    validate:"required"`
	Operator ConditionOperator `json:"operator" validate:"required,oneof=eq neq gt lt in contains"`
	Value    any               `json:"value"`
}

// Evaluate resolves the field path against data and applies the operator.
// A missing field evaluates to false for every operator except neq.
func (c Condition) Evaluate(data map[string]any) (bool, error) {
	actual, found := lookupPath(data, c.Field)

	switch c.Operator {
	case OperatorEqual:
		return found && looseEqual(actual, c.Value), nil
	case OperatorNotEqual:
		return !found || !looseEqual(actual, c.Value), nil
	case OperatorGreaterThan, OperatorLessThan:
		if !found {
			return false, nil
		}

		left, leftOK := toFloat(actual)
		right, rightOK := toFloat(c.Value)

		if !leftOK || !rightOK {
			return false, fmt.Errorf("operator %s requires numeric operands, got %T and %T", c.Operator, actual, c.Value)
		}

		if c.Operator == OperatorGreaterThan {
			return left > right, nil
		}

		return left < right, nil
	case OperatorIn:
		if !found {
			return false, nil
		}

		members := reflect.ValueOf(c.Value)
		if c.Value == nil || (members.Kind() != reflect.Slice && members.Kind() != reflect.Array) {
			return false, fmt.Errorf("operator in requires a list value, got %T", c.Value)
		}

		for i := range members.Len() {
			if looseEqual(actual, members.Index(i).Interface()) {
				return true, nil
			}
		}

		return false, nil
	case OperatorContains:
		if !found {
			return false, nil
		}

		switch haystack := actual.(type) {
		case string:
			needle, ok := c.Value.(string)
			if !ok {
				return false, fmt.Errorf("operator contains on a string field requires a string value, got %T", c.Value)
			}

			return strings.Contains(haystack, needle), nil
		case []any:
			for _, member := range haystack {
				if looseEqual(member, c.Value) {
					return true, nil
				}
			}

			return false, nil
		default:
			return false, fmt.Errorf("operator contains requires a string or list field, got %T", actual)
		}
	default:
		return false, fmt.Errorf("unknown condition operator %q", c.Operator)
	}
}

// lookupPath walks a dotted path through nested map[string]any values.
func lookupPath(data map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	parts := strings.Split(path, ".")

	var current any = data

	for _, part := range parts {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = node[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// looseEqual compares two values, treating all numeric types as equivalent
// so JSON-decoded float64 values match literal ints.
func looseEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)

	if aok && bok {
		return af == bf
	}

	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
