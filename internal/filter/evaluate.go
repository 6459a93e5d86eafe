package filter

import (
	"fmt"

	"github.com/Knetic/govaluate"
)

// Functions is the built-in table of named unary operators available to the
// in-process flavor, mirroring the "dispatch as a named comparison method"
// rule without reflection.
var Functions = map[string]govaluate.ExpressionFunction{
	"startswith": func(args ...interface{}) (interface{}, error) {
		return stringFn(args, func(s, prefix string) bool { return len(s) >= len(prefix) && s[:len(prefix)] == prefix })
	},
	"endswith": func(args ...interface{}) (interface{}, error) {
		return stringFn(args, func(s, suffix string) bool {
			return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
		})
	},
	"contains": func(args ...interface{}) (interface{}, error) {
		return stringFn(args, containsSubstring)
	},
	"matches": func(args ...interface{}) (interface{}, error) {
		return stringFn(args, regexMatches)
	},
	"in": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return false, fmt.Errorf("in() requires two arguments")
		}
		list, ok := args[1].([]interface{})
		if !ok {
			return false, nil
		}
		for _, v := range list {
			if v == args[0] {
				return true, nil
			}
		}
		return false, nil
	},
}

func stringFn(args []interface{}, f func(a, b string) bool) (interface{}, error) {
	if len(args) != 2 {
		return false, fmt.Errorf("string function requires two arguments")
	}
	a, aok := args[0].(string)
	b, bok := args[1].(string)
	if !aok || !bok {
		return false, nil
	}
	return f(a, b), nil
}

// Evaluator compiles an Expression once and evaluates it repeatedly against
// records, mirroring govaluate's use in the transform/app layers this was
// grounded on.
type Evaluator struct {
	expr *govaluate.EvaluableExpression
}

// Compile renders expr to the InProcess flavor and compiles it with the
// built-in function table.
func Compile(expr Expression, fieldTypes map[string]string) (*Evaluator, error) {
	rendered, err := expr.Render(InProcess, "", fieldTypes)
	if err != nil {
		return nil, fmt.Errorf("filter: render for evaluation: %w", err)
	}
	compiled, err := govaluate.NewEvaluableExpressionWithFunctions(rendered, Functions)
	if err != nil {
		return nil, fmt.Errorf("filter: compile %q: %w", rendered, err)
	}
	return &Evaluator{expr: compiled}, nil
}

// Evaluate runs the compiled expression against a record, exposed as
// govaluate parameters keyed by field name.
func (e *Evaluator) Evaluate(record map[string]interface{}) (bool, error) {
	result, err := e.expr.Evaluate(record)
	if err != nil {
		return false, fmt.Errorf("filter: evaluate: %w", err)
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("filter: expression did not evaluate to bool, got %T", result)
	}
	return b, nil
}
