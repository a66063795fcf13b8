// Package conditions evaluates the routing rules attached to condition
// nodes. A rule compares its left and right operands with one of the fixed
// comparison types, or evaluates a free-form expression against the node's
// environment. The scheduler evaluates a condition node's rules against its
// outputs and records the selected output index; it does not yet prune
// branches on the outcome.
package conditions

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/sadadonline17-oss/ai-manus-unified/runtime/workflow"
)

// Comparison programs by condition type. Operands are bound as left/right.
var comparisons = map[string]string{
	"equals":     "left == right",
	"not_equals": "left != right",
	"contains":   "string(left) contains string(right)",
	"greater":    "float(left) > float(right)",
	"less":       "float(left) < float(right)",
}

var (
	compileOnce sync.Once
	compiled    map[string]*vm.Program
	compileErr  error
)

func compiledComparisons() (map[string]*vm.Program, error) {
	compileOnce.Do(func() {
		compiled = make(map[string]*vm.Program, len(comparisons))
		for name, src := range comparisons {
			p, err := expr.Compile(src)
			if err != nil {
				compileErr = fmt.Errorf("compile %s: %w", name, err)
				return
			}
			compiled[name] = p
		}
	})
	return compiled, compileErr
}

// Evaluate runs one condition against the given environment. For the fixed
// comparison types the environment is ignored; the operands come from the
// condition itself. For type "expression" the condition's left operand is
// compiled as an expression and evaluated against env.
func Evaluate(c workflow.Condition, env map[string]any) (bool, error) {
	if c.Type == "expression" {
		src, ok := c.Left.(string)
		if !ok {
			return false, fmt.Errorf("expression condition requires a string expression, got %T", c.Left)
		}
		if env == nil {
			env = map[string]any{}
		}
		// Bind the environment at compile time so its keys shadow expr
		// builtins of the same name (a `count` output must not resolve to
		// the count() builtin).
		program, err := expr.Compile(src, expr.Env(env), expr.AllowUndefinedVariables(), expr.AsBool())
		if err != nil {
			return false, fmt.Errorf("compile expression: %w", err)
		}
		out, err := expr.Run(program, env)
		if err != nil {
			return false, fmt.Errorf("evaluate expression: %w", err)
		}
		return out.(bool), nil
	}

	programs, err := compiledComparisons()
	if err != nil {
		return false, err
	}
	program, ok := programs[c.Type]
	if !ok {
		return false, fmt.Errorf("unknown condition type: %s", c.Type)
	}
	out, err := expr.Run(program, map[string]any{"left": c.Left, "right": c.Right})
	if err != nil {
		return false, fmt.Errorf("evaluate %s condition: %w", c.Type, err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition %s produced %T, want bool", c.Type, out)
	}
	return b, nil
}

// Select evaluates the conditions in order and returns the output index of
// the first one that matches. The second return value is false when no
// condition matches or every matching attempt errored.
func Select(conds []workflow.Condition, env map[string]any) (int, bool) {
	for _, c := range conds {
		ok, err := Evaluate(c, env)
		if err != nil {
			continue
		}
		if ok {
			return c.Output, true
		}
	}
	return 0, false
}
