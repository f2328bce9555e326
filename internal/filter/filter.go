// Package filter compiles and evaluates configuration-supplied row
// predicates. Predicates are CEL expressions over a single "row" variable (a
// map of column name to cell value), e.g.:
//
//	row["estatus"] == "APROBADO"
//	"monto_neto" in row && row["monto_neto"] != null
//
// Filters come from configuration, so failures are configuration errors:
// an expression that does not compile fails at load time, and one that does
// not evaluate to a boolean fails the run. Rows are never silently kept or
// dropped on error.
package filter

import (
	"fmt"
	"reflect"

	"github.com/google/cel-go/cel"

	"mercancia/internal/table"
)

// Predicate is one compiled row filter.
type Predicate struct {
	expr string
	prg  cel.Program
}

// Expr returns the source expression, for diagnostics.
func (p Predicate) Expr() string { return p.expr }

// newEnv builds the shared CEL environment: one dynamic map variable named
// "row".
func newEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("row", cel.MapType(cel.StringType, cel.DynType)),
	)
}

// Compile compiles a list of filter expressions. Any compile failure aborts
// with an error naming the offending expression.
func Compile(exprs []string) ([]Predicate, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	env, err := newEnv()
	if err != nil {
		return nil, fmt.Errorf("filter: env: %w", err)
	}

	out := make([]Predicate, 0, len(exprs))
	for _, expr := range exprs {
		ast, iss := env.Compile(expr)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("filter: compile %q: %w", expr, iss.Err())
		}
		if !reflect.DeepEqual(ast.OutputType(), cel.BoolType) {
			return nil, fmt.Errorf("filter: %q does not evaluate to a boolean", expr)
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("filter: program %q: %w", expr, err)
		}
		out = append(out, Predicate{expr: expr, prg: prg})
	}
	return out, nil
}

// Eval evaluates the predicate against one row.
func (p Predicate) Eval(row table.Row) (bool, error) {
	val, _, err := p.prg.Eval(map[string]any{"row": map[string]any(row)})
	if err != nil {
		return false, fmt.Errorf("filter: eval %q: %w", p.expr, err)
	}
	b, ok := val.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter: %q returned %T, want bool", p.expr, val.Value())
	}
	return b, nil
}

// Apply keeps the rows for which every predicate is true. The first
// evaluation error aborts.
func Apply(t *table.Table, preds []Predicate) (*table.Table, error) {
	if len(preds) == 0 {
		return t, nil
	}
	out := table.New(t.Cols()...)
	for _, r := range t.Rows() {
		keep := true
		for _, p := range preds {
			ok, err := p.Eval(r)
			if err != nil {
				return nil, err
			}
			if !ok {
				keep = false
				break
			}
		}
		if keep {
			out.Append(r)
		}
	}
	return out, nil
}
