// Package post applies the configured post-processing operations to the
// consolidated table. The operation set is closed and named: each op is
// validated when the configuration is compiled, so an unknown op or a
// missing argument fails before any data is read.
package post

import (
	"fmt"
	"time"

	"mercancia/internal/config"
	"mercancia/internal/rules"
	"mercancia/internal/table"
)

// Context carries run-level values operations may depend on.
type Context struct {
	// ExecMonday is the Monday of the execution week.
	ExecMonday time.Time
}

// Op is one compiled post-processing operation.
type Op interface {
	// Name returns the configured op kind, for error messages.
	Name() string
	// Apply mutates the table in place.
	Apply(t *table.Table, ctx Context) error
}

// Compile validates and compiles the configured op list. Any unknown op
// kind or missing argument is a fatal configuration error.
func Compile(ops []config.PostOp) ([]Op, error) {
	out := make([]Op, 0, len(ops))
	for i, o := range ops {
		op, err := compileOne(o)
		if err != nil {
			return nil, fmt.Errorf("post: op %d (%s): %w", i, o.Op, err)
		}
		out = append(out, op)
	}
	return out, nil
}

// Apply runs the compiled ops in order. The first failing op aborts.
func Apply(t *table.Table, ops []Op, ctx Context) error {
	for _, op := range ops {
		if err := op.Apply(t, ctx); err != nil {
			return fmt.Errorf("post: %s: %w", op.Name(), err)
		}
	}
	return nil
}

func compileOne(o config.PostOp) (Op, error) {
	if o.Target == "" {
		return nil, fmt.Errorf("missing target")
	}
	switch o.Op {
	case "coalesce":
		if len(o.Columns) == 0 {
			return nil, fmt.Errorf("missing columns")
		}
		return coalesceOp{target: o.Target, columns: o.Columns}, nil
	case "add_days":
		if o.DateColumn == "" || o.DaysColumn == "" {
			return nil, fmt.Errorf("missing date_column or days_column")
		}
		return addDaysOp{target: o.Target, dateCol: o.DateColumn, daysCol: o.DaysColumn}, nil
	case "set_const":
		return setConstOp{target: o.Target, value: o.Value}, nil
	case "copy_if_blank":
		if o.From == "" {
			return nil, fmt.Errorf("missing from")
		}
		return copyIfBlankOp{target: o.Target, from: o.From}, nil
	case "cash_bucket":
		if o.DueColumn == "" {
			return nil, fmt.Errorf("missing due_column")
		}
		return cashBucketOp{target: o.Target, dueCol: o.DueColumn}, nil
	}
	return nil, fmt.Errorf("unknown op kind")
}

// coalesceOp writes the first non-blank value among columns into target.
type coalesceOp struct {
	target  string
	columns []string
}

func (coalesceOp) Name() string { return "coalesce" }

func (o coalesceOp) Apply(t *table.Table, _ Context) error {
	for _, c := range o.columns {
		if !t.HasCol(c) {
			return fmt.Errorf("column %q not present", c)
		}
	}
	t.AddCol(o.target)
	for _, r := range t.Rows() {
		for _, c := range o.columns {
			if !table.IsBlank(r[c]) {
				r[o.target] = r[c]
				break
			}
		}
	}
	return nil
}

// addDaysOp writes dateCol shifted by daysCol days into target.
type addDaysOp struct {
	target  string
	dateCol string
	daysCol string
}

func (addDaysOp) Name() string { return "add_days" }

func (o addDaysOp) Apply(t *table.Table, _ Context) error {
	if !t.HasCol(o.dateCol) {
		return fmt.Errorf("column %q not present", o.dateCol)
	}
	if !t.HasCol(o.daysCol) {
		return fmt.Errorf("column %q not present", o.daysCol)
	}
	t.AddCol(o.target)
	for _, r := range t.Rows() {
		r[o.target] = rules.AddDays(r[o.dateCol], r[o.daysCol])
	}
	return nil
}

// setConstOp writes a constant into target on every row.
type setConstOp struct {
	target string
	value  string
}

func (setConstOp) Name() string { return "set_const" }

func (o setConstOp) Apply(t *table.Table, _ Context) error {
	t.SetConst(o.target, o.value)
	return nil
}

// copyIfBlankOp fills blank target cells from another column.
type copyIfBlankOp struct {
	target string
	from   string
}

func (copyIfBlankOp) Name() string { return "copy_if_blank" }

func (o copyIfBlankOp) Apply(t *table.Table, _ Context) error {
	if !t.HasCol(o.from) {
		return fmt.Errorf("column %q not present", o.from)
	}
	t.AddCol(o.target)
	for _, r := range t.Rows() {
		if table.IsBlank(r[o.target]) {
			r[o.target] = r[o.from]
		}
	}
	return nil
}

// cashBucketOp writes the cash-day bucket of dueCol, relative to the
// execution Monday, into target.
type cashBucketOp struct {
	target string
	dueCol string
}

func (cashBucketOp) Name() string { return "cash_bucket" }

func (o cashBucketOp) Apply(t *table.Table, ctx Context) error {
	if !t.HasCol(o.dueCol) {
		return fmt.Errorf("column %q not present", o.dueCol)
	}
	t.AddCol(o.target)
	for _, r := range t.Rows() {
		r[o.target] = rules.CashBucket(r[o.dueCol], ctx.ExecMonday)
	}
	return nil
}
