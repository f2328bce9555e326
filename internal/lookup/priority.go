package lookup

import (
	"fmt"

	"mercancia/internal/config"
	"mercancia/internal/table"
)

// Priority-lookup defaults.
const (
	defaultPriorityOn    = "proveedor"
	defaultPriorityOut   = "prioridad"
	defaultPriorityTrace = "MAESTRO_SHEET"
)

// BuildPriorityMaster indexes the priority master by whitespace-collapsed
// provider name. The master must carry PROVEEDOR and PRIORIDAD columns
// (matched case-insensitively); anything else is a fatal configuration
// error. Default dedup policy is first_row.
func BuildPriorityMaster(t *table.Table, policy string) (*Master, error) {
	provCol, ok := findColumn(t, "PROVEEDOR")
	if !ok {
		return nil, fmt.Errorf("lookup: priority master is missing column PROVEEDOR")
	}
	prioCol, ok := findColumn(t, "PRIORIDAD")
	if !ok {
		return nil, fmt.Errorf("lookup: priority master is missing column PRIORIDAD")
	}

	p := policyOr(policy, KeepFirst)
	m := newMaster()
	for _, r := range t.Rows() {
		key := CollapseKey(table.AsString(r[provCol]))
		if key == "" {
			continue
		}
		m.put(key, table.AsString(r[prioCol]), p)
	}
	return m, nil
}

// ApplyPriority joins the priority master onto the working table under the
// lookup's match policy. Default scope is REIM+RSF; cells that already hold
// a priority are left alone unless overwrite is enabled. Matched rows get
// the trace value; unmatched rows optionally fall back to the configured
// default priority with a "DEFAULT" trace.
func ApplyPriority(t *table.Table, lk config.Lookup, m *Master) int {
	if m.Len() == 0 {
		return 0
	}
	mp := lk.MatchPolicy
	srcs := sourceSet(mp.ApplyToSources, []string{"REIM", "RSF"})
	on := columnOr(mp.OnColumn, defaultPriorityOn)
	out := columnOr(mp.WriteTo, defaultPriorityOut)
	overwrite := mp.Overwrite(false)
	traceVal := firstNonEmpty(mp.TraceValue, lk.TraceValue, defaultPriorityTrace)

	t.AddCol(out)
	if mp.TraceField != "" {
		t.AddCol(mp.TraceField)
	}

	matched := 0
	for _, r := range t.Rows() {
		if !srcs[appTag(r)] {
			continue
		}
		if !overwrite && !table.IsBlank(r[out]) {
			continue
		}
		key := CollapseKey(table.AsString(r[on]))
		if v, ok := m.Get(key); ok && key != "" {
			r[out] = v
			if mp.TraceField != "" {
				r[mp.TraceField] = traceVal
			}
			matched++
			continue
		}
		if mp.DefaultPriority != "" {
			if table.IsBlank(r[out]) {
				r[out] = mp.DefaultPriority
			}
			if mp.TraceField != "" && table.IsBlank(r[mp.TraceField]) {
				r[mp.TraceField] = "DEFAULT"
			}
		}
	}
	return matched
}
