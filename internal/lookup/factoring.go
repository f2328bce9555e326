package lookup

import (
	"fmt"

	"mercancia/internal/coerce"
	"mercancia/internal/config"
	"mercancia/internal/table"
)

// Factoring-lookup defaults.
const (
	defaultFactoringOn    = "prioridad"
	defaultFactoringOut   = "factoring"
	defaultFactoringTrace = "MAESTRO_SHEET_FACT"
)

// BuildFactoringMaster indexes the factoring master by numeric priority.
// The master must carry PRIORIDAD and FACTORING columns (matched
// case-insensitively); rows whose priority does not parse as a number are
// dropped, since they can never join. Default dedup policy is last_row.
func BuildFactoringMaster(t *table.Table, policy string) (map[float64]string, error) {
	prioCol, ok := findColumn(t, "PRIORIDAD")
	if !ok {
		return nil, fmt.Errorf("lookup: factoring master is missing column PRIORIDAD")
	}
	factCol, ok := findColumn(t, "FACTORING")
	if !ok {
		return nil, fmt.Errorf("lookup: factoring master is missing column FACTORING")
	}

	var entries []numericEntry
	for _, r := range t.Rows() {
		n, ok := coerce.Number(r[prioCol]).(float64)
		if !ok {
			continue
		}
		entries = append(entries, numericEntry{key: n, val: table.AsString(r[factCol])})
	}
	return dedupNumeric(entries, policyOr(policy, KeepLast)), nil
}

// ApplyFactoring joins the factoring master by numeric priority. Overwrite
// defaults to true: with overwrite on, unmatched rows have their output
// cell cleared rather than left stale.
func ApplyFactoring(t *table.Table, lk config.Lookup, fx map[float64]string) int {
	if len(fx) == 0 {
		return 0
	}
	mp := lk.MatchPolicy
	on := columnOr(mp.OnColumn, defaultFactoringOn)
	out := columnOr(mp.WriteTo, defaultFactoringOut)
	overwrite := mp.Overwrite(true)
	traceVal := firstNonEmpty(mp.TraceValue, lk.TraceValue, defaultFactoringTrace)

	t.AddCol(out)
	if mp.TraceField != "" {
		t.AddCol(mp.TraceField)
	}

	matched := 0
	for _, r := range t.Rows() {
		var val any
		found := false
		if n, ok := coerce.Number(r[on]).(float64); ok {
			if v, ok := fx[n]; ok {
				val, found = v, true
			}
		}
		switch {
		case overwrite:
			r[out] = val
		case found && table.IsBlank(r[out]):
			r[out] = val
		}
		if found {
			if mp.TraceField != "" {
				r[mp.TraceField] = traceVal
			}
			matched++
		}
	}
	return matched
}
