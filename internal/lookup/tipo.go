package lookup

import (
	"fmt"

	"mercancia/internal/config"
	"mercancia/internal/table"
)

// Provider-type lookup defaults.
const (
	defaultTipoOn    = "proveedor"
	defaultTipoOut   = "tipo"
	defaultTipoTrace = "MAESTRO_TIPO"
)

// BuildTipoMaster indexes the provider-type master by normalized provider
// name (NBSP folded to space, trimmed; otherwise exact and case-sensitive).
// The master must carry PROVEEDOR and TIPO columns. Default dedup policy is
// last_row. The resulting Master keeps master order so it can back the AUX
// export sheet.
func BuildTipoMaster(t *table.Table, policy string) (*Master, error) {
	provCol, ok := findColumn(t, "PROVEEDOR")
	if !ok {
		return nil, fmt.Errorf("lookup: provider-type master is missing column PROVEEDOR")
	}
	tipoCol, ok := findColumn(t, "TIPO")
	if !ok {
		return nil, fmt.Errorf("lookup: provider-type master is missing column TIPO")
	}

	p := policyOr(policy, KeepLast)
	m := newMaster()
	for _, r := range t.Rows() {
		key := ProviderKey(table.AsString(r[provCol]))
		if key == "" {
			continue
		}
		m.put(key, ProviderKey(table.AsString(r[tipoCol])), p)
	}
	return m, nil
}

// ApplyTipo joins the provider-type master onto the consolidated table
// under the lookup's consolidated match policy. Default scope is all three
// sources; by default only blank output cells are filled.
func ApplyTipo(t *table.Table, lk config.Lookup, m *Master) int {
	mp := lk.MatchPolicyConsolidated
	if !mp.Enabled || m.Len() == 0 {
		return 0
	}
	srcs := sourceSet(mp.ApplyToSources, []string{"EBS", "REIM", "RSF"})
	on := columnOr(mp.OnColumn, defaultTipoOn)
	out := columnOr(mp.WriteTo, defaultTipoOut)
	overwrite := mp.Overwrite(false)
	traceVal := firstNonEmpty(mp.TraceValue, lk.TraceValue, defaultTipoTrace)

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
		key := ProviderKey(table.AsString(r[on]))
		if v, ok := m.Get(key); ok {
			r[out] = v
			if mp.TraceField != "" {
				r[mp.TraceField] = traceVal
			}
			matched++
		}
	}
	return matched
}
