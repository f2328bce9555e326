package lookup

import (
	"testing"

	"mercancia/internal/config"
	"mercancia/internal/table"
)

func boolPtr(b bool) *bool { return &b }

func TestCollapseKey(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "ACME", "ACME"},
		{"inner spaces removed", "ACME  C.A.", "ACMEC.A."},
		{"tabs and nbsp removed", "ACME\t\u00a0CA", "ACMECA"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CollapseKey(tt.in); got != tt.want {
				t.Fatalf("CollapseKey(%q) = %q; want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestProviderKey(t *testing.T) {
	if got := ProviderKey("\u00a0ACME CA\u00a0"); got != "ACME CA" {
		t.Fatalf("ProviderKey = %q; want %q", got, "ACME CA")
	}
	// Inner spacing is preserved: the provider-type join is exact.
	if got := ProviderKey("ACME  CA"); got != "ACME  CA" {
		t.Fatalf("ProviderKey = %q; want inner spacing kept", got)
	}
}

func TestBuildPriorityMasterPolicies(t *testing.T) {
	master := func(policy string) *Master {
		tbl := table.New("PROVEEDOR", "PRIORIDAD")
		tbl.Append(table.Row{"PROVEEDOR": "ACME", "PRIORIDAD": "7"})
		tbl.Append(table.Row{"PROVEEDOR": "ACME ", "PRIORIDAD": "8"}) // same collapsed key
		tbl.Append(table.Row{"PROVEEDOR": "OTRO", "PRIORIDAD": "22"})
		m, err := BuildPriorityMaster(tbl, policy)
		if err != nil {
			t.Fatalf("BuildPriorityMaster(%q): %v", policy, err)
		}
		return m
	}

	first := master("first_row")
	if v, _ := first.Get("ACME"); v != "7" {
		t.Fatalf("first_row winner = %q; want 7", v)
	}
	last := master("last_row")
	if v, _ := last.Get("ACME"); v != "8" {
		t.Fatalf("last_row winner = %q; want 8", v)
	}

	// Keys are unique after dedup, in first-seen order.
	if got := first.Len(); got != 2 {
		t.Fatalf("Len() = %d; want 2", got)
	}
	keys := first.Keys()
	if keys[0] != "ACME" || keys[1] != "OTRO" {
		t.Fatalf("Keys() = %v; want [ACME OTRO]", keys)
	}
}

func TestBuildPriorityMasterMissingColumn(t *testing.T) {
	tbl := table.New("PROVEEDOR", "OTRA")
	tbl.Append(table.Row{"PROVEEDOR": "ACME", "OTRA": "x"})
	if _, err := BuildPriorityMaster(tbl, ""); err == nil {
		t.Fatal("missing PRIORIDAD column did not fail")
	}
}

func TestApplyPriority(t *testing.T) {
	mt := table.New("PROVEEDOR", "PRIORIDAD")
	mt.Append(table.Row{"PROVEEDOR": "ACME C.A.", "PRIORIDAD": "13"})
	m, err := BuildPriorityMaster(mt, "")
	if err != nil {
		t.Fatal(err)
	}

	lk := config.Lookup{
		TraceValue: "MAESTRO_SHEET",
		MatchPolicy: config.MatchPolicy{
			TraceField:      "prioridad_origen",
			DefaultPriority: "99",
		},
	}

	tbl := table.New("origen", "proveedor", "prioridad")
	// Whitespace differences still match.
	tbl.Append(table.Row{"origen": "REIM", "proveedor": " ACME  C.A."})
	// Out-of-scope source is untouched.
	tbl.Append(table.Row{"origen": "EBS", "proveedor": "ACME C.A."})
	// Unmatched provider falls back to the default priority.
	tbl.Append(table.Row{"origen": "RSF", "proveedor": "NADIE"})
	// Pre-filled cells survive without overwrite.
	tbl.Append(table.Row{"origen": "REIM", "proveedor": "ACME C.A.", "prioridad": "5"})

	matched := ApplyPriority(tbl, lk, m)
	if matched != 1 {
		t.Fatalf("matched = %d; want 1", matched)
	}

	rows := tbl.Rows()
	if got := rows[0]["prioridad"]; got != "13" {
		t.Fatalf("rows[0][prioridad] = %v; want 13", got)
	}
	if got := rows[0]["prioridad_origen"]; got != "MAESTRO_SHEET" {
		t.Fatalf("rows[0] trace = %v; want MAESTRO_SHEET", got)
	}
	if got := rows[1]["prioridad"]; got != nil {
		t.Fatalf("rows[1][prioridad] = %v; want nil (EBS out of scope)", got)
	}
	if got := rows[2]["prioridad"]; got != "99" {
		t.Fatalf("rows[2][prioridad] = %v; want default 99", got)
	}
	if got := rows[2]["prioridad_origen"]; got != "DEFAULT" {
		t.Fatalf("rows[2] trace = %v; want DEFAULT", got)
	}
	if got := rows[3]["prioridad"]; got != "5" {
		t.Fatalf("rows[3][prioridad] = %v; want pre-filled 5 kept", got)
	}
}

func TestBuildFactoringMaster(t *testing.T) {
	tbl := table.New("PRIORIDAD", "FACTORING")
	tbl.Append(table.Row{"PRIORIDAD": "7", "FACTORING": "SI"})
	tbl.Append(table.Row{"PRIORIDAD": "7.0", "FACTORING": "NO"}) // same numeric key
	tbl.Append(table.Row{"PRIORIDAD": "alta", "FACTORING": "X"}) // unkeyable, dropped
	tbl.Append(table.Row{"PRIORIDAD": "22", "FACTORING": "NO"})

	fx, err := BuildFactoringMaster(tbl, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(fx) != 2 {
		t.Fatalf("len = %d; want 2", len(fx))
	}
	// Default policy is last_row.
	if fx[7] != "NO" {
		t.Fatalf("fx[7] = %q; want NO", fx[7])
	}

	minFx, err := BuildFactoringMaster(tbl, "min_prioridad")
	if err != nil {
		t.Fatal(err)
	}
	// min_prioridad sorts ascending then keeps the first occurrence.
	if minFx[7] != "SI" {
		t.Fatalf("min fx[7] = %q; want SI", minFx[7])
	}
}

func TestApplyFactoring(t *testing.T) {
	fx := map[float64]string{13: "SI"}
	lk := config.Lookup{MatchPolicy: config.MatchPolicy{TraceField: "factoring_origen"}}

	tbl := table.New("origen", "prioridad", "factoring")
	tbl.Append(table.Row{"origen": "EBS", "prioridad": "13"})
	// Overwrite defaults true: a stale value on an unmatched row is cleared.
	tbl.Append(table.Row{"origen": "EBS", "prioridad": "7", "factoring": "STALE"})

	matched := ApplyFactoring(tbl, lk, fx)
	if matched != 1 {
		t.Fatalf("matched = %d; want 1", matched)
	}
	rows := tbl.Rows()
	if got := rows[0]["factoring"]; got != "SI" {
		t.Fatalf("rows[0][factoring] = %v; want SI", got)
	}
	if got := rows[0]["factoring_origen"]; got != "MAESTRO_SHEET_FACT" {
		t.Fatalf("rows[0] trace = %v; want MAESTRO_SHEET_FACT", got)
	}
	if got := rows[1]["factoring"]; got != nil {
		t.Fatalf("rows[1][factoring] = %v; want nil (cleared)", got)
	}
}

func TestApplyTipo(t *testing.T) {
	mt := table.New("PROVEEDOR", "TIPO")
	mt.Append(table.Row{"PROVEEDOR": "ACME\u00a0CA", "TIPO": "ALMACEN"})
	m, err := BuildTipoMaster(mt, "")
	if err != nil {
		t.Fatal(err)
	}

	lk := config.Lookup{
		MatchPolicyConsolidated: config.MatchPolicy{
			Enabled:    true,
			TraceField: "tipo_origen",
		},
	}

	tbl := table.New("origen", "proveedor", "tipo")
	// NBSP in either side still matches; scope defaults to all sources.
	tbl.Append(table.Row{"origen": "EBS", "proveedor": "ACME CA"})
	tbl.Append(table.Row{"origen": "RSF", "proveedor": "ACME\u00a0CA"})
	// Exact matching otherwise: doubled spaces do not match.
	tbl.Append(table.Row{"origen": "REIM", "proveedor": "ACME  CA"})

	matched := ApplyTipo(tbl, lk, m)
	if matched != 2 {
		t.Fatalf("matched = %d; want 2", matched)
	}
	rows := tbl.Rows()
	if got := rows[0]["tipo"]; got != "ALMACEN" {
		t.Fatalf("rows[0][tipo] = %v; want ALMACEN", got)
	}
	if got := rows[0]["tipo_origen"]; got != "MAESTRO_TIPO" {
		t.Fatalf("rows[0] trace = %v; want MAESTRO_TIPO", got)
	}
	if got := rows[2]["tipo"]; got != nil {
		t.Fatalf("rows[2][tipo] = %v; want nil (no exact match)", got)
	}
}

func TestApplyTipoDisabled(t *testing.T) {
	mt := table.New("PROVEEDOR", "TIPO")
	mt.Append(table.Row{"PROVEEDOR": "ACME", "TIPO": "ALMACEN"})
	m, _ := BuildTipoMaster(mt, "")

	tbl := table.New("origen", "proveedor")
	tbl.Append(table.Row{"origen": "EBS", "proveedor": "ACME"})

	if got := ApplyTipo(tbl, config.Lookup{}, m); got != 0 {
		t.Fatalf("disabled consolidated policy matched %d rows; want 0", got)
	}
}

func TestApplyRespectsOverwriteFlag(t *testing.T) {
	mt := table.New("PROVEEDOR", "PRIORIDAD")
	mt.Append(table.Row{"PROVEEDOR": "ACME", "PRIORIDAD": "13"})
	m, _ := BuildPriorityMaster(mt, "")

	lk := config.Lookup{MatchPolicy: config.MatchPolicy{OverwriteExisting: boolPtr(true)}}

	tbl := table.New("origen", "proveedor", "prioridad")
	tbl.Append(table.Row{"origen": "REIM", "proveedor": "ACME", "prioridad": "5"})

	if got := ApplyPriority(tbl, lk, m); got != 1 {
		t.Fatalf("matched = %d; want 1", got)
	}
	if got := tbl.Rows()[0]["prioridad"]; got != "13" {
		t.Fatalf("prioridad = %v; want overwritten 13", got)
	}
}
