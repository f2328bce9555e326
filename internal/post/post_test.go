package post

import (
	"testing"
	"time"

	"mercancia/internal/config"
	"mercancia/internal/table"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCompileRejectsBadOps(t *testing.T) {
	tests := []struct {
		name string
		op   config.PostOp
	}{
		{"unknown kind", config.PostOp{Op: "uppercase", Target: "x"}},
		{"missing target", config.PostOp{Op: "set_const"}},
		{"coalesce without columns", config.PostOp{Op: "coalesce", Target: "x"}},
		{"add_days without columns", config.PostOp{Op: "add_days", Target: "x"}},
		{"copy_if_blank without from", config.PostOp{Op: "copy_if_blank", Target: "x"}},
		{"cash_bucket without due column", config.PostOp{Op: "cash_bucket", Target: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Compile([]config.PostOp{tt.op}); err == nil {
				t.Fatalf("Compile(%+v) did not fail", tt.op)
			}
		})
	}
}

func TestCoalesce(t *testing.T) {
	ops, err := Compile([]config.PostOp{{
		Op: "coalesce", Target: "fecha_vencimiento",
		Columns: []string{"fecha_vencimiento", "fecha_vencimiento_verdadero"},
	}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	tbl := table.New("fecha_vencimiento", "fecha_vencimiento_verdadero")
	tbl.Append(table.Row{"fecha_vencimiento": date(2024, 1, 5)})
	tbl.Append(table.Row{"fecha_vencimiento_verdadero": date(2024, 1, 9)})
	tbl.Append(table.Row{})

	if err := Apply(tbl, ops, Context{}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	rows := tbl.Rows()
	if got := rows[0]["fecha_vencimiento"]; got != date(2024, 1, 5) {
		t.Fatalf("rows[0] = %v; want first column kept", got)
	}
	if got := rows[1]["fecha_vencimiento"]; got != date(2024, 1, 9) {
		t.Fatalf("rows[1] = %v; want fallback value", got)
	}
	if got := rows[2]["fecha_vencimiento"]; got != nil {
		t.Fatalf("rows[2] = %v; want nil (nothing to coalesce)", got)
	}
}

func TestCoalesceMissingColumnIsFatal(t *testing.T) {
	ops, err := Compile([]config.PostOp{{
		Op: "coalesce", Target: "x", Columns: []string{"ausente"},
	}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if err := Apply(table.New("otra"), ops, Context{}); err == nil {
		t.Fatal("missing referenced column did not fail")
	}
}

func TestAddDays(t *testing.T) {
	ops, err := Compile([]config.PostOp{{
		Op: "add_days", Target: "fecha_vencimiento_verdadero",
		DateColumn: "fecha_recepcion", DaysColumn: "dias_condicion",
	}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	tbl := table.New("fecha_recepcion", "dias_condicion")
	tbl.Append(table.Row{"fecha_recepcion": date(2024, 1, 1), "dias_condicion": 30.0})
	tbl.Append(table.Row{"fecha_recepcion": date(2024, 1, 1)})

	if err := Apply(tbl, ops, Context{}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := tbl.Rows()[0]["fecha_vencimiento_verdadero"]; got != date(2024, 1, 31) {
		t.Fatalf("rows[0] = %v; want %v", got, date(2024, 1, 31))
	}
	if got := tbl.Rows()[1]["fecha_vencimiento_verdadero"]; got != nil {
		t.Fatalf("rows[1] = %v; want nil (missing days)", got)
	}
}

func TestSetConstAndCopyIfBlank(t *testing.T) {
	ops, err := Compile([]config.PostOp{
		{Op: "set_const", Target: "moneda", Value: "VES"},
		{Op: "copy_if_blank", Target: "fecha", From: "fecha_creacion"},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	tbl := table.New("fecha", "fecha_creacion")
	tbl.Append(table.Row{"fecha": date(2024, 2, 1), "fecha_creacion": date(2024, 1, 1)})
	tbl.Append(table.Row{"fecha_creacion": date(2024, 1, 1)})

	if err := Apply(tbl, ops, Context{}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	rows := tbl.Rows()
	if got := rows[0]["moneda"]; got != "VES" {
		t.Fatalf("moneda = %v; want VES", got)
	}
	if got := rows[0]["fecha"]; got != date(2024, 2, 1) {
		t.Fatalf("rows[0][fecha] = %v; want untouched", got)
	}
	if got := rows[1]["fecha"]; got != date(2024, 1, 1) {
		t.Fatalf("rows[1][fecha] = %v; want copied", got)
	}
}

func TestCashBucketOp(t *testing.T) {
	ops, err := Compile([]config.PostOp{{
		Op: "cash_bucket", Target: "Caja", DueColumn: "fecha_vencimiento",
	}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	tbl := table.New("fecha_vencimiento")
	tbl.Append(table.Row{"fecha_vencimiento": date(2024, 1, 2)})
	tbl.Append(table.Row{"fecha_vencimiento": date(2024, 1, 4)})
	tbl.Append(table.Row{})

	ctx := Context{ExecMonday: date(2024, 1, 1)}
	if err := Apply(tbl, ops, ctx); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	rows := tbl.Rows()
	if got := rows[0]["Caja"]; got != "Martes" {
		t.Fatalf("rows[0][Caja] = %v; want Martes", got)
	}
	if got := rows[1]["Caja"]; got != "Jueves" {
		t.Fatalf("rows[1][Caja] = %v; want Jueves", got)
	}
	if got := rows[2]["Caja"]; got != "No aplica" {
		t.Fatalf("rows[2][Caja] = %v; want No aplica", got)
	}
}
