package table

import (
	"reflect"
	"testing"
)

func TestAppendRegistersColumns(t *testing.T) {
	tbl := New("a")
	tbl.Append(Row{"a": 1, "b": 2})

	if !tbl.HasCol("b") {
		t.Fatal("Append did not register unseen column b")
	}
	if tbl.Len() != 1 {
		t.Fatalf("Len() = %d; want 1", tbl.Len())
	}
}

func TestRename(t *testing.T) {
	tbl := New("Raw Name", "Other")
	tbl.Append(Row{"Raw Name": "x", "Other": "y"})

	tbl.Rename(map[string]string{
		"Raw Name": "canonical",
		"absent":   "ignored",
	})

	want := []string{"canonical", "Other"}
	if got := tbl.Cols(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Cols() = %v; want %v", got, want)
	}
	if got := tbl.Rows()[0]["canonical"]; got != "x" {
		t.Fatalf("renamed cell = %v; want x", got)
	}
	if _, ok := tbl.Rows()[0]["Raw Name"]; ok {
		t.Fatal("old key still present after rename")
	}
}

func TestSelectSkipsMissing(t *testing.T) {
	tbl := New("a", "b", "c")
	tbl.Append(Row{"a": 1, "b": 2, "c": 3})

	out := tbl.Select([]string{"c", "missing", "a"})

	want := []string{"c", "a"}
	if got := out.Cols(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Cols() = %v; want %v", got, want)
	}
	if out.Len() != 1 {
		t.Fatalf("Len() = %d; want 1", out.Len())
	}
}

func TestDrop(t *testing.T) {
	tbl := New("a", "b")
	tbl.Append(Row{"a": 1, "b": 2})

	tbl.Drop("a")
	tbl.Drop("absent") // no-op

	if tbl.HasCol("a") {
		t.Fatal("column a still present after Drop")
	}
	if _, ok := tbl.Rows()[0]["a"]; ok {
		t.Fatal("row key a still present after Drop")
	}
}

func TestFilter(t *testing.T) {
	tbl := New("n")
	tbl.Append(Row{"n": 1})
	tbl.Append(Row{"n": 2})
	tbl.Append(Row{"n": 3})

	out := tbl.Filter(func(r Row) bool { return r["n"].(int) != 2 })

	if out.Len() != 2 {
		t.Fatalf("Len() = %d; want 2", out.Len())
	}
	if tbl.Len() != 3 {
		t.Fatalf("source table mutated: Len() = %d; want 3", tbl.Len())
	}
}

func TestConcatUnionsColumns(t *testing.T) {
	a := New("x", "y")
	a.Append(Row{"x": 1, "y": 2})
	b := New("y", "z")
	b.Append(Row{"y": 3, "z": 4})

	out := Concat(a, nil, b)

	want := []string{"x", "y", "z"}
	if got := out.Cols(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Cols() = %v; want %v", got, want)
	}
	if out.Len() != 2 {
		t.Fatalf("Len() = %d; want 2", out.Len())
	}
	// Rows missing a column read as nil.
	if got := out.Rows()[1]["x"]; got != nil {
		t.Fatalf("rows[1][x] = %v; want nil", got)
	}
}

func TestIsBlank(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want bool
	}{
		{"nil", nil, true},
		{"empty string", "", true},
		{"whitespace", "   ", true},
		{"text", "x", false},
		{"zero number", 0.0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBlank(tt.in); got != tt.want {
				t.Fatalf("IsBlank(%v) = %v; want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestAsString(t *testing.T) {
	if got := AsString(nil); got != "" {
		t.Fatalf("AsString(nil) = %q; want empty", got)
	}
	if got := AsString("s"); got != "s" {
		t.Fatalf("AsString(s) = %q; want s", got)
	}
	if got := AsString(1.5); got != "1.5" {
		t.Fatalf("AsString(1.5) = %q; want 1.5", got)
	}
}
