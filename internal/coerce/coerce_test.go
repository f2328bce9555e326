package coerce

import (
	"testing"
	"time"

	"mercancia/internal/table"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello", "hello"},
		{"nbsp becomes space", "A\u00a0B", "A B"},
		{"nbsp at edges trimmed", "\u00a0X\u00a0", "X"},
		{"zero width removed", "A\u200bB\u200c\u200dC", "ABC"},
		{"bom removed", "\ufeffvalue", "value"},
		{"whitespace trimmed", "  v  ", "v"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanText(tt.in); got != tt.want {
				t.Fatalf("CleanText(%q) = %q; want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDate(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		// ISO-shaped values parse year-first.
		{"iso date", "2024-03-05", date(2024, 3, 5)},
		{"iso datetime", "2024-03-05 10:30:00", time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)},
		{"iso t separator", "2024-03-05T10:30:00", time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)},

		// Anything else parses day-first.
		{"day first slash", "05/03/2024", date(2024, 3, 5)},
		{"day first single digits", "5/3/2024", date(2024, 3, 5)},
		{"day first with time", "5/3/2024 10:30:00", time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)},
		{"day first dash", "05-03-2024", date(2024, 3, 5)},
		{"ambiguous resolves day first", "02/03/2024", date(2024, 3, 2)},

		// Spreadsheet serial fallback, 1899-12-30 epoch.
		{"serial whole day", "45292", date(2024, 1, 1)},
		{"serial with fraction", "45292.5", time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},

		// Totality: garbage and blanks become nil.
		{"nonsense", "mañana", nil},
		{"empty", "", nil},
		{"whitespace only", "   ", nil},
		{"nil passes through", nil, nil},

		// Idempotence on typed values.
		{"time passes through", date(2020, 1, 2), date(2020, 1, 2)},

		// NBSP padding does not break parsing.
		{"nbsp padded", "\u00a02024-03-05\u00a0", date(2024, 3, 5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Date(tt.in)
			if got != tt.want {
				t.Fatalf("Date(%v) = %v; want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDateWithLayout(t *testing.T) {
	if got := DateWithLayout("03/05/2024", "01/02/2006"); got != date(2024, 3, 5) {
		t.Fatalf("DateWithLayout month-first = %v; want %v", got, date(2024, 3, 5))
	}
	if got := DateWithLayout("garbage", "01/02/2006"); got != nil {
		t.Fatalf("DateWithLayout(garbage) = %v; want nil", got)
	}
	if got := DateWithLayout(date(2021, 6, 1), "01/02/2006"); got != date(2021, 6, 1) {
		t.Fatalf("DateWithLayout on time.Time = %v; want passthrough", got)
	}
}

func TestNumber(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"plain", "42", 42.0},
		{"decimal", "42.5", 42.5},
		{"negative", "-10.25", -10.25},
		{"european thousands", "1.234,56", 1234.56},
		{"european decimal only", "12,5", 12.5},
		{"float passes through", 3.5, 3.5},
		{"int becomes float", 7, 7.0},
		{"garbage", "N/A", nil},
		{"empty", "", nil},
		{"nil", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Number(tt.in)
			if got != tt.want {
				t.Fatalf("Number(%v) = %v; want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCast(t *testing.T) {
	tbl := table.New("a", "b")
	tbl.Append(table.Row{"a": "5/3/2024", "b": "1.234,56"})
	tbl.Append(table.Row{"a": "bad", "b": "bad"})

	Cast(tbl, map[string]string{"a": "date", "b": "number", "c": "string"})

	// Missing schema columns are synthesized.
	if !tbl.HasCol("c") {
		t.Fatal("Cast did not synthesize missing column c")
	}

	rows := tbl.Rows()
	if got := rows[0]["a"]; got != date(2024, 3, 5) {
		t.Fatalf("rows[0][a] = %v; want %v", got, date(2024, 3, 5))
	}
	if got := rows[0]["b"]; got != 1234.56 {
		t.Fatalf("rows[0][b] = %v; want 1234.56", got)
	}
	if got := rows[1]["a"]; got != nil {
		t.Fatalf("rows[1][a] = %v; want nil", got)
	}
	if got := rows[1]["b"]; got != nil {
		t.Fatalf("rows[1][b] = %v; want nil", got)
	}
	if got := rows[0]["c"]; got != nil {
		t.Fatalf("rows[0][c] = %v; want nil", got)
	}
}
