// Package coerce converts raw text cells to typed values. Every function is
// total: a value that cannot be interpreted becomes nil, never an error, and
// re-applying a conversion to an already-typed value is a no-op.
package coerce

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"mercancia/internal/table"
)

// isoPattern matches YYYY-MM-DD with an optional time component. Values in
// this shape parse year-first; everything else parses day-first.
var isoPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}([ T]\d{2}:\d{2}:\d{2})?$`)

// serialEpoch is the spreadsheet serial-date origin.
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

var isoLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

var dayFirstLayouts = []string{
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006",
	"2-1-2006 15:04:05",
	"2-1-2006",
	"2.1.2006",
	"2/1/06",
	"2-1-06",
}

// CleanText normalizes the invisible garbage that shows up in real extracts:
// NBSP becomes a regular space, zero-width runes are removed, and the result
// is trimmed.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\ufeff':
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// Date interprets a cell as a date. Strategy ladder: ISO-shaped values parse
// year-first, other text parses day-first, and whatever remains is retried
// as a numeric day count from the 1899-12-30 epoch. Returns time.Time or nil.
func Date(v any) any {
	switch d := v.(type) {
	case nil:
		return nil
	case time.Time:
		return d
	}

	s := CleanText(table.AsString(v))
	if s == "" {
		return nil
	}

	layouts := dayFirstLayouts
	if isoPattern.MatchString(s) {
		layouts = isoLayouts
	}
	for _, layout := range layouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d
		}
	}

	// Spreadsheet serial fallback.
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		days := math.Trunc(f)
		frac := f - days
		return serialEpoch.AddDate(0, 0, int(days)).
			Add(time.Duration(frac * 24 * float64(time.Hour)))
	}
	return nil
}

// DateWithLayout parses a cell against one explicit layout. Typed values
// pass through; parse failures become nil.
func DateWithLayout(v any, layout string) any {
	switch d := v.(type) {
	case nil:
		return nil
	case time.Time:
		return d
	}
	s := CleanText(table.AsString(v))
	if s == "" {
		return nil
	}
	if d, err := time.Parse(layout, s); err == nil {
		return d
	}
	return nil
}

// Number interprets a cell as a number. The standard decimal convention is
// tried first; failures retry with '.' as thousands separator and ',' as the
// decimal mark. Returns float64 or nil.
func Number(v any) any {
	switch n := v.(type) {
	case nil:
		return nil
	case float64:
		return n
	case int:
		return float64(n)
	}

	s := CleanText(table.AsString(v))
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	alt := strings.ReplaceAll(s, ".", "")
	alt = strings.ReplaceAll(alt, ",", ".")
	if f, err := strconv.ParseFloat(alt, 64); err == nil {
		return f
	}
	return nil
}

// Cast applies the schema's declared types to the table. Columns the table
// lacks are synthesized as nil first, so schema-declared columns always
// exist afterwards. Unrecognized type names leave cells untouched.
func Cast(t *table.Table, dtypes map[string]string) {
	for col, typ := range dtypes {
		t.AddCol(col)
		for _, r := range t.Rows() {
			v := r[col]
			switch typ {
			case "date":
				r[col] = Date(v)
			case "number":
				r[col] = Number(v)
			case "string":
				if v == nil {
					continue
				}
				if _, ok := v.(string); !ok {
					r[col] = table.AsString(v)
				}
			}
		}
	}
}
