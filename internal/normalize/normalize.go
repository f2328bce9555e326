// Package normalize maps one raw source extract onto the canonical schema.
// Everything it does is driven by the country configuration: column renames,
// constant columns, per-source date formats, text normalization, value
// substitution, schema typing and row filters, applied in that fixed order.
package normalize

import (
	"fmt"
	"strings"

	"mercancia/internal/coerce"
	"mercancia/internal/config"
	"mercancia/internal/filter"
	"mercancia/internal/table"
)

// dateColumns are the business date columns that always receive the smart
// coercion ladder after the source-specific "fecha" handling.
var dateColumns = []string{"fecha_creacion", "fecha_vencimiento", "fecha_recepcion"}

// Source normalizes one raw table for the given source kind ("ebs", "reim"
// or "rsf"). The output carries every schema-declared column (missing ones
// synthesized as nil) plus "origen". Row-filter problems are fatal; data
// problems degrade to nil cells.
func Source(raw *table.Table, kind string, cfg config.Country, schema config.Schema) (*table.Table, error) {
	preds, err := filter.Compile(cfg.Filters[kind])
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", kind, err)
	}

	t := cloneRows(raw)

	// (a) rename raw headers onto canonical names.
	t.Rename(cfg.ColumnMaps[kind])

	// (b) constant columns, (c) source tag.
	for k, v := range cfg.Const {
		t.SetConst(k, v)
	}
	t.SetConst("origen", strings.ToUpper(kind))

	// (d) source-specific fecha parsing.
	if t.HasCol("fecha") {
		layout := cfg.DateFormats[kind]
		for _, r := range t.Rows() {
			if layout != "" {
				r["fecha"] = coerce.DateWithLayout(r["fecha"], layout)
			} else {
				r["fecha"] = coerce.Date(r["fecha"])
			}
		}
	}

	// (e) smart coercion for the known business date columns.
	for _, col := range dateColumns {
		if !t.HasCol(col) {
			continue
		}
		for _, r := range t.Rows() {
			r[col] = coerce.Date(r[col])
		}
	}

	// (f) text normalization, (g) value substitution.
	applyTextNormalize(t, cfg.TextNormalize)
	applyValueMaps(t, cfg.ValueMaps)

	// (h) schema typing; synthesizes missing schema columns as nil.
	coerce.Cast(t, schema.DTypes)

	// (i) row filters.
	t, err = filter.Apply(t, preds)
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", kind, err)
	}
	return t, nil
}

// cloneRows copies the table shallowly but with fresh row maps, so the
// normalizer never mutates the raw table that is later exported as-is.
func cloneRows(raw *table.Table) *table.Table {
	t := table.New(raw.Cols()...)
	for _, r := range raw.Rows() {
		cp := make(table.Row, len(r))
		for k, v := range r {
			cp[k] = v
		}
		t.Append(cp)
	}
	return t
}

func applyTextNormalize(t *table.Table, n config.TextNormalize) {
	apply := func(cols []string, f func(string) string) {
		for _, col := range cols {
			if !t.HasCol(col) {
				continue
			}
			for _, r := range t.Rows() {
				if s, ok := r[col].(string); ok {
					r[col] = f(s)
				}
			}
		}
	}
	apply(n.Strip, strings.TrimSpace)
	apply(n.Upper, strings.ToUpper)
	apply(n.Lower, strings.ToLower)
}

func applyValueMaps(t *table.Table, maps map[string]map[string]string) {
	for col, mapping := range maps {
		if !t.HasCol(col) || len(mapping) == 0 {
			continue
		}
		for _, r := range t.Rows() {
			if s, ok := r[col].(string); ok {
				if repl, ok := mapping[s]; ok {
					r[col] = repl
				}
			}
		}
	}
}
