package rules

import (
	"fmt"
	"strings"
	"time"

	"mercancia/internal/coerce"
	"mercancia/internal/config"
	"mercancia/internal/lookup"
	"mercancia/internal/table"
)

// Country-specific column names on the consolidated table.
const (
	ColCaja     = "Caja"
	ColGrupo    = "Grupo de Pago"
	ColFechaDoc = "fecha_documento"
)

// Env carries the cross-cutting inputs country rules need: the execution
// Monday, the untouched raw source tables (for fallback joins), the
// per-source column maps, and the provider-type master.
type Env struct {
	ExecMonday time.Time
	Raw        map[string]*table.Table
	ColumnMaps map[string]map[string]string
	Tipo       *lookup.Master
}

// Strategy is the per-country shape of the pipeline. It is resolved once
// from the configured country code and never re-dispatched per row.
type Strategy interface {
	// Code returns the two-letter country code.
	Code() string
	// Enrich applies the country's derived columns to the consolidated
	// table, in place.
	Enrich(t *table.Table, env Env)
	// FilterAllowed drops rows outside the country's allowed cash-day and
	// payment-group sets.
	FilterAllowed(t *table.Table, exp config.Export) *table.Table
	// DropColumns names consolidated columns the country excludes from the
	// final output.
	DropColumns() []string
	// OrderExtras names columns appended after the schema order.
	OrderExtras() []string
	// ExportOrder overrides the export column order; nil defers to config.
	ExportOrder() []string
}

// ForCountry resolves the strategy for a country code.
func ForCountry(code string) (Strategy, error) {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case config.CountryCO:
		return colombia{}, nil
	case config.CountryVE:
		return venezuela{}, nil
	}
	return nil, fmt.Errorf("rules: unsupported country %q", code)
}

// colombia keeps the consolidated table lean: no derived payment columns,
// no allowed-set filtering.
type colombia struct{}

func (colombia) Code() string                                              { return config.CountryCO }
func (colombia) Enrich(*table.Table, Env)                                  {}
func (colombia) FilterAllowed(t *table.Table, _ config.Export) *table.Table { return t }
func (colombia) DropColumns() []string                                     { return []string{ColGrupo} }
func (colombia) OrderExtras() []string                                     { return nil }
func (colombia) ExportOrder() []string                                     { return nil }

// venezuela derives the payment-planning columns (document date, payment
// group, cash day) and narrows the export to the business-facing set.
type venezuela struct{}

func (venezuela) Code() string { return config.CountryVE }

func (venezuela) Enrich(t *table.Table, env Env) {
	t.AddCol(ColFechaDoc)
	t.AddCol(ColGrupo)
	t.AddCol(ColCaja)
	t.AddCol("fecha_vencimiento")

	ebsDates := ebsRawDates(env)

	for _, r := range t.Rows() {
		src := strings.ToLower(table.AsString(r["origen"]))

		// Receipts without an invoice yet derive their true due date from
		// the reception date plus the agreed condition days.
		if src == config.SourceRSF && table.IsBlank(r["fecha_vencimiento"]) {
			r["fecha_vencimiento"] = AddDays(r["fecha_recepcion"], r["dias_condicion"])
		}

		r[ColCaja] = CashBucket(r["fecha_vencimiento"], env.ExecMonday)
		r[ColFechaDoc] = documentDate(r, src, ebsDates)
		r[ColGrupo] = paymentGroup(r, src, env.Tipo)

		if src == config.SourceRSF {
			r["tipo_documento"] = "STANDARD"
		}
	}
}

func (venezuela) FilterAllowed(t *table.Table, exp config.Export) *table.Table {
	cajas := toSet(exp.AllowedCajas())
	grupos := toSet(exp.AllowedGrupos())
	return t.Filter(func(r table.Row) bool {
		return cajas[table.AsString(r[ColCaja])] && grupos[table.AsString(r[ColGrupo])]
	})
}

func (venezuela) DropColumns() []string { return nil }

func (venezuela) OrderExtras() []string {
	return []string{ColFechaDoc, ColGrupo, ColCaja}
}

func (venezuela) ExportOrder() []string {
	return []string{
		"APP",
		"Grupo de Pago",
		"Proveedor",
		"Numero de Factura",
		"Orden De Compra",
		"Fecha del documento",
		"Monto",
		"Caja",
	}
}

// documentDate picks the business document date for a row by source, using
// the first usable date in that source's fallback chain.
func documentDate(r table.Row, src string, ebsDates map[string]any) any {
	switch src {
	case config.SourceEBS:
		if d := coerce.Date(r["fecha"]); d != nil {
			return d
		}
		// Consolidated EBS rows sometimes lose the document date in
		// extraction; fall back to the raw extract, joined by invoice.
		key := coerce.CleanText(table.AsString(r["numero_factura"]))
		if d, ok := ebsDates[key]; ok {
			return d
		}
	case config.SourceREIM:
		for _, c := range []string{"fecha", "fecha_recepcion", "fecha_creacion"} {
			if d := coerce.Date(r[c]); d != nil {
				return d
			}
		}
	case config.SourceRSF:
		for _, c := range []string{"fecha_recepcion", "fecha_vencimiento"} {
			if d := coerce.Date(r[c]); d != nil {
				return d
			}
		}
	}
	return nil
}

// paymentGroup assigns the payment group for a row by source: EBS rows map
// their priority code, receipt rows use the store/branch/provider rule.
func paymentGroup(r table.Row, src string, tipo *lookup.Master) string {
	if src == config.SourceEBS {
		return GroupFromPriority(r["prioridad"])
	}
	store := firstColumn(r, "tienda", "tienda_nombre")
	branch := firstColumn(r, "sucursal", "sucursal_proveedor")
	return GroupFromStoreBranch(store, branch, table.AsString(r["proveedor"]), tipo)
}

// ebsRawDates indexes the raw EBS extract's document date by cleaned
// invoice number, using the country's column map to locate the raw headers.
func ebsRawDates(env Env) map[string]any {
	raw := env.Raw[config.SourceEBS]
	if raw == nil {
		return nil
	}
	invCol, fechaCol := "", ""
	for rawName, canon := range env.ColumnMaps[config.SourceEBS] {
		switch canon {
		case "numero_factura":
			invCol = rawName
		case "fecha":
			fechaCol = rawName
		}
	}
	if invCol == "" || fechaCol == "" {
		return nil
	}
	out := make(map[string]any, raw.Len())
	for _, r := range raw.Rows() {
		key := coerce.CleanText(table.AsString(r[invCol]))
		if key == "" {
			continue
		}
		if d := coerce.Date(r[fechaCol]); d != nil {
			if _, dup := out[key]; !dup {
				out[key] = d
			}
		}
	}
	return out
}

func firstColumn(r table.Row, cols ...string) string {
	for _, c := range cols {
		if !table.IsBlank(r[c]) {
			return table.AsString(r[c])
		}
	}
	return ""
}

func toSet(vals []string) map[string]bool {
	out := make(map[string]bool, len(vals))
	for _, v := range vals {
		out[v] = true
	}
	return out
}
