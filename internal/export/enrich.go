package export

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"mercancia/internal/coerce"
	"mercancia/internal/config"
	"mercancia/internal/lookup"
	"mercancia/internal/rules"
	"mercancia/internal/table"
)

// Derived columns added to the raw sheets.
const (
	colSaldo    = "Saldo"
	colVenceRe  = "Fecha Vencimiento Verdadero"
	rsfStatusOK = "RECEPCION SIN FACTURA"
)

// enrichRaw returns a copy of one raw source table with the business
// columns the reviewers read off the raw sheets: sign of the amount, the
// cash-day bucket and the payment group. The input table is not modified.
func enrichRaw(raw *table.Table, kind string, monday time.Time, tipo *lookup.Master) *table.Table {
	out := cloneTable(raw)
	switch kind {
	case config.SourceEBS:
		enrichEBS(out, monday)
	case config.SourceREIM:
		enrichREIM(out, monday, tipo)
	case config.SourceRSF:
		enrichRSF(out, monday, tipo)
	}
	return out
}

func enrichEBS(t *table.Table, monday time.Time) {
	montoCol, _ := matchColumn(t, "MONTO A PAGAR")
	fechaCol, _ := matchColumn(t, "FECHA A PAGAR")
	prioCol, _ := matchColumn(t, "PRIORIDAD")

	if montoCol != "" {
		t.AddCol(colSaldo)
	}
	if fechaCol != "" {
		t.AddCol(rules.ColCaja)
	}
	if prioCol != "" {
		t.AddCol(rules.ColGrupo)
	}
	for _, r := range t.Rows() {
		if montoCol != "" {
			// Zero and unparseable amounts count as Negativo.
			if n, ok := coerce.Number(r[montoCol]).(float64); ok && n > 0 {
				r[colSaldo] = "Positivo"
			} else {
				r[colSaldo] = "Negativo"
			}
		}
		if fechaCol != "" {
			r[rules.ColCaja] = rules.CashBucket(r[fechaCol], monday)
		}
		if prioCol != "" {
			r[rules.ColGrupo] = rules.GroupFromPriority(r[prioCol])
		}
	}
}

func enrichREIM(t *table.Table, monday time.Time, tipo *lookup.Master) {
	venceCol, _ := matchColumn(t, "Fecha Vencimiento")
	if venceCol != "" {
		t.AddCol(rules.ColCaja)
	}
	store, branch, provider := groupColumns(t)
	if provider != "" {
		t.AddCol(rules.ColGrupo)
	}
	for _, r := range t.Rows() {
		if venceCol != "" {
			r[rules.ColCaja] = rules.CashBucket(r[venceCol], monday)
		}
		if provider != "" {
			r[rules.ColGrupo] = rules.GroupFromStoreBranch(
				table.AsString(r[store]), table.AsString(r[branch]), table.AsString(r[provider]), tipo)
		}
	}
}

func enrichRSF(t *table.Table, monday time.Time, tipo *lookup.Master) {
	recCol, _ := matchColumn(t, "Fecha Recepción")
	if recCol == "" {
		recCol, _ = matchColumn(t, "Fecha Recepcion")
	}
	diasCol, _ := matchColumn(t, "Días Condición (RMS)")
	if diasCol == "" {
		diasCol, _ = matchColumn(t, "Dias Condicion (RMS)")
	}

	if recCol != "" && diasCol != "" {
		t.AddCol(colVenceRe)
		t.AddCol(rules.ColCaja)
	}
	store, branch, provider := groupColumns(t)
	if provider != "" {
		t.AddCol(rules.ColGrupo)
	}
	for _, r := range t.Rows() {
		if recCol != "" && diasCol != "" {
			due := rules.AddDays(r[recCol], r[diasCol])
			r[colVenceRe] = due
			r[rules.ColCaja] = rules.CashBucket(due, monday)
		}
		if provider != "" {
			r[rules.ColGrupo] = rules.GroupFromStoreBranch(
				table.AsString(r[store]), table.AsString(r[branch]), table.AsString(r[provider]), tipo)
		}
	}
}

// filterRSFPending keeps only receipt rows still waiting for an invoice,
// matching the status accent-insensitively. Without a status column the
// table passes through unchanged.
func filterRSFPending(t *table.Table) *table.Table {
	statusCol := ""
	for _, name := range []string{"Estatus", "Estado", "Status"} {
		if c, ok := matchColumn(t, name); ok {
			statusCol = c
			break
		}
	}
	if statusCol == "" {
		return t
	}
	return t.Filter(func(r table.Row) bool {
		return foldKey(table.AsString(r[statusCol])) == rsfStatusOK
	})
}

// groupColumns locates the store, branch and provider columns on a raw
// sheet, tolerating the header variants the extracts use.
func groupColumns(t *table.Table) (store, branch, provider string) {
	for _, name := range []string{"Tienda", "Tienda Nombre"} {
		if c, ok := matchColumn(t, name); ok {
			store = c
			break
		}
	}
	for _, name := range []string{"Sucursal", "Sucursal Proveedor"} {
		if c, ok := matchColumn(t, name); ok {
			branch = c
			break
		}
	}
	provider, _ = matchColumn(t, "Proveedor")
	return store, branch, provider
}

// matchColumn finds a column by accent-insensitive, case-insensitive,
// trimmed header comparison, returning the actual header.
func matchColumn(t *table.Table, want string) (string, bool) {
	target := foldKey(want)
	for _, c := range t.Cols() {
		if foldKey(c) == target {
			return c, true
		}
	}
	return "", false
}

var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldKey uppercases, trims and strips combining accents for comparisons.
func foldKey(s string) string {
	folded, _, err := transform.String(accentStripper, s)
	if err != nil {
		folded = s
	}
	return strings.ToUpper(strings.TrimSpace(folded))
}

// cloneTable copies a table, rows included, so enrichment never touches the
// caller's data.
func cloneTable(t *table.Table) *table.Table {
	out := table.New(t.Cols()...)
	for _, r := range t.Rows() {
		nr := make(table.Row, len(r))
		for k, v := range r {
			nr[k] = v
		}
		out.Append(nr)
	}
	return out
}
