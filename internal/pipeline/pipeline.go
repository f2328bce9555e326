// Package pipeline orchestrates one consolidation run: read the three
// source extracts, normalize them against the schema, join the master-data
// lookups, apply post-processing and country rules, and produce the table
// bundle the export stage writes out.
//
// Each stage takes the previous stage's table and produces the next; raw
// source tables are kept untouched so the export stage can write them
// alongside the consolidated sheet.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"mercancia/internal/coerce"
	"mercancia/internal/config"
	"mercancia/internal/lookup"
	"mercancia/internal/metrics"
	"mercancia/internal/normalize"
	"mercancia/internal/post"
	"mercancia/internal/reader"
	"mercancia/internal/rules"
	"mercancia/internal/table"
)

// Options configures one run.
type Options struct {
	// SchemaPath and CountryPath locate the two YAML documents.
	SchemaPath  string
	CountryPath string

	// Inputs maps source kind (ebs/reim/rsf) to its extract file path.
	Inputs map[string]string

	// ExecDate is the execution date; it is normalized to its week's
	// Monday before any date rule runs.
	ExecDate time.Time

	// Transport overrides the HTTP transport used for master-data
	// fetches. nil means http.DefaultTransport.
	Transport http.RoundTripper
}

// Masters bundles the fetched and indexed lookup masters. A nil field means
// that lookup is disabled for the run.
type Masters struct {
	Priority  *lookup.Master
	Factoring map[float64]string
	Tipo      *lookup.Master
}

// Result is the bundle the export stage consumes.
type Result struct {
	// Consolidated is the final consolidated table, cast and ordered.
	Consolidated *table.Table

	// Raw holds the untouched source tables keyed by source kind.
	Raw map[string]*table.Table

	// Cfg is the country configuration the run used.
	Cfg config.Country

	// Tipo is the provider-type master, for the AUX sheet. May be nil.
	Tipo *lookup.Master

	// ExecMonday is the Monday the run's date rules were anchored to.
	ExecMonday time.Time

	// ExportOrder is the country's export-column override; nil defers to
	// the export configuration.
	ExportOrder []string
}

// Run executes a full consolidation from configuration and file paths.
func Run(ctx context.Context, opts Options) (*Result, error) {
	schema, err := config.LoadSchema(opts.SchemaPath)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadCountry(opts.CountryPath)
	if err != nil {
		return nil, err
	}
	issues := config.Validate(schema, cfg)
	for _, is := range issues {
		if is.Severity == config.SeverityWarning {
			log.Printf("config: %s", is.Error())
		}
	}
	if config.HasErrors(issues) {
		return nil, fmt.Errorf("pipeline: invalid configuration: %s", firstError(issues))
	}

	strat, err := rules.ForCountry(cfg.Pais)
	if err != nil {
		return nil, err
	}

	raw := make(map[string]*table.Table, len(opts.Inputs))
	for _, kind := range config.Sources {
		path, ok := opts.Inputs[kind]
		if !ok || path == "" {
			continue
		}
		start := time.Now()
		in := cfg.Inputs[kind]
		t, err := reader.ReadFile(path, reader.Options{
			Sep:      in.Sep,
			Encoding: in.Encoding,
			Sheet:    in.Sheet,
		})
		metrics.RecordStage(strat.Code(), "read_"+kind, err, time.Since(start))
		if err != nil {
			return nil, fmt.Errorf("pipeline: read %s: %w", kind, err)
		}
		log.Printf("read %s: %d rows, %d columns", kind, t.Len(), len(t.Cols()))
		metrics.RecordRows(strat.Code(), "read", int64(t.Len()))
		raw[kind] = t
	}

	loader := lookup.NewLoader(lookup.NewClient(opts.Transport))
	masters, err := LoadMasters(ctx, loader, cfg.Lookups)
	if err != nil {
		return nil, err
	}

	return Consolidate(schema, cfg, strat, raw, masters, opts.ExecDate)
}

// LoadMasters fetches and indexes the three lookup masters. Fetch failures
// disable the affected lookup; a fetched master missing its required
// columns is fatal.
func LoadMasters(ctx context.Context, loader *lookup.Loader, lks config.Lookups) (Masters, error) {
	var m Masters

	if t := loader.Load(ctx, lks.Prioridades); t != nil {
		pm, err := lookup.BuildPriorityMaster(t, lks.Prioridades.DuplicatePolicy)
		if err != nil {
			return m, err
		}
		log.Printf("priority master: %d providers", pm.Len())
		m.Priority = pm
	}
	if t := loader.Load(ctx, lks.Factoring); t != nil {
		fm, err := lookup.BuildFactoringMaster(t, lks.Factoring.DuplicatePolicy)
		if err != nil {
			return m, err
		}
		log.Printf("factoring master: %d priorities", len(fm))
		m.Factoring = fm
	}
	if t := loader.Load(ctx, lks.TipoMercancia); t != nil {
		tm, err := lookup.BuildTipoMaster(t, lks.TipoMercancia.DuplicatePolicy)
		if err != nil {
			return m, err
		}
		log.Printf("provider-type master: %d providers", tm.Len())
		m.Tipo = tm
	}
	return m, nil
}

// Consolidate runs the in-memory stages over already-read raw tables. It is
// the testable core of Run.
func Consolidate(schema config.Schema, cfg config.Country, strat rules.Strategy, raw map[string]*table.Table, m Masters, execDate time.Time) (*Result, error) {
	ops, err := post.Compile(cfg.Post)
	if err != nil {
		return nil, err
	}

	var parts []*table.Table
	for _, kind := range config.Sources {
		rt := raw[kind]
		if rt == nil {
			continue
		}
		start := time.Now()
		norm, err := normalize.Source(rt, kind, cfg, schema)
		metrics.RecordStage(strat.Code(), "normalize_"+kind, err, time.Since(start))
		if err != nil {
			return nil, err
		}
		norm.SetConst("APP", strings.ToUpper(kind))
		metrics.RecordRows(strat.Code(), "normalized", int64(norm.Len()))
		parts = append(parts, norm)
	}
	cons := table.Concat(parts...)

	// EBS extracts occasionally ship without a creation date; the document
	// date stands in for it.
	cons.AddCol("fecha_creacion")
	for _, r := range cons.Rows() {
		if strings.ToLower(table.AsString(r["origen"])) == config.SourceEBS && table.IsBlank(r["fecha_creacion"]) {
			r["fecha_creacion"] = r["fecha"]
		}
	}

	if n := lookup.ApplyPriority(cons, cfg.Lookups.Prioridades, m.Priority); n > 0 {
		metrics.RecordLookup(strat.Code(), "prioridades", int64(n))
	}
	if n := lookup.ApplyFactoring(cons, cfg.Lookups.Factoring, m.Factoring); n > 0 {
		metrics.RecordLookup(strat.Code(), "factoring", int64(n))
	}
	if n := lookup.ApplyTipo(cons, cfg.Lookups.TipoMercancia, m.Tipo); n > 0 {
		metrics.RecordLookup(strat.Code(), "tipo_mercancia", int64(n))
	}

	execMonday := rules.MondayOf(execDate)

	if err := post.Apply(cons, ops, post.Context{ExecMonday: execMonday}); err != nil {
		return nil, err
	}

	strat.Enrich(cons, rules.Env{
		ExecMonday: execMonday,
		Raw:        raw,
		ColumnMaps: cfg.ColumnMaps,
		Tipo:       m.Tipo,
	})

	// The payable amount prefers the net figure when the extract carries
	// both.
	cons.AddCol("monto")
	for _, r := range cons.Rows() {
		if !table.IsBlank(r["monto"]) {
			continue
		}
		if !table.IsBlank(r["monto_neto"]) {
			r["monto"] = r["monto_neto"]
		} else {
			r["monto"] = r["monto_bruto"]
		}
	}

	// Amounts between 0 and 100 inclusive are residuals, never payable.
	// Negative amounts (credits) and unparseable cells stay.
	before := cons.Len()
	cons = cons.Filter(func(r table.Row) bool {
		n, ok := coerce.Number(r["monto"]).(float64)
		if !ok {
			return true
		}
		return n < 0 || n > 100
	})
	if dropped := before - cons.Len(); dropped > 0 {
		log.Printf("dropped %d residual rows (0 <= monto <= 100)", dropped)
		metrics.RecordRows(strat.Code(), "monto_dropped", int64(dropped))
	}

	before = cons.Len()
	cons = strat.FilterAllowed(cons, cfg.Export)
	if dropped := before - cons.Len(); dropped > 0 {
		log.Printf("dropped %d rows outside allowed sets", dropped)
		metrics.RecordRows(strat.Code(), "filtered", int64(dropped))
	}

	for _, c := range strat.DropColumns() {
		cons.Drop(c)
	}

	coerce.Cast(cons, schema.DTypes)

	order := append(append([]string{}, schema.Order...), strat.OrderExtras()...)
	for _, c := range order {
		cons.AddCol(c)
	}
	cons = cons.Select(order)

	metrics.RecordRows(strat.Code(), "exported", int64(cons.Len()))

	return &Result{
		Consolidated: cons,
		Raw:          raw,
		Cfg:          cfg,
		Tipo:         m.Tipo,
		ExecMonday:   execMonday,
		ExportOrder:  strat.ExportOrder(),
	}, nil
}

func firstError(issues []config.Issue) string {
	for _, is := range issues {
		if is.Severity == config.SeverityError {
			return is.Error()
		}
	}
	return ""
}
