// Package config defines the two YAML configuration documents the pipeline
// is driven by: the schema document (canonical column types and order) and
// the per-country document (column maps, lookups, business-rule parameters,
// export shape). Field names in Go mirror the YAML structure used in
// schema/*.yaml.
//
// Design goals:
//
//  1. Stability: changes to this package should be additive and backwards-
//     compatible whenever possible.
//  2. Clarity: everything the pipeline does differently per country is
//     declared here, not hardcoded in the stages.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source kinds, in the order they are read and concatenated.
const (
	SourceEBS  = "ebs"
	SourceREIM = "reim"
	SourceRSF  = "rsf"
)

// Sources lists the three input kinds in pipeline order.
var Sources = []string{SourceEBS, SourceREIM, SourceRSF}

// Country codes accepted in the country document's "pais" key.
const (
	CountryCO = "CO"
	CountryVE = "VE"
)

// SchemaDoc is the top-level shape of the schema YAML document.
type SchemaDoc struct {
	Mercancia Schema `yaml:"mercancia"`
}

// Schema declares the canonical consolidated table: column types and the
// export column order.
type Schema struct {
	// DTypes maps canonical column name to "string", "number" or "date".
	DTypes map[string]string `yaml:"dtypes"`

	// Order is the canonical column ordering for the consolidated export.
	Order []string `yaml:"order"`
}

// CountryDoc is the top-level shape of the per-country YAML document.
type CountryDoc struct {
	Mercancia Country `yaml:"mercancia"`
}

// Country carries everything that differs between Colombia and Venezuela.
type Country struct {
	// Pais selects the country strategy: "CO" or "VE".
	Pais string `yaml:"pais"`

	// Inputs holds per-source file reading options keyed by source kind.
	Inputs map[string]InputOptions `yaml:"inputs"`

	// ColumnMaps maps, per source kind, raw header names to canonical
	// schema names. Mappings for headers absent from the raw file are
	// silently ignored.
	ColumnMaps map[string]map[string]string `yaml:"column_maps"`

	// Const lists constant columns injected into every normalized row.
	Const map[string]string `yaml:"const"`

	// DateFormats optionally declares, per source kind, the Go layout of
	// that source's "fecha" column. Sources without an entry fall back to
	// the day-first heuristic.
	DateFormats map[string]string `yaml:"date_formats"`

	// TextNormalize lists columns to strip/upper/lower after renaming.
	TextNormalize TextNormalize `yaml:"text_normalize"`

	// ValueMaps substitutes cell values per column after text normalization.
	ValueMaps map[string]map[string]string `yaml:"value_maps"`

	// Filters holds, per source kind, CEL predicates evaluated against each
	// normalized row; rows that evaluate false are dropped. A filter that
	// does not compile or evaluate is a fatal configuration error.
	Filters map[string][]string `yaml:"filters"`

	// Lookups configures the three external master-data joins.
	Lookups Lookups `yaml:"lookups"`

	// Post is the ordered list of named post-processing operations applied
	// to the consolidated table.
	Post []PostOp `yaml:"post"`

	// Export configures workbook sheet names, header renames and the final
	// country-specific row filters.
	Export Export `yaml:"export"`
}

// InputOptions configures how one raw source file is read.
type InputOptions struct {
	// Sep is the field delimiter for csv/txt inputs. Default ",".
	Sep string `yaml:"sep"`

	// Decimal is the decimal mark used by the source ("." or ","). Cells
	// are read as text; the mark informs later numeric coercion only.
	Decimal string `yaml:"decimal"`

	// Encoding names the input character encoding for csv/txt inputs,
	// e.g. "latin1", "windows-1252". Empty means UTF-8 (BOM tolerated).
	Encoding string `yaml:"encoding"`

	// Sheet selects the worksheet for xlsx/xls inputs. Empty means the
	// first sheet.
	Sheet string `yaml:"sheet"`
}

// TextNormalize lists columns receiving simple text cleanup.
type TextNormalize struct {
	Strip []string `yaml:"strip"`
	Upper []string `yaml:"upper"`
	Lower []string `yaml:"lower"`
}

// Lookups groups the three master-data lookup configurations.
type Lookups struct {
	Prioridades   Lookup `yaml:"prioridades"`
	Factoring     Lookup `yaml:"factoring"`
	TipoMercancia Lookup `yaml:"tipo_mercancia"`
}

// Lookup configures one external master-data source and how its values are
// joined onto the working table.
type Lookup struct {
	// Enabled gates the whole lookup. Disabled lookups are skipped without
	// error.
	Enabled bool `yaml:"enabled"`

	// Source names the remote kind. Currently "google_sheet_csv" (any CSV
	// endpoint reachable over HTTP counts).
	Source string `yaml:"source"`

	// URL is the CSV endpoint. An enabled lookup without a URL is skipped.
	URL string `yaml:"url"`

	// Cache optionally persists fetched masters on disk.
	Cache CacheConfig `yaml:"cache"`

	// DuplicatePolicy resolves duplicate join keys in the master:
	// "first_row", "last_row" or "min_prioridad". Each lookup has its own
	// default when empty.
	DuplicatePolicy string `yaml:"duplicate_policy"`

	// TraceValue is stamped into the trace field on a successful match.
	TraceValue string `yaml:"trace_value"`

	// MatchPolicy controls the join against the working table.
	MatchPolicy MatchPolicy `yaml:"match_policy"`

	// MatchPolicyConsolidated is a second, independently-enabled policy the
	// provider-type lookup applies at consolidated level.
	MatchPolicyConsolidated MatchPolicy `yaml:"match_policy_consolidated"`
}

// CacheConfig configures the on-disk master cache.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	TTLDays int    `yaml:"ttl_days"`
}

// MatchPolicy declares how a master is joined onto the working table.
type MatchPolicy struct {
	// Enabled only matters for MatchPolicyConsolidated; the primary policy
	// is implied by the lookup's own Enabled flag.
	Enabled bool `yaml:"enabled"`

	// ApplyToSources restricts the join to rows whose APP tag is in the
	// set. Empty means the lookup's default scope.
	ApplyToSources []string `yaml:"apply_to_sources"`

	// OnColumn is the working-table column holding the join key.
	OnColumn string `yaml:"on_column"`

	// WriteTo is the output column receiving the master value.
	WriteTo string `yaml:"write_to"`

	// OverwriteExisting, when false, leaves non-blank output cells alone.
	// nil means the lookup's own default.
	OverwriteExisting *bool `yaml:"overwrite_existing"`

	// TraceField, when set, is stamped with the trace value on match.
	TraceField string `yaml:"trace_field"`

	// TraceValue overrides the lookup-level trace value.
	TraceValue string `yaml:"trace_value"`

	// DefaultPriority, when set on the priority lookup, fills unmatched
	// rows and stamps the trace field "DEFAULT".
	DefaultPriority string `yaml:"default_priority"`
}

// Overwrite resolves the overwrite flag against a per-lookup default.
func (m MatchPolicy) Overwrite(def bool) bool {
	if m.OverwriteExisting == nil {
		return def
	}
	return *m.OverwriteExisting
}

// PostOp is one named post-processing operation. The op kinds and their
// required arguments are defined in internal/post.
type PostOp struct {
	Op         string   `yaml:"op"`
	Target     string   `yaml:"target"`
	Columns    []string `yaml:"columns"`
	From       string   `yaml:"from"`
	DateColumn string   `yaml:"date_column"`
	DaysColumn string   `yaml:"days_column"`
	DueColumn  string   `yaml:"due_column"`
	Value      string   `yaml:"value"`
}

// Export configures the workbook output.
type Export struct {
	// Headers renames canonical columns to business-facing headers.
	Headers map[string]string `yaml:"headers"`

	// Order restricts and orders the exported columns (post-rename names).
	Order []string `yaml:"order"`

	// Sheets overrides the default sheet names.
	Sheets Sheets `yaml:"sheets"`

	// WriteSourcesRaw also writes one sheet per raw source.
	WriteSourcesRaw bool `yaml:"write_sources_raw"`

	// EnrichRawSources adds the derived columns to the raw sheets.
	// Default true.
	EnrichRawSources *bool `yaml:"enrich_raw_sources"`

	// AddGrupoPagoFormulaXL writes the AUX sheet and live "Grupo de Pago
	// (XL)" formulas into the REIM/RSF sheets. nil means "when a
	// provider-type master is available".
	AddGrupoPagoFormulaXL *bool `yaml:"add_grupo_pago_formula_xl"`

	// CajasPermitidas is the Venezuela allowed set for the Caja column.
	// Empty means {Martes, Jueves}.
	CajasPermitidas []string `yaml:"cajas_permitidas"`

	// GruposPermitidos is the Venezuela allowed set for Grupo de Pago.
	// Empty means {DIRECTO, ALMACEN, PPV RMS, SUMINISTROS}.
	GruposPermitidos []string `yaml:"grupos_permitidos"`
}

// Sheets holds the four sheet names; zero values take defaults.
type Sheets struct {
	Consolidated string `yaml:"consolidated"`
	EBSRaw       string `yaml:"ebs_raw"`
	REIMRaw      string `yaml:"reim_raw"`
	RSFRaw       string `yaml:"rsf_raw"`
}

// Default sheet names.
const (
	DefaultSheetConsolidated = "Consolidado"
	DefaultSheetEBS          = "EBS (Original)"
	DefaultSheetREIM         = "REIM (Original)"
	DefaultSheetRSF          = "RSF (Original)"
)

// ConsolidatedSheet returns the configured consolidated sheet name or its
// default.
func (s Sheets) ConsolidatedSheet() string {
	if s.Consolidated != "" {
		return s.Consolidated
	}
	return DefaultSheetConsolidated
}

// RawSheet returns the sheet name for one raw source tag (EBS/REIM/RSF).
func (s Sheets) RawSheet(tag string) string {
	switch strings.ToUpper(tag) {
	case "EBS":
		if s.EBSRaw != "" {
			return s.EBSRaw
		}
		return DefaultSheetEBS
	case "REIM":
		if s.REIMRaw != "" {
			return s.REIMRaw
		}
		return DefaultSheetREIM
	case "RSF":
		if s.RSFRaw != "" {
			return s.RSFRaw
		}
		return DefaultSheetRSF
	}
	return tag
}

// Enrich resolves the raw-sheet enrichment flag (default true).
func (e Export) Enrich() bool {
	if e.EnrichRawSources == nil {
		return true
	}
	return *e.EnrichRawSources
}

// AllowedCajas returns the configured Caja allowed set or its default.
func (e Export) AllowedCajas() []string {
	if len(e.CajasPermitidas) > 0 {
		return e.CajasPermitidas
	}
	return []string{"Martes", "Jueves"}
}

// AllowedGrupos returns the configured payment-group allowed set or its
// default.
func (e Export) AllowedGrupos() []string {
	if len(e.GruposPermitidos) > 0 {
		return e.GruposPermitidos
	}
	return []string{"DIRECTO", "ALMACEN", "PPV RMS", "SUMINISTROS"}
}

// LoadSchema reads and decodes the schema document.
func LoadSchema(path string) (Schema, error) {
	var doc SchemaDoc
	if err := loadYAML(path, &doc); err != nil {
		return Schema{}, err
	}
	return doc.Mercancia, nil
}

// LoadCountry reads and decodes a per-country document.
func LoadCountry(path string) (Country, error) {
	var doc CountryDoc
	if err := loadYAML(path, &doc); err != nil {
		return Country{}, err
	}
	doc.Mercancia.Pais = strings.ToUpper(strings.TrimSpace(doc.Mercancia.Pais))
	return doc.Mercancia, nil
}

func loadYAML(path string, out any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, out); err != nil {
		return fmt.Errorf("config: decode %s: %w", path, err)
	}
	return nil
}
