// This file adds a lightweight linter/validator for the loaded documents. It
// performs static checks over a decoded Schema + Country pair and returns a
// list of issues (errors and warnings) that callers can surface in a CLI or
// tests.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "lookups.prioridades.url",
// "column_maps.ebs"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue in the slice is error-severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate performs static validation of a schema + country document pair.
//
// It does not mutate either document. Callers decide whether to treat
// warnings as fatal.
func Validate(s Schema, c Country) []Issue {
	var issues []Issue

	issues = append(issues, validateSchema(s)...)
	issues = append(issues, validateCountry(s, c)...)
	return issues
}

func validateSchema(s Schema) []Issue {
	var issues []Issue

	if len(s.DTypes) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "mercancia.dtypes",
			Message:  "schema declares no columns",
		})
	}
	for col, typ := range s.DTypes {
		switch typ {
		case "string", "number", "date":
		default:
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "mercancia.dtypes." + col,
				Message:  fmt.Sprintf("unknown type %q (want string, number or date)", typ),
			})
		}
	}
	for _, col := range s.Order {
		if _, ok := s.DTypes[col]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "mercancia.order",
				Message:  fmt.Sprintf("ordered column %q is not declared in dtypes", col),
			})
		}
	}
	return issues
}

func validateCountry(s Schema, c Country) []Issue {
	var issues []Issue

	switch c.Pais {
	case CountryCO, CountryVE:
	case "":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "pais",
			Message:  "pais must be set (CO or VE); country shape is resolved from it",
		})
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "pais",
			Message:  fmt.Sprintf("unknown country code %q (want CO or VE)", c.Pais),
		})
	}

	known := map[string]struct{}{SourceEBS: {}, SourceREIM: {}, SourceRSF: {}}
	for src := range c.ColumnMaps {
		if _, ok := known[src]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "column_maps." + src,
				Message:  "unknown source kind; expected ebs, reim or rsf",
			})
		}
	}
	for _, src := range Sources {
		if len(c.ColumnMaps[src]) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "column_maps." + src,
				Message:  "no column mapping declared; source columns pass through unrenamed",
			})
		}
		for _, target := range c.ColumnMaps[src] {
			if _, ok := s.DTypes[target]; !ok {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     "column_maps." + src,
					Message:  fmt.Sprintf("maps onto %q which the schema does not declare", target),
				})
			}
		}
	}

	issues = append(issues, validateLookup("lookups.prioridades", c.Lookups.Prioridades)...)
	issues = append(issues, validateLookup("lookups.factoring", c.Lookups.Factoring)...)
	issues = append(issues, validateLookup("lookups.tipo_mercancia", c.Lookups.TipoMercancia)...)

	for i, op := range c.Post {
		if strings.TrimSpace(op.Op) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("post[%d].op", i),
				Message:  "post operation kind must not be empty",
			})
		}
	}
	return issues
}

func validateLookup(path string, lk Lookup) []Issue {
	var issues []Issue

	if !lk.Enabled {
		return nil
	}
	if strings.TrimSpace(lk.URL) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     path + ".url",
			Message:  "lookup is enabled but has no url; it will be skipped",
		})
	}
	switch lk.DuplicatePolicy {
	case "", "first_row", "last_row", "min_prioridad":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".duplicate_policy",
			Message:  fmt.Sprintf("unknown duplicate policy %q (want first_row, last_row or min_prioridad)", lk.DuplicatePolicy),
		})
	}
	if lk.Cache.Enabled && strings.TrimSpace(lk.Cache.Path) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".cache.path",
			Message:  "cache is enabled but has no path",
		})
	}
	return issues
}
