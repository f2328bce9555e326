// Package export writes the consolidation result to an xlsx workbook: the
// consolidated sheet, optionally the (enriched) raw source sheets, and the
// AUX provider-type sheet with live payment-group formulas.
package export

import (
	"fmt"
	"log"
	"time"

	"github.com/xuri/excelize/v2"

	"mercancia/internal/config"
	"mercancia/internal/lookup"
	"mercancia/internal/pipeline"
	"mercancia/internal/table"
)

// Formula-column header on the REIM/RSF sheets.
const colGrupoXL = "Grupo de Pago (XL)"

// WriteWorkbook writes the full result workbook to path.
func WriteWorkbook(path string, res *pipeline.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	exp := res.Cfg.Export
	names := newSheetNamer()

	// An attached provider-type master implies the raw sheets: the AUX
	// formulas only make sense next to them.
	writeRaw := exp.WriteSourcesRaw || res.Tipo != nil
	wantFormulas := res.Tipo != nil
	if exp.AddGrupoPagoFormulaXL != nil {
		wantFormulas = wantFormulas && *exp.AddGrupoPagoFormulaXL
	}
	auxSheet := ""
	if wantFormulas {
		auxSheet = names.claim("AUX")
	}

	cons := applyHeadersAndOrder(res.Consolidated, exp, res.ExportOrder)
	consSheet := names.claim(exp.Sheets.ConsolidatedSheet())
	if err := writeSheet(f, consSheet, cons); err != nil {
		return err
	}

	if writeRaw {
		for _, kind := range config.Sources {
			rt := res.Raw[kind]
			if rt == nil {
				continue
			}
			sheetT := rt
			if exp.Enrich() {
				sheetT = enrichRaw(rt, kind, res.ExecMonday, res.Tipo)
			}
			if kind == config.SourceRSF && res.Cfg.Pais == config.CountryCO {
				sheetT = filterRSFPending(sheetT)
			}
			name := names.claim(exp.Sheets.RawSheet(kind))
			if err := writeSheet(f, name, sheetT); err != nil {
				return err
			}
			if wantFormulas && (kind == config.SourceREIM || kind == config.SourceRSF) {
				if err := addGroupFormula(f, name, sheetT, auxSheet); err != nil {
					return err
				}
			}
		}
	}

	if wantFormulas {
		if err := writeAux(f, auxSheet, res.Tipo); err != nil {
			return err
		}
	}

	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("export: save %s: %w", path, err)
	}
	log.Printf("wrote %s: %d consolidated rows", path, cons.Len())
	return nil
}

// applyHeadersAndOrder renames canonical columns to their business-facing
// headers and restricts the sheet to the export order. Columns named in the
// order but absent from the table are skipped.
func applyHeadersAndOrder(t *table.Table, exp config.Export, override []string) *table.Table {
	out := cloneTable(t)
	out.Rename(exp.Headers)
	order := override
	if len(order) == 0 {
		order = exp.Order
	}
	if len(order) > 0 {
		out = out.Select(order)
	}
	return out
}

func writeSheet(f *excelize.File, name string, t *table.Table) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("export: sheet %s: %w", name, err)
	}
	cols := t.Cols()
	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("export: sheet %s: %w", name, err)
	}
	for i, r := range t.Rows() {
		vals := make([]any, len(cols))
		for j, c := range cols {
			vals[j] = cellValue(r[c])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &vals); err != nil {
			return fmt.Errorf("export: sheet %s row %d: %w", name, i+2, err)
		}
	}
	return nil
}

// cellValue renders a cell for the workbook. Dates are written as ISO day
// strings so every consumer reads them the same way.
func cellValue(v any) any {
	if d, ok := v.(time.Time); ok {
		return d.Format("2006-01-02")
	}
	return v
}

func writeAux(f *excelize.File, name string, tipo *lookup.Master) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("export: sheet %s: %w", name, err)
	}
	header := []any{"Proveedor", "TIPO"}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return err
	}
	for i, k := range tipo.Keys() {
		v, _ := tipo.Get(k)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{k, v}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

// addGroupFormula appends a live payment-group column to a raw sheet. The
// formula mirrors the store/branch/provider rule so reviewers can audit the
// assignment cell by cell against the AUX sheet: the branch is looked up
// first, then the provider.
func addGroupFormula(f *excelize.File, sheet string, t *table.Table, auxSheet string) error {
	store, branch, provider := groupColumns(t)
	if store == "" || branch == "" || provider == "" {
		return nil
	}
	cols := t.Cols()
	idx := func(name string) int {
		for i, c := range cols {
			if c == name {
				return i + 1
			}
		}
		return 0
	}
	storeCol, err := excelize.ColumnNumberToName(idx(store))
	if err != nil {
		return err
	}
	branchCol, err := excelize.ColumnNumberToName(idx(branch))
	if err != nil {
		return err
	}
	provCol, err := excelize.ColumnNumberToName(idx(provider))
	if err != nil {
		return err
	}
	outCol, err := excelize.ColumnNumberToName(len(cols) + 1)
	if err != nil {
		return err
	}

	if err := f.SetCellValue(sheet, outCol+"1", colGrupoXL); err != nil {
		return err
	}
	for i := 0; i < t.Len(); i++ {
		row := i + 2
		s := fmt.Sprintf("%s%d", storeCol, row)
		b := fmt.Sprintf("%s%d", branchCol, row)
		p := fmt.Sprintf("%s%d", provCol, row)
		formula := fmt.Sprintf(
			`IF(UPPER(TRIM(%s))<>"CENDIS","DIRECTO",`+
				`IF(OR(RIGHT(UPPER(TRIM(%s)),3)="PPV",RIGHT(UPPER(TRIM(%s)),4)="PPV1",RIGHT(UPPER(TRIM(%s)),4)="PPV2",RIGHT(UPPER(TRIM(%s)),4)="PPV3"),"PPV RMS",`+
				`IFERROR(VLOOKUP(TRIM(%s),'%s'!$A:$B,2,0),IFERROR(VLOOKUP(TRIM(%s),'%s'!$A:$B,2,0),"NO DEFINIDO"))))`,
			s, b, b, b, b, b, auxSheet, p, auxSheet)
		if err := f.SetCellFormula(sheet, fmt.Sprintf("%s%d", outCol, row), formula); err != nil {
			return err
		}
	}
	return nil
}
