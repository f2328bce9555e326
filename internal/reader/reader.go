// Package reader loads tabular input files into string-typed tables. Every
// cell is read as text; typing happens later in the coercion layer. Inputs
// may be delimited text (csv/txt, configurable delimiter and encoding) or
// workbooks (xlsx/xls, selectable sheet). The CSV path is lenient: it
// tolerates a UTF-8 BOM, ragged quoting, and rows narrower than the header
// (padded); rows wider than the header are skipped and counted.
package reader

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"mercancia/internal/table"
)

// Options configures how one input file is read. All fields are optional.
type Options struct {
	// Sep is the field delimiter for delimited text. Default ",".
	Sep string

	// Encoding names the character encoding of delimited text. Empty means
	// UTF-8; a BOM is tolerated either way.
	Encoding string

	// Sheet selects the worksheet for workbook inputs. Empty means the
	// first sheet.
	Sheet string
}

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// ReadFile reads the file at path into a table, dispatching on extension:
// .xlsx/.xls go through the workbook reader, everything else is treated as
// delimited text.
func ReadFile(path string, opt Options) (*table.Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xls":
		return readWorkbook(path, opt.Sheet)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reader: open %s: %w", path, err)
	}
	defer f.Close()
	t, err := ReadCSV(f, opt)
	if err != nil {
		return nil, fmt.Errorf("reader: %s: %w", path, err)
	}
	return t, nil
}

// ReadCSV reads delimited text into a table. The first row is the header;
// duplicate header names get a numeric suffix so columns stay addressable.
func ReadCSV(r io.Reader, opt Options) (*table.Table, error) {
	dec, err := decodeReader(r, opt.Encoding)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(dec)
	cr.Comma = delimiter(opt.Sep)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return table.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	header[0] = strings.TrimPrefix(header[0], utf8BOM)
	cols := dedupeHeader(header)

	t := table.New(cols...)
	skipped := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed line; soft-skip like the rest of the lenient path.
			skipped++
			continue
		}
		if len(rec) > len(cols) {
			skipped++
			continue
		}
		row := make(table.Row, len(cols))
		for i, c := range cols {
			if i < len(rec) {
				row[c] = rec[i]
			} else {
				row[c] = ""
			}
		}
		t.Append(row)
	}
	if skipped > 0 {
		log.Printf("reader: skipped %d malformed row(s)", skipped)
	}
	return t, nil
}

// readWorkbook reads one sheet of an xlsx/xls workbook as text.
func readWorkbook(path, sheet string) (*table.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("reader: open workbook %s: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reader: sheet %q in %s: %w", sheet, path, err)
	}
	if len(rows) == 0 {
		return table.New(), nil
	}
	header := rows[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	cols := dedupeHeader(header)

	t := table.New(cols...)
	for _, rec := range rows[1:] {
		row := make(table.Row, len(cols))
		for i, c := range cols {
			if i < len(rec) {
				row[c] = rec[i]
			} else {
				row[c] = ""
			}
		}
		t.Append(row)
	}
	return t, nil
}

// decodeReader wraps r with a charset decoder when a non-UTF-8 encoding is
// configured. Unknown encoding names are a configuration error.
func decodeReader(r io.Reader, name string) (io.Reader, error) {
	var enc encoding.Encoding
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8", "utf-8-sig":
		return r, nil
	case "latin1", "latin-1", "iso-8859-1":
		enc = charmap.ISO8859_1
	case "windows-1252", "cp1252":
		enc = charmap.Windows1252
	case "windows-1250", "cp1250":
		enc = charmap.Windows1250
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

// delimiter resolves the configured separator to a rune. "\t" and "tab" are
// accepted spellings for a tab delimiter.
func delimiter(sep string) rune {
	switch sep {
	case "", ",":
		return ','
	case "\t", "\\t", "tab":
		return '\t'
	default:
		return []rune(sep)[0]
	}
}

// dedupeHeader trims header cells and suffixes duplicates (_1, _2, ...) so
// every column name is unique.
func dedupeHeader(header []string) []string {
	seen := make(map[string]int, len(header))
	cols := make([]string, 0, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("col_%d", i)
		}
		if n, ok := seen[h]; ok {
			seen[h] = n + 1
			h = fmt.Sprintf("%s_%d", h, n)
		} else {
			seen[h] = 1
		}
		cols = append(cols, h)
	}
	return cols
}
