package export

import (
	"strconv"
	"strings"
)

// Excel sheet names are limited to 31 characters and a restricted charset.
const maxSheetName = 31

// SanitizeSheetName makes a name safe for a workbook sheet: forbidden
// characters become spaces and the result is truncated to 31 characters.
func SanitizeSheetName(name string) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return ' '
		}
		return r
	}, name)
	clean = strings.TrimSpace(clean)
	if clean == "" {
		clean = "Sheet"
	}
	// The 31-character limit counts characters, not bytes.
	if r := []rune(clean); len(r) > maxSheetName {
		clean = string(r[:maxSheetName])
	}
	return clean
}

// sheetNamer hands out sanitized, workbook-unique sheet names. Collisions
// (case-insensitive, as Excel treats them) get a _1, _2, ... suffix, with
// the base re-truncated so the suffixed name still fits.
type sheetNamer struct {
	used map[string]bool
}

func newSheetNamer() *sheetNamer {
	return &sheetNamer{used: make(map[string]bool)}
}

func (n *sheetNamer) claim(name string) string {
	clean := SanitizeSheetName(name)
	if !n.used[strings.ToLower(clean)] {
		n.used[strings.ToLower(clean)] = true
		return clean
	}
	for i := 1; ; i++ {
		suffix := "_" + strconv.Itoa(i)
		base := clean
		if r := []rune(base); len(r)+len(suffix) > maxSheetName {
			base = string(r[:maxSheetName-len(suffix)])
		}
		candidate := base + suffix
		if !n.used[strings.ToLower(candidate)] {
			n.used[strings.ToLower(candidate)] = true
			return candidate
		}
	}
}
