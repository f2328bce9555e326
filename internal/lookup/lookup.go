// Package lookup loads the three external master-data tables (priority,
// factoring, provider type) and joins their values onto the working table.
//
// All three share a lifecycle: fetch once per run (optionally through an
// on-disk cache with an age-based expiry), collapse duplicate join keys
// under a configurable policy, then apply row-by-row under the configured
// match policy. A failed fetch disables that one lookup for the run; a
// master that is missing its required columns is a fatal configuration
// error.
//
// Joins are key-based: the master is indexed once and each row resolves its
// key through the index, so results do not depend on row order.
package lookup

import (
	"sort"
	"strings"
	"unicode"

	"mercancia/internal/table"
)

// DupPolicy resolves duplicate join keys in a fetched master.
type DupPolicy string

const (
	// KeepFirst keeps the earliest occurrence of each key.
	KeepFirst DupPolicy = "first_row"
	// KeepLast keeps the latest occurrence of each key.
	KeepLast DupPolicy = "last_row"
	// MinKey orders rows by ascending numeric key before a keep-first
	// pass. Only meaningful for numeric-keyed masters.
	MinKey DupPolicy = "min_prioridad"
)

// policyOr normalizes a configured policy string against a default.
func policyOr(s string, def DupPolicy) DupPolicy {
	switch DupPolicy(strings.TrimSpace(s)) {
	case KeepFirst:
		return KeepFirst
	case KeepLast:
		return KeepLast
	case MinKey:
		return MinKey
	}
	return def
}

// Master is a deduplicated key→value mapping with a stable key order, so it
// can be re-exported (the AUX sheet) in master order. After building, keys
// are unique.
type Master struct {
	keys []string
	vals map[string]string
}

func newMaster() *Master {
	return &Master{vals: make(map[string]string)}
}

// put records a key/value pair under the dedup policy. Under KeepLast the
// value is replaced in place; the key keeps its first-seen position.
func (m *Master) put(key, val string, policy DupPolicy) {
	if _, dup := m.vals[key]; dup {
		if policy == KeepLast {
			m.vals[key] = val
		}
		return
	}
	m.keys = append(m.keys, key)
	m.vals[key] = val
}

// Len returns the number of distinct keys.
func (m *Master) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Get resolves one key.
func (m *Master) Get(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m.vals[key]
	return v, ok
}

// Keys returns the key order. The returned slice is shared; do not mutate.
func (m *Master) Keys() []string {
	if m == nil {
		return nil
	}
	return m.keys
}

// CollapseKey removes every whitespace rune, NBSP included, from a provider
// name. Priority-master joins compare on this form so that names differing
// only in spacing still match.
func CollapseKey(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '\u00a0' {
			return -1
		}
		return r
	}, s)
}

// ProviderKey normalizes a provider name for exact-match joins: NBSP becomes
// a regular space and the result is trimmed.
func ProviderKey(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))
}

// appTag returns the row's source tag, preferring APP over origen.
func appTag(r table.Row) string {
	if v, ok := r["APP"]; ok && !table.IsBlank(v) {
		return strings.ToUpper(table.AsString(v))
	}
	return strings.ToUpper(table.AsString(r["origen"]))
}

// sourceSet builds the source scope for a match policy, falling back to the
// lookup's default scope when the policy leaves it empty.
func sourceSet(configured, def []string) map[string]bool {
	src := configured
	if len(src) == 0 {
		src = def
	}
	out := make(map[string]bool, len(src))
	for _, s := range src {
		out[strings.ToUpper(strings.TrimSpace(s))] = true
	}
	return out
}

// findColumn locates a required master column by case-insensitive,
// trimmed header match, returning the actual column name.
func findColumn(t *table.Table, want string) (string, bool) {
	for _, c := range t.Cols() {
		if strings.EqualFold(strings.TrimSpace(c), want) {
			return c, true
		}
	}
	return "", false
}

// numericEntry is one master row keyed by a parsed number.
type numericEntry struct {
	key float64
	val string
}

// dedupNumeric collapses entries by key under the policy. MinKey sorts
// stably by ascending key first, then keeps first occurrences.
func dedupNumeric(entries []numericEntry, policy DupPolicy) map[float64]string {
	if policy == MinKey {
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
	}
	out := make(map[float64]string, len(entries))
	for _, e := range entries {
		if _, dup := out[e.key]; dup {
			if policy == KeepLast {
				out[e.key] = e.val
			}
			continue
		}
		out[e.key] = e.val
	}
	return out
}

// firstNonEmpty returns the first non-empty string.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// columnOr returns the configured column name or a default.
func columnOr(s, def string) string {
	if strings.TrimSpace(s) != "" {
		return s
	}
	return def
}
