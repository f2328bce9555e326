// Package rules holds the pure business-rule functions (payment grouping,
// cash-day bucketing, date arithmetic) and the per-country strategy that
// decides which of them apply.
package rules

import (
	"strings"
	"time"

	"mercancia/internal/coerce"
	"mercancia/internal/lookup"
)

// Payment-group labels.
const (
	GroupDirecto     = "DIRECTO"
	GroupAlmacen     = "ALMACEN"
	GroupSuministros = "SUMINISTROS"
	GroupPPVEBS      = "PPV EBS"
	GroupPPVRMS      = "PPV RMS"
	GroupUndefined   = "NO DEFINIDO"
)

// Cash-day buckets.
const (
	CajaMartes = "Martes"
	CajaJueves = "Jueves"
	CajaNone   = "No aplica"
)

// GroupFromPriority maps a numeric priority to its payment group. Anything
// non-numeric, nil, or outside the known codes is NO DEFINIDO.
func GroupFromPriority(v any) string {
	n, ok := coerce.Number(v).(float64)
	if !ok {
		return GroupUndefined
	}
	switch n {
	case 7:
		return GroupAlmacen
	case 8:
		return GroupSuministros
	case 12:
		return GroupPPVEBS
	case 13:
		return GroupPPVRMS
	case 22:
		return GroupDirecto
	}
	return GroupUndefined
}

// ppvSuffixes identifies provider branches routed through PPV RMS.
var ppvSuffixes = []string{"PPV1", "PPV2", "PPV3", "PPV"}

// GroupFromStoreBranch assigns a payment group from the store, branch and
// provider of a receipt row. Non-CENDIS stores pay direct; PPV branches go
// to PPV RMS; otherwise the provider-type master decides.
func GroupFromStoreBranch(store, branch, provider string, types *lookup.Master) string {
	if !strings.EqualFold(strings.TrimSpace(store), "CENDIS") {
		return GroupDirecto
	}
	b := strings.ToUpper(strings.TrimSpace(branch))
	for _, suf := range ppvSuffixes {
		if strings.HasSuffix(b, suf) {
			return GroupPPVRMS
		}
	}
	if v, ok := types.Get(lookup.ProviderKey(provider)); ok && v != "" {
		return v
	}
	return GroupUndefined
}

// CashBucket assigns a due date to a payment day relative to the execution
// week's Monday: due on or before Tuesday pays Tuesday, Wednesday or
// Thursday pays Thursday, everything else (future weeks, unparseable, nil)
// does not apply.
func CashBucket(due any, monday time.Time) string {
	d, ok := coerce.Date(due).(time.Time)
	if !ok {
		return CajaNone
	}
	day := dateOnly(d)
	mon := dateOnly(monday)
	switch {
	case !day.After(mon.AddDate(0, 0, 1)):
		return CajaMartes
	case !day.Before(mon.AddDate(0, 0, 2)) && !day.After(mon.AddDate(0, 0, 3)):
		return CajaJueves
	}
	return CajaNone
}

// AddDays returns date shifted by days. Either side failing to coerce
// yields nil.
func AddDays(date, days any) any {
	d, ok := coerce.Date(date).(time.Time)
	if !ok {
		return nil
	}
	n, ok := coerce.Number(days).(float64)
	if !ok {
		return nil
	}
	return d.AddDate(0, 0, int(n))
}

// MondayOf truncates t to midnight on the Monday of its week.
func MondayOf(t time.Time) time.Time {
	off := (int(t.Weekday()) + 6) % 7
	return dateOnly(t).AddDate(0, 0, -off)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
