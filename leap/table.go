// Package leap resolves spec.md §9's leap-second Open Question: rather than
// a calendar-day placeholder, Table consults the system's TZif "right/UTC"
// leap-second list (falling back to a small built-in table), and State
// implements the per-server leap bookkeeping spec.md §4.4 defines.
package leap

import (
	"os"
	"sort"
	"time"
)

// Entry is one leap-second event: At is the UTC instant it takes effect,
// Total is the cumulative TAI-UTC offset (leapsec_total) after it.
type Entry struct {
	At    time.Time
	Total int32
}

// Table is a sorted list of known leap-second events.
type Table struct {
	entries []Entry
}

// builtinEntries is a small fallback table of historical leap seconds,
// used when the system TZif leap database is unavailable (e.g. a minimal
// container image). It is not authoritative for future leap seconds;
// LoadSystemTable should be preferred whenever the file exists.
var builtinEntries = []Entry{
	{At: time.Date(1972, time.January, 1, 0, 0, 0, 0, time.UTC), Total: 10},
	{At: time.Date(1972, time.July, 1, 0, 0, 0, 0, time.UTC), Total: 11},
	{At: time.Date(1973, time.January, 1, 0, 0, 0, 0, time.UTC), Total: 12},
	{At: time.Date(1974, time.January, 1, 0, 0, 0, 0, time.UTC), Total: 13},
	{At: time.Date(1975, time.January, 1, 0, 0, 0, 0, time.UTC), Total: 14},
	{At: time.Date(1976, time.January, 1, 0, 0, 0, 0, time.UTC), Total: 15},
	{At: time.Date(1977, time.January, 1, 0, 0, 0, 0, time.UTC), Total: 16},
	{At: time.Date(1978, time.January, 1, 0, 0, 0, 0, time.UTC), Total: 17},
	{At: time.Date(1979, time.January, 1, 0, 0, 0, 0, time.UTC), Total: 18},
	{At: time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC), Total: 19},
	{At: time.Date(1981, time.July, 1, 0, 0, 0, 0, time.UTC), Total: 20},
	{At: time.Date(1982, time.July, 1, 0, 0, 0, 0, time.UTC), Total: 21},
	{At: time.Date(1983, time.July, 1, 0, 0, 0, 0, time.UTC), Total: 22},
	{At: time.Date(1985, time.July, 1, 0, 0, 0, 0, time.UTC), Total: 23},
	{At: time.Date(1988, time.January, 1, 0, 0, 0, 0, time.UTC), Total: 24},
	{At: time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC), Total: 25},
	{At: time.Date(1991, time.January, 1, 0, 0, 0, 0, time.UTC), Total: 26},
	{At: time.Date(1992, time.July, 1, 0, 0, 0, 0, time.UTC), Total: 27},
	{At: time.Date(1993, time.July, 1, 0, 0, 0, 0, time.UTC), Total: 28},
	{At: time.Date(1994, time.July, 1, 0, 0, 0, 0, time.UTC), Total: 29},
	{At: time.Date(1996, time.January, 1, 0, 0, 0, 0, time.UTC), Total: 30},
	{At: time.Date(1997, time.July, 1, 0, 0, 0, 0, time.UTC), Total: 31},
	{At: time.Date(1999, time.January, 1, 0, 0, 0, 0, time.UTC), Total: 32},
	{At: time.Date(2006, time.January, 1, 0, 0, 0, 0, time.UTC), Total: 33},
	{At: time.Date(2009, time.January, 1, 0, 0, 0, 0, time.UTC), Total: 34},
	{At: time.Date(2012, time.July, 1, 0, 0, 0, 0, time.UTC), Total: 35},
	{At: time.Date(2015, time.July, 1, 0, 0, 0, 0, time.UTC), Total: 36},
	{At: time.Date(2017, time.January, 1, 0, 0, 0, 0, time.UTC), Total: 37},
}

// NewBuiltinTable returns the fallback table.
func NewBuiltinTable() *Table {
	return &Table{entries: append([]Entry(nil), builtinEntries...)}
}

// LoadSystemTable parses path (defaulting to the system "right/UTC" zone)
// and falls back to the built-in table if the file is absent or malformed.
func LoadSystemTable(path string) *Table {
	if path == "" {
		path = systemLeapFile
	}
	f, err := os.Open(path)
	if err != nil {
		return NewBuiltinTable()
	}
	defer f.Close()

	raw, err := parseTZif(f)
	if err != nil || len(raw) == 0 {
		return NewBuiltinTable()
	}
	entries := make([]Entry, len(raw))
	for i, l := range raw {
		entries[i] = Entry{At: l.time(), Total: l.Nleap}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].At.Before(entries[j].At) })
	return &Table{entries: entries}
}

// Next returns the first entry strictly after now, if any.
func (t *Table) Next(now time.Time) (Entry, bool) {
	for _, e := range t.entries {
		if e.At.After(now) {
			return e, true
		}
	}
	return Entry{}, false
}

// TotalAt returns the cumulative TAI-UTC offset in effect at t.
func (t *Table) TotalAt(when time.Time) int32 {
	var total int32
	for _, e := range t.entries {
		if !e.At.After(when) {
			total = e.Total
		}
	}
	return total
}

// Imminent reports whether a leap second is expected within `within` of
// now, and its sign (+1 insert, -1 delete) if so.
func (t *Table) Imminent(now time.Time, within time.Duration) (sign int32, imminent bool) {
	next, ok := t.Next(now)
	if !ok {
		return 0, false
	}
	if next.At.Sub(now) > within {
		return 0, false
	}
	prevTotal := t.TotalAt(now)
	delta := next.Total - prevTotal
	if delta == 0 {
		return 0, false
	}
	if delta > 0 {
		return 1, true
	}
	return -1, true
}
