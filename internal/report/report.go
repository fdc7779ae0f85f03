// Package report renders a station table as a single sorted line:
//
//	{Abha=-23.0/18.0/59.2, Abidjan=-16.2/26.0/67.3, ...}
package report

import (
	"io"
	"sort"

	"github.com/miku/stationagg/internal/fixed"
	"github.com/miku/stationagg/internal/table"
)

// Entry is one station of the report, values in tenths.
type Entry struct {
	Name  string
	Min   int64
	Mean  int64
	Max   int64
	Count uint64
}

// Entries returns all stations sorted by the bytes of their name.
func Entries(t *table.Table) []Entry {
	entries := make([]Entry, 0, t.Len())
	t.Each(func(name []byte, m table.Measurements) {
		entries = append(entries, Entry{
			Name:  string(name),
			Min:   int64(m.Min),
			Mean:  m.Mean(),
			Max:   int64(m.Max),
			Count: m.Count,
		})
	})
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries
}

// Append appends the rendered report, without a trailing newline.
func Append(dst []byte, entries []Entry) []byte {
	dst = append(dst, '{')
	for i, e := range entries {
		if i > 0 {
			dst = append(dst, ',', ' ')
		}
		dst = append(dst, e.Name...)
		dst = append(dst, '=')
		dst = fixed.AppendTenths(dst, e.Min)
		dst = append(dst, '/')
		dst = fixed.AppendTenths(dst, e.Mean)
		dst = append(dst, '/')
		dst = fixed.AppendTenths(dst, e.Max)
	}
	return append(dst, '}')
}

// Format returns the report for t.
func Format(t *table.Table) string {
	entries := Entries(t)
	return string(Append(make([]byte, 0, 32*len(entries)+2), entries))
}

// Write writes the report for t followed by a newline.
func Write(w io.Writer, t *table.Table) error {
	_, err := w.Write(append(Append(nil, Entries(t)), '\n'))
	return err
}
