package table

import "github.com/miku/stationagg/internal/fixed"

// Measurements is the running aggregate of one station, in tenths of a
// degree. Only extremes, sum and count are kept.
type Measurements struct {
	Min   fixed.Temp
	Max   fixed.Temp
	Sum   int64
	Count uint64
}

func newMeasurements(v fixed.Temp) Measurements {
	return Measurements{Min: v, Max: v, Sum: int64(v), Count: 1}
}

// Add records a single value.
func (m *Measurements) Add(v fixed.Temp) {
	m.Min = min(m.Min, v)
	m.Max = max(m.Max, v)
	m.Sum += int64(v)
	m.Count++
}

// Merge folds o into m. Merging is associative and commutative.
func (m *Measurements) Merge(o Measurements) {
	if m.Count == 0 {
		*m = o
		return
	}
	m.Min = min(m.Min, o.Min)
	m.Max = max(m.Max, o.Max)
	m.Sum += o.Sum
	m.Count += o.Count
}

// Mean returns the rounded mean in tenths.
func (m Measurements) Mean() int64 {
	return fixed.Mean(m.Sum, m.Count)
}
