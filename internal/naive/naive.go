// Package naive is the slow reference: one string per line, a Go map and
// arbitrary precision arithmetic. It exists to check the fast path.
//
// data:
//
//	Tamale;27.5
//	Bergen;9.6
//	Lodwar;37.1
//	Whitehorse;-3.8
//	Ouarzazate;19.1
package naive

import (
	"bufio"
	"fmt"
	"io"
	"math/big"
	"sort"
	"strings"

	"golang.org/x/exp/maps"
)

// Measurements keeps exact values for a single station.
type Measurements struct {
	Min   *big.Rat
	Max   *big.Rat
	Sum   *big.Rat
	Count int64
}

func (m *Measurements) Add(v *big.Rat) {
	if v.Cmp(m.Min) < 0 {
		m.Min.Set(v)
	}
	if v.Cmp(m.Max) > 0 {
		m.Max.Set(v)
	}
	m.Sum.Add(m.Sum, v)
	m.Count++
}

// Mean returns the mean rounded half up to one fractional digit.
func (m *Measurements) Mean() *big.Rat {
	x := new(big.Rat).SetFrac64(1, 2)
	x.Add(x, new(big.Rat).Quo(new(big.Rat).Mul(m.Sum, big.NewRat(10, 1)), big.NewRat(m.Count, 1)))
	q := new(big.Int).Div(x.Num(), x.Denom()) // floor, Denom is positive
	return new(big.Rat).SetFrac(q, big.NewInt(10))
}

// Aggregate reads all lines from r.
func Aggregate(r io.Reader) (map[string]*Measurements, error) {
	var data = make(map[string]*Measurements)
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		if line == "" && err == io.EOF {
			break
		}
		parts := strings.Split(strings.TrimSuffix(line, "\n"), ";")
		if len(parts) != 2 {
			return nil, fmt.Errorf("expected two fields: %q", line)
		}
		name := parts[0]
		temp, ok := new(big.Rat).SetString(parts[1])
		if !ok {
			return nil, fmt.Errorf("invalid temp: %q", parts[1])
		}
		if m, ok := data[name]; ok {
			m.Add(temp)
		} else {
			data[name] = &Measurements{
				Min:   new(big.Rat).Set(temp),
				Max:   new(big.Rat).Set(temp),
				Sum:   new(big.Rat).Set(temp),
				Count: 1,
			}
		}
		if err == io.EOF {
			break
		}
	}
	return data, nil
}

// Format renders data like report.Format.
func Format(data map[string]*Measurements) string {
	keys := maps.Keys(data)
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		m := data[k]
		fmt.Fprintf(&sb, "%s=%s/%s/%s", k, m.Min.FloatString(1), m.Mean().FloatString(1), m.Max.FloatString(1))
	}
	sb.WriteString("}")
	return sb.String()
}

// Run aggregates r and returns the formatted report.
func Run(r io.Reader) (string, error) {
	data, err := Aggregate(r)
	if err != nil {
		return "", err
	}
	return Format(data), nil
}
