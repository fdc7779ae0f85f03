// Package table implements an open addressing, linear probing map from raw
// station name bytes to Measurements. Updates mutate the slot in place and
// do not allocate; key bytes are copied once into an append-only arena.
package table

import (
	"bytes"
	"errors"
	"math"
	"math/bits"

	"github.com/miku/stationagg/internal/fixed"
)

// ErrCapacityExceeded is returned when the table would have to grow beyond
// its maximum capacity.
var ErrCapacityExceeded = errors.New("table capacity exceeded")

const (
	DefaultInitialCapacity = 4 << 10
	DefaultLoadFactor      = 0.5
	DefaultMaxCapacity     = 1 << 24
)

// Options configure a Table. Zero values select the defaults. Capacities are
// rounded up to a power of two.
type Options struct {
	InitialCapacity int
	LoadFactor      float64
	MaxCapacity     int
}

type slot struct {
	hash uint64
	off  uint32 // key bytes are arena[off : off+n]
	n    uint32
	m    Measurements // m.Count == 0 marks an empty slot
}

// Table maps station names to Measurements. It is not safe for concurrent
// use.
type Table struct {
	slots      []slot
	mask       uint64
	live       int
	threshold  int
	loadFactor float64
	maxSlots   int
	arena      []byte
	grows      int
}

// New returns an empty table.
func New(opts Options) *Table {
	if opts.InitialCapacity <= 0 {
		opts.InitialCapacity = DefaultInitialCapacity
	}
	if opts.LoadFactor <= 0 || opts.LoadFactor >= 1 {
		opts.LoadFactor = DefaultLoadFactor
	}
	if opts.MaxCapacity <= 0 {
		opts.MaxCapacity = DefaultMaxCapacity
	}
	size := ceilPow2(max(opts.InitialCapacity, 2))
	maxSlots := max(ceilPow2(opts.MaxCapacity), size)
	t := &Table{
		loadFactor: opts.LoadFactor,
		maxSlots:   maxSlots,
		arena:      make([]byte, 0, size*16),
	}
	t.reset(size)
	return t
}

func ceilPow2(n int) int {
	return 1 << bits.Len(uint(n-1))
}

func (t *Table) reset(size int) {
	t.slots = make([]slot, size)
	t.mask = uint64(size - 1)
	t.threshold = max(int(float64(size)*t.loadFactor), 1)
}

func (t *Table) key(s *slot) []byte {
	return t.arena[s.off : s.off+s.n]
}

func (t *Table) matches(s *slot, name []byte, hash uint64) bool {
	return s.hash == hash && int(s.n) == len(name) && bytes.Equal(t.key(s), name)
}

// Upsert adds v to the measurements of name, creating the entry on first
// sight. hash must be the same for equal names; distinct names that share a
// hash are kept apart.
func (t *Table) Upsert(name []byte, hash uint64, v fixed.Temp) error {
	i := hash & t.mask
	if s := &t.slots[i]; s.m.Count != 0 && t.matches(s, name, hash) {
		s.m.Add(v)
		return nil
	}
	s := t.probe(name, hash, i)
	if s.m.Count != 0 {
		s.m.Add(v)
		return nil
	}
	return t.insert(s, name, hash, newMeasurements(v))
}

// probe returns the slot holding name, or the first empty slot of its probe
// sequence.
func (t *Table) probe(name []byte, hash uint64, i uint64) *slot {
	for {
		s := &t.slots[i]
		if s.m.Count == 0 || t.matches(s, name, hash) {
			return s
		}
		i = (i + 1) & t.mask
	}
}

func (t *Table) insert(s *slot, name []byte, hash uint64, m Measurements) error {
	// Nothing is stored when the table could not grow afterwards.
	if t.live+1 >= t.threshold && 2*len(t.slots) > t.maxSlots {
		return ErrCapacityExceeded
	}
	if uint64(len(t.arena)+len(name)) > math.MaxUint32 {
		return ErrCapacityExceeded
	}
	s.hash = hash
	s.off = uint32(len(t.arena))
	s.n = uint32(len(name))
	s.m = m
	t.arena = append(t.arena, name...)
	if t.live++; t.live >= t.threshold {
		return t.grow()
	}
	return nil
}

// grow doubles the slot array and rehashes the live entries. Keys stay in
// the arena, only their slots move.
func (t *Table) grow() error {
	size := 2 * len(t.slots)
	if size > t.maxSlots {
		return ErrCapacityExceeded
	}
	old := t.slots
	t.reset(size)
	for i := range old {
		if e := &old[i]; e.m.Count != 0 {
			j := e.hash & t.mask
			for t.slots[j].m.Count != 0 {
				j = (j + 1) & t.mask
			}
			t.slots[j] = *e
		}
	}
	t.grows++
	return nil
}

// Merge folds every entry of o into t.
func (t *Table) Merge(o *Table) error {
	for i := range o.slots {
		e := &o.slots[i]
		if e.m.Count == 0 {
			continue
		}
		name := o.key(e)
		s := t.probe(name, e.hash, e.hash&t.mask)
		if s.m.Count != 0 {
			s.m.Merge(e.m)
			continue
		}
		if err := t.insert(s, name, e.hash, e.m); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the measurements for name.
func (t *Table) Lookup(name []byte, hash uint64) (Measurements, bool) {
	s := t.probe(name, hash, hash&t.mask)
	return s.m, s.m.Count != 0
}

// Each calls fn for every entry in slot order. name must not be retained.
func (t *Table) Each(fn func(name []byte, m Measurements)) {
	for i := range t.slots {
		if s := &t.slots[i]; s.m.Count != 0 {
			fn(t.key(s), s.m)
		}
	}
}

// Len returns the number of stations.
func (t *Table) Len() int { return t.live }

// Cap returns the number of slots, always a power of two.
func (t *Table) Cap() int { return len(t.slots) }

// Grows returns how often the table doubled.
func (t *Table) Grows() int { return t.grows }
