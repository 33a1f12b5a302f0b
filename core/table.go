package brc

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// DefaultTableSize is 2^17 slots, far above the station cardinality of
// real inputs (hundreds) so probe chains stay short without resizing.
const DefaultTableSize = 1 << 17

// ErrTableFull reports more distinct stations than the table has slots.
// The table never resizes; a fixed oversized capacity is assumed to be
// enough for the domain.
var ErrTableFull = errors.New("aggregate table is full")

type tableSlot struct {
	name  []byte
	hash  uint64
	min   int64
	max   int64
	sum   int64
	count uint64
}

// Table maps station names to running {min, max, sum, count} aggregates
// using open addressing with +1 linear probing over a power of two slot
// array. Slots compare the cached hash first and only then the name
// bytes. Entries are never deleted during a run.
type Table struct {
	slots    []tableSlot
	mask     uint64
	occupied int
}

func NewTable(size int) (*Table, error) {
	if size < 1 || size&(size-1) != 0 {
		return nil, fmt.Errorf("table size must be a power of two, got %d", size)
	}
	return &Table{
		slots: make([]tableSlot, size),
		mask:  uint64(size - 1),
	}, nil
}

// Upsert folds one measurement into the aggregate for name. The name
// bytes are copied on first sighting, the caller's span may die with its
// chunk view.
func (t *Table) Upsert(name []byte, hash uint64, value int64) error {
	index := hash & t.mask
	for probed := 0; probed < len(t.slots); probed++ {
		slot := &t.slots[index]
		if slot.name == nil {
			owned := make([]byte, len(name))
			copy(owned, name)
			*slot = tableSlot{
				name:  owned,
				hash:  hash,
				min:   value,
				max:   value,
				sum:   value,
				count: 1,
			}
			t.occupied++
			return nil
		}
		if slot.hash == hash && bytes.Equal(slot.name, name) {
			if value < slot.min {
				slot.min = value
			}
			if value > slot.max {
				slot.max = value
			}
			slot.sum += value
			slot.count++
			return nil
		}
		index = (index + 1) & t.mask
	}
	return ErrTableFull
}

// Merge folds every entry of other into t. Merge is associative and
// commutative, so any fold order over any partition of the input lines
// yields the same final table; merging an empty table is a no-op.
// Ownership of other's entries transfers to t.
func (t *Table) Merge(other *Table) error {
	if other == nil {
		return nil
	}
	for i := range other.slots {
		src := &other.slots[i]
		if src.name == nil {
			continue
		}
		if err := t.mergeEntry(src); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) mergeEntry(src *tableSlot) error {
	index := src.hash & t.mask
	for probed := 0; probed < len(t.slots); probed++ {
		slot := &t.slots[index]
		if slot.name == nil {
			*slot = *src
			t.occupied++
			return nil
		}
		if slot.hash == src.hash && bytes.Equal(slot.name, src.name) {
			if src.min < slot.min {
				slot.min = src.min
			}
			if src.max > slot.max {
				slot.max = src.max
			}
			slot.sum += src.sum
			slot.count += src.count
			return nil
		}
		index = (index + 1) & t.mask
	}
	return ErrTableFull
}

// Len returns the number of distinct stations seen so far.
func (t *Table) Len() int { return t.occupied }

// Station is one finished aggregate. Min, Max and Sum are tenths of a
// degree; divide by 10.0 to render degrees.
type Station struct {
	Name  string
	Min   int64
	Max   int64
	Sum   int64
	Count uint64
}

// Mean returns the average temperature in degrees.
func (s Station) Mean() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Sum) / float64(s.Count) / 10.0
}

// Stations returns every aggregate sorted by station name.
func (t *Table) Stations() []Station {
	stations := make([]Station, 0, t.occupied)
	for i := range t.slots {
		slot := &t.slots[i]
		if slot.name == nil {
			continue
		}
		stations = append(stations, Station{
			Name:  string(slot.name),
			Min:   slot.min,
			Max:   slot.max,
			Sum:   slot.sum,
			Count: slot.count,
		})
	}
	slices.SortFunc(stations, func(a, b Station) int {
		return strings.Compare(a.Name, b.Name)
	})
	return stations
}

// FormatTenths renders a tenths-of-a-degree integer back to its decimal
// form, the exact inverse of the tokenizer's fixed-point parse.
func FormatTenths(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%d", sign, v/10, v%10)
}
