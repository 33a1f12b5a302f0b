package brc

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"testing"

	"github.com/zeebo/xxh3"
	"golang.org/x/exp/maps"
)

func testHash(name string) uint64 {
	return xxh3.Hash([]byte(name))
}

func mustTable(t *testing.T, size int) *Table {
	t.Helper()
	table, err := NewTable(size)
	if err != nil {
		t.Fatal(err)
	}
	return table
}

func TestNewTableRejectsBadSizes(t *testing.T) {
	for _, size := range []int{0, -1, 3, 100} {
		if _, err := NewTable(size); err == nil {
			t.Errorf("NewTable(%d) should fail", size)
		}
	}
}

func TestUpsertAggregates(t *testing.T) {
	table := mustTable(t, 64)
	for _, v := range []int64{120, 100, -55, 120} {
		if err := table.Upsert([]byte("Hamburg"), testHash("Hamburg"), v); err != nil {
			t.Fatal(err)
		}
	}
	stations := table.Stations()
	if len(stations) != 1 {
		t.Fatalf("got %d stations, want 1", len(stations))
	}
	got := stations[0]
	want := Station{Name: "Hamburg", Min: -55, Max: 120, Sum: 285, Count: 4}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

// measurement is a test-side (station, tenths) pair.
type measurement struct {
	name  string
	value int64
}

func syntheticMeasurements(n int) []measurement {
	ms := make([]measurement, 0, n)
	seed := int64(42)
	for i := 0; i < n; i++ {
		seed = (seed*1103515245 + 12345) % (1 << 31)
		name := fmt.Sprintf("Station-%02d", seed%17)
		value := seed%1999 - 999
		ms = append(ms, measurement{name: name, value: value})
	}
	return ms
}

func aggregateNaive(ms []measurement) map[string]Station {
	out := make(map[string]Station)
	for _, m := range ms {
		s, ok := out[m.name]
		if !ok {
			s = Station{Name: m.name, Min: m.value, Max: m.value}
		} else {
			if m.value < s.Min {
				s.Min = m.value
			}
			if m.value > s.Max {
				s.Max = m.value
			}
		}
		s.Sum += m.value
		s.Count++
		out[m.name] = s
	}
	return out
}

func checkAgainstNaive(t *testing.T, got []Station, want map[string]Station) {
	t.Helper()
	names := maps.Keys(want)
	slices.Sort(names)
	if len(got) != len(names) {
		t.Fatalf("got %d stations, want %d", len(got), len(names))
	}
	for i, name := range names {
		if got[i] != want[name] {
			t.Fatalf("station %s: got %+v, want %+v", name, got[i], want[name])
		}
	}
}

// any partition of the measurements into groups, aggregated separately
// and merged in any order, must match the single-pass aggregate.
func TestMergeAssociativity(t *testing.T) {
	ms := syntheticMeasurements(300)
	want := aggregateNaive(ms)

	for _, groups := range []int{1, 2, 3, 5, 7} {
		t.Run(fmt.Sprintf("groups=%d", groups), func(t *testing.T) {
			build := func() []*Table {
				parts := make([]*Table, groups)
				for i := range parts {
					parts[i] = mustTable(t, 256)
				}
				for i, m := range ms {
					part := parts[i%groups]
					if err := part.Upsert([]byte(m.name), testHash(m.name), m.value); err != nil {
						t.Fatal(err)
					}
				}
				return parts
			}

			forward := mustTable(t, 256)
			for _, part := range build() {
				if err := forward.Merge(part); err != nil {
					t.Fatal(err)
				}
			}
			checkAgainstNaive(t, forward.Stations(), want)

			backward := mustTable(t, 256)
			parts := build()
			for i := len(parts) - 1; i >= 0; i-- {
				if err := backward.Merge(parts[i]); err != nil {
					t.Fatal(err)
				}
			}
			checkAgainstNaive(t, backward.Stations(), want)
		})
	}
}

func TestMergeEmptyTableIsNoop(t *testing.T) {
	table := mustTable(t, 64)
	for _, m := range syntheticMeasurements(50) {
		if err := table.Upsert([]byte(m.name), testHash(m.name), m.value); err != nil {
			t.Fatal(err)
		}
	}
	before := table.Stations()
	if err := table.Merge(mustTable(t, 64)); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(before, table.Stations()) {
		t.Fatal("merging an empty table changed the aggregate")
	}
	if err := table.Merge(nil); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(before, table.Stations()) {
		t.Fatal("merging nil changed the aggregate")
	}
}

// colliding hashes must fall back to byte comparison and +1 probing, and
// a full table must report ErrTableFull instead of spinning.
func TestCollisionsAndTableFull(t *testing.T) {
	table := mustTable(t, 4)
	const collidingHash = uint64(7)
	for i := 0; i < 4; i++ {
		name := []byte(fmt.Sprintf("S%d", i))
		if err := table.Upsert(name, collidingHash, int64(i)); err != nil {
			t.Fatal(err)
		}
	}
	if table.Len() != 4 {
		t.Fatalf("occupied = %d, want 4", table.Len())
	}
	// updating an existing entry still works when full
	if err := table.Upsert([]byte("S2"), collidingHash, 100); err != nil {
		t.Fatal(err)
	}
	if err := table.Upsert([]byte("S4"), collidingHash, 0); !errors.Is(err, ErrTableFull) {
		t.Fatalf("err = %v, want ErrTableFull", err)
	}
}
