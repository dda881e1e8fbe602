// Package mapper turns the per-component blocks of a partitioned network
// into globally indexed matrices and vectors, and maps solutions back.
package mapper

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/notargets/GridKernel/comm"
	"github.com/notargets/GridKernel/component"
	"github.com/notargets/GridKernel/network"
)

// ErrStaleIndex is returned when a bus changed its block size for a mode
// after indices were assigned. Invalidate the cache and map again.
var ErrStaleIndex = errors.New("mapper: bus block sizes changed since index assignment")

// busIndex is one bus's slot in the global row, column and vector spaces
type busIndex struct {
	rowOff, rows int
	colOff, cols int
	vecOff, vec  int
}

const busIndexWidth = 6

func (b busIndex) pack(dst []int) {
	dst[0], dst[1], dst[2], dst[3], dst[4], dst[5] = b.rowOff, b.rows, b.colOff, b.cols, b.vecOff, b.vec
}

func unpackIndex(src []int) busIndex {
	return busIndex{rowOff: src[0], rows: src[1], colOff: src[2], cols: src[3], vecOff: src[4], vec: src[5]}
}

// IndexMap holds the global offsets of every local bus, owned and ghost, for
// one mode. Owned buses of rank r occupy a contiguous range that follows
// the ranges of ranks 0..r-1.
type IndexMap struct {
	mode       component.Mode
	buses      []busIndex
	owned      int
	rows, cols int
	vec        int
}

func (m *IndexMap) Mode() component.Mode { return m.mode }

// Dim returns the global matrix dimensions
func (m *IndexMap) Dim() (rows, cols int) { return m.rows, m.cols }

// VectorDim returns the global vector length
func (m *IndexMap) VectorDim() int { return m.vec }

// BusRows returns the diagonal block rows of local bus i
func (m *IndexMap) BusRows(i int) int { return m.buses[i].rows }

func (m *IndexMap) BusCols(i int) int { return m.buses[i].cols }

func (m *IndexMap) BusVectorSize(i int) int { return m.buses[i].vec }

// RowIndex returns the global row of row r of local bus i's block
func (m *IndexMap) RowIndex(i, r int) int {
	b := m.buses[i]
	if r < 0 || r >= b.rows {
		panic(errors.AssertionFailedf("row %d outside block of %d rows", r, b.rows))
	}
	return b.rowOff + r
}

func (m *IndexMap) ColIndex(i, c int) int {
	b := m.buses[i]
	if c < 0 || c >= b.cols {
		panic(errors.AssertionFailedf("column %d outside block of %d columns", c, b.cols))
	}
	return b.colOff + c
}

func (m *IndexMap) VectorIndex(i, k int) int {
	b := m.buses[i]
	if k < 0 || k >= b.vec {
		panic(errors.AssertionFailedf("entry %d outside block of %d entries", k, b.vec))
	}
	return b.vecOff + k
}

// ownedSizes queries the owned buses for their block sizes in mode. A bus
// that does not contribute reports zero.
func ownedSizes[B component.Bus, R component.Branch](g *network.Graph[B, R], mode component.Mode) []busIndex {
	sizes := make([]busIndex, g.NumOwnedBuses())
	for i := range sizes {
		bus := g.Bus(i)
		if isize, jsize, ok := bus.MatrixDiagSize(mode); ok {
			sizes[i].rows, sizes[i].cols = isize, jsize
		}
		if n, ok := bus.VectorSize(mode); ok {
			sizes[i].vec = n
		}
	}
	return sizes
}

// AssignIndices numbers the owned blocks of every rank in rank order and
// pushes each owner's offsets and sizes to its ghost copies. Collective.
func AssignIndices[B component.Bus, R component.Branch](ctx context.Context, g *network.Graph[B, R], mode component.Mode) (*IndexMap, error) {
	sizes := ownedSizes(g, mode)
	var local [3]int
	for _, s := range sizes {
		local[0] += s.rows
		local[1] += s.cols
		local[2] += s.vec
	}
	all, err := comm.AllGatherInts(ctx, g.Comm(), local[:])
	if err != nil {
		return nil, errors.Wrapf(err, "gather %s block totals", mode)
	}

	m := &IndexMap{mode: mode, buses: make([]busIndex, g.NumBuses()), owned: len(sizes)}
	var offset [3]int
	for r, t := range all {
		if r < g.Rank() {
			offset[0] += t[0]
			offset[1] += t[1]
			offset[2] += t[2]
		}
		m.rows += t[0]
		m.cols += t[1]
		m.vec += t[2]
	}
	for i, s := range sizes {
		s.rowOff, s.colOff, s.vecOff = offset[0], offset[1], offset[2]
		offset[0] += s.rows
		offset[1] += s.cols
		offset[2] += s.vec
		m.buses[i] = s
	}

	err = g.ExchangeGhostInts(ctx, busIndexWidth,
		func(local int, dst []int) { m.buses[local].pack(dst) },
		func(local int, src []int) { m.buses[local] = unpackIndex(src) })
	if err != nil {
		return nil, errors.Wrapf(err, "push %s indices to ghosts", mode)
	}
	return m, nil
}

// stale reports whether any owned bus now negotiates a different size
func (m *IndexMap) stale(sizes []busIndex) bool {
	if len(sizes) != m.owned {
		return true
	}
	for i, s := range sizes {
		b := m.buses[i]
		if s.rows != b.rows || s.cols != b.cols || s.vec != b.vec {
			return true
		}
	}
	return false
}

// IndexCache keeps one IndexMap per mode for a graph
type IndexCache[B component.Bus, R component.Branch] struct {
	g    *network.Graph[B, R]
	maps map[component.Mode]*IndexMap
}

func NewIndexCache[B component.Bus, R component.Branch](g *network.Graph[B, R]) *IndexCache[B, R] {
	return &IndexCache[B, R]{g: g, maps: make(map[component.Mode]*IndexMap)}
}

// Get returns the index map for mode, assigning it on first use. A cached
// map is revalidated against the current owned sizes on every call; if any
// rank sees a change, every rank gets ErrStaleIndex. Collective.
func (c *IndexCache[B, R]) Get(ctx context.Context, mode component.Mode) (*IndexMap, error) {
	m, ok := c.maps[mode]
	if !ok {
		m, err := AssignIndices(ctx, c.g, mode)
		if err != nil {
			return nil, err
		}
		c.maps[mode] = m
		return m, nil
	}

	flag := 0
	if m.stale(ownedSizes(c.g, mode)) {
		flag = 1
	}
	flags, err := comm.AllGatherInts(ctx, c.g.Comm(), []int{flag})
	if err != nil {
		return nil, err
	}
	for r, f := range flags {
		if f[0] != 0 {
			return nil, errors.Wrapf(ErrStaleIndex, "mode %s, first seen on rank %d", mode, r)
		}
	}
	return m, nil
}

// Invalidate drops the cached map for mode so the next Get reassigns it
func (c *IndexCache[B, R]) Invalidate(mode component.Mode) {
	delete(c.maps, mode)
}

// InvalidateAll drops every cached map
func (c *IndexCache[B, R]) InvalidateAll() {
	clear(c.maps)
}
