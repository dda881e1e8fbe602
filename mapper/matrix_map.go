package mapper

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/notargets/GridKernel/component"
	"github.com/notargets/GridKernel/linalg"
	"github.com/notargets/GridKernel/logger"
	"github.com/notargets/GridKernel/network"
)

// MatrixMap assembles a global matrix from owned bus diagonal blocks and
// owned branch off-diagonal blocks
type MatrixMap[B component.Bus, R component.Branch] struct {
	g     *network.Graph[B, R]
	cache *IndexCache[B, R]
}

// NewMatrixMap returns a matrix map over g. A nil cache gets a private one;
// pass a shared cache to keep matrix and vector maps on one numbering.
func NewMatrixMap[B component.Bus, R component.Branch](g *network.Graph[B, R], cache *IndexCache[B, R]) *MatrixMap[B, R] {
	if cache == nil {
		cache = NewIndexCache(g)
	}
	return &MatrixMap[B, R]{g: g, cache: cache}
}

func (mm *MatrixMap[B, R]) Cache() *IndexCache[B, R] { return mm.cache }

// Map negotiates and fills every owned block for mode and returns the
// finalized matrix. Collective.
func (mm *MatrixMap[B, R]) Map(ctx context.Context, mode component.Mode) (*linalg.Matrix, error) {
	idx, err := mm.cache.Get(ctx, mode)
	if err != nil {
		return nil, err
	}
	g := mm.g
	rows, cols := idx.Dim()
	asm := linalg.NewMatrixAssembler(g.Comm(), rows, cols)
	var scratch []complex128
	block := func(n int) []complex128 {
		if cap(scratch) < n {
			scratch = make([]complex128, n)
		}
		return scratch[:n]
	}

	for i := 0; i < g.NumOwnedBuses(); i++ {
		bus := g.Bus(i)
		isize, jsize, ok := bus.MatrixDiagSize(mode)
		if !ok {
			continue
		}
		values := block(isize * jsize)
		if !bus.MatrixDiagValues(mode, values) {
			continue
		}
		asm.AddBlock(idx.buses[i].rowOff, idx.buses[i].colOff, isize, jsize, values)
	}

	for j := 0; j < g.NumOwnedBranches(); j++ {
		br := g.Branch(j)
		b1, b2 := g.BranchEndpoints(j)
		if isize, jsize, ok := br.MatrixForwardSize(mode); ok {
			checkCoupling(idx, b1, b2, isize, jsize, "forward")
			values := block(isize * jsize)
			if br.MatrixForwardValues(mode, values) {
				asm.AddBlock(idx.buses[b1].rowOff, idx.buses[b2].colOff, isize, jsize, values)
			}
		}
		if isize, jsize, ok := br.MatrixReverseSize(mode); ok {
			checkCoupling(idx, b2, b1, isize, jsize, "reverse")
			values := block(isize * jsize)
			if br.MatrixReverseValues(mode, values) {
				asm.AddBlock(idx.buses[b2].rowOff, idx.buses[b1].colOff, isize, jsize, values)
			}
		}
	}

	queued := asm.Len()
	m, err := asm.Finalize(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "finalize %s matrix", mode)
	}
	logger.Logger.Debugw("matrix mapped",
		logger.FieldRank, g.Rank(), logger.FieldMode, mode.String(),
		logger.FieldDim, rows, "queued", queued, "nnz", m.NNZ())
	return m, nil
}

// checkCoupling panics when a branch block does not span the rows of its
// row bus and the columns of its column bus
func checkCoupling(idx *IndexMap, rowBus, colBus, isize, jsize int, dir string) {
	if isize != idx.buses[rowBus].rows || jsize != idx.buses[colBus].cols {
		panic(errors.AssertionFailedf("%s branch block %dx%d does not match bus blocks %dx%d",
			dir, isize, jsize, idx.buses[rowBus].rows, idx.buses[colBus].cols))
	}
}
