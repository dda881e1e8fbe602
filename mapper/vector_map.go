package mapper

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/notargets/GridKernel/component"
	"github.com/notargets/GridKernel/linalg"
	"github.com/notargets/GridKernel/network"
)

// VectorMap assembles a global vector from owned bus blocks and writes
// solution vectors back into the buses
type VectorMap[B component.Bus, R component.Branch] struct {
	g     *network.Graph[B, R]
	cache *IndexCache[B, R]
}

func NewVectorMap[B component.Bus, R component.Branch](g *network.Graph[B, R], cache *IndexCache[B, R]) *VectorMap[B, R] {
	if cache == nil {
		cache = NewIndexCache(g)
	}
	return &VectorMap[B, R]{g: g, cache: cache}
}

func (vm *VectorMap[B, R]) Cache() *IndexCache[B, R] { return vm.cache }

// Map negotiates and fills every owned bus block for mode. Collective.
func (vm *VectorMap[B, R]) Map(ctx context.Context, mode component.Mode) (*linalg.Vector, error) {
	idx, err := vm.cache.Get(ctx, mode)
	if err != nil {
		return nil, err
	}
	g := vm.g
	asm := linalg.NewVectorAssembler(g.Comm(), idx.VectorDim())
	for i := 0; i < g.NumOwnedBuses(); i++ {
		bus := g.Bus(i)
		n, ok := bus.VectorSize(mode)
		if !ok {
			continue
		}
		values := make([]complex128, n)
		if !bus.VectorValues(mode, values) {
			continue
		}
		asm.AddBlock(idx.buses[i].vecOff, values)
	}
	v, err := asm.Finalize(ctx)
	return v, errors.Wrapf(err, "finalize %s vector", mode)
}

// MapToBus hands every owned bus its slice of vec through SetValues, then
// refreshes the ghosts. Collective; bus write errors are reported after the
// ghost refresh so every rank stays in step.
func (vm *VectorMap[B, R]) MapToBus(ctx context.Context, mode component.Mode, vec *linalg.Vector) error {
	idx, err := vm.cache.Get(ctx, mode)
	if err != nil {
		return err
	}
	if vec.Len() != idx.VectorDim() {
		return errors.Newf("%s vector has %d entries, index map expects %d", mode, vec.Len(), idx.VectorDim())
	}
	g := vm.g
	var writeErr error
	for i := 0; i < g.NumOwnedBuses(); i++ {
		b := idx.buses[i]
		if b.vec == 0 {
			continue
		}
		values := append([]complex128(nil), vec.Slice(b.vecOff, b.vec)...)
		if err := g.Bus(i).SetValues(mode, values); err != nil {
			writeErr = errors.CombineErrors(writeErr, err)
		}
	}
	if err := g.UpdateBuses(ctx); err != nil {
		return errors.CombineErrors(err, writeErr)
	}
	return writeErr
}
