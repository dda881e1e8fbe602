package network

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/notargets/GridKernel/comm"
	"github.com/notargets/GridKernel/component"
)

// UpdateBuses copies the state of every owned bus into its ghost copies on
// other ranks. Buses whose component does not carry state are skipped.
// Collective: every rank of the graph's communicator must call it.
func (g *Graph[B, R]) UpdateBuses(ctx context.Context) error {
	codec := func(local int) component.StateCodec {
		sc, _ := any(g.buses[local].comp).(component.StateCodec)
		return sc
	}
	size := func(local int) int {
		if sc := codec(local); sc != nil {
			return sc.StateSize()
		}
		return 0
	}
	err := g.ExchangeGhostFloats(ctx, size,
		func(local int, dst []float64) {
			if sc := codec(local); sc != nil {
				sc.PackState(dst)
			}
		},
		func(local int, src []float64) {
			if sc := codec(local); sc != nil {
				sc.UnpackState(src)
			}
		})
	return errors.Wrap(err, "update ghost buses")
}

// ExchangeGhostInts sends width ints per owned bus to every ghost copy.
// pack fills dst for an owned local bus; unpack reads src into a ghost.
func (g *Graph[B, R]) ExchangeGhostInts(
	ctx context.Context,
	width int,
	pack func(local int, dst []int),
	unpack func(local int, src []int),
) error {
	rank := g.Rank()
	send := make(map[int][]int)
	for _, q := range g.connector.SendTargets(rank) {
		pick := g.connector.GetPickIndices(rank, q)
		buf := make([]int, len(pick)*width)
		for k, idx := range pick {
			pack(idx, buf[k*width:(k+1)*width])
		}
		send[q] = buf
	}

	sources := g.connector.RecvSources(rank)
	got, err := comm.ExchangeInts(ctx, g.comm, send, sources)
	if err != nil {
		return err
	}
	for _, q := range sources {
		place := g.connector.GetPlaceIndices(rank, q)
		data := got[q]
		if len(data) != len(place)*width {
			return errors.Wrapf(comm.ErrPayload, "rank %d from %d: %d ints for %d ghosts of width %d",
				rank, q, len(data), len(place), width)
		}
		for k, idx := range place {
			unpack(idx, data[k*width:(k+1)*width])
		}
	}
	return nil
}

// ExchangeGhostFloats sends size(local) floats per owned bus to every ghost
// copy. Both sides must agree on the size of a bus.
func (g *Graph[B, R]) ExchangeGhostFloats(
	ctx context.Context,
	size func(local int) int,
	pack func(local int, dst []float64),
	unpack func(local int, src []float64),
) error {
	rank := g.Rank()
	send := make(map[int][]float64)
	for _, q := range g.connector.SendTargets(rank) {
		var buf []float64
		for _, idx := range g.connector.GetPickIndices(rank, q) {
			n := size(idx)
			start := len(buf)
			buf = append(buf, make([]float64, n)...)
			pack(idx, buf[start:start+n])
		}
		send[q] = buf
	}

	sources := g.connector.RecvSources(rank)
	got, err := comm.ExchangeFloats(ctx, g.comm, send, sources)
	if err != nil {
		return err
	}
	for _, q := range sources {
		data := got[q]
		pos := 0
		for _, idx := range g.connector.GetPlaceIndices(rank, q) {
			n := size(idx)
			if pos+n > len(data) {
				return errors.Wrapf(comm.ErrPayload, "rank %d from %d: payload short at ghost %d", rank, q, idx)
			}
			unpack(idx, data[pos:pos+n])
			pos += n
		}
		if pos != len(data) {
			return errors.Wrapf(comm.ErrPayload, "rank %d from %d: %d trailing floats", rank, q, len(data)-pos)
		}
	}
	return nil
}
