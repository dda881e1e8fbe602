// Package comm provides the process-group abstraction the partitioned network
// runs on: rank/size, collectives, pairwise ghost exchange and communicator
// splitting for task-parallel contingency groups.
package comm

import (
	"context"

	"github.com/cockroachdb/errors"
)

var (
	// ErrProtocol is returned when ranks issue collectives in different orders.
	ErrProtocol = errors.New("comm: collective sequence mismatch")
	// ErrPayload is returned when a received payload has an unexpected type.
	ErrPayload = errors.New("comm: unexpected payload type")
)

// Comm is a communicator over a fixed group of ranks. Every collective must be
// entered by all ranks of the group in the same order or the group deadlocks.
type Comm interface {
	Rank() int
	Size() int

	// Barrier blocks until every rank has entered it.
	Barrier(ctx context.Context) error

	// AllGather returns the payload contributed by every rank, indexed by rank.
	AllGather(ctx context.Context, payload any) ([]any, error)

	// Exchange sends send[r] to each rank r and receives one payload from
	// each rank listed in recvFrom. Both sides must agree on the pairing.
	Exchange(ctx context.Context, send map[int]any, recvFrom []int) (map[int]any, error)

	// Split partitions the group by color; ranks within a color are ordered
	// by (key, rank).
	Split(ctx context.Context, color, key int) (Comm, error)
}

// AllGatherInts gathers one int slice per rank.
func AllGatherInts(ctx context.Context, c Comm, local []int) ([][]int, error) {
	raw, err := c.AllGather(ctx, local)
	if err != nil {
		return nil, err
	}
	out := make([][]int, len(raw))
	for r, p := range raw {
		v, ok := p.([]int)
		if !ok && p != nil {
			return nil, errors.Wrapf(ErrPayload, "rank %d sent %T", r, p)
		}
		out[r] = v
	}
	return out, nil
}

// AllGatherFloats gathers one float64 slice per rank.
func AllGatherFloats(ctx context.Context, c Comm, local []float64) ([][]float64, error) {
	raw, err := c.AllGather(ctx, local)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(raw))
	for r, p := range raw {
		v, ok := p.([]float64)
		if !ok && p != nil {
			return nil, errors.Wrapf(ErrPayload, "rank %d sent %T", r, p)
		}
		out[r] = v
	}
	return out, nil
}

// ExclusiveScan returns the sum of local over all lower ranks and the global total.
func ExclusiveScan(ctx context.Context, c Comm, local int) (offset, total int, err error) {
	all, err := AllGatherInts(ctx, c, []int{local})
	if err != nil {
		return 0, 0, err
	}
	for r, v := range all {
		if r < c.Rank() {
			offset += v[0]
		}
		total += v[0]
	}
	return offset, total, nil
}

// ExchangeFloats is Exchange specialised to float64 payloads.
func ExchangeFloats(ctx context.Context, c Comm, send map[int][]float64, recvFrom []int) (map[int][]float64, error) {
	out := make(map[int]any, len(send))
	for r, v := range send {
		out[r] = v
	}
	raw, err := c.Exchange(ctx, out, recvFrom)
	if err != nil {
		return nil, err
	}
	recv := make(map[int][]float64, len(raw))
	for r, p := range raw {
		v, ok := p.([]float64)
		if !ok {
			return nil, errors.Wrapf(ErrPayload, "rank %d sent %T", r, p)
		}
		recv[r] = v
	}
	return recv, nil
}

// ExchangeInts is Exchange specialised to int payloads.
func ExchangeInts(ctx context.Context, c Comm, send map[int][]int, recvFrom []int) (map[int][]int, error) {
	out := make(map[int]any, len(send))
	for r, v := range send {
		out[r] = v
	}
	raw, err := c.Exchange(ctx, out, recvFrom)
	if err != nil {
		return nil, err
	}
	recv := make(map[int][]int, len(raw))
	for r, p := range raw {
		v, ok := p.([]int)
		if !ok {
			return nil, errors.Wrapf(ErrPayload, "rank %d sent %T", r, p)
		}
		recv[r] = v
	}
	return recv, nil
}

// Broadcast distributes root's payload to every rank.
func Broadcast(ctx context.Context, c Comm, root int, payload any) (any, error) {
	var mine any
	if c.Rank() == root {
		mine = payload
	}
	all, err := c.AllGather(ctx, mine)
	if err != nil {
		return nil, err
	}
	return all[root], nil
}
