package comm

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
)

// mailboxDepth bounds how far a fast rank may run ahead of a slow peer.
const mailboxDepth = 16

type message struct {
	tag     int
	payload any
}

// world is a set of in-process ranks connected by one FIFO mailbox per
// ordered (src, dst) pair.
type world struct {
	size int
	mail [][]chan message // mail[src][dst]
}

func newWorld(size int) *world {
	w := &world{size: size, mail: make([][]chan message, size)}
	for s := 0; s < size; s++ {
		w.mail[s] = make([]chan message, size)
		for d := 0; d < size; d++ {
			w.mail[s][d] = make(chan message, mailboxDepth)
		}
	}
	return w
}

// NewWorld creates size in-memory communicators, one per rank. Each must be
// driven by its own goroutine.
func NewWorld(size int) []Comm {
	if size < 1 {
		panic(errors.AssertionFailedf("comm: world size %d", size))
	}
	w := newWorld(size)
	comms := make([]Comm, size)
	for r := range comms {
		comms[r] = &memComm{w: w, rank: r}
	}
	return comms
}

type memComm struct {
	w    *world
	rank int
	seq  int
}

func (c *memComm) Rank() int { return c.rank }
func (c *memComm) Size() int { return c.w.size }

func (c *memComm) next() int {
	c.seq++
	return c.seq
}

func (c *memComm) send(ctx context.Context, dst, tag int, payload any) error {
	select {
	case c.w.mail[c.rank][dst] <- message{tag: tag, payload: payload}:
		return nil
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "rank %d send to %d", c.rank, dst)
	}
}

func (c *memComm) recv(ctx context.Context, src, tag int) (any, error) {
	select {
	case m := <-c.w.mail[src][c.rank]:
		if m.tag != tag {
			return nil, errors.Wrapf(ErrProtocol, "rank %d from %d: got tag %d want %d",
				c.rank, src, m.tag, tag)
		}
		return m.payload, nil
	case <-ctx.Done():
		return nil, errors.Wrapf(ctx.Err(), "rank %d recv from %d", c.rank, src)
	}
}

func (c *memComm) Barrier(ctx context.Context) error {
	_, err := c.AllGather(ctx, nil)
	return err
}

func (c *memComm) AllGather(ctx context.Context, payload any) ([]any, error) {
	tag := c.next()
	for d := 0; d < c.w.size; d++ {
		if d == c.rank {
			continue
		}
		if err := c.send(ctx, d, tag, payload); err != nil {
			return nil, err
		}
	}
	out := make([]any, c.w.size)
	out[c.rank] = payload
	for s := 0; s < c.w.size; s++ {
		if s == c.rank {
			continue
		}
		p, err := c.recv(ctx, s, tag)
		if err != nil {
			return nil, err
		}
		out[s] = p
	}
	return out, nil
}

func (c *memComm) Exchange(ctx context.Context, send map[int]any, recvFrom []int) (map[int]any, error) {
	tag := c.next()
	dsts := make([]int, 0, len(send))
	for d := range send {
		dsts = append(dsts, d)
	}
	sort.Ints(dsts)
	for _, d := range dsts {
		if d < 0 || d >= c.w.size || d == c.rank {
			return nil, errors.AssertionFailedf("rank %d: invalid exchange target %d", c.rank, d)
		}
		if err := c.send(ctx, d, tag, send[d]); err != nil {
			return nil, err
		}
	}
	out := make(map[int]any, len(recvFrom))
	for _, s := range recvFrom {
		p, err := c.recv(ctx, s, tag)
		if err != nil {
			return nil, err
		}
		out[s] = p
	}
	return out, nil
}

type splitKey struct {
	color, key, rank int
}

func (c *memComm) Split(ctx context.Context, color, key int) (Comm, error) {
	all, err := AllGatherInts(ctx, c, []int{color, key})
	if err != nil {
		return nil, err
	}
	var members []splitKey
	for r, v := range all {
		if v[0] == color {
			members = append(members, splitKey{color: v[0], key: v[1], rank: r})
		}
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].key != members[j].key {
			return members[i].key < members[j].key
		}
		return members[i].rank < members[j].rank
	})

	tag := c.next()
	leader := members[0].rank
	if c.rank == leader {
		sub := newWorld(len(members))
		var mine Comm
		for i, m := range members {
			sc := &memComm{w: sub, rank: i}
			if m.rank == c.rank {
				mine = sc
				continue
			}
			if err := c.send(ctx, m.rank, tag, sc); err != nil {
				return nil, err
			}
		}
		return mine, nil
	}
	p, err := c.recv(ctx, leader, tag)
	if err != nil {
		return nil, err
	}
	sc, ok := p.(Comm)
	if !ok {
		return nil, errors.Wrapf(ErrPayload, "split from %d: %T", leader, p)
	}
	return sc, nil
}
