package contingency

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/notargets/GridKernel/comm"
	"github.com/notargets/GridKernel/gridcomp"
	"github.com/notargets/GridKernel/linalg"
	"github.com/notargets/GridKernel/logger"
	"github.com/notargets/GridKernel/network"
	"github.com/notargets/GridKernel/partitions"
)

// BaseCase is the index reported for the unmodified network
const BaseCase = -1

// TaskQueue hands out contingency indices to group roots. One queue is
// shared by every group of a world.
type TaskQueue struct {
	next atomic.Int64
	n    int64
}

func NewTaskQueue(n int) *TaskQueue { return &TaskQueue{n: int64(n)} }

// Next returns the next unclaimed index, or -1 once all are claimed
func (q *TaskQueue) Next() int {
	i := q.next.Add(1) - 1
	if i >= q.n {
		return -1
	}
	return int(i)
}

// Result is the outcome of one contingency
type Result struct {
	Index      int
	Name       string
	Group      int
	Status     Status
	MaxLoading float64
	Violations []Violation
	Matched    int
}

// Screener evaluates a list of contingencies with the world split into
// groups of GroupSize ranks. Each group holds its own copy of the network
// and pulls work from Queue until it is empty.
type Screener struct {
	World         comm.Comm
	GroupSize     int
	Case          *network.Case // validated, shared read-only
	Strategy      partitions.PartitionStrategy
	Contingencies []*Contingency
	Queue         *TaskQueue

	// NewEvaluator builds the analysis run per contingency; nil selects a
	// DC flow with default options
	NewEvaluator func(net *gridcomp.Network) Evaluator
	RunID        string
}

// Screen runs the base case and every contingency and returns the merged
// report on every rank of World. Collective over World.
func (s *Screener) Screen(ctx context.Context) (*Report, error) {
	size := s.GroupSize
	if size <= 0 {
		size = 1
	}
	if s.World.Size()%size != 0 {
		return nil, errors.Newf("world of %d ranks does not split into groups of %d", s.World.Size(), size)
	}
	if s.Queue == nil {
		return nil, errors.New("screener needs a shared task queue")
	}
	groupID := s.World.Rank() / size
	group, err := s.World.Split(ctx, groupID, s.World.Rank())
	if err != nil {
		return nil, errors.Wrap(err, "split world")
	}
	log := logger.ForRank(s.World.Rank()).With(logger.FieldGroup, groupID, logger.FieldRunID, s.RunID)

	layout, err := s.Case.Partition(size, s.Strategy)
	if err != nil {
		return nil, err
	}
	net, err := gridcomp.NewNetwork(ctx, group, s.Case, layout)
	if err != nil {
		return nil, err
	}
	f := gridcomp.NewFactory(net)
	if err := f.Initialize(ctx); err != nil {
		return nil, err
	}
	newEval := s.NewEvaluator
	if newEval == nil {
		newEval = func(net *gridcomp.Network) Evaluator { return NewDCFlow(net, DCOptions{}) }
	}
	eval := newEval(net)

	var mine []Result
	base, err := s.evaluate(ctx, eval, Result{Index: BaseCase, Name: "base case", Group: groupID})
	if err != nil {
		return nil, err
	}
	if s.World.Rank() == 0 {
		mine = append(mine, base)
	}

	for {
		task := -1
		if group.Rank() == 0 {
			task = s.Queue.Next()
		}
		v, err := comm.Broadcast(ctx, group, 0, task)
		if err != nil {
			return nil, err
		}
		task, ok := v.(int)
		if !ok {
			return nil, errors.Wrapf(comm.ErrPayload, "task index %T", v)
		}
		if task < 0 {
			break
		}
		start := time.Now()
		res, err := s.run(ctx, net, f, eval, task, groupID)
		if err != nil {
			return nil, errors.Wrapf(err, "contingency %q", s.Contingencies[task].Name)
		}
		log.Debugw("contingency screened",
			logger.FieldContingency, res.Name,
			logger.FieldStatus, res.Status.String(),
			logger.FieldDurationMS, time.Since(start).Milliseconds())
		if group.Rank() == 0 {
			mine = append(mine, res)
		}
	}
	return s.merge(ctx, mine)
}

// run applies one contingency, evaluates it and restores the base state
func (s *Screener) run(ctx context.Context, net *gridcomp.Network, f *gridcomp.Factory, eval Evaluator, task, groupID int) (Result, error) {
	c := s.Contingencies[task].Clone()
	if err := Apply(net, c); err != nil {
		return Result{}, err
	}
	matched, err := comm.AllGatherInts(ctx, net.Comm(), []int{c.Matched()})
	if err != nil {
		return Result{}, err
	}
	res := Result{Index: task, Name: c.Name, Group: groupID}
	for _, m := range matched {
		res.Matched += m[0]
	}
	if res.Matched == 0 && net.Comm().Rank() == 0 {
		logger.Logger.Warnw("contingency matched no element",
			logger.FieldContingency, c.Name, logger.FieldGroup, groupID)
	}
	f.SetYBus()
	f.SetSBus()
	f.SetGBus()

	res, evalErr := s.evaluate(ctx, eval, res)

	if err := Clear(net, c); err != nil {
		return Result{}, errors.CombineErrors(evalErr, err)
	}
	f.SetYBus()
	f.SetSBus()
	f.SetGBus()
	return res, evalErr
}

func (s *Screener) evaluate(ctx context.Context, eval Evaluator, res Result) (Result, error) {
	out, err := eval.Evaluate(ctx)
	switch {
	case errors.Is(err, linalg.ErrNoSolution):
		res.Status = StatusNoSolution
		return res, nil
	case err != nil:
		return res, err
	}
	res.MaxLoading = out.MaxLoading
	res.Violations = out.Violations
	res.Status = StatusOK
	if len(out.Violations) > 0 {
		res.Status = StatusViolation
	}
	return res, nil
}

func (s *Screener) merge(ctx context.Context, mine []Result) (*Report, error) {
	raw, err := s.World.AllGather(ctx, mine)
	if err != nil {
		return nil, err
	}
	rep := &Report{RunID: s.RunID, Groups: s.World.Size() / max(s.GroupSize, 1)}
	for r, p := range raw {
		results, ok := p.([]Result)
		if !ok && p != nil {
			return nil, errors.Wrapf(comm.ErrPayload, "rank %d sent %T", r, p)
		}
		for _, res := range results {
			if res.Index == BaseCase {
				rep.Base = res
				continue
			}
			rep.Results = append(rep.Results, res)
		}
	}
	sort.Slice(rep.Results, func(i, j int) bool { return rep.Results[i].Index < rep.Results[j].Index })
	return rep, nil
}
