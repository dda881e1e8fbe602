package contingency

import (
	"context"
	"math"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/notargets/GridKernel/comm"
	"github.com/notargets/GridKernel/component"
	"github.com/notargets/GridKernel/gridcomp"
	"github.com/notargets/GridKernel/linalg"
	"github.com/notargets/GridKernel/mapper"
)

// Status classifies the outcome of one evaluation
type Status int

const (
	StatusOK Status = iota
	StatusViolation
	StatusNoSolution
)

func (s Status) String() string {
	switch s {
	case StatusViolation:
		return "violation"
	case StatusNoSolution:
		return "no solution"
	}
	return "ok"
}

// Violation is one circuit loaded past its rating
type Violation struct {
	From, To int
	Circuit  string
	Flow     float64
	Rating   float64
	Loading  float64 // |Flow| / Rating
}

// Outcome is what an Evaluator reports for the current network state
type Outcome struct {
	MaxLoading float64
	Violations []Violation
	// Residual is the largest entry of |Aθ - P| for the solved system
	Residual float64
}

// Evaluator analyses the network in its current state. Evaluate is
// collective over the network's group.
type Evaluator interface {
	Evaluate(ctx context.Context) (Outcome, error)
}

// DCOptions tunes the DC flow evaluator
type DCOptions struct {
	// MaxCondition bounds the condition number of the B' matrix; zero
	// selects linalg.DefaultMaxCondition
	MaxCondition float64
	// RatingThreshold scales circuit ratings before comparison; zero
	// selects 1
	RatingThreshold float64
}

// DCFlow solves the linearised real power flow B'θ = P and checks every
// owned in-service circuit against its rating
type DCFlow struct {
	net  *gridcomp.Network
	opts DCOptions
	mm   *mapper.MatrixMap[*gridcomp.GridBus, *gridcomp.GridBranch]
	vm   *mapper.VectorMap[*gridcomp.GridBus, *gridcomp.GridBranch]
}

func NewDCFlow(net *gridcomp.Network, opts DCOptions) *DCFlow {
	if opts.RatingThreshold <= 0 {
		opts.RatingThreshold = 1
	}
	cache := mapper.NewIndexCache(net)
	return &DCFlow{
		net:  net,
		opts: opts,
		mm:   mapper.NewMatrixMap(net, cache),
		vm:   mapper.NewVectorMap(net, cache),
	}
}

// Evaluate assembles and solves the DC system. A singular system, as left
// by an islanding outage, returns an error marked linalg.ErrNoSolution on
// every rank of the group.
func (d *DCFlow) Evaluate(ctx context.Context) (Outcome, error) {
	a, err := d.mm.Map(ctx, component.DCFlow)
	if err != nil {
		return Outcome{}, err
	}
	p, err := d.vm.Map(ctx, component.DCFlow)
	if err != nil {
		return Outcome{}, err
	}
	// every rank holds the same assembled system, so they agree on failure
	theta, err := linalg.SolveReal(a, p, d.opts.MaxCondition)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "dc flow")
	}
	if err := d.vm.MapToBus(ctx, component.DCFlow, theta); err != nil {
		return Outcome{}, err
	}
	out, err := d.loading(ctx)
	if err != nil {
		return Outcome{}, err
	}
	out.Residual = residual(a, theta, p)
	return out, nil
}

func residual(a *linalg.Matrix, x, b *linalg.Vector) float64 {
	ax := a.MulVec(x)
	var worst float64
	for i := 0; i < ax.Len(); i++ {
		worst = math.Max(worst, math.Abs(real(ax.At(i)-b.At(i))))
	}
	return worst
}

func (d *DCFlow) loading(ctx context.Context) (Outcome, error) {
	var local Outcome
	for i := 0; i < d.net.NumOwnedBranches(); i++ {
		br := d.net.Branch(i)
		from, to := d.net.BranchOriginalIndices(i)
		for l := 0; l < br.NumCircuits(); l++ {
			c := br.Circuit(l)
			if !c.InService() || c.Rating <= 0 {
				continue
			}
			flow := br.CircuitDCFlow(l)
			loading := math.Abs(flow) / (c.Rating * d.opts.RatingThreshold)
			local.MaxLoading = math.Max(local.MaxLoading, loading)
			if loading > 1 {
				local.Violations = append(local.Violations, Violation{
					From: from, To: to, Circuit: c.Tag,
					Flow: flow, Rating: c.Rating, Loading: loading,
				})
			}
		}
	}
	return gatherOutcome(ctx, d.net.Comm(), local)
}

func gatherOutcome(ctx context.Context, c comm.Comm, local Outcome) (Outcome, error) {
	raw, err := c.AllGather(ctx, local)
	if err != nil {
		return Outcome{}, err
	}
	var out Outcome
	for r, p := range raw {
		o, ok := p.(Outcome)
		if !ok {
			return Outcome{}, errors.Wrapf(comm.ErrPayload, "rank %d sent %T", r, p)
		}
		out.MaxLoading = math.Max(out.MaxLoading, o.MaxLoading)
		out.Violations = append(out.Violations, o.Violations...)
	}
	sort.Slice(out.Violations, func(i, j int) bool {
		a, b := out.Violations[i], out.Violations[j]
		if a.Loading != b.Loading {
			return a.Loading > b.Loading
		}
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.Circuit < b.Circuit
	})
	return out, nil
}
