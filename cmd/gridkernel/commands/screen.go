package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/notargets/GridKernel/comm"
	"github.com/notargets/GridKernel/contingency"
	"github.com/notargets/GridKernel/gridcomp"
	"github.com/notargets/GridKernel/logger"
)

// ScreenCmd runs a contingency screening with the ranks split into groups
var ScreenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Screen contingencies with a DC flow",
	Long: `Screen applies every configured contingency in turn, solves a DC flow
and reports circuits loaded past their rating. The ranks are split into
groups of screen.group_size; each group holds its own copy of the network
and takes contingencies from a shared queue.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := prepare(cmd)
		if err != nil {
			return err
		}
		strategy, err := r.cfg.Strategy()
		if err != nil {
			return err
		}
		list := r.cfg.Contingencies(r.cs)
		logger.Logger.Infow("screening",
			logger.FieldRunID, r.id,
			"contingencies", len(list),
			"groups", r.cfg.Ranks/r.cfg.Screen.GroupSize)

		queue := contingency.NewTaskQueue(len(list))
		opts := r.cfg.DCOptions()
		var report *contingency.Report
		err = comm.Run(cmd.Context(), r.cfg.Ranks, func(ctx context.Context, c comm.Comm) error {
			s := &contingency.Screener{
				World:         c,
				GroupSize:     r.cfg.Screen.GroupSize,
				Case:          r.cs,
				Strategy:      strategy,
				Contingencies: list,
				Queue:         queue,
				NewEvaluator: func(net *gridcomp.Network) contingency.Evaluator {
					return contingency.NewDCFlow(net, opts)
				},
				RunID: r.id,
			}
			rep, err := s.Screen(ctx)
			if err != nil {
				return err
			}
			if c.Rank() == 0 {
				report = rep
			}
			return nil
		})
		if err != nil {
			return err
		}
		return report.Write(os.Stdout)
	},
}
