package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/notargets/GridKernel/comm"
	"github.com/notargets/GridKernel/component"
	"github.com/notargets/GridKernel/gridcomp"
	"github.com/notargets/GridKernel/linalg"
	"github.com/notargets/GridKernel/mapper"
)

// YBusCmd assembles the admittance matrix over the configured ranks and
// prints its nonzero entries
var YBusCmd = &cobra.Command{
	Use:   "ybus",
	Short: "Assemble and print the bus admittance matrix",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := prepare(cmd)
		if err != nil {
			return err
		}
		strategy, err := r.cfg.Strategy()
		if err != nil {
			return err
		}
		layout, err := r.cs.Partition(r.cfg.Ranks, strategy)
		if err != nil {
			return err
		}

		var (
			ybus *linalg.Matrix
			ids  map[int]int
		)
		err = comm.Run(cmd.Context(), r.cfg.Ranks, func(ctx context.Context, c comm.Comm) error {
			net, err := gridcomp.NewNetwork(ctx, c, r.cs, layout)
			if err != nil {
				return err
			}
			if err := gridcomp.NewFactory(net).Initialize(ctx); err != nil {
				return err
			}
			m, err := mapper.NewMatrixMap(net, nil).Map(ctx, component.YBus)
			if err != nil {
				return err
			}
			byGlobal, err := globalToOriginal(ctx, net)
			if err != nil {
				return err
			}
			if c.Rank() == 0 {
				ybus, ids = m, byGlobal
			}
			return nil
		})
		if err != nil {
			return err
		}
		return printYBus(ybus, ids)
	},
}

// globalToOriginal maps global bus indices to case bus ids. Collective.
func globalToOriginal(ctx context.Context, net *gridcomp.Network) (map[int]int, error) {
	local := make([]int, 0, 2*net.NumOwnedBuses())
	for i := 0; i < net.NumOwnedBuses(); i++ {
		local = append(local, net.BusGlobalIndex(i), net.BusOriginalIndex(i))
	}
	all, err := comm.AllGatherInts(ctx, net.Comm(), local)
	if err != nil {
		return nil, err
	}
	out := make(map[int]int)
	for _, pairs := range all {
		for k := 0; k+1 < len(pairs); k += 2 {
			out[pairs[k]] = pairs[k+1]
		}
	}
	return out, nil
}

func printYBus(m *linalg.Matrix, ids map[int]int) error {
	rows, cols := m.Dims()
	data := pterm.TableData{{"Row", "Col", "From bus", "To bus", "G", "B"}}
	for _, e := range m.Entries() {
		data = append(data, []string{
			strconv.Itoa(e.Row), strconv.Itoa(e.Col),
			strconv.Itoa(ids[e.Row]), strconv.Itoa(ids[e.Col]),
			fmt.Sprintf("%.6f", real(e.Value)), fmt.Sprintf("%.6f", imag(e.Value)),
		})
	}
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(os.Stdout, "%s\n%dx%d admittance matrix, %d nonzeros\n", out, rows, cols, m.NNZ())
	return err
}
