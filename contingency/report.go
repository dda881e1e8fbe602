package contingency

import (
	"fmt"
	"io"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
)

// Report collects the results of one screening run
type Report struct {
	RunID   string
	Groups  int
	Base    Result
	Results []Result
}

// Count returns how many contingencies ended with status
func (r *Report) Count(status Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

func colorStatus(s Status) string {
	switch s {
	case StatusViolation:
		return pterm.Yellow(s.String())
	case StatusNoSolution:
		return pterm.Red(s.String())
	}
	return pterm.Green(s.String())
}

func worst(res Result) string {
	if len(res.Violations) == 0 {
		return "-"
	}
	v := res.Violations[0]
	return fmt.Sprintf("%d-%d(%s) %.1f%%", v.From, v.To, v.Circuit, 100*v.Loading)
}

// Table renders one row per contingency, base case first
func (r *Report) Table() (string, error) {
	data := pterm.TableData{{"#", "Contingency", "Group", "Status", "Max loading", "Violations", "Worst"}}
	row := func(res Result, idx string) {
		loading := "-"
		if res.Status != StatusNoSolution {
			loading = fmt.Sprintf("%.1f%%", 100*res.MaxLoading)
		}
		data = append(data, []string{
			idx, res.Name, strconv.Itoa(res.Group), colorStatus(res.Status),
			loading, strconv.Itoa(len(res.Violations)), worst(res),
		})
	}
	row(r.Base, "base")
	for _, res := range r.Results {
		row(res, strconv.Itoa(res.Index))
	}
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	return out, errors.Wrap(err, "render report")
}

// Write prints the table and a summary line to w
func (r *Report) Write(w io.Writer) error {
	table, err := r.Table()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\nrun %s: %d contingencies on %d groups, %s ok, %s violation, %s no solution\n",
		table, r.RunID, len(r.Results), r.Groups,
		pterm.Green(r.Count(StatusOK)), pterm.Yellow(r.Count(StatusViolation)), pterm.Red(r.Count(StatusNoSolution)))
	return err
}
