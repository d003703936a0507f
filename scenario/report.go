package scenario

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Report collects the results of several scenarios.
type Report struct {
	Results []Result
}

// Add appends results, keeping them ordered by seed.
func (r *Report) Add(results ...Result) {
	r.Results = append(r.Results, results...)
	sort.SliceStable(r.Results, func(i, j int) bool {
		return r.Results[i].Seed < r.Results[j].Seed
	})
}

// Failed returns the number of failed scenarios.
func (r Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.Passed() {
			n++
		}
	}
	return n
}

// Err returns the error of the first failed scenario, or nil.
func (r Report) Err() error {
	for _, res := range r.Results {
		if !res.Passed() {
			return res.Err
		}
	}
	return nil
}

// SummaryTable renders one row per scenario.
func (r Report) SummaryTable() string {
	tw := table.NewWriter()
	tw.SetTitle("Scenarios")
	tw.AppendHeader(table.Row{
		"Name", "Seed", "Result", "Stage", "Cycles", "Insts",
		"Loads", "Stores", "Taken", "Txns", "Continuous", "Filler",
	})

	for _, res := range r.Results {
		verdict := "pass"
		if !res.Passed() {
			verdict = "FAIL"
		}

		tw.AppendRow(table.Row{
			res.Name, res.Seed, verdict, res.State.Stage.String(), res.Cycles,
			res.Stats.Instructions, res.Stats.Loads, res.Stats.Stores,
			res.Stats.TakenBranches, res.Bus.Transactions, res.Bus.ContinuousReads,
			res.Stats.FillerNOPs,
		})
	}

	tw.AppendFooter(table.Row{"", "", fmt.Sprintf("%d/%d", len(r.Results)-r.Failed(), len(r.Results))})

	return tw.Render()
}

// RegisterTable renders the verify stage of one scenario.
func RegisterTable(res Result) string {
	tw := table.NewWriter()
	tw.SetTitle(fmt.Sprintf("Registers (%s, seed %d)", res.Name, res.Seed))
	tw.AppendHeader(table.Row{"Reg", "Golden", "Observed", ""})

	for _, c := range res.Checks {
		mark := "ok"
		if !c.Passed() {
			mark = "MISMATCH"
		}
		tw.AppendRow(table.Row{
			fmt.Sprintf("x%d", c.Reg),
			fmt.Sprintf("0x%08x", c.Want),
			fmt.Sprintf("0x%08x", c.Got),
			mark,
		})
	}

	return tw.Render()
}

// Render writes the summary, then the register table and error of every
// failed scenario. With verbose set, register tables of passing scenarios
// are written too.
func (r Report) Render(w io.Writer, verbose bool) error {
	if _, err := fmt.Fprintln(w, r.SummaryTable()); err != nil {
		return err
	}

	for _, res := range r.Results {
		if res.Passed() && !verbose {
			continue
		}

		if len(res.Checks) > 0 {
			if _, err := fmt.Fprintln(w, RegisterTable(res)); err != nil {
				return err
			}
		}

		if !res.Passed() {
			if _, err := fmt.Fprintf(w, "seed %d: %v\n", res.Seed, res.Err); err != nil {
				return err
			}
		}
	}

	return nil
}
