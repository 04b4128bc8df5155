package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/teranos/rtsne/errors"
	"github.com/teranos/rtsne/runs"
)

// RunsCmd inspects the run history.
var RunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded runs",
	Long: `Inspect the embedding calls recorded in the run history database
(database.path; recording is controlled by database.record_runs).

Examples:
  rtsne runs ls
  rtsne runs ls --fingerprint 7Hq3...
  rtsne runs show 0c6f1f8e-...
  rtsne runs rm 0c6f1f8e-...`,
}

var runsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recent runs",
	RunE:  runRunsLs,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one run, including its embedding",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsRm,
}

var (
	runsLimit       int
	runsFingerprint string
)

func init() {
	runsLsCmd.Flags().IntVarP(&runsLimit, "limit", "n", runs.DefaultListLimit, "Maximum number of runs")
	runsLsCmd.Flags().StringVar(&runsFingerprint, "fingerprint", "", "Only runs over the input with this fingerprint")

	RunsCmd.AddCommand(runsLsCmd)
	RunsCmd.AddCommand(runsShowCmd)
	RunsCmd.AddCommand(runsRmCmd)
}

func openRuns() (*runs.Store, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	conn, err := openDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	return runs.NewStore(conn, nil), func() { conn.Close() }, nil
}

func runRunsLs(cmd *cobra.Command, args []string) error {
	store, closeFn, err := openRuns()
	if err != nil {
		return err
	}
	defer closeFn()

	var records []*runs.Record
	if runsFingerprint != "" {
		records, err = store.ListByFingerprint(cmd.Context(), runsFingerprint)
	} else {
		records, err = store.List(cmd.Context(), runsLimit)
	}
	if err != nil {
		return err
	}
	if len(records) == 0 {
		pterm.Info.Println("No runs recorded")
		return nil
	}

	data := pterm.TableData{{"ID", "Created", "Source", "Shape", "Params", "Status", "Cost", "Took"}}
	for _, r := range records {
		data = append(data, []string{
			r.ID,
			r.CreatedAt.Local().Format(time.DateTime),
			r.Source,
			fmt.Sprintf("%dx%d", r.Rows, r.Cols),
			fmt.Sprintf("d=%d p=%g θ=%g", r.Params.TargetDims, r.Params.Perplexity, r.Params.Theta),
			statusCell(r),
			costCell(r),
			r.Duration.Round(time.Millisecond).String(),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(cmd.OutOrStdout()).WithData(data).Render()
}

func statusCell(r *runs.Record) string {
	if r.Status == runs.StatusFailed {
		return pterm.Red(string(r.Status))
	}
	return pterm.Green(string(r.Status))
}

func costCell(r *runs.Record) string {
	if r.Cost == nil {
		return "-"
	}
	return strconv.FormatFloat(*r.Cost, 'f', 4, 64)
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	store, closeFn, err := openRuns()
	if err != nil {
		return err
	}
	defer closeFn()

	r, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return errors.WithHint(err, "run 'rtsne runs ls' to list run IDs")
	}

	view := map[string]any{
		"id":          r.ID,
		"created_at":  r.CreatedAt.Format(time.RFC3339),
		"fingerprint": r.Fingerprint,
		"shape":       []int{r.Rows, r.Cols},
		"backend":     r.Backend,
		"source":      r.Source,
		"status":      string(r.Status),
		"duration":    r.Duration.String(),
		"params": map[string]any{
			"target_dims": r.Params.TargetDims,
			"perplexity":  r.Params.Perplexity,
			"theta":       r.Params.Theta,
			"num_threads": r.Params.NumThreads,
			"max_iter":    r.Params.MaxIter,
		},
	}
	if r.Error != "" {
		view["error"] = r.Error
	}
	if r.Cost != nil {
		view["cost"] = *r.Cost
	}
	if r.Iterations != nil {
		view["iterations"] = *r.Iterations
	}
	if r.Embedding != nil {
		view["y"] = denseRows(r.Embedding)
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(view)
}

func denseRows(m *mat.Dense) [][]float64 {
	rows, _ := m.Dims()
	out := make([][]float64, rows)
	for i := range out {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}

func runRunsRm(cmd *cobra.Command, args []string) error {
	store, closeFn, err := openRuns()
	if err != nil {
		return err
	}
	defer closeFn()

	if err := store.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	pterm.Success.Printf("Deleted run %s\n", args[0])
	return nil
}
