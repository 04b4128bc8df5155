package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/rtsne/dataset"
	"github.com/teranos/rtsne/errors"
	"github.com/teranos/rtsne/internal/backend"
	"github.com/teranos/rtsne/internal/service"
	"github.com/teranos/rtsne/logger"
	"github.com/teranos/rtsne/tsne"
)

// RunCmd embeds a matrix read from a file or URL.
var RunCmd = &cobra.Command{
	Use:   "run [input]",
	Short: "Embed a matrix from a file or URL",
	Long: `Embed a numeric matrix with t-SNE.

The input is a local path, "-" for stdin, or any source go-getter understands
(https://, s3::, gcs::, ...). Formats: csv, tsv, json (array of rows),
detected from the extension unless --format is given.

Parameters not given on the command line come from the job file (--job),
then from configuration (embedding.* in am.toml).

A job file is TOML:

  input = "iris.csv"
  header = true
  output = "iris.json"

  [params]
  perplexity = 30.0
  theta = 0.5

Examples:
  rtsne run iris.csv --header
  rtsne run points.json --theta 0 --dims 3 -o out.csv
  rtsne run https://example.com/data.tsv -o embedding.yaml
  rtsne run --job iris.toml --max-iter 500`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

var runFlags struct {
	job          string
	format       string
	header       bool
	output       string
	outputFormat string
	noRecord     bool

	dims       int
	perplexity float64
	theta      float64
	threads    int
	maxIter    int
}

func init() {
	f := RunCmd.Flags()
	f.StringVar(&runFlags.job, "job", "", "TOML job file")
	f.StringVar(&runFlags.format, "format", "", "Input format: csv, tsv, json (default: from extension)")
	f.BoolVar(&runFlags.header, "header", false, "Skip the first row of csv/tsv input")
	f.StringVarP(&runFlags.output, "output", "o", "", "Write the result to this file (default: stdout)")
	f.StringVar(&runFlags.outputFormat, "output-format", "", "Output format: json, yaml, csv (default: from extension, else json)")
	f.BoolVar(&runFlags.noRecord, "no-record", false, "Do not save this run to the run history")

	f.IntVarP(&runFlags.dims, "dims", "d", 2, "Output dimensionality")
	f.Float64VarP(&runFlags.perplexity, "perplexity", "p", 30, "Perplexity (must be below rows - 1)")
	f.Float64Var(&runFlags.theta, "theta", 0.5, "Barnes-Hut tolerance in [0,1]; 0 is exact")
	f.IntVarP(&runFlags.threads, "threads", "t", 0, "Worker threads (0 = all logical CPUs)")
	f.IntVar(&runFlags.maxIter, "max-iter", 1000, "Optimisation iterations")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	svc, closeFn, err := openService(cfg, !runFlags.noRecord)
	if err != nil {
		return err
	}
	defer closeFn()

	input, format, header := "", runFlags.format, runFlags.header
	output, outputFormat := runFlags.output, runFlags.outputFormat
	params := svc.Defaults()

	if runFlags.job != "" {
		job, err := dataset.LoadJob(runFlags.job)
		if err != nil {
			return err
		}
		input = job.Input
		params = job.ApplyTo(params)
		if !cmd.Flags().Changed("format") {
			format = job.Format
		}
		if !cmd.Flags().Changed("header") {
			header = job.Header
		}
		if output == "" {
			output = job.Output
		}
		if outputFormat == "" {
			outputFormat = job.OutputFormat
		}
	}
	if len(args) == 1 {
		input = args[0]
	}
	if input == "" {
		return errors.WithHint(errors.NewInvalidRequestError("no input given"),
			"pass a file or URL, or --job with an input key")
	}
	params = applyParamFlags(cmd, params)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m, err := dataset.Load(ctx, input, dataset.Options{Format: format, Header: header})
	if err != nil {
		return err
	}

	rows, cols := m.Dims()
	spinner, _ := pterm.DefaultSpinner.WithWriter(os.Stderr).
		Start(fmt.Sprintf("Embedding %d x %d matrix", rows, cols))
	progress := func(iter int, cost float64) {
		spinner.UpdateText(fmt.Sprintf("Embedding %d x %d matrix: iteration %d/%d, cost %.4f",
			rows, cols, iter, params.MaxIter, cost))
	}

	out, err := svc.EmbedCall(ctx, &tsne.Call{Matrix: m, Params: params}, service.SourceCLI, progress)
	if err != nil {
		spinner.Fail("Embedding failed")
		return err
	}
	cost, _ := out.Result.Cost()
	spinner.Success(fmt.Sprintf("Embedded %d points into %d dimensions (cost %.4f, %s)",
		rows, params.TargetDims, cost, out.Duration.Round(time.Millisecond)))
	if out.RunID != "" {
		logger.Infow("Run recorded", logger.FieldRunID, out.RunID)
	}

	if output == "" {
		return dataset.Write(cmd.OutOrStdout(), out.Result, outputFormat)
	}
	if err := dataset.WriteFile(output, out.Result, outputFormat); err != nil {
		return err
	}
	pterm.Info.WithWriter(os.Stderr).Printf("Wrote %s\n", output)
	return nil
}

// applyParamFlags overrides params with the flags the user set explicitly.
func applyParamFlags(cmd *cobra.Command, p tsne.Params) tsne.Params {
	flags := cmd.Flags()
	if flags.Changed("dims") {
		p.TargetDims = runFlags.dims
	}
	if flags.Changed("perplexity") {
		p.Perplexity = runFlags.perplexity
	}
	if flags.Changed("theta") {
		p.Theta = runFlags.theta
	}
	if flags.Changed("threads") {
		p.NumThreads = backend.ResolveThreads(runFlags.threads)
	}
	if flags.Changed("max-iter") {
		p.MaxIter = runFlags.maxIter
	}
	return p
}
