// dtflow - columnar event materialization and histogram filling.
// Drives run configs over Arrow IPC samples or JSON event dumps.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/dtflow/dtflow/pkg/dtflow"
	"github.com/dtflow/dtflow/pkg/dtflow/config"
	"github.com/dtflow/dtflow/pkg/dtflow/export"
	"github.com/dtflow/dtflow/pkg/dtflow/histo"
	"github.com/dtflow/dtflow/pkg/dtflow/histo/store"
	"github.com/dtflow/dtflow/pkg/dtflow/inspect"
	"github.com/dtflow/dtflow/pkg/dtflow/source"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// CLI flags
var (
	configFile string
	verbose    bool

	// Fill flags
	workers    int
	outFile    string
	storePath  string
	runID      string
	sampleName string
	noProgress bool

	// Inspect flags
	startIndex   int
	eventCount   int
	includeAttrs []string
	maxEntities  int
	showRejected bool

	// Dump flags
	dumpOut string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dtflow",
	Short: "dtflow - materialize events and fill histograms",
	Long: `dtflow materializes structured events from columnar samples under a
run config, refines them through a processing pipeline and fills
histograms, in parallel partitions that merge into one result.

Input samples are Arrow IPC files (.arrow, .ipc, .feather) or JSON
event dumps (.jsonl, .json) written by dtflow dump.`,
	Version: fmt.Sprintf("%s (%s)", version, commit),
}

var fillCmd = &cobra.Command{
	Use:   "fill [input-files...]",
	Short: "Fill the configured histograms over a sample",
	Long: `Fill every histogram the run config declares over the given input
files, read as one contiguous sample.

Examples:
  dtflow fill -c run.yaml sample.arrow
  dtflow fill -c run.yaml -w 8 -o histos.json part1.arrow part2.arrow
  dtflow fill -c run.yaml --store snapshots.db sample.arrow`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFill,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [input-files...]",
	Short: "Pretty-print materialized events",
	Long: `Materialize a few events under the run config, run them through the
pipeline and print them as styled trees.

Examples:
  dtflow inspect -c run.yaml sample.arrow
  dtflow inspect -c run.yaml --start 40 --count 5 sample.arrow
  dtflow inspect -c run.yaml --attrs pt,eta,phi sample.arrow`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInspect,
}

var dumpCmd = &cobra.Command{
	Use:   "dump [input-files...]",
	Short: "Export accepted events to a dump file",
	Long: `Materialize the whole sample, run it through the pipeline and write
the accepted events out: a JSON event dump (.jsonl, .json) keeps full
events including cross-references, an Arrow IPC file (.arrow, .ipc,
.feather) keeps the flattened columns for a fresh materialization.

Examples:
  dtflow dump -c run.yaml -o selected.jsonl sample.arrow
  dtflow dump -c run.yaml -o selected.arrow part1.arrow part2.arrow`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDump,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Run config file (required)")
	rootCmd.MarkPersistentFlagRequired("config")

	fillCmd.Flags().IntVarP(&workers, "workers", "w", 1, "Number of parallel fill partitions")
	fillCmd.Flags().StringVarP(&outFile, "out", "o", "", "Write merged histograms to this JSON file")
	fillCmd.Flags().StringVar(&storePath, "store", "", "Persist partition snapshots to this SQLite file")
	fillCmd.Flags().StringVar(&runID, "run-id", "", "Fix the run identifier (default: fresh UUID)")
	fillCmd.Flags().StringVar(&sampleName, "sample", "", "Override the config's sample name")
	fillCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")

	inspectCmd.Flags().IntVar(&startIndex, "start", 0, "First record index to inspect")
	inspectCmd.Flags().IntVar(&eventCount, "count", 1, "How many records to inspect")
	inspectCmd.Flags().StringSliceVar(&includeAttrs, "attrs", nil, "Only print these entity attributes")
	inspectCmd.Flags().IntVar(&maxEntities, "max-entities", 10, "Entities printed per collection (0 = all)")
	inspectCmd.Flags().BoolVar(&showRejected, "rejected", false, "Print markers for events the pipeline rejected")

	dumpCmd.Flags().StringVarP(&dumpOut, "out", "o", "", "Output dump path (required)")
	dumpCmd.Flags().StringVar(&sampleName, "sample", "", "Override the config's sample name")
	dumpCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	dumpCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(fillCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(dumpCmd)
}

// signalContext returns a context cancelled by SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, finishing up...")
		cancel()
	}()
	return ctx, cancel
}

// loadRun loads the config and resolves its callable names against the
// builtin registries.
func loadRun(paths []string) (*config.Run, error) {
	rc, err := config.LoadRun(configFile)
	if err != nil {
		return nil, err
	}
	regs := config.NewRegistries()
	registerBuiltins(regs)
	registerDerived(rc, regs)
	run, err := rc.Build(regs)
	if err != nil {
		return nil, fmt.Errorf("build run config: %w", err)
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("input file: %w", err)
		}
	}
	return run, nil
}

// openParts opens every input file as a record source. Extension picks
// the reader: Arrow IPC or JSON event dump.
func openParts(paths []string) (*source.Chain, error) {
	parts := make([]source.Source, 0, len(paths))
	closeAll := func() {
		for _, p := range parts {
			if closer, ok := p.(io.Closer); ok {
				closer.Close()
			}
		}
	}
	for _, path := range paths {
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".arrow", ".ipc", ".feather":
			src, err := source.OpenArrow(path)
			if err != nil {
				closeAll()
				return nil, err
			}
			parts = append(parts, src)
		case ".jsonl", ".json":
			src, err := export.OpenSource(path)
			if err != nil {
				closeAll()
				return nil, err
			}
			parts = append(parts, src)
		default:
			closeAll()
			return nil, fmt.Errorf("unsupported input extension %q (want .arrow, .ipc, .feather, .jsonl or .json)", ext)
		}
	}
	return source.NewChain(parts...), nil
}

// sequenceFactory builds the per-worker sequence opener for a run.
func sequenceFactory(run *config.Run, paths []string) histo.SequenceFactory {
	return func() (*dtflow.Sequence, io.Closer, error) {
		chain, err := openParts(paths)
		if err != nil {
			return nil, nil, err
		}
		b, err := dtflow.NewBuilder(run.Schema)
		if err != nil {
			chain.Close()
			return nil, nil, err
		}
		return dtflow.NewSequence(chain, b, run.Pipeline), chain, nil
	}
}

// progressBar builds the fill/dump progress bar, nil when disabled.
func progressBar(total int, description string) *progressbar.ProgressBar {
	if noProgress || total == 0 {
		return nil
	}
	return progressbar.NewOptions64(int64(total),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func runFill(cmd *cobra.Command, args []string) error {
	run, err := loadRun(args)
	if err != nil {
		return err
	}
	sample := run.Sample
	if sampleName != "" {
		sample = sampleName
	}

	factory := sequenceFactory(run, args)
	probe, closer, err := factory()
	if err != nil {
		return err
	}
	total := probe.Len()
	if closer != nil {
		closer.Close()
	}

	if verbose {
		fmt.Printf("Config:     %s\n", configFile)
		fmt.Printf("Inputs:     %s (%d records)\n", strings.Join(args, ", "), total)
		fmt.Printf("Sample:     %s\n", sample)
		fmt.Printf("Workers:    %d\n", workers)
		fmt.Printf("Histograms: %d\n", len(run.Defs))
	}

	opts := []histo.RunnerOption{
		histo.WithWorkers(workers),
		histo.WithSample(sample),
		histo.WithLogger(newLogger()),
	}
	if runID != "" {
		opts = append(opts, histo.WithRunID(runID))
	}
	if storePath != "" {
		st, err := store.NewSQLiteStore(storePath)
		if err != nil {
			return fmt.Errorf("open snapshot store: %w", err)
		}
		defer st.Close()
		opts = append(opts, histo.WithStore(st))
	}
	bar := progressBar(total, "filling")
	if bar != nil {
		opts = append(opts, histo.WithProgress(func(events int) {
			bar.Add(events)
		}))
	}

	runner, err := histo.NewRunner(factory, run.Defs, opts...)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	res, rep, err := runner.Run(ctx)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return fmt.Errorf("fill failed: %w", err)
	}

	fmt.Print(renderReport(res, rep))

	if outFile != "" {
		if err := writeResult(outFile, res); err != nil {
			return err
		}
		fmt.Printf("Histograms written to %s\n", outFile)
	}
	if !rep.Complete() {
		return fmt.Errorf("%d of %d partitions failed; result is partial",
			len(rep.FailedPartitions()), len(rep.Partitions))
	}
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	run, err := loadRun(args)
	if err != nil {
		return err
	}
	chain, err := openParts(args)
	if err != nil {
		return err
	}
	defer chain.Close()
	b, err := dtflow.NewBuilder(run.Schema)
	if err != nil {
		return err
	}
	seq := dtflow.NewSequence(chain, b, run.Pipeline)

	lo, hi := startIndex, startIndex+eventCount
	if lo < 0 || lo > seq.Len() {
		return fmt.Errorf("start %d out of range (sample has %d records)", lo, seq.Len())
	}
	if hi > seq.Len() {
		hi = seq.Len()
	}
	window, err := seq.Slice(lo, hi)
	if err != nil {
		return err
	}

	var popts []inspect.Option
	if len(includeAttrs) > 0 {
		popts = append(popts, inspect.Include(includeAttrs...))
	}
	if maxEntities > 0 {
		popts = append(popts, inspect.WithMaxEntities(maxEntities))
	}
	printer := inspect.NewPrinter(popts...)

	cur := window.Cursor()
	for {
		ev, err := cur.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if ev == nil && !showRejected {
			continue
		}
		if err := printer.Print(ev); err != nil {
			return err
		}
	}
	return nil
}

func runDump(cmd *cobra.Command, args []string) error {
	run, err := loadRun(args)
	if err != nil {
		return err
	}
	sample := run.Sample
	if sampleName != "" {
		sample = sampleName
	}

	toArrow := false
	switch ext := strings.ToLower(filepath.Ext(dumpOut)); ext {
	case ".jsonl", ".json":
	case ".arrow", ".ipc", ".feather":
		toArrow = true
	default:
		return fmt.Errorf("unsupported dump extension %q (want .jsonl, .json, .arrow, .ipc or .feather)", ext)
	}

	chain, err := openParts(args)
	if err != nil {
		return err
	}
	defer chain.Close()
	b, err := dtflow.NewBuilder(run.Schema)
	if err != nil {
		return err
	}
	seq := dtflow.NewSequence(chain, b, run.Pipeline)

	ctx, cancel := signalContext()
	defer cancel()
	bar := progressBar(seq.Len(), "dumping")

	var sink dumpSink
	if toArrow {
		sink = newArrowSink(dumpOut)
	} else {
		sink, err = newJSONSink(dumpOut, sample)
		if err != nil {
			return err
		}
	}

	accepted, rejected := 0, 0
	cur := seq.Cursor()
	for {
		if err := ctx.Err(); err != nil {
			sink.Abort()
			return err
		}
		ev, err := cur.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			sink.Abort()
			return err
		}
		if bar != nil {
			bar.Add(1)
		}
		if ev == nil {
			rejected++
			continue
		}
		accepted++
		if err := sink.Write(ev); err != nil {
			sink.Abort()
			return err
		}
	}
	if bar != nil {
		bar.Finish()
	}
	if err := sink.Close(); err != nil {
		return err
	}

	fmt.Printf("Dumped %d events to %s (%d rejected)\n", accepted, dumpOut, rejected)
	return nil
}
