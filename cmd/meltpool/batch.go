package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"meltpool/internal/batch"
	"meltpool/internal/debug/timing"
	"meltpool/internal/logger"
	"meltpool/internal/pipeline"
	"meltpool/internal/processing/annotate"
	"meltpool/internal/shutdown"
	"meltpool/internal/store"
)

func runBatch(args []string) int {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	outDir := fs.String("o", "", "Directory for annotated frames; empty shows each frame in a window")
	configPath := fs.String("c", "config.json", "Configuration file written by tune; defaults are used when the default file is absent")
	workers := fs.Int("workers", 0, "Concurrent frames; 0 uses one per CPU")
	dbPath := fs.String("db", "", "SQLite results ledger; disabled when empty")
	scale := fs.Float64("scale", 0, "Resolution scale applied to areas; overrides the configuration when > 0")
	bounds := fs.Bool("bounds", true, "Draw the point-cloud bounding box on annotated frames")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: meltpool batch [-o outdir] [-c config.json] [-workers N] [-db results.db] [-scale f] [-bounds=false] <dir>")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	log := newLogger()
	startProfiling(log)
	mats := trackMats()
	defer reportMats(log, mats)

	if fs.NArg() != 1 {
		fs.Usage()
		return exitFailure
	}
	inputDir := fs.Arg(0)

	// Only the implicit default may be missing; an explicit -c must exist.
	cfg, err := loadConfig(*configPath, !flagSet(fs, "c"))
	if err != nil {
		log.Error("Batch", err, map[string]interface{}{"config": *configPath})
		return exitFailure
	}
	if *scale > 0 {
		cfg.ResolutionScale = *scale
	}

	// The window sink blocks on a key press per frame.
	if *outDir == "" {
		*workers = 1
	}

	sink, closeSink, err := openSink(*outDir, log)
	if err != nil {
		log.Error("Batch", err, map[string]interface{}{"output": *outDir})
		return exitFailure
	}
	defer closeSink()

	mgr := shutdown.NewManager(context.Background(), log)
	mgr.Listen()
	defer mgr.Shutdown()
	ctx := mgr.Context()

	var (
		ledger *store.Store
		runID  int64
	)
	if *dbPath != "" {
		ledger, err = store.Open(*dbPath)
		if err != nil {
			log.Error("Batch", err, map[string]interface{}{"db": *dbPath})
			return exitFailure
		}
		defer ledger.Close()

		runID, err = ledger.BeginRun(ctx, inputDir, cfg)
		if err != nil {
			log.Error("Batch", err, map[string]interface{}{"db": *dbPath})
			return exitFailure
		}
		sink = &store.LedgerSink{Store: ledger, RunID: runID, Next: sink}
	}

	tracker := timing.NewTracker()
	processor := newBatchProcessor(log, tracker, *bounds)
	runner := batch.NewRunner(processor, log, *workers)

	log.Info("Batch", "starting run", map[string]interface{}{
		"input":   inputDir,
		"output":  *outDir,
		"config":  *configPath,
		"workers": runner.Workers(),
		"steps":   processor.Steps(cfg),
	})

	summary, runErr := runner.Run(ctx, pipeline.NewDirSource(inputDir, log), cfg, sink)

	if ledger != nil {
		// The run context may already be cancelled.
		if err := ledger.FinishRun(context.WithoutCancel(ctx), runID, summary.Processed, summary.Failed); err != nil {
			log.Error("Batch", err, map[string]interface{}{"run_id": runID})
		}
	}

	printSummary(os.Stdout, summary)
	log.Debug("Batch", "stage timings", tracker.Summary())

	return exitCode(summary, runErr, log)
}

func newBatchProcessor(log logger.Logger, tracker *timing.Tracker, showBounds bool) *pipeline.Processor {
	style := annotate.DefaultStyle()
	style.ShowBounds = showBounds
	return pipeline.NewProcessor(log, tracker).WithStyle(style)
}

func flagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func openSink(outDir string, log logger.Logger) (pipeline.Sink, func(), error) {
	if outDir == "" {
		ws := pipeline.NewWindowSink("meltpool")
		return ws, func() { ws.Close() }, nil
	}
	ds, err := pipeline.NewDirSink(outDir, log)
	if err != nil {
		return nil, nil, err
	}
	return ds, func() {}, nil
}

func exitCode(summary batch.Summary, runErr error, log logger.Logger) int {
	switch {
	case errors.Is(runErr, context.Canceled):
		log.Warning("Batch", "run interrupted", map[string]interface{}{
			"processed": summary.Processed,
			"failed":    summary.Failed,
		})
		return exitFailure
	case runErr != nil:
		log.Error("Batch", runErr, nil)
		return exitFailure
	case summary.AllFailed():
		return exitAllFailed
	}
	return exitOK
}

func printSummary(w io.Writer, summary batch.Summary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FRAME\tOUTER\tINNER\tMELT POOL\tSTATUS")
	for _, f := range summary.Frames {
		if f.Err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t%v\n", f.ID, f.Err)
			continue
		}
		a := f.Measurement.Area
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\tok\n", f.ID, a.OuterArea, a.InnerArea, a.MeltPoolArea)
	}
	tw.Flush()

	fmt.Fprintf(w, "\n%d frames, %d processed, %d failed in %s\n",
		summary.Total, summary.Processed, summary.Failed, summary.Duration.Round(time.Millisecond))
}
