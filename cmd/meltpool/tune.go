package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"meltpool/internal/debug/timing"
	"meltpool/internal/gui"
	"meltpool/internal/gui/highgui"
	"meltpool/internal/logger"
	"meltpool/internal/pipeline"
	"meltpool/internal/shutdown"
	"meltpool/internal/tuner"
)

const (
	AppName    = "Meltpool Tuner"
	AppVersion = "1.0.0"

	// surfaceDrainTimeout bounds the wait for the tuner goroutine once the
	// fyne loop has exited on its own.
	surfaceDrainTimeout = 2 * time.Second
)

func runTune(args []string) int {
	fs := flag.NewFlagSet("tune", flag.ExitOnError)
	configPath := fs.String("config", "config.json", "Configuration file to load at start and write on save")
	ui := fs.String("ui", "fyne", "Input surface: fyne or highgui")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: meltpool tune [-config config.json] [-ui fyne|highgui] <image>")
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
	imagePath := fs.Arg(0)

	cfg, err := loadConfig(*configPath, true)
	if err != nil {
		log.Error("Tune", err, map[string]interface{}{"config": *configPath})
		return exitFailure
	}

	frame, err := pipeline.LoadFrame(imagePath)
	if err != nil {
		log.Error("Tune", err, map[string]interface{}{"image": imagePath})
		return exitFailure
	}
	defer frame.Close()

	tracker := timing.NewTracker()
	processor := pipeline.NewProcessor(log, tracker)
	state := tuner.NewState(filepath.Base(imagePath), frame, cfg)

	mgr := shutdown.NewManager(context.Background(), log)
	mgr.Listen()
	defer mgr.Shutdown()

	var runErr error
	switch *ui {
	case "fyne":
		runErr = tuneWithFyne(mgr, processor, state, log, *configPath)
	case "highgui":
		surface := highgui.NewSurface(AppName, cfg)
		runErr = tuner.New(processor, surface, log, *configPath).Run(mgr.Context(), state)
	default:
		fmt.Fprintf(os.Stderr, "meltpool tune: unknown -ui %q\n", *ui)
		return exitFailure
	}

	log.Debug("Tune", "stage timings", tracker.Summary())

	if runErr != nil {
		log.Error("Tune", runErr, nil)
		return exitFailure
	}
	return exitOK
}

// tuneWithFyne runs the tuner loop on its own goroutine while the fyne
// event loop owns the main goroutine.
func tuneWithFyne(mgr *shutdown.Manager, processor *pipeline.Processor, state *tuner.State, log logger.Logger, configPath string) error {
	fyneApp := app.NewWithID(gui.AppID)
	app.SetMetadata(fyne.AppMetadata{
		ID:      gui.AppID,
		Name:    AppName,
		Version: AppVersion,
	})

	surface := gui.NewSurface(fyneApp, AppName+" - "+state.FrameID, state.Config)
	mgr.Register(shutdown.Func(func() { surface.Close() }))

	ctx, cancel := context.WithCancel(mgr.Context())
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- tuner.New(processor, surface, log, configPath).Run(ctx, state)
	}()

	surface.ShowAndRun()
	cancel()

	select {
	case err := <-errc:
		return err
	case <-time.After(surfaceDrainTimeout):
		return fmt.Errorf("tuner did not stop within %s", surfaceDrainTimeout)
	}
}
