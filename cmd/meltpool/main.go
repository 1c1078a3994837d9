// Command meltpool measures melt-pool boundaries in process-camera frames.
//
// Usage:
//
//	meltpool tune [-config config.json] [-ui fyne|highgui] <image>
//	meltpool batch [-o outdir] [-c config.json] [-workers N] [-db results.db] [-scale f] [-bounds=false] <dir>
package main

import (
	"fmt"
	"os"
)

const usage = `meltpool - melt-pool boundary measurement

Usage:
  meltpool <command> [flags]

Commands:
  tune     Tune preprocessing parameters interactively on one image
  batch    Measure every image in a directory with a fixed configuration

Environment:
  LOG_LEVEL     debug, info, warn or error (default: info)
  LOG_FORMAT    json for machine-readable logs (default: console)
  DEBUG         1 enables debug logging when LOG_LEVEL is unset
  PPROF_ADDR    serve net/http/pprof on this address, e.g. localhost:6060
  MELTPOOL_MAT_STACKS
                1 records allocation stacks for image buffers

Run 'meltpool <command> -h' for command-specific help.
`

const (
	exitOK        = 0
	exitFailure   = 1
	exitAllFailed = 2
)

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(exitOK)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "tune":
		os.Exit(runTune(args))
	case "batch":
		os.Exit(runBatch(args))
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "meltpool: unknown command %q\n\n", cmd)
		fmt.Print(usage)
		os.Exit(exitFailure)
	}
}
