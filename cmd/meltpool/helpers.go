package main

import (
	"errors"
	"io/fs"
	"net/http"
	_ "net/http/pprof"
	"os"

	"meltpool/internal/debug/memtracker"
	"meltpool/internal/logger"
	"meltpool/internal/models"
	"meltpool/internal/opencv/safe"
)

func newLogger() *logger.ZerologAdapter {
	return logger.FromEnvironment(os.Stderr)
}

// startProfiling serves pprof when PPROF_ADDR is set.
func startProfiling(log logger.Logger) {
	addr := os.Getenv("PPROF_ADDR")
	if addr == "" {
		return
	}

	go func() {
		log.Info("Profiling", "starting profiling server", map[string]interface{}{
			"addr": addr,
		})
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Error("Profiling", err, map[string]interface{}{"addr": addr})
		}
	}()
}

// loadConfig reads path, falling back to defaults when the file is absent
// and allowMissing is set.
func loadConfig(path string, allowMissing bool) (models.ParameterConfig, error) {
	if path == "" {
		return models.DefaultParameterConfig(), nil
	}

	cfg, err := models.LoadConfig(path)
	if err != nil {
		if allowMissing && errors.Is(err, fs.ErrNotExist) {
			return models.DefaultParameterConfig(), nil
		}
		return models.ParameterConfig{}, err
	}
	return cfg, nil
}

// trackMats accounts every Mat created from here on. reportMats logs what
// is still alive when the command finishes.
func trackMats() *memtracker.Tracker {
	mt := memtracker.NewTracker(os.Getenv("MELTPOOL_MAT_STACKS") == "1")
	safe.SetTracker(mt)
	return mt
}

func reportMats(log logger.Logger, mt *memtracker.Tracker) {
	fields := mt.Fields()
	if mt.Stats().Live > 0 {
		log.Warning("Memory", "mats still alive at exit", fields)
		return
	}
	log.Debug("Memory", "mat lifetimes", fields)
}
