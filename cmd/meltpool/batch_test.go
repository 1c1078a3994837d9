package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gocv.io/x/gocv"
	"meltpool/internal/batch"
	"meltpool/internal/logger"
	"meltpool/internal/models"
	"meltpool/internal/opencv/safe"
	"meltpool/internal/pipeline"
)

func TestExitCode(t *testing.T) {
	log := logger.Nop()
	m := &models.Measurement{FrameID: "a.png"}

	tests := []struct {
		name    string
		summary batch.Summary
		err     error
		want    int
	}{
		{"empty dir", batch.Summary{}, nil, exitOK},
		{"partial failure", batch.Summary{Total: 2, Processed: 1, Failed: 1}, nil, exitOK},
		{"all failed", batch.Summary{Total: 2, Failed: 2}, nil, exitAllFailed},
		{"interrupted", batch.Summary{Total: 1, Processed: 1}, context.Canceled, exitFailure},
		{"invalid config", batch.Summary{}, fmt.Errorf("wrap: %w", models.ErrInvalidConfig), exitFailure},
		{"source error", batch.Summary{}, errors.New("open frame source"), exitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.summary.Frames = []batch.FrameOutcome{{ID: "a.png", Measurement: m}}
			if got := exitCode(tt.summary, tt.err, log); got != tt.want {
				t.Errorf("exitCode = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPrintSummary(t *testing.T) {
	summary := batch.Summary{
		Total:     2,
		Processed: 1,
		Failed:    1,
		Frames: []batch.FrameOutcome{
			{ID: "a.png", Measurement: &models.Measurement{
				Area: models.AreaResult{OuterArea: 100, InnerArea: 40, MeltPoolArea: 60},
			}},
			{ID: "b.png", Err: errors.New("decode failed")},
		},
	}

	var buf bytes.Buffer
	printSummary(&buf, summary)
	out := buf.String()

	for _, want := range []string{"FRAME", "a.png", "100.00", "60.00", "b.png", "decode failed", "2 frames, 1 processed, 1 failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "absent.json")

	cfg, err := loadConfig(missing, true)
	if err != nil {
		t.Fatalf("missing config with allowMissing: %v", err)
	}
	if cfg != models.DefaultParameterConfig() {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}

	if _, err := loadConfig(missing, false); err == nil {
		t.Error("expected error for missing config")
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(bad, true); err == nil {
		t.Error("expected error for malformed config")
	}

	if cfg, err := loadConfig("", false); err != nil || cfg != models.DefaultParameterConfig() {
		t.Errorf("empty path = %+v, %v", cfg, err)
	}
}

// writeDisk writes a bright disk on a black frame as dir/name.
func writeDisk(t *testing.T, dir, name string) {
	t.Helper()
	const size, c, r = 100, 50, 20
	pixels := make([]byte, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x-c)*(x-c)+(y-c)*(y-c) <= r*r {
				pixels[y*size+x] = 255
			}
		}
	}
	m, err := safe.NewGrayFromBytes(size, size, pixels)
	if err != nil {
		t.Fatalf("NewGrayFromBytes: %v", err)
	}
	defer m.Close()
	if !gocv.IMWrite(filepath.Join(dir, name), m.GetMat()) {
		t.Fatalf("IMWrite %s", name)
	}
}

func countBlue(t *testing.T, path string) int {
	t.Helper()
	img := gocv.IMRead(path, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() {
		t.Fatalf("no annotated frame at %s", path)
	}
	n := 0
	for y := 0; y < img.Rows(); y++ {
		for x := 0; x < img.Cols(); x++ {
			px := img.GetVecbAt(y, x)
			if px[0] == 255 && px[1] == 0 && px[2] == 0 {
				n++
			}
		}
	}
	return n
}

func TestBatchDrawsBounds(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantBlue bool
	}{
		{"default", nil, true},
		{"disabled", []string{"-bounds=false"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, out := t.TempDir(), t.TempDir()
			writeDisk(t, in, "disk.png")

			args := append([]string{"-o", out, "-workers", "1"}, tt.args...)
			if code := runBatch(append(args, in)); code != exitOK {
				t.Fatalf("runBatch = %d", code)
			}

			blue := countBlue(t, filepath.Join(out, pipeline.OutputPrefix+"disk.png"))
			if tt.wantBlue && blue == 0 {
				t.Error("annotated frame has no bounding box")
			}
			if !tt.wantBlue && blue != 0 {
				t.Errorf("%d bounding box pixels with -bounds=false", blue)
			}
		})
	}
}

func TestBatchExplicitConfigMustExist(t *testing.T) {
	in := t.TempDir()
	writeDisk(t, in, "disk.png")

	missing := filepath.Join(t.TempDir(), "config.json")
	if code := runBatch([]string{"-o", t.TempDir(), "-c", missing, in}); code != exitFailure {
		t.Errorf("runBatch with missing -c = %d, want %d", code, exitFailure)
	}
}
