package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"
	"meltpool/internal/logger"
	"meltpool/internal/models"
)

func writeDisk(t *testing.T, path string) {
	t.Helper()
	frame := diskFrame(t, 64, 32, 32, 10)
	if !gocv.IMWrite(path, frame.GetMat()) {
		t.Fatalf("IMWrite %s failed", path)
	}
}

func TestLoadFrameErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadFrame(filepath.Join(dir, "missing.png")); !errors.Is(err, ErrFrameNotFound) {
		t.Errorf("missing file err = %v, want ErrFrameNotFound", err)
	}

	junk := filepath.Join(dir, "junk.png")
	if err := os.WriteFile(junk, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrame(junk); !errors.Is(err, ErrDecode) {
		t.Errorf("junk file err = %v, want ErrDecode", err)
	}
}

func TestLoadFrameIsGray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.png")
	writeDisk(t, path)

	frame, err := LoadFrame(path)
	if err != nil {
		t.Fatalf("LoadFrame: %v", err)
	}
	defer frame.Close()

	if frame.Channels() != 1 || frame.Rows() != 64 {
		t.Errorf("frame %dx%d with %d channels", frame.Cols(), frame.Rows(), frame.Channels())
	}
}

func TestDirSourceOrderAndFilter(t *testing.T) {
	dir := t.TempDir()
	writeDisk(t, filepath.Join(dir, "b.png"))
	writeDisk(t, filepath.Join(dir, "a.PNG"))
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "c.jpg"), []byte("broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	frames, err := NewDirSource(dir, logger.Nop()).Frames(context.Background())
	if err != nil {
		t.Fatalf("Frames: %v", err)
	}

	var ids []string
	var failed int
	for r := range frames {
		ids = append(ids, r.ID)
		if r.Err != nil {
			failed++
			continue
		}
		r.Frame.Close()
	}

	want := []string{"a.PNG", "b.png", "c.jpg"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %s, want %s", i, ids[i], want[i])
		}
	}
	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
}

func TestDirSourceMissingDirectory(t *testing.T) {
	_, err := NewDirSource(filepath.Join(t.TempDir(), "nope"), nil).Frames(context.Background())
	if !errors.Is(err, ErrFrameNotFound) {
		t.Errorf("err = %v, want ErrFrameNotFound", err)
	}
}

func TestDirSinkWritesPrefixedFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")
	sink, err := NewDirSink(out, logger.Nop())
	if err != nil {
		t.Fatalf("NewDirSink: %v", err)
	}

	p := newTestProcessor()
	frame := diskFrame(t, 64, 32, 32, 10)
	m, annotated, err := p.Run(context.Background(), "disk.png", frame, models.DefaultParameterConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	defer annotated.Close()

	if err := sink.Save(context.Background(), AnnotatedFrame{ID: "disk.png", Image: annotated, Measurement: m}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := os.Stat(filepath.Join(out, "processed_disk.png")); err != nil {
		t.Errorf("output missing: %v", err)
	}

	if err := sink.Save(context.Background(), AnnotatedFrame{ID: "x.png"}); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("empty frame err = %v", err)
	}
}
