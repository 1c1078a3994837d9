package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gocv.io/x/gocv"
	"meltpool/internal/opencv/safe"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// IsImageFile reports whether name carries a recognised image extension.
func IsImageFile(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// LoadFrame decodes path as an 8-bit grayscale frame.
func LoadFrame(path string) (*safe.Mat, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFrameNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrDecode, path)
	}

	mat := gocv.IMRead(path, gocv.IMReadGrayScale)
	frame, err := safe.Adopt(mat, "frame")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecode, path)
	}
	return frame, nil
}

// DirSource yields every image file directly inside Dir, sorted by name.
type DirSource struct {
	Dir    string
	Logger Logger
}

func NewDirSource(dir string, logger Logger) *DirSource {
	return &DirSource{Dir: dir, Logger: logger}
}

// List returns the image paths DirSource would load.
func (s *DirSource) List() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFrameNotFound, s.Dir)
		}
		return nil, fmt.Errorf("read directory %s: %w", s.Dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !IsImageFile(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(s.Dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Frames decodes files lazily, one per receive, so at most one undelivered
// frame is held in memory.
func (s *DirSource) Frames(ctx context.Context) (<-chan FrameResult, error) {
	paths, err := s.List()
	if err != nil {
		return nil, err
	}

	if s.Logger != nil {
		s.Logger.Info("DirSource", "frames discovered", map[string]interface{}{
			"dir":   s.Dir,
			"count": len(paths),
		})
	}

	out := make(chan FrameResult)
	go func() {
		defer close(out)
		for _, path := range paths {
			result := FrameResult{ID: filepath.Base(path), Path: path}
			result.Frame, result.Err = LoadFrame(path)

			select {
			case out <- result:
			case <-ctx.Done():
				if result.Frame != nil {
					result.Frame.Close()
				}
				return
			}
		}
	}()
	return out, nil
}
