package source

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// imageExtensions are the file types DirSource replays.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
}

// DirSource replays image files from a directory in lexical order.
type DirSource struct {
	files   []string
	limiter *rate.Limiter

	mu   sync.Mutex
	next int
}

// NewDirSource lists dir once. It fails when dir is unreadable or holds no images.
func NewDirSource(dir string, fps float64) (*DirSource, error) {
	files, err := ListImages(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no images found in %s", dir)
	}
	return &DirSource{files: files, limiter: newLimiter(fps)}, nil
}

// ListImages returns the image files directly inside dir, sorted by name.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

// Next decodes the next file. A file that fails to decode is skipped by the
// following call.
func (d *DirSource) Next(ctx context.Context) (image.Image, error) {
	d.mu.Lock()
	if d.next >= len(d.files) {
		d.mu.Unlock()
		return nil, io.EOF
	}
	path := d.files[d.next]
	d.next++
	d.mu.Unlock()

	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return LoadImage(path)
}

// Close is a no-op.
func (d *DirSource) Close() error {
	return nil
}

// LoadImage decodes a JPEG, PNG or BMP file.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}
