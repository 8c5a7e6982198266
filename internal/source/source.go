// Package source provides the frames the recognizer works on.
package source

import (
	"context"
	"errors"
	"image"
	_ "image/jpeg" // register decoders
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/time/rate"

	"github.com/kozaktomas/facegate/internal/config"
)

// Source yields frames one at a time. Next returns io.EOF when no frame will ever
// follow.
type Source interface {
	Next(ctx context.Context) (image.Image, error)
	Close() error
}

// ErrNotConfigured is returned by Open when neither a URL nor a directory is set.
var ErrNotConfigured = errors.New("no frame source configured (set SOURCE_URL or SOURCE_DIR)")

// Open returns the source described by cfg. A directory takes precedence over a URL.
// The source is probed once, so an unreachable camera or an empty directory fails
// here and not on the first frame.
func Open(ctx context.Context, cfg config.SourceConfig) (Source, error) {
	switch {
	case cfg.Dir != "":
		return NewDirSource(cfg.Dir, cfg.FPS)
	case cfg.URL != "":
		s := NewSnapshotSource(cfg)
		if err := s.probe(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, ErrNotConfigured
	}
}

// newLimiter paces reads to fps frames per second. Zero or less means unpaced.
func newLimiter(fps float64) *rate.Limiter {
	if fps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(fps), 1)
}
