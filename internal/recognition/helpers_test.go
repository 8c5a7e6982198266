package recognition

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/database/mock"
	"github.com/kozaktomas/facegate/internal/facematch"
	"github.com/kozaktomas/facegate/internal/gate"
)

var (
	red   = color.RGBA{R: 255, A: 255}
	green = color.RGBA{G: 255, A: 255}
	blue  = color.RGBA{B: 255, A: 255}
	gray  = color.RGBA{R: 128, G: 128, B: 128, A: 255}
)

// colorEmbedder embeds a face as the BGR value at the center of its tensor, so a
// region's embedding is chosen by painting it. Pure blue faces fail.
type colorEmbedder struct {
	mu    sync.Mutex
	calls int
	dim   int // values returned, 3 when zero
}

func (e *colorEmbedder) Embed(ctx context.Context, t facematch.Tensor) (database.Vector, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	c := t.Height / 2
	vec := database.Vector{t.At(c, c, 0), t.At(c, c, 1), t.At(c, c, 2)}
	if vec[0] > 0.9 && vec[1] < 0.1 && vec[2] < 0.1 {
		return nil, errors.New("model crashed")
	}
	if e.dim > 3 {
		vec = append(vec, make(database.Vector, e.dim-3)...)
	}
	return vec, nil
}

func (e *colorEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type fixedDetector struct {
	regions []image.Rectangle
	err     error
}

func (d *fixedDetector) Detect(ctx context.Context, frame image.Image) ([]image.Rectangle, error) {
	return d.regions, d.err
}

type attempt struct {
	label string
	now   time.Time
}

type recordingGate struct {
	mu       sync.Mutex
	attempts []attempt
	outcome  gate.Outcome
	err      error
}

func (g *recordingGate) Attempt(ctx context.Context, label string, now time.Time) (gate.Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.attempts = append(g.attempts, attempt{label, now})
	if g.err != nil {
		return gate.Failed, g.err
	}
	return g.outcome, nil
}

func (g *recordingGate) Attempts() []attempt {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]attempt(nil), g.attempts...)
}

// paint returns a gray frame with each region filled with its color.
func paint(w, h int, regions []image.Rectangle, colors []color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(gray), image.Point{}, draw.Src)
	for i, r := range regions {
		draw.Draw(img, r, image.NewUniform(colors[i]), image.Point{}, draw.Src)
	}
	return img
}

// bgr is the embedding colorEmbedder produces for c.
func bgr(c color.RGBA) database.Vector {
	return database.Vector{float32(c.B) / 255, float32(c.G) / 255, float32(c.R) / 255}
}

func openDB(t *testing.T, records ...database.Record) (*database.Database, *mock.MockStore) {
	t.Helper()
	store := mock.NewMockStore(records...)
	db, err := database.Open(context.Background(), store, 3)
	if err != nil {
		t.Fatalf("database.Open failed: %v", err)
	}
	return db, store
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type countingActuator struct {
	calls atomic.Int32
}

func (a *countingActuator) Unlock(ctx context.Context) error {
	a.calls.Add(1)
	return nil
}
