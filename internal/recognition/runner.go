package recognition

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/facegate/internal/constants"
	"github.com/kozaktomas/facegate/internal/source"
)

// RunnerStats counts frames since the runner started.
type RunnerStats struct {
	FramesRead      uint64    `json:"frames_read"`
	FramesDropped   uint64    `json:"frames_dropped"`
	FramesProcessed uint64    `json:"frames_processed"`
	ReadErrors      uint64    `json:"read_errors"`
	DetectErrors    uint64    `json:"detect_errors"`
	FacesSeen       uint64    `json:"faces_seen"`
	FacesKnown      uint64    `json:"faces_known"`
	LastFrameAt     time.Time `json:"last_frame_at,omitzero"`
}

type frame struct {
	id  string
	img image.Image
}

// Runner reads frames from a source on one goroutine and processes them on
// another. Frames that arrive while the buffer is full are dropped.
type Runner struct {
	source     source.Source
	detector   Detector
	pipeline   *Pipeline
	buffer     int
	retryDelay time.Duration
	now        func() time.Time
	logger     *slog.Logger

	read, dropped, processed atomic.Uint64
	readErrors, detectErrors atomic.Uint64
	facesSeen, facesKnown    atomic.Uint64
	lastFrame                atomic.Int64 // unix nanos
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithFrameBuffer sets how many frames may wait between reading and processing.
func WithFrameBuffer(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.buffer = n
		}
	}
}

// WithRetryDelay sets the pause after a failed read.
func WithRetryDelay(d time.Duration) RunnerOption {
	return func(r *Runner) { r.retryDelay = d }
}

// WithClock replaces time.Now for the timestamps handed to the gate.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// WithRunnerLogger sets the logger.
func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a runner over an already opened source.
func NewRunner(src source.Source, detector Detector, pipeline *Pipeline, opts ...RunnerOption) *Runner {
	r := &Runner{
		source:     src,
		detector:   detector,
		pipeline:   pipeline,
		buffer:     2,
		retryDelay: constants.SourceRetryDelay,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes frames until ctx is cancelled or the source reports io.EOF. Frames
// already buffered when the source ends are still processed.
func (r *Runner) Run(ctx context.Context) error {
	frames := make(chan frame, r.buffer)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(frames)
		r.acquire(ctx, frames)
	}()
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				r.logger.Info("frame source finished", "frames_processed", r.processed.Load())
				return ctx.Err()
			}
			r.process(ctx, f)
		}
	}
}

func (r *Runner) acquire(ctx context.Context, frames chan<- frame) {
	for {
		img, err := r.source.Next(ctx)
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			r.readErrors.Add(1)
			r.logger.Warn("failed to read frame", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.retryDelay):
			}
			continue
		}

		r.read.Add(1)
		select {
		case frames <- frame{id: uuid.NewString(), img: img}:
		default:
			r.dropped.Add(1)
			r.logger.Debug("processing busy, frame dropped")
		}
	}
}

func (r *Runner) process(ctx context.Context, f frame) {
	log := r.logger.With("frame", f.id)

	regions, err := r.detector.Detect(ctx, f.img)
	if err != nil {
		r.detectErrors.Add(1)
		log.Warn("face detection failed", "error", err)
		return
	}

	now := r.now()
	result := r.pipeline.ProcessFrame(ctx, f.img, regions, now)

	r.processed.Add(1)
	r.lastFrame.Store(now.UnixNano())
	r.facesSeen.Add(uint64(len(result.Regions)))
	r.facesKnown.Add(uint64(result.Known()))

	for i, reg := range result.Regions {
		attrs := []any{"region", i, "box", reg.Region.String()}
		if reg.Err != nil && reg.Label == "" {
			log.Warn("region skipped", append(attrs, "error", reg.Err)...)
			continue
		}
		attrs = append(attrs, "nearest", reg.Nearest, "distance", reg.Distance, "outcome", reg.Outcome.String())
		if reg.Label == "" {
			log.Debug("unknown face", attrs...)
			continue
		}
		if reg.Err != nil {
			attrs = append(attrs, "error", reg.Err)
		}
		log.Info("face recognized", append(attrs, "label", reg.Label)...)
	}
}

// Stats returns a snapshot of the frame counters.
func (r *Runner) Stats() RunnerStats {
	s := RunnerStats{
		FramesRead:      r.read.Load(),
		FramesDropped:   r.dropped.Load(),
		FramesProcessed: r.processed.Load(),
		ReadErrors:      r.readErrors.Load(),
		DetectErrors:    r.detectErrors.Load(),
		FacesSeen:       r.facesSeen.Load(),
		FacesKnown:      r.facesKnown.Load(),
	}
	if ns := r.lastFrame.Load(); ns != 0 {
		s.LastFrameAt = time.Unix(0, ns)
	}
	return s
}
