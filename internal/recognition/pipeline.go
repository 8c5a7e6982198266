package recognition

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/facegate/internal/constants"
	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/facematch"
	"github.com/kozaktomas/facegate/internal/gate"
)

var (
	// ErrEmbedding marks a region whose embedding could not be computed or used
	ErrEmbedding = errors.New("embedding failed")
	// ErrEmptyRegion marks a region that lies outside the frame
	ErrEmptyRegion = facematch.ErrEmptyRegion
)

// Detector finds face regions in a frame, in no guaranteed order.
type Detector interface {
	Detect(ctx context.Context, frame image.Image) ([]image.Rectangle, error)
}

// Embedder maps a normalized face tensor to an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, t facematch.Tensor) (database.Vector, error)
}

// Gate receives every known identity.
type Gate interface {
	Attempt(ctx context.Context, label string, now time.Time) (gate.Outcome, error)
}

// RegionResult is the outcome for one detected region. Err is set when the region
// was skipped or the unlock attempt failed.
type RegionResult struct {
	Region   image.Rectangle
	Label    string
	Nearest  string
	Distance float64
	Outcome  gate.Outcome
	Err      error
}

// FrameResult holds the region results in detector order.
type FrameResult struct {
	At      time.Time
	Regions []RegionResult
}

// Known returns the number of regions classified as an enrolled identity.
func (f FrameResult) Known() int {
	n := 0
	for _, r := range f.Regions {
		if r.Label != "" {
			n++
		}
	}
	return n
}

// Pipeline embeds, classifies and gates the regions of one frame.
type Pipeline struct {
	embedder   Embedder
	classifier *Classifier
	gate       Gate
	dim        int
	order      facematch.ChannelOrder
	workers    int
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithWorkers bounds how many regions are embedded at once.
func WithWorkers(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithChannelOrder sets the channel order of the embedder input.
func WithChannelOrder(order facematch.ChannelOrder) PipelineOption {
	return func(p *Pipeline) { p.order = order }
}

// WithDim makes the pipeline reject embeddings that are not exactly n long.
func WithDim(n int) PipelineOption {
	return func(p *Pipeline) { p.dim = n }
}

// NewPipeline creates a pipeline.
func NewPipeline(embedder Embedder, classifier *Classifier, g Gate, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		embedder:   embedder,
		classifier: classifier,
		gate:       g,
		order:      facematch.ChannelsBGR,
		workers:    constants.DefaultWorkers,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessFrame handles every region independently and returns once all of them
// finished. A failing region is recorded and never affects the others.
func (p *Pipeline) ProcessFrame(ctx context.Context, frame image.Image, regions []image.Rectangle, now time.Time) FrameResult {
	results := make([]RegionResult, len(regions))

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i, region := range regions {
		g.Go(func() error {
			results[i] = p.processRegion(ctx, frame, region, now)
			return nil
		})
	}
	_ = g.Wait()

	return FrameResult{At: now, Regions: results}
}

func (p *Pipeline) processRegion(ctx context.Context, frame image.Image, region image.Rectangle, now time.Time) RegionResult {
	res := RegionResult{Region: region, Outcome: gate.NotApplicable}

	vec, err := embedRegion(ctx, p.embedder, frame, region, p.order)
	if err != nil {
		res.Err = err
		return res
	}
	if p.dim != 0 && len(vec) != p.dim {
		res.Err = fmt.Errorf("%w: %w: got %d values, expected %d", ErrEmbedding, database.ErrDimensionMismatch, len(vec), p.dim)
		return res
	}

	decision, err := p.classifier.Classify(vec)
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrEmbedding, err)
		return res
	}
	res.Label, res.Nearest, res.Distance = decision.Label, decision.Nearest, decision.Distance

	if decision.Known() {
		res.Outcome, res.Err = p.gate.Attempt(ctx, decision.Label, now)
	}
	return res
}

// embedRegion crops, normalizes and embeds one region.
func embedRegion(ctx context.Context, embedder Embedder, frame image.Image, region image.Rectangle, order facematch.ChannelOrder) (database.Vector, error) {
	crop, err := facematch.Crop(frame, region)
	if err != nil {
		return nil, err
	}

	vec, err := embedder.Embed(ctx, facematch.Normalize(crop, order))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", ErrEmbedding)
	}
	return vec, nil
}
