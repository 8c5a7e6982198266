package recognition

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/facematch"
)

// ErrNoFaceDetected is returned when an enrollment image contains no face.
var ErrNoFaceDetected = errors.New("no face detected")

// MultipleFacesWarning reports that an enrollment image held more than one face
// and only the first was enrolled.
type MultipleFacesWarning struct {
	Count int
}

func (w *MultipleFacesWarning) Error() string {
	return fmt.Sprintf("%d faces detected, enrolled the first one", w.Count)
}

// EnrollResult describes a successful enrollment. Warning is non-nil when the
// image held several faces.
type EnrollResult struct {
	Label   string
	Region  image.Rectangle
	Regions []image.Rectangle
	Warning error
}

// Enroller adds templates computed from still images.
type Enroller struct {
	detector Detector
	embedder Embedder
	db       *database.Database
	order    facematch.ChannelOrder
}

// NewEnroller creates an enroller. Images are prepared exactly as the pipeline
// prepares live frames when order matches.
func NewEnroller(detector Detector, embedder Embedder, db *database.Database, order facematch.ChannelOrder) *Enroller {
	return &Enroller{detector: detector, embedder: embedder, db: db, order: order}
}

// Enroll detects faces in img and stores the embedding of the first one under label.
// The database is only modified when every step succeeded.
func (e *Enroller) Enroll(ctx context.Context, img image.Image, label string) (EnrollResult, error) {
	label = facematch.NormalizeLabel(label)
	if label == "" {
		return EnrollResult{}, database.ErrEmptyLabel
	}

	regions, err := e.detector.Detect(ctx, img)
	if err != nil {
		return EnrollResult{}, fmt.Errorf("face detection failed: %w", err)
	}
	if len(regions) == 0 {
		return EnrollResult{}, ErrNoFaceDetected
	}

	res := EnrollResult{Label: label, Region: regions[0], Regions: regions}
	if len(regions) > 1 {
		res.Warning = &MultipleFacesWarning{Count: len(regions)}
	}

	vec, err := embedRegion(ctx, e.embedder, img, res.Region, e.order)
	if err != nil {
		return res, err
	}

	if err := e.db.Append(ctx, label, vec); err != nil {
		return res, err
	}
	return res, nil
}
