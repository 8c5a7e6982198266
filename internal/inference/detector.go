package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"github.com/kozaktomas/facegate/internal/facematch"
)

// jpegQuality is the encoding quality of frames sent to the detector.
const jpegQuality = 95

// Detection is one face reported by the detection service.
type Detection struct {
	BBox     []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore float64   `json:"det_score"`
}

type detectResponse struct {
	Faces []Detection `json:"faces"`
}

// Detector finds face regions by posting frames to {url}/detect.
type Detector struct {
	client
}

// NewDetector creates a detector client. An empty baseURL uses the local default.
func NewDetector(baseURL string, timeout time.Duration) *Detector {
	return &Detector{client: newClient(baseURL, timeout)}
}

// Detect returns the face regions in frame in the order the service reported them.
func (d *Detector) Detect(ctx context.Context, frame image.Image) ([]image.Rectangle, error) {
	faces, err := d.Detections(ctx, frame)
	if err != nil {
		return nil, err
	}

	regions := make([]image.Rectangle, 0, len(faces))
	for i, face := range faces {
		r, err := facematch.BBoxToRect(face.BBox)
		if err != nil {
			return nil, fmt.Errorf("face %d: %w", i, err)
		}
		regions = append(regions, r.Add(frame.Bounds().Min))
	}
	return regions, nil
}

// Detections returns the raw service response including detection scores.
func (d *Detector) Detections(ctx context.Context, frame image.Image) ([]Detection, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	body, err := d.postMultipartImage(ctx, "/detect", buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	var resp detectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return resp.Faces, nil
}
