package inference

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/facematch"
)

// TensorShapeHeader carries "height,width,channels" next to the raw tensor body.
const TensorShapeHeader = "X-Tensor-Shape"

type embeddingResponse struct {
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
}

// Embedder computes face embeddings by posting normalized tensors to
// {url}/embed/tensor.
type Embedder struct {
	client
}

// NewEmbedder creates an embedder client. An empty baseURL uses the local default.
func NewEmbedder(baseURL string, timeout time.Duration) *Embedder {
	return &Embedder{client: newClient(baseURL, timeout)}
}

// Embed sends the tensor as little-endian float32 values in HWC order.
func (e *Embedder) Embed(ctx context.Context, t facematch.Tensor) (database.Vector, error) {
	if len(t.Data) != t.Height*t.Width*t.Channels {
		return nil, fmt.Errorf("tensor has %d values for shape %v", len(t.Data), t.Shape())
	}

	header := http.Header{}
	header.Set(TensorShapeHeader, fmt.Sprintf("%d,%d,%d", t.Height, t.Width, t.Channels))

	body, err := e.post(ctx, "/embed/tensor", bytes.NewReader(EncodeTensor(t)), "application/octet-stream", header)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	var resp embeddingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(resp.Embedding) == 0 {
		return nil, errors.New("empty embedding returned")
	}
	if resp.Dim != 0 && resp.Dim != len(resp.Embedding) {
		return nil, fmt.Errorf("embedding reports dim %d but has %d values", resp.Dim, len(resp.Embedding))
	}

	return resp.Embedding, nil
}

// EncodeTensor serializes the tensor data as little-endian float32.
func EncodeTensor(t facematch.Tensor) []byte {
	out := make([]byte, 4*len(t.Data))
	for i, v := range t.Data {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}
