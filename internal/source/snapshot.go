package source

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/kozaktomas/facegate/internal/config"
	"github.com/kozaktomas/facegate/internal/constants"
)

// SnapshotSource polls a camera's HTTP still-image endpoint.
type SnapshotSource struct {
	url      string
	username string
	password string
	client   *http.Client
	limiter  *rate.Limiter

	mu      sync.Mutex
	pending image.Image // frame fetched by probe, returned first
}

// NewSnapshotSource creates a snapshot source without contacting the camera.
func NewSnapshotSource(cfg config.SourceConfig) *SnapshotSource {
	return &SnapshotSource{
		url:      cfg.URL,
		username: cfg.Username,
		password: cfg.Password,
		client:   &http.Client{Timeout: constants.SnapshotTimeout},
		limiter:  newLimiter(cfg.FPS),
	}
}

func (s *SnapshotSource) probe(ctx context.Context) error {
	img, err := s.fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to open snapshot source: %w", err)
	}
	s.mu.Lock()
	s.pending = img
	s.mu.Unlock()
	return nil
}

// Next waits for the next slot of the frame rate and fetches one snapshot.
func (s *SnapshotSource) Next(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	if img := s.pending; img != nil {
		s.pending = nil
		s.mu.Unlock()
		return img, nil
	}
	s.mu.Unlock()

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return s.fetch(ctx)
}

func (s *SnapshotSource) fetch(ctx context.Context) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if s.username != "" {
		req.SetBasicAuth(s.username, s.password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("snapshot error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return img, nil
}

// Close releases idle connections.
func (s *SnapshotSource) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
