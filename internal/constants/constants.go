// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Embedder input contract. The network was trained on 160x160 three-channel crops
// scaled to [0, 1], so every crop must be prepared exactly this way.
const (
	// InputSize is the width and height of the embedder input tensor
	InputSize = 160

	// InputChannels is the channel count of the embedder input tensor
	InputChannels = 3

	// PixelScale maps 8-bit intensities to [0, 1]
	PixelScale = 1.0 / 255.0
)

// Processing constants
const (
	// DefaultWorkers is the default number of regions embedded in parallel per frame
	DefaultWorkers = 4

	// SourceRetryDelay is the pause after a failed frame read before trying again
	SourceRetryDelay = time.Second

	// SnapshotTimeout bounds one HTTP snapshot request
	SnapshotTimeout = 10 * time.Second

	// DebugImageQuality is the JPEG quality for enrollment debug images
	DebugImageQuality = 90
)
