package handlers

import (
	"net/http"
	"time"

	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/gate"
	"github.com/kozaktomas/facegate/internal/recognition"
)

// Templates is the part of the database the status API reads.
type Templates interface {
	Len() int
	Dim() int
	Labels() []database.LabelCount
	StoreName() string
}

// GateState is the part of the gate the status API reads.
type GateState interface {
	LastTrigger() (time.Time, bool)
	Cooldown() time.Duration
	Stats() gate.Stats
}

// FrameCounter reports runner statistics.
type FrameCounter interface {
	Stats() recognition.RunnerStats
}

// StatusHandler serves the status endpoints. Gate and Frames may be nil when the
// process only holds a database.
type StatusHandler struct {
	templates Templates
	gate      GateState
	frames    FrameCounter
	threshold float64
	started   time.Time
}

// NewStatusHandler creates a status handler.
func NewStatusHandler(templates Templates, g GateState, frames FrameCounter, threshold float64) *StatusHandler {
	return &StatusHandler{
		templates: templates,
		gate:      g,
		frames:    frames,
		threshold: threshold,
		started:   time.Now(),
	}
}

type databaseStatus struct {
	Store     string  `json:"store"`
	Templates int     `json:"templates"`
	Labels    int     `json:"labels"`
	Dim       int     `json:"dim"`
	Threshold float64 `json:"threshold"`
}

type gateStatus struct {
	CooldownSeconds float64    `json:"cooldown_seconds"`
	LastTrigger     *time.Time `json:"last_trigger"`
	Outcomes        gate.Stats `json:"outcomes"`
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	UptimeSeconds float64                  `json:"uptime_seconds"`
	Database      databaseStatus           `json:"database"`
	Gate          *gateStatus              `json:"gate,omitempty"`
	Frames        *recognition.RunnerStats `json:"frames,omitempty"`
}

// Status reports the database, gate and frame counters.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		UptimeSeconds: time.Since(h.started).Seconds(),
		Database: databaseStatus{
			Store:     h.templates.StoreName(),
			Templates: h.templates.Len(),
			Labels:    len(h.templates.Labels()),
			Dim:       h.templates.Dim(),
			Threshold: h.threshold,
		},
	}

	if h.gate != nil {
		gs := &gateStatus{
			CooldownSeconds: h.gate.Cooldown().Seconds(),
			Outcomes:        h.gate.Stats(),
		}
		if last, ok := h.gate.LastTrigger(); ok {
			gs.LastTrigger = &last
		}
		resp.Gate = gs
	}
	if h.frames != nil {
		stats := h.frames.Stats()
		resp.Frames = &stats
	}

	respondJSON(w, http.StatusOK, resp)
}

// TemplatesResponse is the body of GET /api/v1/templates.
type TemplatesResponse struct {
	Dim    int                   `json:"dim"`
	Total  int                   `json:"total"`
	Labels []database.LabelCount `json:"labels"`
}

// Templates lists enrolled labels with their template counts. Embeddings are never
// exposed.
func (h *StatusHandler) Templates(w http.ResponseWriter, r *http.Request) {
	labels := h.templates.Labels()
	if labels == nil {
		labels = []database.LabelCount{}
	}
	respondJSON(w, http.StatusOK, TemplatesResponse{
		Dim:    h.templates.Dim(),
		Total:  h.templates.Len(),
		Labels: labels,
	})
}
