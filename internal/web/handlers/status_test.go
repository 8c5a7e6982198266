package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/gate"
	"github.com/kozaktomas/facegate/internal/recognition"
)

type fakeTemplates struct {
	labels []database.LabelCount
	dim    int
}

func (f *fakeTemplates) Len() int {
	n := 0
	for _, l := range f.labels {
		n += l.Templates
	}
	return n
}
func (f *fakeTemplates) Dim() int                      { return f.dim }
func (f *fakeTemplates) Labels() []database.LabelCount { return f.labels }
func (f *fakeTemplates) StoreName() string             { return "face_database.csv" }

type fakeGate struct {
	last  time.Time
	fired bool
}

func (f *fakeGate) LastTrigger() (time.Time, bool) { return f.last, f.fired }
func (f *fakeGate) Cooldown() time.Duration        { return time.Minute }
func (f *fakeGate) Stats() gate.Stats              { return gate.Stats{Fired: 2, Suppressed: 5} }

type fakeFrames struct{}

func (fakeFrames) Stats() recognition.RunnerStats {
	return recognition.RunnerStats{FramesRead: 10, FramesProcessed: 8, FramesDropped: 2}
}

func TestStatus(t *testing.T) {
	templates := &fakeTemplates{dim: 128, labels: []database.LabelCount{{Label: "Ali", Templates: 3}, {Label: "Sara", Templates: 1}}}
	last := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	h := NewStatusHandler(templates, &fakeGate{last: last, fired: true}, fakeFrames{}, 0.25)

	recorder := httptest.NewRecorder()
	h.Status(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}

	var resp StatusResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Database.Templates != 4 || resp.Database.Labels != 2 || resp.Database.Dim != 128 {
		t.Errorf("unexpected database status %+v", resp.Database)
	}
	if resp.Database.Threshold != 0.25 {
		t.Errorf("expected threshold 0.25, got %v", resp.Database.Threshold)
	}
	if resp.Gate == nil || resp.Gate.CooldownSeconds != 60 || resp.Gate.Outcomes.Fired != 2 {
		t.Fatalf("unexpected gate status %+v", resp.Gate)
	}
	if resp.Gate.LastTrigger == nil || !resp.Gate.LastTrigger.Equal(last) {
		t.Errorf("expected last trigger %v, got %v", last, resp.Gate.LastTrigger)
	}
	if resp.Frames == nil || resp.Frames.FramesDropped != 2 {
		t.Errorf("unexpected frame status %+v", resp.Frames)
	}
}

func TestStatus_WithoutGate(t *testing.T) {
	h := NewStatusHandler(&fakeTemplates{}, nil, nil, 0.25)

	recorder := httptest.NewRecorder()
	h.Status(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(recorder.Body.Bytes(), &raw); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if _, ok := raw["gate"]; ok {
		t.Error("gate should be omitted when no gate is running")
	}
	if _, ok := raw["frames"]; ok {
		t.Error("frames should be omitted when no runner is running")
	}
}

func TestStatus_NeverFired(t *testing.T) {
	h := NewStatusHandler(&fakeTemplates{}, &fakeGate{}, nil, 0.25)

	recorder := httptest.NewRecorder()
	h.Status(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	var resp StatusResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Gate == nil || resp.Gate.LastTrigger != nil {
		t.Errorf("expected null last trigger, got %+v", resp.Gate)
	}
}

func TestTemplates(t *testing.T) {
	tests := []struct {
		name      string
		templates *fakeTemplates
		wantTotal int
		wantCount int
	}{
		{"empty", &fakeTemplates{dim: 128}, 0, 0},
		{"two labels", &fakeTemplates{dim: 3, labels: []database.LabelCount{{Label: "Ali", Templates: 2}, {Label: "Jan", Templates: 1}}}, 3, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewStatusHandler(tt.templates, nil, nil, 0.25)
			recorder := httptest.NewRecorder()
			h.Templates(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/templates", nil))

			var resp TemplatesResponse
			if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if resp.Total != tt.wantTotal || len(resp.Labels) != tt.wantCount {
				t.Errorf("unexpected response %+v", resp)
			}
			if resp.Labels == nil {
				t.Error("labels should encode as an empty list, not null")
			}
		})
	}
}
