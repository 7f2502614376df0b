// Package report renders claimed report jobs into JSON payloads and ships
// them to a configurable destination.
package report

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sysprohq/automation/internal/models"
)

// Payload is the generated report document.
type Payload struct {
	ReportID    string          `json:"reportId"`
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Filters     map[string]any  `json:"filters,omitempty"`
	Definition  json.RawMessage `json:"definition"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

// JSONRenderer builds the report payload from the saved definition and the
// job's filters.
type JSONRenderer struct {
	nowFunc func() time.Time
}

// NewJSONRenderer creates a JSONRenderer.
func NewJSONRenderer() *JSONRenderer {
	return &JSONRenderer{nowFunc: time.Now}
}

// Render implements worker.Renderer.
func (r *JSONRenderer) Render(job models.ReportJob, rep models.Report) ([]byte, error) {
	payload := Payload{
		ReportID:    job.ReportID,
		Name:        rep.Name,
		Type:        rep.ReportType,
		Filters:     job.Filters,
		Definition:  rep.Definition,
		GeneratedAt: r.nowFunc().UTC(),
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding report payload: %w", err)
	}
	return encoded, nil
}
