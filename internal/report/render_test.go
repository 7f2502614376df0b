package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sysprohq/automation/internal/models"
)

func TestRenderEmbedsDefinitionAndFilters(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := &JSONRenderer{nowFunc: func() time.Time { return fixed }}

	job := models.ReportJob{
		ID:       "job-1",
		ReportID: "report-1",
		Filters:  map[string]any{"status": "open"},
	}
	rep := models.Report{
		ID:         "report-1",
		Name:       "Open invoices",
		ReportType: "invoices",
		Definition: json.RawMessage(`{"columns":["id","amount"]}`),
	}

	out, err := r.Render(job, rep)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	var got Payload
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if got.ReportID != "report-1" || got.Name != "Open invoices" || got.Type != "invoices" {
		t.Fatalf("unexpected payload %+v", got)
	}
	if got.Filters["status"] != "open" {
		t.Fatalf("filters = %v", got.Filters)
	}
	if string(got.Definition) != `{"columns":["id","amount"]}` {
		t.Fatalf("definition = %s", got.Definition)
	}
	if !got.GeneratedAt.Equal(fixed) {
		t.Fatalf("generatedAt = %v, want %v", got.GeneratedAt, fixed)
	}
}

func TestRenderOmitsEmptyFilters(t *testing.T) {
	r := NewJSONRenderer()

	out, err := r.Render(models.ReportJob{ReportID: "report-1"}, models.Report{
		Name:       "All tasks",
		ReportType: "tasks",
		Definition: json.RawMessage(`{}`),
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(out, &raw); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if _, ok := raw["filters"]; ok {
		t.Fatal("filters should be omitted when empty")
	}
}
