package intent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parleyhq/parley/internal/schema"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	want := []string{"query_metrics", "generate_report", "analyze_root_cause", "chat"}
	defs := c.List()
	if len(defs) != len(want) {
		t.Fatalf("expected %d intents, got %d", len(want), len(defs))
	}
	for i, name := range want {
		if defs[i].Name != name {
			t.Errorf("position %d: expected %q, got %q", i, name, defs[i].Name)
		}
	}

	if c.Fallback() == nil || c.Fallback().Name != FallbackIntent {
		t.Error("expected chat fallback intent")
	}
	if len(c.Fallback().Capabilities) != 0 {
		t.Error("fallback intent must map to zero capabilities")
	}
}

func TestDefaultCatalogMappings(t *testing.T) {
	c := Default()

	qm := c.Get("query_metrics")
	if len(qm.Capabilities) != 1 || qm.Capabilities[0] != "query_metrics" {
		t.Errorf("unexpected query_metrics mapping: %v", qm.Capabilities)
	}

	// Root-cause analysis re-selects the metric query in the same turn.
	arc := c.Get("analyze_root_cause")
	if len(arc.Capabilities) != 2 || arc.Capabilities[0] != "query_metrics" || arc.Capabilities[1] != "analyze_root_cause" {
		t.Errorf("unexpected analyze_root_cause mapping: %v", arc.Capabilities)
	}
}

func TestNewCatalogRejectsDuplicates(t *testing.T) {
	_, err := NewCatalog(
		&Definition{Name: "chat"},
		&Definition{Name: "chat"},
	)
	if err == nil {
		t.Fatal("expected error for duplicate intent")
	}
}

func TestNewCatalogRequiresFallback(t *testing.T) {
	_, err := NewCatalog(&Definition{Name: "query_metrics", Params: schema.New()})
	if err == nil {
		t.Fatal("expected error when fallback intent is missing")
	}
}

func TestLoadOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intents.yaml")
	data := `
intents:
  query_metrics:
    keywords: ["revenue"]
    examples:
      - user_text: "revenue for last week"
        params:
          metric: sales
          time_range: 7d
  analyze_root_cause:
    capabilities: ["analyze_root_cause"]
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	c := Default()
	baseKeywords := len(c.Get("query_metrics").Keywords)
	baseExamples := len(c.Get("query_metrics").Examples)

	if err := c.LoadOverlay(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	qm := c.Get("query_metrics")
	if len(qm.Keywords) != baseKeywords+1 {
		t.Errorf("expected one appended keyword, got %d -> %d", baseKeywords, len(qm.Keywords))
	}
	if len(qm.Examples) != baseExamples+1 {
		t.Errorf("expected one appended example, got %d -> %d", baseExamples, len(qm.Examples))
	}

	arc := c.Get("analyze_root_cause")
	if len(arc.Capabilities) != 1 || arc.Capabilities[0] != "analyze_root_cause" {
		t.Errorf("expected replaced capability mapping, got %v", arc.Capabilities)
	}
}

func TestLoadOverlayUnknownIntent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intents.yaml")
	if err := os.WriteFile(path, []byte("intents:\n  nonsense:\n    keywords: [x]\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := Default().LoadOverlay(path); err == nil {
		t.Fatal("expected error for unknown intent name")
	}
}
