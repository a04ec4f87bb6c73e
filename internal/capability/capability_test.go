package capability

import (
	"context"
	"testing"

	"github.com/parleyhq/parley/internal/schema"
	"github.com/parleyhq/parley/pkg/models"
)

type stubCapability struct {
	name string
	deps []string
}

func (s *stubCapability) Name() string                { return s.name }
func (s *stubCapability) Description() string         { return "stub" }
func (s *stubCapability) InputSchema() *schema.Object { return schema.New() }
func (s *stubCapability) DependsOn() []string         { return s.deps }
func (s *stubCapability) Invoke(ctx context.Context, params map[string]any, inv *Invocation) (*models.InvocationResult, error) {
	return &models.InvocationResult{Summary: s.name}, nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&stubCapability{name: "alpha"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register(&stubCapability{name: "beta"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if r.Len() != 2 {
		t.Errorf("expected 2 capabilities, got %d", r.Len())
	}
	if got := r.Get("alpha"); got == nil || got.Name() != "alpha" {
		t.Errorf("expected alpha, got %v", got)
	}
	if r.Get("missing") != nil {
		t.Error("expected nil for unknown capability")
	}
}

func TestRegistryDuplicateName(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&stubCapability{name: "alpha"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register(&stubCapability{name: "alpha"}); err == nil {
		t.Fatal("expected error for duplicate name")
	}
}

func TestRegistryEmptyName(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&stubCapability{}); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestRegistryNamesPreserveOrder(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"c", "a", "b"} {
		if err := r.Register(&stubCapability{name: name}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	names := r.Names()
	want := []string{"c", "a", "b"}
	for i, name := range want {
		if names[i] != name {
			t.Errorf("position %d: expected %q, got %q", i, name, names[i])
		}
	}
}

func TestInvocationDependencyResult(t *testing.T) {
	inv := &Invocation{
		Results: map[string]*models.InvocationResult{
			"query_metrics": {Summary: "ok"},
		},
	}
	if got := inv.DependencyResult("query_metrics"); got == nil || got.Summary != "ok" {
		t.Errorf("expected dependency result, got %v", got)
	}
	if inv.DependencyResult("other") != nil {
		t.Error("expected nil for absent dependency")
	}

	var empty *Invocation
	if empty.DependencyResult("x") != nil {
		t.Error("expected nil on nil invocation")
	}
}
