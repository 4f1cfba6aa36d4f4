package agentloop

import (
	"context"
	"encoding/json"
	"testing"
)

func namedTool(id, output string) Tool {
	return Tool{
		ID:          id,
		Description: "test tool " + id,
		Handler: func(_ context.Context, _ json.RawMessage) (*ToolResult, error) {
			return &ToolResult{Success: true, Output: output}, nil
		},
	}
}

func TestToolRegistryFirstRegistrationWins(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(namedTool("read", "original"))
	reg.Register(namedTool("read", "usurper"))

	if reg.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", reg.Count())
	}
	tool, ok := reg.Get("read")
	if !ok {
		t.Fatal("tool missing")
	}
	res, err := tool.Handler(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Output != "original" {
		t.Errorf("duplicate registration replaced the original, got %q", res.Output)
	}
}

func TestToolRegistryOrder(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(namedTool("c", ""))
	reg.Register(namedTool("a", ""))
	reg.Register(namedTool("b", ""))

	names := reg.Names()
	want := []string{"c", "a", "b"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Names() = %v, want registration order %v", names, want)
		}
	}
}

func TestToolRegistrySubset(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(namedTool("read", ""))
	reg.Register(namedTool("write", ""))
	reg.Register(namedTool("run", ""))

	subset := reg.Subset("run", "read", "missing")
	if len(subset) != 2 {
		t.Fatalf("got %d tools, want 2", len(subset))
	}
	if subset[0].ID != "run" || subset[1].ID != "read" {
		t.Errorf("subset order not preserved: %v", []string{subset[0].ID, subset[1].ID})
	}
}

func TestToolRegistryGetMissing(t *testing.T) {
	reg := NewToolRegistry()
	if _, ok := reg.Get("absent"); ok {
		t.Error("Get on empty registry must report absence")
	}
}
