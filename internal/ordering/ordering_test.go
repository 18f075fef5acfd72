package ordering

import (
	"testing"

	"github.com/tinythings/alfad/internal/config"
)

func svc(name string, after, with []string) config.TaskConfig {
	return config.TaskConfig{
		Name:    name,
		Payload: config.Payload{Kind: config.PayloadService},
		After:   after,
		With:    with,
	}
}

func TestSynthesizeMarkersGroup(t *testing.T) {
	configs := []config.TaskConfig{
		{Name: "a", Group: "net"},
		{Name: "b", Group: "net"},
	}
	out, warnings := SynthesizeMarkers(configs)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	var marker *config.TaskConfig
	for i := range out {
		if out[i].Name == "group::net" {
			marker = &out[i]
		}
	}
	if marker == nil {
		t.Fatal("expected group::net marker")
	}
	if len(marker.After) != 2 {
		t.Fatalf("expected marker to depend on both members, got %v", marker.After)
	}
}

func TestSynthesizeMarkersFeatureOverrideWarns(t *testing.T) {
	configs := []config.TaskConfig{
		{Name: "a", Provides: []string{"net"}},
		{Name: "b", Provides: []string{"net"}},
	}
	_, warnings := SynthesizeMarkers(configs)
	if len(warnings) != 1 {
		t.Fatalf("expected one override warning, got %v", warnings)
	}
}

func TestResolveBeforeAppendsAfterEdge(t *testing.T) {
	configs := []config.TaskConfig{
		svc("a", nil, nil),
		svc("b", nil, nil),
	}
	before := map[string][]string{"a": {"b"}}
	out, warnings := ResolveBefore(configs, before)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	var b config.TaskConfig
	for _, c := range out {
		if c.Name == "b" {
			b = c
		}
	}
	if len(b.After) != 1 || b.After[0] != "a" {
		t.Fatalf("expected b.After = [a], got %v", b.After)
	}
}

func TestResolveBeforeMissingTargetWarns(t *testing.T) {
	configs := []config.TaskConfig{svc("a", nil, nil)}
	_, warnings := ResolveBefore(configs, map[string][]string{"a": {"ghost"}})
	if len(warnings) != 1 {
		t.Fatalf("expected one warning for missing before-target, got %v", warnings)
	}
}

func TestValidateDetectsCycle(t *testing.T) {
	configs := []config.TaskConfig{
		svc("a", []string{"b"}, nil),
		svc("b", []string{"a"}, nil),
		svc("c", nil, nil),
	}
	cyclic, warnings := Validate(configs)
	if !cyclic["a"] || !cyclic["b"] {
		t.Fatalf("expected a and b to be flagged cyclic, got %v", cyclic)
	}
	if cyclic["c"] {
		t.Fatal("c should not be cyclic")
	}
	if len(warnings) == 0 {
		t.Fatal("expected at least one cycle warning")
	}
}

func TestTopologicalSortOrdersDependenciesFirst(t *testing.T) {
	configs := []config.TaskConfig{
		svc("c", []string{"b"}, nil),
		svc("b", []string{"a"}, nil),
		svc("a", nil, nil),
	}
	sorted := TopologicalSort(configs)
	pos := map[string]int{}
	for i, c := range sorted {
		pos[c.Name] = i
	}
	if !(pos["a"] < pos["b"] && pos["b"] < pos["c"]) {
		t.Fatalf("expected order a < b < c, got positions %v", pos)
	}
}

func TestTopologicalSortKeepsCyclicTasksAtTail(t *testing.T) {
	configs := []config.TaskConfig{
		svc("a", []string{"b"}, nil),
		svc("b", []string{"a"}, nil),
		svc("independent", nil, nil),
	}
	sorted := TopologicalSort(configs)
	if sorted[0].Name != "independent" {
		t.Fatalf("expected independent task first, got order %v", names(sorted))
	}
	if len(sorted) != 3 {
		t.Fatalf("expected all 3 tasks retained, got %v", names(sorted))
	}
}

func names(configs []config.TaskConfig) []string {
	out := make([]string, len(configs))
	for i, c := range configs {
		out[i] = c.Name
	}
	return out
}

func TestTopologicalSortMarkersAfterTheirMembers(t *testing.T) {
	configs, _ := SynthesizeMarkers([]config.TaskConfig{
		svc("a", nil, nil),
		{Name: "b", Group: "g", Payload: config.Payload{Kind: config.PayloadService}},
	})
	sorted := TopologicalSort(configs)
	pos := map[string]int{}
	for i, c := range sorted {
		pos[c.Name] = i
	}
	if pos["group::g"] < pos["b"] {
		t.Fatalf("expected group::g after its member b, got positions %v", pos)
	}
}
