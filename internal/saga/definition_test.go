package saga

import (
	"errors"
	"testing"
)

func TestNewDefinition_Valid(t *testing.T) {
	def, err := NewDefinition("wf", "a",
		Step{Name: "a", Edges: []Edge{{To: "b"}}},
		Step{Name: "b", Compensate: "undo", Edges: []Edge{{Done: true}}},
		Step{Name: "undo", Edges: []Edge{{Done: true}}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.Name() != "wf" || def.Start() != "a" {
		t.Fatalf("unexpected definition: %s %s", def.Name(), def.Start())
	}
	if _, ok := def.Step("b"); !ok {
		t.Fatalf("step b missing")
	}
	if len(def.Steps()) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(def.Steps()))
	}
}

func TestNewDefinition_Rejects(t *testing.T) {
	cases := []struct {
		name  string
		start string
		steps []Step
	}{
		{
			name:  "missing start",
			start: "nope",
			steps: []Step{{Name: "a", Edges: []Edge{{Done: true}}}},
		},
		{
			name:  "duplicate step",
			start: "a",
			steps: []Step{
				{Name: "a", Edges: []Edge{{Done: true}}},
				{Name: "a", Edges: []Edge{{Done: true}}},
			},
		},
		{
			name:  "no edges",
			start: "a",
			steps: []Step{{Name: "a"}},
		},
		{
			name:  "edge to unknown step",
			start: "a",
			steps: []Step{{Name: "a", Edges: []Edge{{To: "ghost"}}}},
		},
		{
			name:  "edge with two targets",
			start: "a",
			steps: []Step{{Name: "a", Edges: []Edge{{To: "a", Done: true}}}},
		},
		{
			name:  "edge with no target",
			start: "a",
			steps: []Step{{Name: "a", Edges: []Edge{{}}}},
		},
		{
			name:  "unknown compensation",
			start: "a",
			steps: []Step{{Name: "a", Compensate: "ghost", Edges: []Edge{{Done: true}}}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewDefinition("wf", tc.start, tc.steps...)
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestContextClone_Isolated(t *testing.T) {
	orig := Context{"a": 1}
	clone := orig.Clone()
	clone["b"] = 2
	if _, ok := orig["b"]; ok {
		t.Fatalf("clone mutated the original")
	}
}
