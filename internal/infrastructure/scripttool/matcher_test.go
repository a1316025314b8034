package scripttool

import (
	"testing"

	domaintool "github.com/promptgate/gateway/internal/domain/scripttool"
)

func csvTool() *domaintool.Definition {
	return &domaintool.Definition{
		ID:      "analyze_csv",
		Enabled: true,
		Execution: domaintool.ExecutionConfig{
			Trigger: domaintool.TriggerSchemaMatch,
			Confirm: true,
		},
		InputSchema: map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"file"},
			"properties": map[string]interface{}{
				"file": map[string]interface{}{"type": "string"},
			},
		},
	}
}

func TestMatcher_SchemaMatchRelaxed(t *testing.T) {
	m := NewMatcher()
	tool := csvTool()
	match, err := m.Match([]*domaintool.Definition{tool}, `>>data_analyzer file:"x.csv"`, map[string]interface{}{"file": "x.csv"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if match == nil {
		t.Fatal("expected a match")
	}
	if match.Tool.ID != "analyze_csv" {
		t.Errorf("expected analyze_csv, got %s", match.Tool.ID)
	}
}

func TestMatcher_SchemaMatchStrictRequiresAllFields(t *testing.T) {
	m := NewMatcher()
	tool := csvTool()
	tool.Execution.Strict = true
	tool.InputSchema["required"] = []interface{}{"file", "delimiter"}

	match, err := m.Match([]*domaintool.Definition{tool}, "", map[string]interface{}{"file": "x.csv"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if match != nil {
		t.Fatal("expected no match when a required field is missing under strict mode")
	}
}

func TestMatcher_ExplicitTrigger(t *testing.T) {
	m := NewMatcher()
	tool := &domaintool.Definition{
		ID:        "force_run",
		Enabled:   true,
		Execution: domaintool.ExecutionConfig{Trigger: domaintool.TriggerExplicit},
	}
	match, err := m.Match([]*domaintool.Definition{tool}, `>>p tool:force_run`, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if match == nil {
		t.Fatal("expected explicit trigger to match")
	}
}

func TestMatcher_NeverTriggerSkipped(t *testing.T) {
	m := NewMatcher()
	tool := &domaintool.Definition{
		ID:        "dormant",
		Enabled:   true,
		Execution: domaintool.ExecutionConfig{Trigger: domaintool.TriggerNever},
	}
	match, err := m.Match([]*domaintool.Definition{tool}, "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if match != nil {
		t.Fatal("expected never-trigger tool to never match")
	}
}

func TestMatcher_EmptyOptionalStringDropped(t *testing.T) {
	cleaned := cleanInputs(map[string]interface{}{"note": "   ", "file": "x.csv"}, nil)
	if _, ok := cleaned["note"]; ok {
		t.Error("expected blank optional string to be dropped")
	}
	if cleaned["file"] != "x.csv" {
		t.Errorf("expected file to survive, got %+v", cleaned)
	}
}

func TestMatcher_JSONLookingStringParsed(t *testing.T) {
	tool := &domaintool.Definition{
		InputSchema: map[string]interface{}{
			"properties": map[string]interface{}{
				"items": map[string]interface{}{"type": "array"},
			},
		},
	}
	cleaned := cleanInputs(map[string]interface{}{"items": `["a","b"]`}, []*domaintool.Definition{tool})
	arr, ok := cleaned["items"].([]interface{})
	if !ok || len(arr) != 2 {
		t.Errorf("expected items parsed as a 2-element array, got %+v", cleaned["items"])
	}
}
