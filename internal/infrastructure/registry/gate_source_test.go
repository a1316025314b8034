package registry

import (
	"path/filepath"
	"testing"

	gatedomain "github.com/promptgate/gateway/internal/domain/gate"
)

func TestNewGateSource_LoadsDefinitionAndGuidanceFile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "clarity")
	writeFile(t, filepath.Join(dir, "gate.yaml"), "id: clarity\nname: Clarity Check\ntype: validation\nseverity: high\nguidance_file: guidance.md\nactivation:\n  categories: [writing]\nretry:\n  max_attempts: 3\n")
	writeFile(t, filepath.Join(dir, "guidance.md"), "Keep it under 3 sentences.")

	src, err := NewGateSource(root)
	if err != nil {
		t.Fatalf("NewGateSource: %v", err)
	}

	all, err := src.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 definition, got %d", len(all))
	}
	def := all[0]
	if def.ID != "clarity" || def.Severity != gatedomain.SeverityHigh {
		t.Errorf("unexpected definition: %+v", def)
	}
	if def.Retry.MaxAttempts != 3 {
		t.Errorf("max attempts = %d", def.Retry.MaxAttempts)
	}

	text, err := src.ReadGuidanceFile(def.GuidanceFile)
	if err != nil {
		t.Fatalf("ReadGuidanceFile: %v", err)
	}
	if text != "Keep it under 3 sentences." {
		t.Errorf("guidance text = %q", text)
	}
}

func TestNewGateSource_EmptyRootYieldsNoDefinitions(t *testing.T) {
	src, err := NewGateSource(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("NewGateSource: %v", err)
	}
	all, err := src.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected no definitions, got %v", all)
	}
}
