package gate

import (
	"errors"
	"testing"

	gatedomain "github.com/promptgate/gateway/internal/domain/gate"
)

type fakeSource struct {
	defs     []*gatedomain.Definition
	guidance map[string]string
	err      error
}

func (f *fakeSource) All() ([]*gatedomain.Definition, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.defs, nil
}

func (f *fakeSource) ReadGuidanceFile(path string) (string, error) {
	return f.guidance[path], nil
}

func TestRegistry_ActiveGates_FrameworkAndSemantics(t *testing.T) {
	def := &gatedomain.Definition{
		ID:       "cageerf-research",
		GateKind: gatedomain.KindFramework,
		Severity: gatedomain.SeverityCritical,
		Activation: gatedomain.ActivationRules{
			Frameworks: []string{"CAGEERF"},
			Categories: []string{"research"},
		},
	}
	reg := NewRegistry(&fakeSource{defs: []*gatedomain.Definition{def}})

	active, err := reg.ActiveGates(gatedomain.ActivationContext{Framework: "CAGEERF", PromptCategory: "research"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected gate active when both axes match, got %d", len(active))
	}

	active, err = reg.ActiveGates(gatedomain.ActivationContext{Framework: "CAGEERF", PromptCategory: "analysis"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected gate inactive when category mismatches, got %d", len(active))
	}
}

func TestRegistry_ActiveGates_SourceError(t *testing.T) {
	reg := NewRegistry(&fakeSource{err: errors.New("boom")})
	if _, err := reg.ActiveGates(gatedomain.ActivationContext{}); err == nil {
		t.Fatal("expected wrapped error")
	}
}

func TestResolveRetry_TakesMinAttemptsAndOrsFlags(t *testing.T) {
	gates := []*gatedomain.Definition{
		{Retry: gatedomain.RetryConfig{MaxAttempts: 3, ImprovementHints: true}},
		{Retry: gatedomain.RetryConfig{MaxAttempts: 1, PreserveContext: true}},
	}
	got := ResolveRetry(gates)
	if got.MaxAttempts != 1 {
		t.Errorf("expected min attempts 1, got %d", got.MaxAttempts)
	}
	if !got.ImprovementHints || !got.PreserveContext {
		t.Errorf("expected both flags ORed true, got %+v", got)
	}
}

func TestResolveRetry_EmptyDefaultsToTwo(t *testing.T) {
	got := ResolveRetry(nil)
	if got.MaxAttempts != 2 {
		t.Errorf("expected default 2 attempts, got %d", got.MaxAttempts)
	}
}

func TestResolveEnforcement_MostRestrictiveWins(t *testing.T) {
	advisory := gatedomain.EnforcementAdvisory
	gates := []*gatedomain.Definition{
		{Severity: gatedomain.SeverityLow, EnforcementOverride: &advisory},
		{Severity: gatedomain.SeverityCritical},
	}
	if got := ResolveEnforcement(gates); got != gatedomain.EnforcementBlocking {
		t.Errorf("expected blocking to win, got %s", got)
	}
}

func TestResolveEnforcement_EmptyDefaultsToBlocking(t *testing.T) {
	if got := ResolveEnforcement(nil); got != gatedomain.EnforcementBlocking {
		t.Errorf("expected blocking default, got %s", got)
	}
}

func TestRetryHints_CapsAtThreePerGate(t *testing.T) {
	failing := []*gatedomain.Definition{{ID: "g1"}}
	guidance := map[string]string{
		"g1": "- one\n- two\n- three\n- four",
	}
	hints := RetryHints(failing, guidance)
	if len(hints) != 3 {
		t.Fatalf("expected 3 hints, got %d: %+v", len(hints), hints)
	}
	if hints[0] != "one" || hints[2] != "three" {
		t.Errorf("unexpected hint content: %+v", hints)
	}
}

func TestFormatGuidance_NumberedList(t *testing.T) {
	got := FormatGuidance([]string{"cites sources", "states assumptions"})
	want := "1. cites sources\n2. states assumptions"
	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestFormatGuidance_Empty(t *testing.T) {
	if got := FormatGuidance(nil); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestParseVerdict_Variants(t *testing.T) {
	cases := []struct {
		text   string
		passed bool
		reason string
	}{
		{"GATE_REVIEW: PASS - looks solid", true, "looks solid"},
		{"GATE_REVIEW: FAIL: missing citations", false, "missing citations"},
		{"GATE PASS - ok", true, "ok"},
		{"FAIL - incomplete", false, "incomplete"},
	}
	for _, c := range cases {
		v, ok := ParseVerdict(c.text)
		if !ok {
			t.Fatalf("expected match for %q", c.text)
		}
		if v.Passed != c.passed || v.Rationale != c.reason {
			t.Errorf("ParseVerdict(%q) = %+v, want passed=%v rationale=%q", c.text, v, c.passed, c.reason)
		}
	}
}

func TestParseVerdict_NoMatch(t *testing.T) {
	if _, ok := ParseVerdict("this is just prose"); ok {
		t.Error("expected no match for free-form prose")
	}
}

func TestParseVerdict_RequiresRationale(t *testing.T) {
	if _, ok := ParseVerdict("GATE_REVIEW: PASS -"); ok {
		t.Error("expected missing rationale to be rejected")
	}
}

func TestParseVerdictFreeText_RecognisesExplicitFormsOnly(t *testing.T) {
	v, ok := ParseVerdictFreeText("GATE_REVIEW: PASS - looks solid")
	if !ok || !v.Passed {
		t.Fatalf("expected the explicit GATE_REVIEW form to match, got %+v ok=%v", v, ok)
	}
	v, ok = ParseVerdictFreeText("GATE FAIL - missing citations")
	if !ok || v.Passed {
		t.Fatalf("expected the explicit GATE form to match, got %+v ok=%v", v, ok)
	}
}

func TestParseVerdictFreeText_RejectsBareMinimalForm(t *testing.T) {
	if _, ok := ParseVerdictFreeText("PASS - the draft covers every requirement"); ok {
		t.Error("expected free-text step output starting with PASS - to NOT be read as a gate verdict")
	}
	if _, ok := ParseVerdictFreeText("FAIL - the build failed to compile"); ok {
		t.Error("expected free-text step output starting with FAIL - to NOT be read as a gate verdict")
	}
}
