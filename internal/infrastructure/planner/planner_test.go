package planner

import (
	"testing"

	"github.com/promptgate/gateway/internal/domain/command"
	gatedomain "github.com/promptgate/gateway/internal/domain/gate"
	"github.com/promptgate/gateway/internal/domain/plan"
	promptdomain "github.com/promptgate/gateway/internal/domain/prompt"
	scripttool "github.com/promptgate/gateway/internal/domain/scripttool"
)

type fakeGateSource struct {
	gates []*gatedomain.Definition
}

func (f *fakeGateSource) ActiveGates(ctx gatedomain.ActivationContext) ([]*gatedomain.Definition, error) {
	return f.gates, nil
}

func noLookup(id string) (*gatedomain.Definition, bool) { return nil, false }

func TestPlan_ChainOperatorSelectsChainStrategy(t *testing.T) {
	p := New(&fakeGateSource{})
	parsed := &command.Parsed{
		PromptID: "a",
		Steps:    []command.Step{{PromptID: "a"}, {PromptID: "b"}},
		Operators: []command.Operator{{Kind: command.OperatorChain}},
	}
	rec := &promptdomain.Record{ID: "a"}

	out, err := p.Plan(parsed, rec, nil, noLookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Strategy != plan.StrategyChain {
		t.Errorf("expected chain strategy, got %s", out.Strategy)
	}
	if !out.RequiresSession {
		t.Error("expected chain strategy to require a session")
	}
	if len(out.Steps) != 2 {
		t.Errorf("expected 2 steps, got %d", len(out.Steps))
	}
}

func TestPlan_FrameworkOverrideSelectsTemplateAndRequiresFramework(t *testing.T) {
	p := New(&fakeGateSource{})
	parsed := &command.Parsed{
		PromptID:  "analyze",
		Operators: []command.Operator{{Kind: command.OperatorFramework, Value: "CAGEERF"}},
	}
	rec := &promptdomain.Record{ID: "analyze"}

	out, err := p.Plan(parsed, rec, nil, noLookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Strategy != plan.StrategyTemplate {
		t.Errorf("expected template strategy, got %s", out.Strategy)
	}
	if !out.FrameworkRequired {
		t.Error("expected framework required")
	}
	if out.FrameworkID != "CAGEERF" {
		t.Errorf("expected CAGEERF, got %s", out.FrameworkID)
	}
}

func TestPlan_CleanOverridesFrameworkRequirement(t *testing.T) {
	p := New(&fakeGateSource{})
	parsed := &command.Parsed{
		PromptID:  "analyze",
		Modifier:  command.ModifierClean,
		Operators: []command.Operator{{Kind: command.OperatorFramework, Value: "CAGEERF"}},
	}
	rec := &promptdomain.Record{ID: "analyze"}

	out, err := p.Plan(parsed, rec, nil, noLookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.FrameworkRequired {
		t.Errorf("expected %%clean to suppress framework requirement")
	}
}

func TestPlan_ScriptToolPromptForcesCleanWhenNoModifierOrGates(t *testing.T) {
	p := New(&fakeGateSource{})
	parsed := &command.Parsed{PromptID: "data_analyzer"}
	rec := &promptdomain.Record{
		ID:          "data_analyzer",
		ScriptTools: []*scripttool.Definition{{ID: "analyze_csv"}},
	}

	out, err := p.Plan(parsed, rec, nil, noLookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.CleanForced {
		t.Error("expected clean to be forced for a tool-bearing prompt with no explicit modifier/gates")
	}
}

func TestPlan_QuickGateDefaults(t *testing.T) {
	p := New(&fakeGateSource{})
	parsed := &command.Parsed{PromptID: "a"}
	rec := &promptdomain.Record{ID: "a"}
	quick := []plan.QuickGate{{Name: "cites", Description: "must cite sources"}}

	out, err := p.Plan(parsed, rec, quick, noLookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Gates) != 1 {
		t.Fatalf("expected 1 gate, got %d", len(out.Gates))
	}
	g := out.Gates[0]
	if g.Severity != gatedomain.SeverityMedium || g.Type != gatedomain.TypeValidation {
		t.Errorf("expected quick gate defaults, got %+v", g)
	}
	if out.CleanForced {
		t.Error("expected clean NOT forced when a quick gate was supplied")
	}
}

func TestPlan_RequiresSessionOnBlockingGate(t *testing.T) {
	critical := &gatedomain.Definition{ID: "g1", Severity: gatedomain.SeverityCritical}
	p := New(&fakeGateSource{gates: []*gatedomain.Definition{critical}})
	parsed := &command.Parsed{PromptID: "a"}
	rec := &promptdomain.Record{ID: "a"}

	out, err := p.Plan(parsed, rec, nil, noLookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Strategy != plan.StrategySingle {
		t.Errorf("expected single strategy, got %s", out.Strategy)
	}
	if !out.RequiresSession {
		t.Error("expected a blocking gate to require a session even for a single-step plan")
	}
}

func TestPlan_GateDeduplicationAcrossSources(t *testing.T) {
	shared := &gatedomain.Definition{ID: "shared"}
	p := New(&fakeGateSource{gates: []*gatedomain.Definition{shared}})
	parsed := &command.Parsed{PromptID: "a"}
	rec := &promptdomain.Record{ID: "a", ExplicitGateIDs: []string{"shared"}}
	lookup := func(id string) (*gatedomain.Definition, bool) {
		if id == "shared" {
			return shared, true
		}
		return nil, false
	}

	out, err := p.Plan(parsed, rec, nil, lookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Gates) != 1 {
		t.Errorf("expected gate set deduplicated to 1 entry, got %d", len(out.Gates))
	}
}
