package injection

import (
	"testing"
	"time"

	"github.com/promptgate/gateway/internal/domain/command"
	domain "github.com/promptgate/gateway/internal/domain/injection"
)

type fakeConfigSource struct {
	step     map[string]*domain.Config
	chain    map[string]*domain.Config
	category map[string]*domain.Config
	global   map[domain.Type]*domain.Config
}

func newFakeSource() *fakeConfigSource {
	return &fakeConfigSource{
		step:     map[string]*domain.Config{},
		chain:    map[string]*domain.Config{},
		category: map[string]*domain.Config{},
		global:   map[domain.Type]*domain.Config{},
	}
}

func key2(a string, t domain.Type) string { return a + "|" + string(t) }

func (f *fakeConfigSource) StepConfig(stepKey string, t domain.Type) (*domain.Config, bool) {
	c, ok := f.step[key2(stepKey, t)]
	return c, ok
}
func (f *fakeConfigSource) ChainConfig(chainID string, t domain.Type) (*domain.Config, bool) {
	c, ok := f.chain[key2(chainID, t)]
	return c, ok
}
func (f *fakeConfigSource) CategoryConfig(category string, t domain.Type) (*domain.Config, bool) {
	c, ok := f.category[key2(category, t)]
	return c, ok
}
func (f *fakeConfigSource) GlobalConfig(t domain.Type) (*domain.Config, bool) {
	c, ok := f.global[t]
	return c, ok
}

func TestDecide_CleanDisablesSystemPromptAndGateGuidance(t *testing.T) {
	svc := New(newFakeSource(), nil)
	ctx := ResolveContext{Modifier: command.ModifierClean, StepNumber: 1}

	sp := svc.Decide(ctx, domain.TypeSystemPrompt)
	if sp.Inject {
		t.Error("expected clean to disable system prompt")
	}
	gg := svc.Decide(ctx, domain.TypeGateGuidance)
	if gg.Inject {
		t.Error("expected clean to disable gate guidance")
	}
}

func TestDecide_JudgeForcesSystemPrompt(t *testing.T) {
	svc := New(newFakeSource(), nil)
	ctx := ResolveContext{Modifier: command.ModifierJudge, StepNumber: 1}
	d := svc.Decide(ctx, domain.TypeSystemPrompt)
	if !d.Inject {
		t.Error("expected judge to force system-prompt injection")
	}
}

func TestDecide_RuntimeOverrideWinsOverHierarchy(t *testing.T) {
	src := newFakeSource()
	src.global[domain.TypeStyleGuidance] = &domain.Config{Inject: true, Target: domain.TargetBoth, Frequency: domain.Frequency{Mode: domain.FrequencyEvery, K: 1}}
	svc := New(src, nil)
	svc.SetOverride(domain.Override{Type: domain.TypeStyleGuidance, Inject: false})

	d := svc.Decide(ResolveContext{StepNumber: 1}, domain.TypeStyleGuidance)
	if d.Inject {
		t.Error("expected runtime override to win")
	}
}

func TestDecide_ExpiredOverrideEvictedAndHierarchyConsulted(t *testing.T) {
	src := newFakeSource()
	src.global[domain.TypeStyleGuidance] = &domain.Config{Inject: true, Target: domain.TargetBoth, Frequency: domain.Frequency{Mode: domain.FrequencyEvery, K: 1}}
	svc := New(src, nil)
	past := time.Now().Add(-time.Minute)
	svc.SetOverride(domain.Override{Type: domain.TypeStyleGuidance, Inject: false, ExpiresAt: &past})

	d := svc.Decide(ResolveContext{StepNumber: 1}, domain.TypeStyleGuidance)
	if !d.Inject {
		t.Error("expected expired override to be ignored, falling through to global config")
	}
}

func TestDecide_HierarchyPriorityStepBeatsChainBeatsCategoryBeatsGlobal(t *testing.T) {
	src := newFakeSource()
	src.global[domain.TypeSystemPrompt] = &domain.Config{Inject: true, Target: domain.TargetBoth, Frequency: domain.Frequency{Mode: domain.FrequencyEvery, K: 1}}
	src.category[key2("research", domain.TypeSystemPrompt)] = &domain.Config{Inject: false, Target: domain.TargetBoth}
	src.chain[key2("chain-1", domain.TypeSystemPrompt)] = &domain.Config{Inject: true, Target: domain.TargetBoth, Frequency: domain.Frequency{Mode: domain.FrequencyEvery, K: 1}}
	src.step[key2("chain-1#1", domain.TypeSystemPrompt)] = &domain.Config{Inject: false, Target: domain.TargetBoth}

	svc := New(src, nil)
	ctx := ResolveContext{StepKey: "chain-1#1", ChainID: "chain-1", Category: "research", StepNumber: 1}
	d := svc.Decide(ctx, domain.TypeSystemPrompt)
	if d.Inject {
		t.Error("expected step-level config (inject=false) to win over chain/category/global")
	}
	if d.Source != domain.SourceStep {
		t.Errorf("expected Source=step, got %q", d.Source)
	}
	if d.DecidedAt.IsZero() {
		t.Error("expected DecidedAt to be populated")
	}
}

func TestDecide_DecisionRecordsSourceAndTarget(t *testing.T) {
	src := newFakeSource()
	src.global[domain.TypeGateGuidance] = &domain.Config{Inject: true, Target: domain.TargetGateReview, Frequency: domain.Frequency{Mode: domain.FrequencyEvery, K: 1}}
	svc := New(src, nil)

	d := svc.Decide(ResolveContext{StepNumber: 1, CurrentTarget: domain.TargetGateReview}, domain.TypeGateGuidance)
	if d.Source != domain.SourceGlobal {
		t.Errorf("expected Source=global, got %q", d.Source)
	}
	if d.Target != domain.TargetGateReview {
		t.Errorf("expected Target=gate_review, got %q", d.Target)
	}
}

func TestDecide_ModifierAndOverrideDecisionsRecordTheirSource(t *testing.T) {
	svc := New(newFakeSource(), nil)
	judged := svc.Decide(ResolveContext{Modifier: command.ModifierJudge, StepNumber: 1}, domain.TypeSystemPrompt)
	if judged.Source != domain.SourceModifier {
		t.Errorf("expected Source=modifier, got %q", judged.Source)
	}

	svc2 := New(newFakeSource(), nil)
	svc2.SetOverride(domain.Override{Type: domain.TypeStyleGuidance, Inject: false})
	overridden := svc2.Decide(ResolveContext{StepNumber: 1}, domain.TypeStyleGuidance)
	if overridden.Source != domain.SourceRuntimeOverride {
		t.Errorf("expected Source=runtime-override, got %q", overridden.Source)
	}
}

func TestDecide_FrequencyFirstOnly(t *testing.T) {
	src := newFakeSource()
	src.global[domain.TypeStyleGuidance] = &domain.Config{
		Inject: true, Target: domain.TargetBoth,
		Frequency: domain.Frequency{Mode: domain.FrequencyFirstOnly},
	}
	svc := New(src, nil)

	if !svc.Decide(ResolveContext{StepNumber: 1}, domain.TypeStyleGuidance).Inject {
		t.Error("expected first-only to inject at step 1")
	}
	if svc.Decide(ResolveContext{StepNumber: 2}, domain.TypeStyleGuidance).Inject {
		t.Error("expected first-only to skip at step 2")
	}
}

func TestDecide_FrequencyEveryK(t *testing.T) {
	src := newFakeSource()
	src.global[domain.TypeStyleGuidance] = &domain.Config{
		Inject: true, Target: domain.TargetBoth,
		Frequency: domain.Frequency{Mode: domain.FrequencyEvery, K: 3},
	}
	svc := New(src, nil)

	cases := map[int]bool{1: true, 2: false, 3: false, 4: true, 7: true}
	for step, want := range cases {
		got := svc.Decide(ResolveContext{StepNumber: step}, domain.TypeStyleGuidance).Inject
		if got != want {
			t.Errorf("step %d: got inject=%v want %v", step, got, want)
		}
	}
}

func TestDecide_TargetFilterConvertsToSkip(t *testing.T) {
	src := newFakeSource()
	src.global[domain.TypeGateGuidance] = &domain.Config{
		Inject: true, Target: domain.TargetGateReview,
		Frequency: domain.Frequency{Mode: domain.FrequencyEvery, K: 1},
	}
	svc := New(src, nil)

	d := svc.Decide(ResolveContext{StepNumber: 1, CurrentTarget: domain.TargetStep}, domain.TypeGateGuidance)
	if d.Inject {
		t.Error("expected target mismatch to convert decision to skip")
	}
}

func TestDecide_ResultIsCached(t *testing.T) {
	src := newFakeSource()
	src.global[domain.TypeSystemPrompt] = &domain.Config{Inject: true, Target: domain.TargetBoth, Frequency: domain.Frequency{Mode: domain.FrequencyEvery, K: 1}}
	svc := New(src, nil)
	ctx := ResolveContext{StepNumber: 1}

	first := svc.Decide(ctx, domain.TypeSystemPrompt)
	delete(src.global, domain.TypeSystemPrompt) // mutate source; cache should hide this
	second := svc.Decide(ctx, domain.TypeSystemPrompt)
	if first != second {
		t.Errorf("expected cached decision to be stable: %+v vs %+v", first, second)
	}
}

func TestDecideAll_ReturnsAllThreeTypes(t *testing.T) {
	svc := New(newFakeSource(), nil)
	all := svc.DecideAll(ResolveContext{StepNumber: 1})
	if len(all) != 3 {
		t.Errorf("expected 3 decisions, got %d", len(all))
	}
}
