// Package planner implements the execution planner (C5): given a parsed
// command, its prompt record, and the gates active for its context, it
// decides the execution strategy, gate set, and framework/session
// requirements.
package planner

import (
	"strings"

	"github.com/promptgate/gateway/internal/domain/command"
	gatedomain "github.com/promptgate/gateway/internal/domain/gate"
	"github.com/promptgate/gateway/internal/domain/plan"
	promptdomain "github.com/promptgate/gateway/internal/domain/prompt"
)

// GateSource resolves the registry-activated gate set for an activation
// context (delegates to the gate registry, C3).
type GateSource interface {
	ActiveGates(ctx gatedomain.ActivationContext) ([]*gatedomain.Definition, error)
}

// Planner is the C5 execution planner.
type Planner struct {
	gates GateSource
}

// New creates a Planner backed by a gate source.
func New(gates GateSource) *Planner {
	return &Planner{gates: gates}
}

// Plan builds an Execution Plan from a parsed command and its prompt
// record. quickGates are inline `{name, description}` gates supplied by
// the caller; `::` operator values become inline gates as well, and
// lookupGate resolves the ids in the prompt's ExplicitGateIDs.
func (p *Planner) Plan(parsed *command.Parsed, rec *promptdomain.Record, quickGates []plan.QuickGate, lookupGate promptdomain.GateDefinitionByID) (*plan.Plan, error) {
	strategy := p.selectStrategy(parsed, rec)

	activation := gatedomain.ActivationContext{
		PromptCategory:  rec.Category,
		Framework:       parsed.FrameworkID(),
		ExplicitRequest: parsed.FrameworkID() != "",
	}
	activeGates, err := p.gates.ActiveGates(activation)
	if err != nil {
		return nil, err
	}

	gateSet := newGateSet()
	gateSet.addAll(activeGates)

	for _, op := range parsed.OperatorsOf(command.OperatorGate) {
		gateSet.add(inlineGateFromOperator(op.Value))
	}
	for _, qg := range quickGates {
		gateSet.add(qg.ToDefinition())
	}
	for _, id := range rec.ExplicitGateIDs {
		if def, ok := lookupGate(id); ok {
			gateSet.add(def)
		}
	}

	frameworkID := parsed.FrameworkID()
	frameworkRequired := p.frameworkRequired(parsed, rec)

	modifier := parsed.Modifier
	cleanForced := false
	if rec.HasScriptTools() && modifier == command.ModifierNone && len(gateSet.list) == 0 {
		cleanForced = true
	}

	steps := p.buildSteps(parsed, rec, gateSet.list)

	requiresSession := strategy == plan.StrategyChain || hasBlockingGate(gateSet.list)

	return &plan.Plan{
		Strategy:          strategy,
		Steps:             steps,
		FrameworkID:       frameworkID,
		FrameworkRequired: frameworkRequired,
		Gates:             gateSet.list,
		RequiresSession:   requiresSession,
		CleanForced:       cleanForced,
	}, nil
}

func (p *Planner) selectStrategy(parsed *command.Parsed, rec *promptdomain.Record) plan.Strategy {
	if parsed.HasOperator(command.OperatorChain) || rec.IsDeclaredChain() {
		return plan.StrategyChain
	}
	if parsed.FrameworkID() != "" || rec.RecommendationPassesThreshold() {
		return plan.StrategyTemplate
	}
	return plan.StrategySingle
}

func (p *Planner) frameworkRequired(parsed *command.Parsed, rec *promptdomain.Record) bool {
	if parsed.Modifier == command.ModifierClean || parsed.Modifier == command.ModifierLean {
		return false
	}
	if parsed.FrameworkID() != "" {
		return true
	}
	return rec.RecommendationPassesThreshold()
}

func (p *Planner) buildSteps(parsed *command.Parsed, rec *promptdomain.Record, gates []*gatedomain.Definition) []plan.StepPlan {
	if len(parsed.Steps) > 0 {
		steps := make([]plan.StepPlan, len(parsed.Steps))
		for i, s := range parsed.Steps {
			steps[i] = plan.StepPlan{PromptID: s.PromptID, RawArgs: s.RawArgs, Gates: stepGates(gates, rec, s.PromptID)}
		}
		return steps
	}
	if rec.IsDeclaredChain() {
		steps := make([]plan.StepPlan, len(rec.ChainSteps))
		for i, s := range rec.ChainSteps {
			steps[i] = plan.StepPlan{PromptID: s.PromptID, Gates: stepGates(gates, rec, s.PromptID)}
		}
		return steps
	}
	return []plan.StepPlan{{PromptID: parsed.PromptID, RawArgs: parsed.RawArgs, Gates: gates}}
}

// stepGates returns the chain-wide gate set plus any gates scoped to
// stepPromptID via apply_to_steps (spec §4.5).
func stepGates(chainWide []*gatedomain.Definition, rec *promptdomain.Record, stepPromptID string) []*gatedomain.Definition {
	var scoped []string
	for _, s := range rec.ChainSteps {
		if s.PromptID == stepPromptID {
			scoped = s.ApplyToSteps
			break
		}
	}
	if len(scoped) == 0 {
		return chainWide
	}
	set := newGateSet()
	set.addAll(chainWide)
	for _, id := range scoped {
		for _, g := range chainWide {
			if g.ID == id {
				set.add(g)
			}
		}
	}
	return set.list
}

func hasBlockingGate(gates []*gatedomain.Definition) bool {
	for _, g := range gates {
		if g.Enforcement() == gatedomain.EnforcementBlocking {
			return true
		}
	}
	return false
}

// inlineGateFromOperator builds a quick gate from a `:: "criteria text"`
// operator value, defaulted the same way as a QuickGate (spec §4.5).
func inlineGateFromOperator(criteria string) *gatedomain.Definition {
	name := strings.TrimSpace(criteria)
	if len(name) > 32 {
		name = name[:32]
	}
	return plan.QuickGate{Name: name, Description: criteria}.ToDefinition()
}

// gateSet is an order-preserving, id-deduplicating collector.
type gateSet struct {
	list []*gatedomain.Definition
	seen map[string]bool
}

func newGateSet() *gateSet {
	return &gateSet{seen: make(map[string]bool)}
}

func (s *gateSet) add(def *gatedomain.Definition) {
	if def == nil || s.seen[def.ID] {
		return
	}
	s.seen[def.ID] = true
	s.list = append(s.list, def)
}

func (s *gateSet) addAll(defs []*gatedomain.Definition) {
	for _, d := range defs {
		s.add(d)
	}
}
