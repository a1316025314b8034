// Package plan holds the Execution Plan data model produced by the
// execution planner (C5) and consumed by the chain session manager (C6)
// and prompt engine (C7).
package plan

import gatedomain "github.com/promptgate/gateway/internal/domain/gate"

// Strategy is how a parsed command + prompt record should be executed.
type Strategy string

const (
	StrategySingle   Strategy = "single"
	StrategyTemplate Strategy = "template"
	StrategyChain    Strategy = "chain"
)

// QuickGate is a user-supplied inline gate `{name, description}`, defaulted
// per spec §4.5 to severity=medium, type=validation. No scope is recorded:
// the expanded Definition has no scope field.
type QuickGate struct {
	Name        string
	Description string
}

// ToDefinition expands a QuickGate into a full gate Definition with the
// spec-mandated defaults.
func (q QuickGate) ToDefinition() *gatedomain.Definition {
	return &gatedomain.Definition{
		ID:       "quick-" + q.Name,
		Name:     q.Name,
		Type:     gatedomain.TypeValidation,
		Severity: gatedomain.SeverityMedium,
		GateKind: gatedomain.KindCustom,
		Guidance: q.Description,
	}
}

// StepPlan is one planned chain step.
type StepPlan struct {
	PromptID string
	RawArgs  string
	Gates    []*gatedomain.Definition
}

// Plan is the C5 output: the resolved execution strategy, gate set, and
// framework/session requirements for a parsed command.
type Plan struct {
	Strategy         Strategy
	Steps            []StepPlan
	FrameworkID      string
	FrameworkRequired bool
	Gates            []*gatedomain.Definition // union across all steps, for quick lookups
	RequiresSession  bool
	CleanForced      bool // planner forced modifier=clean for a script-tool prompt
}
