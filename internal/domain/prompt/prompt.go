// Package prompt holds the Prompt record data model consumed by the
// execution planner (C5) through an abstract PromptRegistry.
package prompt

import (
	gatedomain "github.com/promptgate/gateway/internal/domain/gate"
	scripttool "github.com/promptgate/gateway/internal/domain/scripttool"
)

// FrameworkRecommendation is a prompt's declared preference for a
// reasoning framework, with the confidence the planner compares against a
// minimum threshold (spec §4.5).
type FrameworkRecommendation struct {
	FrameworkID string
	Confidence  float64
}

// ChainStep is one step of a prompt that declares its own multi-step
// chain (as opposed to a chain assembled ad hoc via `-->` at the command
// level).
type ChainStep struct {
	PromptID     string
	ApplyToSteps []string // gate ids scoped to this step via apply_to_steps
}

// Record is one authored prompt as seen by the planner.
type Record struct {
	ID                      string
	Category                string
	ChainSteps              []ChainStep // a declared chain needs two or more (IsDeclaredChain)
	FrameworkRecommendation *FrameworkRecommendation
	ScriptTools             []*scripttool.Definition
	ExplicitGateIDs         []string // gates always applied to this prompt regardless of activation rules
	SystemMessage           string   // optional authored system-message.md body (spec §6 on-disk layout)
}

// IsDeclaredChain reports whether this prompt record itself declares a
// multi-step chain (spec §4.5 strategy selection).
func (r *Record) IsDeclaredChain() bool {
	return len(r.ChainSteps) > 1
}

// HasScriptTools reports whether this prompt declares any script tools at
// all (used by the planner's auto-clean rule, spec §4.5).
func (r *Record) HasScriptTools() bool {
	return len(r.ScriptTools) > 0
}

// MinFrameworkConfidence is the default threshold a prompt's framework
// recommendation must clear to make the framework required absent an
// explicit `@FRAMEWORK` override (spec §4.5).
const MinFrameworkConfidence = 0.6

// RecommendationPassesThreshold reports whether the prompt's framework
// recommendation clears MinFrameworkConfidence.
func (r *Record) RecommendationPassesThreshold() bool {
	return r.FrameworkRecommendation != nil && r.FrameworkRecommendation.Confidence >= MinFrameworkConfidence
}

// GateDefinitionByID is an abstract lookup the planner uses to resolve
// ExplicitGateIDs / apply_to_steps into full gate definitions.
type GateDefinitionByID func(id string) (*gatedomain.Definition, bool)
