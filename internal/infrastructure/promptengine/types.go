// Package promptengine implements the Prompt Engine (C7): the public
// execute/resume dispatcher tying the command parser (C1), the execution
// planner (C5), the chain session manager (C6), the injection decision
// service (C2), the gate registry (C3), and the script tool subsystem
// (C4) into one request/response surface.
package promptengine

import (
	gatedomain "github.com/promptgate/gateway/internal/domain/gate"
	promptdomain "github.com/promptgate/gateway/internal/domain/prompt"
)

// ExecuteRequest starts a new run (spec §4.7: `{command, gates?, options?}`).
type ExecuteRequest struct {
	Command string
	Gates   []QuickGateInput
	Options map[string]interface{}
}

// QuickGateInput mirrors plan.QuickGate at the tool boundary.
type QuickGateInput struct {
	Name        string
	Description string
}

// ResumeRequest resumes a session (spec §4.7: `{chain_id, user_response?,
// gate_verdict?, gate_action?, force_restart?}`).
type ResumeRequest struct {
	ChainID      string
	UserResponse string
	GateVerdict  string
	GateAction   string // "retry" | "skip" | "abort", required once a gate's retry budget is exhausted
	ForceRestart bool
}

// PauseEnvelope is the response returned to the caller carrying a
// rendered prompt and (for session-backed runs) the chain id to resume
// with next (spec §9 Glossary "Pause envelope").
type PauseEnvelope struct {
	ChainID        string
	RenderedPrompt string
	AwaitingGates  []string
	StepNumber     int
	TotalSteps     int
	Completed      bool
	Status         string // human-readable status line, e.g. "completed", "awaiting_gate"
}

// PromptRegistry is the abstract collaborator that resolves prompt ids to
// their authored record and raw template body (spec §2 "consumes an
// abstract PromptRegistry").
type PromptRegistry interface {
	Get(id string) (*promptdomain.Record, bool)
	List() []string
	Content(id string) (string, error)
}

// GateLookup resolves a gate id to its full definition, used by the planner
// to expand a prompt's ExplicitGateIDs into Definitions.
type GateLookup func(id string) (*gatedomain.Definition, bool)
