// Package command holds the parsed-command data model produced by the
// command parser (C1) and consumed by the execution planner (C5).
package command

// Modifier is the single optional flag in `%name` form. At most one may be
// present on a command.
type Modifier string

const (
	ModifierNone      Modifier = ""
	ModifierClean     Modifier = "clean"
	ModifierGuided    Modifier = "guided"
	ModifierLean      Modifier = "lean"
	ModifierFramework Modifier = "framework"
	ModifierJudge     Modifier = "judge"
)

// OperatorKind is the closed tagged union of operators a command may carry.
// Re-architected from dynamic per-token dispatch into an exhaustive switch
// target (spec §9).
type OperatorKind string

const (
	OperatorChain       OperatorKind = "chain"       // -->
	OperatorParallel    OperatorKind = "parallel"    // +
	OperatorConditional OperatorKind = "conditional" // ? "cond" : branch
	OperatorGate        OperatorKind = "gate"        // :: or =
	OperatorFramework   OperatorKind = "framework"   // @ID
	OperatorStyle       OperatorKind = "style"       // #name
)

// Operator is one parsed operator occurrence with its payload.
type Operator struct {
	Kind  OperatorKind
	Value string // gate criteria text, framework id, style name, condition text…
}

// Format identifies which parse strategy produced the command.
type Format string

const (
	FormatSimple   Format = "simple"
	FormatJSON     Format = "json"
	FormatSymbolic Format = "symbolic"
)

// Type is whether the parsed command represents one prompt or a chain.
type Type string

const (
	TypeSingle Type = "single"
	TypeChain  Type = "chain"
)

// Step is one `>>id args` segment of a chain command. Only the top-level
// command carries modifiers/operators; a step carrying its own operator is
// rejected at parse time (invariant in spec §3).
type Step struct {
	PromptID string
	RawArgs  string
}

// Metadata captures parse provenance used for telemetry and round-trip
// invariants (spec §8: originalCommand == trim(input)).
type Metadata struct {
	OriginalCommand      string
	PrefixNormalized     bool
	Strategy             Format
	Confidence           float64
}

// Parsed is the fully parsed command, the C1 output / C5 input.
type Parsed struct {
	PromptID    string // normalized lowercase, [a-z0-9_]+ — for single commands
	RawArgs     string
	Steps       []Step // for chain commands (len > 1)
	Modifier    Modifier
	Operators   []Operator
	Format      Format
	Confidence  float64
	Warnings    []string
	CommandType Type
	Metadata    Metadata
}

// HasOperator reports whether any operator of the given kind is present.
func (p *Parsed) HasOperator(kind OperatorKind) bool {
	for _, op := range p.Operators {
		if op.Kind == kind {
			return true
		}
	}
	return false
}

// OperatorsOf returns every operator of the given kind, in encounter order.
func (p *Parsed) OperatorsOf(kind OperatorKind) []Operator {
	var out []Operator
	for _, op := range p.Operators {
		if op.Kind == kind {
			out = append(out, op)
		}
	}
	return out
}

// FrameworkID returns the normalized (uppercase) framework id from an `@ID`
// operator, or "" if none is present.
func (p *Parsed) FrameworkID() string {
	for _, op := range p.Operators {
		if op.Kind == OperatorFramework {
			return op.Value
		}
	}
	return ""
}
