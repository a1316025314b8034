// Package manager holds the data model for the Prompt/Gate Manager (C8):
// the narrow CRUD-plus-history contract over authored prompt and gate
// definitions, kept out of the core's execution path (spec §4.8).
package manager

import (
	"fmt"
	"time"
)

// EntryKind distinguishes the two authored namespaces a Manager governs.
type EntryKind string

const (
	EntryKindPrompt EntryKind = "prompt"
	EntryKindGate   EntryKind = "gate"
)

// Entry is one authored unit as seen by the manager: its raw body text
// (the source the reference-validation DFS scans for `{{ref:id}}` tokens),
// not the planner-facing parsed form the core consumes.
type Entry struct {
	ID        string
	Kind      EntryKind
	Category  string
	Body      string
	Version   int
	UpdatedAt time.Time
}

// Version is one retained snapshot of an Entry's body, the unit `history`
// lists and `rollback` restores (spec §4.8).
type Version struct {
	Version   int
	Body      string
	UpdatedAt time.Time
}

// ValidationKind distinguishes the three create-time reference defects
// spec §4.8 names.
type ValidationKind string

const (
	ValidationSelfReference      ValidationKind = "self_reference"
	ValidationDanglingReference  ValidationKind = "dangling_reference"
	ValidationCircularReference  ValidationKind = "circular_reference"
)

// ValidationError reports a reference-graph defect found while validating
// an Entry's body against the rest of the set (spec §4.8, §7 Validation).
type ValidationError struct {
	Kind  ValidationKind
	Entry string
	Chain []string // the reference chain that triggered Kind, when applicable
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case ValidationSelfReference:
		return fmt.Sprintf("prompt %q references itself via {{ref:%s}}", e.Entry, e.Entry)
	case ValidationDanglingReference:
		return fmt.Sprintf("prompt %q references unknown prompt %q", e.Entry, lastOf(e.Chain))
	case ValidationCircularReference:
		return fmt.Sprintf("circular reference detected: %s", joinChain(e.Chain))
	default:
		return fmt.Sprintf("invalid reference in prompt %q", e.Entry)
	}
}

func lastOf(chain []string) string {
	if len(chain) == 0 {
		return ""
	}
	return chain[len(chain)-1]
}

func joinChain(chain []string) string {
	out := ""
	for i, id := range chain {
		if i > 0 {
			out += " -> "
		}
		out += id
	}
	return out
}
