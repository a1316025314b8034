// Package gate implements the gate registry and evaluator (C3): activation,
// combined retry/enforcement resolution, guidance rendering, and verdict
// parsing.
package gate

import (
	"fmt"
	"regexp"
	"strings"

	gatedomain "github.com/promptgate/gateway/internal/domain/gate"
	apperrors "github.com/promptgate/gateway/pkg/errors"
)

// DefinitionSource is the abstract collaborator the registry consumes to
// load gate definitions and guidance files. It is implemented by the
// authoring subsystem (C8) or a test double — the evaluator never touches
// the filesystem itself (spec §9).
type DefinitionSource interface {
	// All returns every known gate definition.
	All() ([]*gatedomain.Definition, error)
	// ReadGuidanceFile resolves a gate's GuidanceFile to its rendered text.
	ReadGuidanceFile(path string) (string, error)
}

// Registry loads gate definitions and computes the active set for a
// context.
type Registry struct {
	source DefinitionSource
}

// NewRegistry creates a gate Registry backed by source.
func NewRegistry(source DefinitionSource) *Registry {
	return &Registry{source: source}
}

// ActiveGates returns the gates active for ctx, plus any explicitly
// requested gate ids / quick gates layered in by the planner (C5) — those
// are merged by the caller, not here; this method only resolves registry
// activation.
func (r *Registry) ActiveGates(ctx gatedomain.ActivationContext) ([]*gatedomain.Definition, error) {
	all, err := r.source.All()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindGate, "failed to load gate definitions", err)
	}
	var active []*gatedomain.Definition
	for _, def := range all {
		if def.IsActive(ctx) {
			active = append(active, def)
		}
	}
	return active, nil
}

// ByID resolves a single gate definition by id, used to expand
// ExplicitGateIDs / `::` operator text into full Definitions for the
// planner (spec §4.5).
func (r *Registry) ByID(id string) (*gatedomain.Definition, bool) {
	all, err := r.source.All()
	if err != nil {
		return nil, false
	}
	for _, def := range all {
		if def.ID == id {
			return def, true
		}
	}
	return nil, false
}

// Guidance renders a gate's guidance text, preferring the inline Guidance
// field and falling back to GuidanceFile (rendered via Markdown).
func (r *Registry) Guidance(def *gatedomain.Definition) (string, error) {
	if def.Guidance != "" {
		return def.Guidance, nil
	}
	if def.GuidanceFile == "" {
		return "", nil
	}
	text, err := r.source.ReadGuidanceFile(def.GuidanceFile)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindGate, "failed to read guidance file", err)
	}
	return RenderGuidanceMarkdown(text), nil
}

// CombinedRetry is the resolved retry policy across an active gate set
// (spec §4.3: min max_attempts, OR'd flags).
type CombinedRetry struct {
	MaxAttempts      int
	ImprovementHints bool
	PreserveContext  bool
}

// ResolveRetry computes the combined retry policy across gates.
func ResolveRetry(gates []*gatedomain.Definition) CombinedRetry {
	if len(gates) == 0 {
		return CombinedRetry{MaxAttempts: 2}
	}
	min := -1
	var improvementHints, preserveContext bool
	for _, g := range gates {
		attempts := g.Retry.EffectiveMaxAttempts()
		if min == -1 || attempts < min {
			min = attempts
		}
		improvementHints = improvementHints || g.Retry.ImprovementHints
		preserveContext = preserveContext || g.Retry.PreserveContext
	}
	return CombinedRetry{MaxAttempts: min, ImprovementHints: improvementHints, PreserveContext: preserveContext}
}

// ResolveEnforcement computes the most restrictive enforcement across
// gates, short-circuiting once blocking is reached. An empty set defaults
// to blocking (spec §4.3).
func ResolveEnforcement(gates []*gatedomain.Definition) gatedomain.Enforcement {
	if len(gates) == 0 {
		return gatedomain.EnforcementBlocking
	}
	result := gatedomain.EnforcementInformational
	for _, g := range gates {
		e := g.Enforcement()
		if rank(e) > rank(result) {
			result = e
		}
		if result == gatedomain.EnforcementBlocking {
			break
		}
	}
	return result
}

func rank(e gatedomain.Enforcement) int {
	switch e {
	case gatedomain.EnforcementBlocking:
		return 2
	case gatedomain.EnforcementAdvisory:
		return 1
	default:
		return 0
	}
}

// RetryHints builds per-gate improvement hints from failing gates'
// guidance, split on newlines/bullets, capped at three hints per gate.
func RetryHints(failing []*gatedomain.Definition, guidanceByID map[string]string) []string {
	var hints []string
	for _, g := range failing {
		text := guidanceByID[g.ID]
		if text == "" {
			continue
		}
		lines := splitBullets(text)
		if len(lines) > 3 {
			lines = lines[:3]
		}
		hints = append(hints, lines...)
	}
	return hints
}

var bulletPrefixRe = regexp.MustCompile(`^[\s]*(?:[-*•]|\d+[.)])\s*`)

func splitBullets(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(bulletPrefixRe.ReplaceAllString(line, ""))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// FormatGuidance renders a criteria description list as "1. …\n2. …".
// An empty list yields an empty string (spec §4.3, §8).
func FormatGuidance(criteria []string) string {
	if len(criteria) == 0 {
		return ""
	}
	lines := make([]string, len(criteria))
	for i, c := range criteria {
		lines[i] = fmt.Sprintf("%d. %s", i+1, c)
	}
	return strings.Join(lines, "\n")
}
