// Package gate holds the gate definition data model consumed by the gate
// registry and evaluator (C3).
package gate

import "strings"

// Type distinguishes a validation gate (blocks progress on failure) from a
// guidance gate (advisory text only).
type Type string

const (
	TypeValidation Type = "validation"
	TypeGuidance   Type = "guidance"
)

// Severity drives the default enforcement mode.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Enforcement is how strictly a gate's outcome is applied.
type Enforcement string

const (
	EnforcementBlocking      Enforcement = "blocking"
	EnforcementAdvisory      Enforcement = "advisory"
	EnforcementInformational Enforcement = "informational"
)

// enforcementRank orders Enforcement from least to most restrictive so the
// evaluator can take the max across a gate set.
var enforcementRank = map[Enforcement]int{
	EnforcementInformational: 0,
	EnforcementAdvisory:      1,
	EnforcementBlocking:      2,
}

// DefaultEnforcement maps severity to its default enforcement mode
// (spec §3): critical→blocking, high/medium→advisory, low→informational.
func DefaultEnforcement(sev Severity) Enforcement {
	switch sev {
	case SeverityCritical:
		return EnforcementBlocking
	case SeverityHigh, SeverityMedium:
		return EnforcementAdvisory
	default:
		return EnforcementInformational
	}
}

// GateKind distinguishes the three activation rule shapes.
type GateKind string

const (
	KindFramework GateKind = "framework"
	KindCategory  GateKind = "category"
	KindCustom    GateKind = "custom"
)

// CriterionType is one of the four pass-criteria shapes.
type CriterionType string

const (
	CriterionContentCheck          CriterionType = "content_check"
	CriterionPatternCheck          CriterionType = "pattern_check"
	CriterionLLMSelfCheck          CriterionType = "llm_self_check"
	CriterionMethodologyCompliance CriterionType = "methodology_compliance"
)

// Criterion is one pass_criteria entry.
type Criterion struct {
	Type             CriterionType
	Description      string
	MinLength        int     // content_check
	MaxLength        int     // content_check
	Pattern          string  // content_check / pattern_check
	PromptTemplate    string  // llm_self_check
	Threshold        float64 // llm_self_check / methodology_compliance
}

// ActivationRules selects when a gate is active for an execution context.
type ActivationRules struct {
	Categories      []string // prompt categories
	Frameworks      []string // framework ids
	ExplicitRequest bool     // only active if context.ExplicitRequest is true
}

// RetryConfig controls the gate's contribution to combined retry policy.
type RetryConfig struct {
	MaxAttempts       int // default 2 if unset (<=0)
	ImprovementHints  bool
	PreserveContext   bool
}

// EffectiveMaxAttempts returns MaxAttempts, defaulting to 2.
func (r RetryConfig) EffectiveMaxAttempts() int {
	if r.MaxAttempts <= 0 {
		return 2
	}
	return r.MaxAttempts
}

// Definition is one gate's full definition (spec §3 Gate Definition).
type Definition struct {
	ID                 string
	Name               string
	Type               Type
	Severity           Severity
	EnforcementOverride *Enforcement // nil = use DefaultEnforcement(Severity)
	Guidance           string
	GuidanceFile       string
	PassCriteria       []Criterion
	Activation         ActivationRules
	Retry              RetryConfig
	GateKind           GateKind
}

// Enforcement resolves the definition's effective enforcement mode.
func (d *Definition) Enforcement() Enforcement {
	if d.EnforcementOverride != nil {
		return *d.EnforcementOverride
	}
	return DefaultEnforcement(d.Severity)
}

// ActivationContext is the runtime context a gate is evaluated against.
type ActivationContext struct {
	PromptCategory  string
	Framework       string
	ExplicitRequest bool
}

// IsActive decides whether this gate is active for ctx (spec §4.3).
func (d *Definition) IsActive(ctx ActivationContext) bool {
	if d.Activation.ExplicitRequest && !ctx.ExplicitRequest {
		return false
	}

	hasCategoryRule := len(d.Activation.Categories) > 0
	hasFrameworkRule := len(d.Activation.Frameworks) > 0

	categoryMatches := !hasCategoryRule || containsFold(d.Activation.Categories, ctx.PromptCategory, false)
	frameworkMatches := !hasFrameworkRule || containsFold(d.Activation.Frameworks, ctx.Framework, true)

	if d.GateKind == KindFramework {
		// AND-semantics: both axes (when a rule exists) must match.
		return categoryMatches && frameworkMatches
	}

	// Blocking semantics: each defined rule independently blocks when unsatisfied.
	if hasCategoryRule && !categoryMatches {
		return false
	}
	if hasFrameworkRule && !frameworkMatches {
		return false
	}
	return true
}

func containsFold(list []string, value string, upper bool) bool {
	fold := strings.ToLower
	if upper {
		fold = strings.ToUpper
	}
	target := fold(value)
	for _, item := range list {
		if fold(item) == target {
			return true
		}
	}
	return false
}
