// Package injection implements the injection decision service (C2): for
// each of {system-prompt, gate-guidance, style-guidance}, decide whether to
// inject at the current step, short-circuiting through a fixed priority
// chain and caching the result per (request, type).
package injection

import (
	"fmt"
	"sync"
	"time"

	"github.com/promptgate/gateway/internal/domain/command"
	domain "github.com/promptgate/gateway/internal/domain/injection"
)

// disableTable maps a modifier to the set of types it disables. `judge` is
// handled separately since it *forces* an injection rather than disabling
// one (spec §4.2, §9 Open Question: judge forces system-prompt even under
// clean/lean, but clean's disable list still wins for the other two
// types — see DESIGN.md).
var disableTable = map[command.Modifier]map[domain.Type]bool{
	command.ModifierClean: {
		domain.TypeSystemPrompt:  true,
		domain.TypeGateGuidance:  true,
		domain.TypeStyleGuidance: true,
	},
	command.ModifierLean: {
		domain.TypeStyleGuidance: true,
	},
}

// ConfigSource resolves the step→chain→category→global hierarchy. Any
// level may return (nil, false) to fall through to the next.
type ConfigSource interface {
	StepConfig(stepKey string, t domain.Type) (*domain.Config, bool)
	ChainConfig(chainID string, t domain.Type) (*domain.Config, bool)
	CategoryConfig(category string, t domain.Type) (*domain.Config, bool)
	GlobalConfig(t domain.Type) (*domain.Config, bool)
}

// WhenEvaluator evaluates a Config's When clauses against the resolution
// context, returning "inject", "skip", or "inherit". Kept abstract: "when"
// expressions are defined by the authoring layer, not this service.
type WhenEvaluator func(clauses []domain.WhenClause, ctx ResolveContext) string

// ResolveContext carries everything needed to resolve one (request, type)
// decision.
type ResolveContext struct {
	Modifier        command.Modifier
	StepKey         string
	ChainID         string
	Category        string
	StepNumber      int // 1-based
	CurrentTarget   domain.Target
}

func defaultConfig(t domain.Type) *domain.Config {
	return &domain.Config{
		Type:      t,
		Inject:    true,
		Target:    domain.TargetBoth,
		Frequency: domain.Frequency{Mode: domain.FrequencyEvery, K: 1},
	}
}

// Service is the C2 injection decision resolver. One Service instance is
// request-scoped; Reset() clears its decision cache between unrelated
// requests sharing a Service, while runtime overrides survive until
// ClearOverrides (spec §4.2, §5).
type Service struct {
	mu        sync.Mutex
	source    ConfigSource
	evaluator WhenEvaluator
	overrides map[domain.Type]domain.Override
	cache     map[string]domain.Decision
	now       func() time.Time
}

// New creates a Service backed by source, using evaluator for `when`
// clauses (pass nil to treat every clause as "inherit").
func New(source ConfigSource, evaluator WhenEvaluator) *Service {
	return &Service{
		source:    source,
		evaluator: evaluator,
		overrides: make(map[domain.Type]domain.Override),
		cache:     make(map[string]domain.Decision),
		now:       time.Now,
	}
}

// SetOverride installs a runtime override for Type, replacing any existing
// one.
func (s *Service) SetOverride(o domain.Override) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[o.Type] = o
}

// Reset clears the request-scoped decision cache. Runtime overrides are
// session/chain-scoped and survive Reset; call ClearOverrides explicitly
// to drop them.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]domain.Decision)
}

// ClearOverrides drops all runtime overrides.
func (s *Service) ClearOverrides() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides = make(map[domain.Type]domain.Override)
}

func cacheKey(ctx ResolveContext, t domain.Type) string {
	return fmt.Sprintf("%s|%s|%s|%d", ctx.StepKey, ctx.ChainID, t, ctx.StepNumber)
}

// Decide resolves the injection decision for t under ctx, consulting and
// populating the per-request cache.
func (s *Service) Decide(ctx ResolveContext, t domain.Type) domain.Decision {
	key := cacheKey(ctx, t)

	s.mu.Lock()
	if cached, ok := s.cache[key]; ok {
		s.mu.Unlock()
		return cached
	}
	s.mu.Unlock()

	decision := s.resolve(ctx, t)

	s.mu.Lock()
	s.cache[key] = decision
	s.mu.Unlock()
	return decision
}

// DecideAll resolves every injection type and returns a frozen snapshot
// (spec §4.2 decideAll()).
func (s *Service) DecideAll(ctx ResolveContext) map[domain.Type]domain.Decision {
	types := []domain.Type{domain.TypeSystemPrompt, domain.TypeGateGuidance, domain.TypeStyleGuidance}
	out := make(map[domain.Type]domain.Decision, len(types))
	for _, t := range types {
		out[t] = s.Decide(ctx, t)
	}
	return out
}

func (s *Service) resolve(ctx ResolveContext, t domain.Type) domain.Decision {
	now := s.now()

	// 1. Modifiers.
	if ctx.Modifier == command.ModifierJudge && t == domain.TypeSystemPrompt {
		return domain.Decision{Type: t, Inject: true, Reason: "modifier judge forces system-prompt injection", Source: domain.SourceModifier, Target: domain.TargetBoth, DecidedAt: now}
	}
	if disabled, ok := disableTable[ctx.Modifier]; ok && disabled[t] {
		return domain.Decision{Type: t, Inject: false, Reason: fmt.Sprintf("modifier %s disables %s", ctx.Modifier, t), Source: domain.SourceModifier, Target: domain.TargetBoth, DecidedAt: now}
	}

	// 2. Runtime overrides.
	s.mu.Lock()
	override, hasOverride := s.overrides[t]
	s.mu.Unlock()
	if hasOverride {
		if override.Expired(now) {
			s.mu.Lock()
			delete(s.overrides, t)
			s.mu.Unlock()
		} else {
			return domain.Decision{Type: t, Inject: override.Inject, Reason: "runtime override", Source: domain.SourceRuntimeOverride, Target: domain.TargetBoth, DecidedAt: now}
		}
	}

	// 3. Hierarchy resolution: step -> chain -> category -> global -> default.
	cfg, source := s.resolveHierarchy(ctx, t)

	// 4. Conditional `when` clauses.
	if len(cfg.When) > 0 && s.evaluator != nil {
		switch s.evaluator(cfg.When, ctx) {
		case "inject":
			cfg = withInject(cfg, true)
		case "skip":
			cfg = withInject(cfg, false)
		case "inherit":
			// fall through, keep resolved cfg.Inject as-is
		}
	}

	if !cfg.Inject {
		return domain.Decision{Type: t, Inject: false, Reason: fmt.Sprintf("%s config resolved to skip", source), Source: source, Target: cfg.Target, DecidedAt: now}
	}

	// 5. Frequency rule (multi-step runs only).
	if ctx.StepNumber > 0 && !cfg.Frequency.ShouldInjectAtStep(ctx.StepNumber) {
		return domain.Decision{Type: t, Inject: false, Reason: fmt.Sprintf("frequency rule %s suppresses step %d", cfg.Frequency.Mode, ctx.StepNumber), Source: source, Target: cfg.Target, DecidedAt: now}
	}

	// 6. Target filter.
	if cfg.Target != domain.TargetBoth && ctx.CurrentTarget != "" && cfg.Target != ctx.CurrentTarget {
		return domain.Decision{Type: t, Inject: false, Reason: fmt.Sprintf("target %s does not match execution context %s", cfg.Target, ctx.CurrentTarget), Source: source, Target: cfg.Target, DecidedAt: now}
	}

	return domain.Decision{Type: t, Inject: true, Reason: fmt.Sprintf("resolved at %s level", source), Source: source, Target: cfg.Target, DecidedAt: now}
}

func withInject(cfg *domain.Config, inject bool) *domain.Config {
	clone := *cfg
	clone.Inject = inject
	return &clone
}

func (s *Service) resolveHierarchy(ctx ResolveContext, t domain.Type) (*domain.Config, domain.Source) {
	if s.source == nil {
		return defaultConfig(t), domain.SourceDefault
	}
	if ctx.StepKey != "" {
		if cfg, ok := s.source.StepConfig(ctx.StepKey, t); ok {
			return cfg, domain.SourceStep
		}
	}
	if ctx.ChainID != "" {
		if cfg, ok := s.source.ChainConfig(ctx.ChainID, t); ok {
			return cfg, domain.SourceChain
		}
	}
	if ctx.Category != "" {
		if cfg, ok := s.source.CategoryConfig(ctx.Category, t); ok {
			return cfg, domain.SourceCategory
		}
	}
	if cfg, ok := s.source.GlobalConfig(t); ok {
		return cfg, domain.SourceGlobal
	}
	return defaultConfig(t), domain.SourceDefault
}
