package promptengine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	commanddomain "github.com/promptgate/gateway/internal/domain/command"
	"github.com/promptgate/gateway/internal/domain/plan"
	sessiondomain "github.com/promptgate/gateway/internal/domain/session"
	"github.com/promptgate/gateway/internal/infrastructure/chainsession"
	gateinfra "github.com/promptgate/gateway/internal/infrastructure/gate"
	injectioninfra "github.com/promptgate/gateway/internal/infrastructure/injection"
	"github.com/promptgate/gateway/internal/infrastructure/planner"
	scripttoolinfra "github.com/promptgate/gateway/internal/infrastructure/scripttool"
	apperrors "github.com/promptgate/gateway/pkg/errors"
)

// Dispatcher is the C7 Prompt Engine: the public execute/resume surface.
// One Dispatcher instance is shared across requests; injection.Service
// instances are created per request to keep their decision cache and
// overrides request-scoped (spec §4.2, §5).
type Dispatcher struct {
	parser          CommandParser
	prompts         PromptRegistry
	gates           *gateinfra.Registry
	planner         *planner.Planner
	sessions        *chainsession.Registry
	injectionSource injectioninfra.ConfigSource
	injectionEval   injectioninfra.WhenEvaluator
	scriptMatcher   *scripttoolinfra.Matcher
	scriptExecutor  *scripttoolinfra.Executor
	confirmations   *scripttoolinfra.ConfirmationTracker
	logger          *zap.Logger
}

// CommandParser is the subset of parser.Parser the dispatcher depends on,
// kept abstract so tests can substitute a fake.
type CommandParser interface {
	Parse(raw string, availablePrompts []string) (*commanddomain.Parsed, error)
}

// Deps bundles every collaborator New requires.
type Deps struct {
	Parser          CommandParser
	Prompts         PromptRegistry
	Gates           *gateinfra.Registry
	Sessions        *chainsession.Registry
	InjectionSource injectioninfra.ConfigSource
	InjectionEval   injectioninfra.WhenEvaluator
	ScriptMatcher   *scripttoolinfra.Matcher
	ScriptExecutor  *scripttoolinfra.Executor
	Confirmations   *scripttoolinfra.ConfirmationTracker
	Logger          *zap.Logger
}

// New creates a Dispatcher from its collaborators.
func New(d Deps) *Dispatcher {
	return &Dispatcher{
		parser:          d.Parser,
		prompts:         d.Prompts,
		gates:           d.Gates,
		planner:         planner.New(d.Gates),
		sessions:        d.Sessions,
		injectionSource: d.InjectionSource,
		injectionEval:   d.InjectionEval,
		scriptMatcher:   d.ScriptMatcher,
		scriptExecutor:  d.ScriptExecutor,
		confirmations:   d.Confirmations,
		logger:          d.Logger,
	}
}

// Execute routes built-ins, then parses, plans, creates a session for
// multi-step/blocking-gate plans, and emits the first step's pause
// envelope (spec §4.7 execute algorithm).
func (d *Dispatcher) Execute(ctx context.Context, req ExecuteRequest) (*PauseEnvelope, error) {
	if env, handled := d.routeBuiltin(req.Command); handled {
		return env, nil
	}

	parsed, err := d.parser.Parse(req.Command, d.prompts.List())
	if err != nil {
		return nil, err
	}

	rec, ok := d.prompts.Get(parsed.PromptID)
	if !ok {
		return nil, apperrors.NewUnknownPromptError(fmt.Sprintf("unknown prompt %q", parsed.PromptID), nil)
	}

	quick := make([]plan.QuickGate, len(req.Gates))
	for i, g := range req.Gates {
		quick[i] = plan.QuickGate{Name: g.Name, Description: g.Description}
	}

	p, err := d.planner.Plan(parsed, rec, quick, d.gates.ByID)
	if err != nil {
		return nil, err
	}

	if !p.RequiresSession {
		return d.renderStep(ctx, nil, parsed, p, 0)
	}

	baseChainID := sessiondomain.BaseChainID(parsed.PromptID)
	blueprint := sessiondomain.Blueprint{
		OriginalCommand: parsed.Metadata.OriginalCommand,
		PlanSummary:     planSummary(p),
	}
	sess := d.sessions.CreateRun(baseChainID, effectiveStepCount(p), req.Command, blueprint)

	return d.renderStep(ctx, sess, parsed, p, 0)
}

func effectiveStepCount(p *plan.Plan) int {
	if len(p.Steps) > 0 {
		return len(p.Steps)
	}
	return 1
}

func planSummary(p *plan.Plan) string {
	return fmt.Sprintf("strategy=%s steps=%d framework=%s", p.Strategy, effectiveStepCount(p), p.FrameworkID)
}
