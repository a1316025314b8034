package promptengine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	commanddomain "github.com/promptgate/gateway/internal/domain/command"
	gatedomain "github.com/promptgate/gateway/internal/domain/gate"
	injectiondomain "github.com/promptgate/gateway/internal/domain/injection"
	"github.com/promptgate/gateway/internal/domain/plan"
	promptdomain "github.com/promptgate/gateway/internal/domain/prompt"
	sessiondomain "github.com/promptgate/gateway/internal/domain/session"
	gateinfra "github.com/promptgate/gateway/internal/infrastructure/gate"
	injectioninfra "github.com/promptgate/gateway/internal/infrastructure/injection"
	scripttoolinfra "github.com/promptgate/gateway/internal/infrastructure/scripttool"
	apperrors "github.com/promptgate/gateway/pkg/errors"
)

// stepTarget resolves the prompt id, raw args, and active gate set for
// stepIdx, falling back to the top-level parsed command for single-step
// plans (spec §4.5/§4.7).
func stepTarget(parsed *commanddomain.Parsed, p *plan.Plan, stepIdx int) (promptID, rawArgs string, gates []*gatedomain.Definition) {
	if stepIdx < len(p.Steps) {
		sp := p.Steps[stepIdx]
		return sp.PromptID, sp.RawArgs, sp.Gates
	}
	return parsed.PromptID, parsed.RawArgs, p.Gates
}

func hasBlockingGate(gates []*gatedomain.Definition) bool {
	return gateinfra.ResolveEnforcement(gates) == gatedomain.EnforcementBlocking
}

func gateIDs(gates []*gatedomain.Definition) []string {
	ids := make([]string, len(gates))
	for i, g := range gates {
		ids[i] = g.ID
	}
	return ids
}

// transitionStep validates and applies a StepState transition for sess's
// step at idx, returning a System error if the transition is illegal (a
// programming-error guard, never a user-facing data problem).
func (d *Dispatcher) transitionStep(sess *sessiondomain.Session, idx int, to sessiondomain.StepState) error {
	var transitionErr error
	ok := d.sessions.Mutate(sess.RunID, func(s *sessiondomain.Session) {
		from := s.Steps[idx].State
		if !sessiondomain.CanTransition(from, to) {
			transitionErr = fmt.Errorf("invalid step transition: %s -> %s", from, to)
			return
		}
		s.Steps[idx].State = to
	})
	if !ok {
		return apperrors.NewSessionError(fmt.Sprintf("no session found for run %q", sess.RunID))
	}
	if transitionErr != nil {
		return apperrors.NewSystemError("illegal step transition", transitionErr)
	}
	return nil
}

func (d *Dispatcher) completeStep(sess *sessiondomain.Session, idx int) error {
	return d.transitionStep(sess, idx, sessiondomain.StepCompleted)
}

// renderStep renders stepIdx's prompt content (running any matching
// script tool first, then resolving injections) and returns its pause
// envelope. sess is nil for single-shot, session-less plans.
func (d *Dispatcher) renderStep(ctx context.Context, sess *sessiondomain.Session, parsed *commanddomain.Parsed, p *plan.Plan, stepIdx int) (*PauseEnvelope, error) {
	promptID, rawArgs, gates := stepTarget(parsed, p, stepIdx)

	rec, ok := d.prompts.Get(promptID)
	if !ok {
		return nil, apperrors.NewUnknownPromptError(fmt.Sprintf("unknown prompt %q", promptID), nil)
	}
	content, err := d.prompts.Content(promptID)
	if err != nil {
		return nil, apperrors.NewSystemError("failed to load prompt content", err)
	}

	inputs := extractInputs(rawArgs)

	scriptOutput, pauseForConfirm, err := d.runScriptTools(ctx, rec, promptID, rawArgs, inputs)
	if err != nil {
		return nil, err
	}
	if pauseForConfirm != nil {
		if sess != nil {
			pauseForConfirm.ChainID = sess.RunID
		}
		return pauseForConfirm, nil
	}

	stepNumber := stepIdx + 1
	chainID := ""
	if sess != nil {
		chainID = sess.RunID
		if err := d.transitionStep(sess, stepIdx, sessiondomain.StepInProgress); err != nil {
			return nil, err
		}
	}

	decisions := d.injectionDecisions(injectioninfra.ResolveContext{
		Modifier:      parsed.Modifier,
		StepKey:       promptID,
		ChainID:       chainID,
		Category:      rec.Category,
		StepNumber:    stepNumber,
		CurrentTarget: injectiondomain.TargetStep,
	})

	guidance := ""
	if decisions[injectiondomain.TypeGateGuidance].Inject {
		guidance = d.gateGuidanceText(gates)
	}

	rendered := renderContent(interpolate(content, inputs), decisions, rec, scriptOutput, guidance)

	return &PauseEnvelope{
		ChainID:        chainID,
		RenderedPrompt: rendered,
		AwaitingGates:  nil,
		StepNumber:     stepNumber,
		TotalSteps:     effectiveStepCount(p),
		Status:         "in_progress",
	}, nil
}

// gateGuidanceText joins guidance text for a set of gates, skipping read
// errors (logged, not fatal — a missing guidance file must not block the
// run).
func (d *Dispatcher) gateGuidanceText(gates []*gatedomain.Definition) string {
	var parts []string
	for _, g := range gates {
		text, err := d.gates.Guidance(g)
		if err != nil {
			d.logger.Warn("failed to render gate guidance", zap.String("gate", g.ID), zap.Error(err))
			continue
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (d *Dispatcher) guidanceByID(gates []*gatedomain.Definition) map[string]string {
	out := make(map[string]string, len(gates))
	for _, g := range gates {
		text, err := d.gates.Guidance(g)
		if err == nil {
			out[g.ID] = text
		}
	}
	return out
}

// injectionDecisions resolves all three injection types for one step
// using a fresh, request-scoped injection.Service (spec §4.2, §5: the
// decision cache must not leak across unrelated requests).
func (d *Dispatcher) injectionDecisions(ctx injectioninfra.ResolveContext) map[injectiondomain.Type]injectiondomain.Decision {
	svc := injectioninfra.New(d.injectionSource, d.injectionEval)
	return svc.DecideAll(ctx)
}

// runScriptTools matches rec's declared script tools against rawArgs and
// runs the match, honoring the confirmation round-trip (spec §4.4).
func (d *Dispatcher) runScriptTools(ctx context.Context, rec *promptdomain.Record, promptID, rawArgs string, inputs map[string]interface{}) (map[string]interface{}, *PauseEnvelope, error) {
	if !rec.HasScriptTools() || d.scriptMatcher == nil {
		return nil, nil, nil
	}
	match, err := d.scriptMatcher.Match(rec.ScriptTools, rawArgs, inputs)
	if err != nil {
		return nil, nil, apperrors.NewScriptError("failed to match script tool", err)
	}
	if match == nil {
		return nil, nil, nil
	}

	tool := match.Tool
	if tool.Execution.Confirm {
		if tool.Execution.AutoApproveOnValid {
			validation, err := d.scriptExecutor.Run(ctx, tool, promptID, match.Inputs, nil, 0)
			if err == nil && scripttoolinfra.IsValidatorPass(validation) {
				if out, ok := validation.Output.(map[string]interface{}); ok {
					return out, nil, nil
				}
				return map[string]interface{}{"output": validation.Output}, nil, nil
			}
		}
		hash := scripttoolinfra.HashInputs(tool.ID, match.Inputs)
		if !d.confirmations.Check(promptID, tool.ID, hash) {
			d.confirmations.Record(promptID, tool.ID, hash)
			msg := tool.Execution.ConfirmMessage
			if msg == "" {
				msg = fmt.Sprintf("Confirm running %q with the given inputs by resubmitting the same command.", tool.Name)
			}
			return nil, &PauseEnvelope{RenderedPrompt: msg, Status: "awaiting_confirmation"}, nil
		}
	}

	result, err := d.scriptExecutor.Run(ctx, tool, promptID, match.Inputs, nil, 0)
	if err != nil {
		return nil, nil, apperrors.NewScriptError("script tool execution failed", err)
	}
	if !result.Success {
		return nil, nil, apperrors.NewScriptError(result.Error, nil)
	}
	if out, ok := result.Output.(map[string]interface{}); ok {
		return out, nil, nil
	}
	return map[string]interface{}{"output": result.Output}, nil, nil
}
