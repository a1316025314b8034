package promptengine

import (
	"context"
	"fmt"

	commanddomain "github.com/promptgate/gateway/internal/domain/command"
	gatedomain "github.com/promptgate/gateway/internal/domain/gate"
	"github.com/promptgate/gateway/internal/domain/plan"
	sessiondomain "github.com/promptgate/gateway/internal/domain/session"
	gateinfra "github.com/promptgate/gateway/internal/infrastructure/gate"
	apperrors "github.com/promptgate/gateway/pkg/errors"
)

// Resume re-invokes a session-backed run with the LLM's step output
// and/or a gate verdict (spec §4.7 resume algorithm).
//
// Re-deriving the plan from Session.OriginalArgs on every resume (rather
// than persisting the Plan itself) is a deliberate design decision: it
// keeps domain/session free of an import-cycle risk with planner/plan,
// and parsing+planning is pure given a stable PromptRegistry/GateRegistry
// state (see DESIGN.md Open Question decisions).
func (d *Dispatcher) Resume(ctx context.Context, req ResumeRequest) (*PauseEnvelope, error) {
	sess, ok := d.sessions.Get(req.ChainID)
	if !ok {
		if req.ForceRestart {
			return nil, apperrors.NewValidationError("session not found; call execute with the original command to restart").WithActions("execute")
		}
		return nil, apperrors.NewSessionError(fmt.Sprintf("no session found for chain_id %q", req.ChainID)).WithActions("execute")
	}

	parsed, err := d.parser.Parse(sess.OriginalArgs, d.prompts.List())
	if err != nil {
		return nil, err
	}
	rec, ok := d.prompts.Get(parsed.PromptID)
	if !ok {
		return nil, apperrors.NewUnknownPromptError(fmt.Sprintf("unknown prompt %q", parsed.PromptID), nil)
	}
	p, err := d.planner.Plan(parsed, rec, nil, d.gates.ByID)
	if err != nil {
		return nil, err
	}

	stepIdx := sess.CurrentStep - 1
	meta := sess.CurrentStepMeta()
	if meta == nil {
		return d.finalEnvelope(sess, p), nil
	}

	if req.UserResponse != "" {
		d.sessions.Mutate(sess.RunID, func(s *sessiondomain.Session) {
			s.Steps[stepIdx].LastResult = req.UserResponse
		})
	}

	_, _, gates := stepTarget(parsed, p, stepIdx)

	if meta.PendingReview != nil {
		return d.resolveGateReview(ctx, sess, parsed, p, stepIdx, gates, req)
	}

	if hasBlockingGate(gates) {
		return d.openGateReview(sess, stepIdx, gates, p)
	}

	if err := d.completeStep(sess, stepIdx); err != nil {
		return nil, err
	}
	return d.advanceOrFinish(ctx, sess, parsed, p)
}

func (d *Dispatcher) finalEnvelope(sess *sessiondomain.Session, p *plan.Plan) *PauseEnvelope {
	return &PauseEnvelope{
		ChainID:    sess.RunID,
		Completed:  true,
		Status:     "completed",
		StepNumber: effectiveStepCount(p),
		TotalSteps: effectiveStepCount(p),
	}
}

// openGateReview stores a pending review and transitions the step to
// awaiting_gate, returning the review-request envelope (spec §4.6
// "storing a pending review transitions the step to awaiting_gate").
func (d *Dispatcher) openGateReview(sess *sessiondomain.Session, stepIdx int, gates []*gatedomain.Definition, p *plan.Plan) (*PauseEnvelope, error) {
	retry := gateinfra.ResolveRetry(gates)
	if err := d.transitionStep(sess, stepIdx, sessiondomain.StepAwaitingGate); err != nil {
		return nil, err
	}
	d.sessions.Mutate(sess.RunID, func(s *sessiondomain.Session) {
		s.Steps[stepIdx].PendingReview = &sessiondomain.PendingGateReview{
			GateIDs:     gateIDs(gates),
			MaxAttempts: retry.MaxAttempts,
		}
	})
	return d.pendingReviewEnvelope(sess, stepIdx, gates, p), nil
}

func (d *Dispatcher) pendingReviewEnvelope(sess *sessiondomain.Session, stepIdx int, gates []*gatedomain.Definition, p *plan.Plan) *PauseEnvelope {
	return &PauseEnvelope{
		ChainID:        sess.RunID,
		RenderedPrompt: gateReviewPrompt(d.gateGuidanceText(gates)),
		AwaitingGates:  gateIDs(gates),
		StepNumber:     stepIdx + 1,
		TotalSteps:     effectiveStepCount(p),
		Status:         "awaiting_gate",
	}
}

// resolveGateReview consumes a gate verdict — the dedicated gate_verdict
// field first (all accepted phrasings, including the bare minimal form),
// falling back to scanning user_response for the two explicit phrasings
// only (spec §4.4: the minimal "PASS|FAIL - rationale" form is restricted
// to the dedicated field so ordinary step output is never misread as a
// verdict) — and applies the retry/exhaustion/gate_action logic of spec
// §4.7 step 3.
func (d *Dispatcher) resolveGateReview(ctx context.Context, sess *sessiondomain.Session, parsed *commanddomain.Parsed, p *plan.Plan, stepIdx int, gates []*gatedomain.Definition, req ResumeRequest) (*PauseEnvelope, error) {
	var v gateinfra.Verdict
	var ok bool
	if req.GateVerdict != "" {
		v, ok = gateinfra.ParseVerdict(req.GateVerdict)
	} else {
		v, ok = gateinfra.ParseVerdictFreeText(req.UserResponse)
	}
	if !ok && req.GateAction != "" {
		// A bare gate_action resolves an exhausted budget against the last recorded FAIL.
		if r := sess.CurrentStepMeta().PendingReview; r != nil && r.AttemptCount >= r.MaxAttempts {
			v, ok = gateinfra.Verdict{Passed: false, Rationale: r.LastFeedback}, true
		}
	}
	if !ok {
		return d.pendingReviewEnvelope(sess, stepIdx, gates, p), nil
	}

	meta := sess.CurrentStepMeta()
	review := meta.PendingReview

	if v.Passed {
		d.sessions.Mutate(sess.RunID, func(s *sessiondomain.Session) {
			s.Steps[stepIdx].PendingReview = nil
		})
		if err := d.completeStep(sess, stepIdx); err != nil {
			return nil, err
		}
		return d.advanceOrFinish(ctx, sess, parsed, p)
	}

	newAttempt := review.AttemptCount + 1
	d.sessions.Mutate(sess.RunID, func(s *sessiondomain.Session) {
		s.Steps[stepIdx].PendingReview.AttemptCount = newAttempt
		s.Steps[stepIdx].PendingReview.LastFeedback = v.Rationale
	})

	if newAttempt < review.MaxAttempts {
		if err := d.transitionStep(sess, stepIdx, sessiondomain.StepInProgress); err != nil {
			return nil, err
		}
		hints := gateinfra.RetryHints(gates, d.guidanceByID(gates))
		return &PauseEnvelope{
			ChainID:        sess.RunID,
			RenderedPrompt: retryPrompt(v.Rationale, hints),
			AwaitingGates:  gateIDs(gates),
			StepNumber:     stepIdx + 1,
			TotalSteps:     effectiveStepCount(p),
			Status:         "in_progress",
		}, nil
	}

	// Retry budget exhausted: require an explicit gate_action.
	if req.GateAction == "" {
		return &PauseEnvelope{
			ChainID:        sess.RunID,
			RenderedPrompt: gateActionPrompt(v.Rationale),
			AwaitingGates:  gateIDs(gates),
			StepNumber:     stepIdx + 1,
			TotalSteps:     effectiveStepCount(p),
			Status:         "awaiting_gate",
		}, nil
	}

	switch req.GateAction {
	case "abort":
		if err := d.transitionStep(sess, stepIdx, sessiondomain.StepFailed); err != nil {
			return nil, err
		}
		return &PauseEnvelope{
			ChainID:    sess.RunID,
			Completed:  true,
			Status:     "aborted",
			StepNumber: stepIdx + 1,
			TotalSteps: effectiveStepCount(p),
		}, nil
	case "skip":
		d.sessions.Mutate(sess.RunID, func(s *sessiondomain.Session) {
			s.Steps[stepIdx].PendingReview = nil
		})
		if err := d.transitionStep(sess, stepIdx, sessiondomain.StepSkipped); err != nil {
			return nil, err
		}
		return d.advanceAfterSkip(ctx, sess, parsed, p)
	case "retry":
		d.sessions.Mutate(sess.RunID, func(s *sessiondomain.Session) {
			s.Steps[stepIdx].PendingReview.AttemptCount = 0
			s.Steps[stepIdx].PendingReview.LastFeedback = ""
		})
		if err := d.transitionStep(sess, stepIdx, sessiondomain.StepInProgress); err != nil {
			return nil, err
		}
		return &PauseEnvelope{
			ChainID:        sess.RunID,
			RenderedPrompt: retryPrompt("retry budget reset", nil),
			AwaitingGates:  gateIDs(gates),
			StepNumber:     stepIdx + 1,
			TotalSteps:     effectiveStepCount(p),
			Status:         "in_progress",
		}, nil
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown gate_action %q", req.GateAction)).WithActions("retry", "skip", "abort")
	}
}

// advanceOrFinish moves to the next step after stepIdx completes, returning
// the final envelope once the plan is exhausted (spec §4.7 step 4). Skipped
// steps advance through advanceAfterSkip instead, since StepSkipped never
// satisfies AdvanceStep's completed-only precondition.
func (d *Dispatcher) advanceOrFinish(ctx context.Context, sess *sessiondomain.Session, parsed *commanddomain.Parsed, p *plan.Plan) (*PauseEnvelope, error) {
	d.sessions.Mutate(sess.RunID, func(s *sessiondomain.Session) {
		s.AdvanceStep()
	})
	if sess.CurrentStep > effectiveStepCount(p) {
		return d.finalEnvelope(sess, p), nil
	}
	return d.renderStep(ctx, sess, parsed, p, sess.CurrentStep-1)
}

// advanceAfterSkip moves past a step the caller explicitly skipped via
// gate_action=skip (spec §4.7 step 3: "skip advances"). StepSkipped is
// terminal without ever passing through StepCompleted, so advancing here
// goes through AdvanceStepSkipped rather than the completed-only
// AdvanceStep used by advanceOrFinish.
func (d *Dispatcher) advanceAfterSkip(ctx context.Context, sess *sessiondomain.Session, parsed *commanddomain.Parsed, p *plan.Plan) (*PauseEnvelope, error) {
	d.sessions.Mutate(sess.RunID, func(s *sessiondomain.Session) {
		s.AdvanceStepSkipped()
	})
	if sess.CurrentStep > effectiveStepCount(p) {
		return d.finalEnvelope(sess, p), nil
	}
	return d.renderStep(ctx, sess, parsed, p, sess.CurrentStep-1)
}
