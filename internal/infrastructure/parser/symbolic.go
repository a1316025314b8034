package parser

import (
	"regexp"
	"strings"

	"github.com/promptgate/gateway/internal/domain/command"
	apperrors "github.com/promptgate/gateway/pkg/errors"
)

var (
	frameworkRe   = regexp.MustCompile(`@([A-Za-z][A-Za-z0-9_]*)`)
	styleParenRe  = regexp.MustCompile(`#style\(([^)]+)\)`)
	styleColonRe  = regexp.MustCompile(`#style:([A-Za-z0-9_]+)`)
	styleBareRe   = regexp.MustCompile(`#([A-Za-z0-9_]+)`)
	gateQuotedRe  = regexp.MustCompile(`(?:::|=)\s*"([^"]*)"`)
	gateBareRe    = regexp.MustCompile(`(?:::|=)\s*([^\s"][^\s]*)`)
	conditionalRe = regexp.MustCompile(`\?\s*"([^"]*)"\s*:\s*(\S+)`)
	parallelRe    = regexp.MustCompile(`(?:^|\s)\+(?:\s|$)`)
)

// parseSymbolic implements strategy 1 (confidence 0.97): it extracts every
// command-level operator via global regex passes, then splits the remaining
// chain text on `-->` respecting quoted spans.
func (p *Parser) parseSymbolic(s string) (*command.Parsed, error) {
	work := s
	var operators []command.Operator

	if m := conditionalRe.FindStringSubmatch(work); m != nil {
		operators = append(operators, command.Operator{Kind: command.OperatorConditional, Value: m[1] + " : " + m[2]})
		work = conditionalRe.ReplaceAllString(work, "")
	}

	for _, m := range gateQuotedRe.FindAllStringSubmatch(work, -1) {
		operators = append(operators, command.Operator{Kind: command.OperatorGate, Value: m[1]})
	}
	work = gateQuotedRe.ReplaceAllString(work, "")
	for _, m := range gateBareRe.FindAllStringSubmatch(work, -1) {
		operators = append(operators, command.Operator{Kind: command.OperatorGate, Value: m[1]})
	}
	work = gateBareRe.ReplaceAllString(work, "")

	if m := frameworkRe.FindStringSubmatch(work); m != nil {
		operators = append(operators, command.Operator{Kind: command.OperatorFramework, Value: strings.ToUpper(m[1])})
	}
	work = frameworkRe.ReplaceAllString(work, "")

	if m := styleParenRe.FindStringSubmatch(work); m != nil {
		operators = append(operators, command.Operator{Kind: command.OperatorStyle, Value: m[1]})
		work = styleParenRe.ReplaceAllString(work, "")
	} else if m := styleColonRe.FindStringSubmatch(work); m != nil {
		operators = append(operators, command.Operator{Kind: command.OperatorStyle, Value: m[1]})
		work = styleColonRe.ReplaceAllString(work, "")
	} else if m := styleBareRe.FindStringSubmatch(work); m != nil {
		operators = append(operators, command.Operator{Kind: command.OperatorStyle, Value: m[1]})
		work = styleBareRe.ReplaceAllString(work, "")
	}

	if parallelRe.MatchString(work) {
		operators = append(operators, command.Operator{Kind: command.OperatorParallel, Value: ""})
		work = parallelRe.ReplaceAllString(work, " ")
	}

	chainParts := splitRespectingQuotes(work, "-->")
	if len(chainParts) > 1 {
		operators = append(operators, command.Operator{Kind: command.OperatorChain, Value: ""})
	}

	steps := make([]command.Step, 0, len(chainParts))
	var warnings []string
	for _, raw := range chainParts {
		trimmedStep := strings.TrimSpace(raw)
		if trimmedStep == "" {
			continue
		}
		m := simplePrefixRe.FindStringSubmatch(trimmedStep)
		if m == nil || m[1] == "" {
			return nil, apperrors.NewValidationError("each chain step must begin with >>id or /id")
		}
		if hasEmbeddedOperator(trimmedStep) {
			return nil, apperrors.NewValidationError("chain steps may not carry their own operators; operators apply to the whole command")
		}
		id := normalizeID(m[1])
		if id == "" {
			return nil, apperrors.NewValidationError("chain step id must not be empty")
		}
		steps = append(steps, command.Step{PromptID: id, RawArgs: strings.TrimSpace(m[2])})
	}
	if len(steps) == 0 {
		return nil, apperrors.NewValidationError("command has no steps after parsing")
	}

	parsed := &command.Parsed{
		PromptID:   steps[0].PromptID,
		RawArgs:    steps[0].RawArgs,
		Steps:      steps,
		Operators:  operators,
		Format:     command.FormatSymbolic,
		Confidence: 0.97,
		Warnings:   warnings,
	}
	return parsed, nil
}

// hasEmbeddedOperator checks a single already-extracted step body for any
// operator token that should have been stripped at the command level.
func hasEmbeddedOperator(stepText string) bool {
	body := stepText
	if m := simplePrefixRe.FindStringSubmatch(stepText); m != nil {
		body = m[2]
	}
	switch {
	case strings.Contains(body, "::"):
		return true
	case frameworkRe.MatchString(body):
		return true
	case styleBareRe.MatchString(body):
		return true
	case conditionalRe.MatchString(body):
		return true
	}
	return false
}
