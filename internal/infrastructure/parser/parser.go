// Package parser implements the multi-strategy command parser (C1): it turns
// an untrusted command string into a domain/command.Parsed value.
package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/promptgate/gateway/internal/domain/command"
	apperrors "github.com/promptgate/gateway/pkg/errors"
)

var errMultipleModifiers = apperrors.NewValidationError("only one %modifier is allowed per command")

var validModifiers = map[string]command.Modifier{
	"clean":     command.ModifierClean,
	"guided":    command.ModifierGuided,
	"lean":      command.ModifierLean,
	"framework": command.ModifierFramework,
	"judge":     command.ModifierJudge,
}

// Parser is the C1 multi-strategy command parser.
type Parser struct {
	// MaxSuggestions bounds UnknownPromptError suggestion lists (spec: 3).
	MaxSuggestions int
	// MaxSuggestionDistance bounds which candidates are considered (spec: 3).
	MaxSuggestionDistance int
}

// New returns a Parser configured per spec defaults.
func New() *Parser {
	return &Parser{MaxSuggestions: 3, MaxSuggestionDistance: 3}
}

// Parse converts command into a domain/command.Parsed, validating prompt ids
// against availablePrompts (an id→exists set owned by the caller's
// PromptRegistry).
func (p *Parser) Parse(raw string, availablePrompts []string) (*command.Parsed, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, apperrors.NewValidationError("command must not be empty")
	}

	original := trimmed
	normalized, prefixNormalized := stripStrayChevrons(trimmed)

	modRaw, rest, err := extractModifier(normalized)
	if err != nil {
		return nil, err
	}
	var modifier command.Modifier
	if modRaw != "" {
		m, ok := validModifiers[modRaw]
		if !ok {
			return nil, apperrors.NewValidationError(fmt.Sprintf("unknown modifier %%%s", modRaw))
		}
		modifier = m
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return nil, apperrors.NewValidationError("command must not be empty")
	}

	var parsed *command.Parsed
	switch {
	case strings.HasPrefix(rest, "{"):
		parsed, err = p.parseJSON(rest, availablePrompts)
	case looksSymbolic(rest):
		parsed, err = p.parseSymbolic(rest)
	case strings.HasPrefix(rest, ">>") || strings.HasPrefix(rest, "/"):
		parsed, err = p.parseSimple(rest)
	default:
		return nil, apperrors.NewValidationError("no parse strategy applies to this command")
	}
	if err != nil {
		return nil, err
	}

	parsed.Modifier = modifier
	if parsed.HasOperator(command.OperatorChain) || len(parsed.Steps) > 1 {
		parsed.CommandType = command.TypeChain
	} else {
		parsed.CommandType = command.TypeSingle
	}
	parsed.Metadata = command.Metadata{
		OriginalCommand:  original,
		PrefixNormalized: prefixNormalized,
		Strategy:         parsed.Format,
		Confidence:       parsed.Confidence,
	}

	if err := p.validatePrompts(parsed, availablePrompts); err != nil {
		return nil, err
	}
	return parsed, nil
}

var symbolicTokenRe = regexp.MustCompile(`-->|::|[+]|@[A-Za-z]|#[A-Za-z]|\?\s*"`)

func looksSymbolic(s string) bool {
	return symbolicTokenRe.MatchString(s)
}

// validatePrompts checks every step's prompt id against the registry set and
// raises an UnknownPromptError with ranked suggestions if one is missing.
func (p *Parser) validatePrompts(parsed *command.Parsed, availablePrompts []string) error {
	known := make(map[string]bool, len(availablePrompts))
	for _, id := range availablePrompts {
		known[id] = true
	}
	ids := []string{parsed.PromptID}
	for _, s := range parsed.Steps {
		ids = append(ids, s.PromptID)
	}
	for _, id := range ids {
		if id == "" || known[id] {
			continue
		}
		suggestions := p.suggest(id, availablePrompts)
		return apperrors.NewUnknownPromptError(
			fmt.Sprintf("unknown prompt %q", id), suggestions)
	}
	return nil
}

type suggestionCandidate struct {
	id       string
	distance int
}

// suggest ranks availablePrompts by Levenshtein distance to id, keeping only
// candidates within MaxSuggestionDistance, capped to MaxSuggestions.
func (p *Parser) suggest(id string, availablePrompts []string) []string {
	var cands []suggestionCandidate
	for _, cand := range availablePrompts {
		d := levenshtein.Distance(id, cand, nil)
		if d <= p.MaxSuggestionDistance {
			cands = append(cands, suggestionCandidate{id: cand, distance: d})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].distance < cands[j].distance
	})
	if len(cands) > p.MaxSuggestions {
		cands = cands[:p.MaxSuggestions]
	}
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.id
	}
	return out
}

// --- Simple strategy (confidence 0.95) ---

var simplePrefixRe = regexp.MustCompile(`^(?:>>|/)([^\s]*)\s*(.*)$`)

func (p *Parser) parseSimple(s string) (*command.Parsed, error) {
	m := simplePrefixRe.FindStringSubmatch(s)
	if m == nil || m[1] == "" {
		return nil, apperrors.NewValidationError("expected >>id or /id with a non-empty id")
	}
	id := normalizeID(m[1])
	if id == "" {
		return nil, apperrors.NewValidationError("prompt id must not be empty")
	}
	var warnings []string
	if id != strings.ToLower(m[1]) {
		warnings = append(warnings, fmt.Sprintf("normalized prompt id %q to %q", m[1], id))
	}
	return &command.Parsed{
		PromptID:   id,
		RawArgs:    strings.TrimSpace(m[2]),
		Steps:      []command.Step{{PromptID: id, RawArgs: strings.TrimSpace(m[2])}},
		Format:     command.FormatSimple,
		Confidence: 0.95,
		Warnings:   warnings,
	}, nil
}

// --- JSON strategy (confidence 0.85) ---

type jsonCommand struct {
	Command string                 `json:"command"`
	Args    map[string]interface{} `json:"args"`
}

func (p *Parser) parseJSON(s string, availablePrompts []string) (*command.Parsed, error) {
	var jc jsonCommand
	if err := json.Unmarshal([]byte(s), &jc); err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, "malformed JSON command", err)
	}
	if jc.Command == "" {
		return nil, apperrors.NewValidationError("JSON command must include a non-empty \"command\" field")
	}
	tail := reserializeArgs(jc.Args)
	inner := strings.TrimSpace(jc.Command)
	if !strings.HasPrefix(inner, ">>") && !strings.HasPrefix(inner, "/") {
		inner = ">>" + inner
	}
	if tail != "" {
		inner = inner + " " + tail
	}
	parsed, err := p.parseSimple(inner)
	if err != nil {
		return nil, err
	}
	parsed.Format = command.FormatJSON
	parsed.Confidence = 0.85
	return parsed, nil
}

// reserializeArgs turns a JSON args map back into `key:"value"` tail tokens
// so the simple strategy's argument surface stays uniform regardless of
// which strategy produced the command.
func reserializeArgs(args map[string]interface{}) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(k)
		sb.WriteByte(':')
		sb.WriteString(strconv.Quote(fmt.Sprintf("%v", args[k])))
	}
	return sb.String()
}
