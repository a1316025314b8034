package parser

import (
	"testing"

	"github.com/promptgate/gateway/internal/domain/command"
	apperrors "github.com/promptgate/gateway/pkg/errors"
)

func TestParse_SimplePrompt(t *testing.T) {
	p := New()
	parsed, err := p.Parse(`>>summarize text:"hello"`, []string{"summarize"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.PromptID != "summarize" {
		t.Errorf("expected prompt id summarize, got %q", parsed.PromptID)
	}
	if parsed.CommandType != command.TypeSingle {
		t.Errorf("expected single command type, got %s", parsed.CommandType)
	}
	if parsed.Metadata.OriginalCommand != `>>summarize text:"hello"` {
		t.Errorf("originalCommand mismatch: %q", parsed.Metadata.OriginalCommand)
	}
}

func TestParse_ChainWithGate(t *testing.T) {
	p := New()
	parsed, err := p.Parse(`>>a --> >>b :: "cite sources"`, []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.CommandType != command.TypeChain {
		t.Fatalf("expected chain command type, got %s", parsed.CommandType)
	}
	if len(parsed.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(parsed.Steps))
	}
	if parsed.Steps[0].PromptID != "a" || parsed.Steps[1].PromptID != "b" {
		t.Errorf("unexpected step ids: %+v", parsed.Steps)
	}
	gates := parsed.OperatorsOf(command.OperatorGate)
	if len(gates) != 1 || gates[0].Value != "cite sources" {
		t.Errorf("expected one gate operator with cite sources, got %+v", gates)
	}
}

func TestParse_FrameworkAndClean(t *testing.T) {
	p := New()
	parsed, err := p.Parse(`%clean @CAGEERF >>analyze`, []string{"analyze"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Modifier != command.ModifierClean {
		t.Errorf("expected clean modifier, got %s", parsed.Modifier)
	}
	if parsed.FrameworkID() != "CAGEERF" {
		t.Errorf("expected framework CAGEERF, got %s", parsed.FrameworkID())
	}
}

func TestParse_MultipleModifiersRejected(t *testing.T) {
	p := New()
	_, err := p.Parse(`%clean %lean >>a`, []string{"a"})
	if err == nil {
		t.Fatal("expected error for multiple modifiers")
	}
	if !apperrors.IsKind(err, apperrors.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestParse_EmptyCommandRejected(t *testing.T) {
	p := New()
	_, err := p.Parse("   ", nil)
	if err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestParse_EmptyIDRejected(t *testing.T) {
	p := New()
	_, err := p.Parse(">>  ", nil)
	if err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestParse_ChainStepMissingChevronRejected(t *testing.T) {
	p := New()
	_, err := p.Parse(`>>a --> b`, []string{"a", "b"})
	if err == nil {
		t.Fatal("expected error for chain step lacking >>/ prefix")
	}
}

func TestParse_UnknownPromptSuggestsCandidates(t *testing.T) {
	p := New()
	_, err := p.Parse(">>analiyse", []string{"analyze", "analyst", "report"})
	if err == nil {
		t.Fatal("expected unknown prompt error")
	}
	if !apperrors.IsKind(err, apperrors.KindUnknownPrompt) {
		t.Fatalf("expected unknown prompt error, got %v", err)
	}
}

func TestParse_JSONStrategy(t *testing.T) {
	p := New()
	parsed, err := p.Parse(`{"command": "summarize", "args": {"text": "hi"}}`, []string{"summarize"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Format != command.FormatJSON {
		t.Errorf("expected json format, got %s", parsed.Format)
	}
	if parsed.PromptID != "summarize" {
		t.Errorf("expected summarize, got %s", parsed.PromptID)
	}
}

func TestParse_ChainOperatorImpliesChainType(t *testing.T) {
	p := New()
	parsed, err := p.Parse(`>>a --> >>b`, []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.CommandType != command.TypeChain {
		t.Errorf("expected chain type")
	}
	if !parsed.HasOperator(command.OperatorChain) {
		t.Errorf("expected chain operator recorded")
	}
}

func TestNormalizeID(t *testing.T) {
	cases := map[string]string{
		"My Prompt-thing": "my_prompt_thing",
		"already_ok":       "already_ok",
		"  spaced  out  ":  "spaced_out",
	}
	for in, want := range cases {
		if got := normalizeID(in); got != want {
			t.Errorf("normalizeID(%q) = %q, want %q", in, got, want)
		}
	}
}
