package promptengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	promptdomain "github.com/promptgate/gateway/internal/domain/prompt"
	scripttooldomain "github.com/promptgate/gateway/internal/domain/scripttool"
	"github.com/promptgate/gateway/internal/infrastructure/chainsession"
	gateinfra "github.com/promptgate/gateway/internal/infrastructure/gate"
	"github.com/promptgate/gateway/internal/infrastructure/parser"
	"github.com/promptgate/gateway/internal/infrastructure/sandbox"
	"github.com/promptgate/gateway/internal/infrastructure/scripttool"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("writing script: %v", err)
	}
	return path
}

func newScriptDispatcher(t *testing.T, tool *scripttooldomain.Definition) *Dispatcher {
	t.Helper()
	records := map[string]*promptdomain.Record{
		"review": {ID: "review", Category: "writing", ScriptTools: []*scripttooldomain.Definition{tool}},
	}
	content := map[string]string{"review": "Review: {{text}}"}
	prompts := &fakePrompts{records: records, content: content}
	gateReg := gateinfra.NewRegistry(&fakeGateSource{})
	sessions := chainsession.New(nil, zap.NewNop())

	return New(Deps{
		Parser:          parser.New(),
		Prompts:         prompts,
		Gates:           gateReg,
		Sessions:        sessions,
		InjectionSource: defaultInjectionSource{},
		ScriptMatcher:   scripttool.NewMatcher(),
		ScriptExecutor:  scripttool.NewExecutor(sandbox.New(zap.NewNop()), nil, zap.NewNop()),
		Confirmations:   scripttool.NewConfirmationTracker(),
		Logger:          zap.NewNop(),
	})
}

// TestExecute_AutoApproveOnValidSkipsConfirmation exercises spec §4.4:
// a confirm=true tool with autoApproveOnValid=true runs first as a
// validator, and a clean {"valid": true} result skips the confirmation
// round-trip entirely.
func TestExecute_AutoApproveOnValidSkipsConfirmation(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "validate.sh", "#!/bin/sh\necho '{\"valid\": true}'\n")

	tool := &scripttooldomain.Definition{
		ID:         "validator",
		Name:       "validator",
		ScriptPath: script,
		Runtime:    scripttooldomain.RuntimeShell,
		Execution: scripttooldomain.ExecutionConfig{
			Trigger:            scripttooldomain.TriggerAlways,
			Confirm:            true,
			AutoApproveOnValid: true,
		},
		Enabled: true,
	}
	d := newScriptDispatcher(t, tool)

	env, err := d.Execute(context.Background(), ExecuteRequest{Command: `>>review text:"hello"`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Status == "awaiting_confirmation" {
		t.Fatalf("expected a clean validator pass to skip confirmation, got %+v", env)
	}
}

// TestExecute_AutoApproveOnValidFallsBackToConfirmationOnFailure covers the
// converse: when the validator run does not return a clean pass, the
// normal confirm-then-resubmit round-trip still applies.
func TestExecute_AutoApproveOnValidFallsBackToConfirmationOnFailure(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "validate.sh", "#!/bin/sh\necho '{\"valid\": false}'\n")

	tool := &scripttooldomain.Definition{
		ID:         "validator",
		Name:       "validator",
		ScriptPath: script,
		Runtime:    scripttooldomain.RuntimeShell,
		Execution: scripttooldomain.ExecutionConfig{
			Trigger:            scripttooldomain.TriggerAlways,
			Confirm:            true,
			AutoApproveOnValid: true,
		},
		Enabled: true,
	}
	d := newScriptDispatcher(t, tool)

	env, err := d.Execute(context.Background(), ExecuteRequest{Command: `>>review text:"hello"`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Status != "awaiting_confirmation" {
		t.Fatalf("expected a failed validation to require confirmation, got %+v", env)
	}
}
