package scripttool

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	domaintool "github.com/promptgate/gateway/internal/domain/scripttool"
	"github.com/promptgate/gateway/internal/infrastructure/sandbox"
)

// Executor runs matched script tools inside the sandbox and normalises
// their output (spec §4.4).
type Executor struct {
	sandbox *sandbox.Sandbox
	baseEnv map[string]string
	logger  *zap.Logger
}

// NewExecutor builds an Executor. baseEnv is the executor's own base
// environment layered between the allow-listed parent env and any
// tool/request-declared env (spec §4.4 layer b).
func NewExecutor(sb *sandbox.Sandbox, baseEnv map[string]string, logger *zap.Logger) *Executor {
	return &Executor{sandbox: sb, baseEnv: baseEnv, logger: logger}
}

func runtimeBinary(rt domaintool.Runtime) string {
	switch rt {
	case domaintool.RuntimePython:
		return "python3"
	case domaintool.RuntimeNode:
		return "node"
	case domaintool.RuntimeShell:
		return "bash"
	default:
		return "bash"
	}
}

// Run executes tool with inputs, layering env per spec §4.4 and honoring
// the resolved timeout.
func (e *Executor) Run(ctx context.Context, tool *domaintool.Definition, promptID string, inputs map[string]interface{}, requestEnv map[string]string, requestedTimeoutMS int) (*domaintool.Result, error) {
	workDir := filepath.Dir(tool.ScriptPath)
	if tool.WorkingDir != "" {
		workDir = filepath.Join(workDir, tool.WorkingDir)
	}

	env := mergeEnv(
		sandbox.FilteredParentEnv(),
		e.baseEnv,
		tool.Env,
		requestEnv,
		map[string]string{
			"SCRIPT_TOOL_ID":   tool.ID,
			"SCRIPT_PROMPT_ID": promptID,
			"SCRIPT_TOOL_DIR":  filepath.Dir(tool.ScriptPath),
		},
	)

	stdin, err := json.Marshal(inputs)
	if err != nil {
		return nil, fmt.Errorf("marshal script tool inputs: %w", err)
	}

	runtimeBin := runtimeBinary(tool.ResolveRuntime())
	spec := sandbox.Spec{
		Path:    runtimeBin,
		Args:    []string{tool.ScriptPath},
		WorkDir: workDir,
		Env:     env,
		Stdin:   stdin,
		Timeout: tool.EffectiveTimeout(requestedTimeoutMS),
	}

	raw, runErr := e.sandbox.Run(ctx, spec)
	if raw == nil {
		return nil, runErr
	}

	result := &domaintool.Result{
		Stdout:     raw.Stdout,
		Stderr:     raw.Stderr,
		ExitCode:   raw.ExitCode,
		DurationMS: raw.Duration.Milliseconds(),
	}
	if runErr != nil {
		result.Error = runErr.Error()
	}
	result.Success = result.ExitCode == 0 && runErr == nil

	var parsed interface{}
	if jsonErr := json.Unmarshal([]byte(strings.TrimSpace(raw.Stdout)), &parsed); jsonErr == nil {
		result.Output = parsed
	} else {
		result.Output = map[string]interface{}{"output": raw.Stdout}
	}
	return result, nil
}

// IsValidatorPass reports whether a validator run's output matches
// {"valid": true} with no warnings (spec §4.4 autoApproveOnValid).
func IsValidatorPass(result *domaintool.Result) bool {
	if result == nil || !result.Success {
		return false
	}
	doc, ok := result.Output.(map[string]interface{})
	if !ok {
		return false
	}
	valid, _ := doc["valid"].(bool)
	if !valid {
		return false
	}
	if warnings, ok := doc["warnings"].([]interface{}); ok && len(warnings) > 0 {
		return false
	}
	return true
}

// mergeEnv layers environment maps/slices in order, later entries winning
// on key collision, and returns a deterministically sorted "KEY=value"
// slice.
func mergeEnv(base []string, layers ...map[string]string) []string {
	merged := make(map[string]string, len(base))
	for _, kv := range base {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			merged[kv[:i]] = kv[i+1:]
		}
	}
	for _, layer := range layers {
		for k, v := range layer {
			merged[k] = v
		}
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k + "=" + merged[k]
	}
	return out
}
