package scripttool

import (
	"testing"

	domaintool "github.com/promptgate/gateway/internal/domain/scripttool"
)

func TestMergeEnv_LaterLayersWin(t *testing.T) {
	base := []string{"PATH=/usr/bin", "HOME=/root"}
	merged := mergeEnv(base, map[string]string{"HOME": "/override"}, map[string]string{"EXTRA": "1"})

	got := map[string]string{}
	for _, kv := range merged {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				got[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	if got["HOME"] != "/override" {
		t.Errorf("expected HOME overridden, got %q", got["HOME"])
	}
	if got["EXTRA"] != "1" {
		t.Errorf("expected EXTRA layered in, got %q", got["EXTRA"])
	}
	if got["PATH"] != "/usr/bin" {
		t.Errorf("expected PATH preserved, got %q", got["PATH"])
	}
}

func TestIsValidatorPass(t *testing.T) {
	pass := &domaintool.Result{Success: true, Output: map[string]interface{}{"valid": true}}
	if !IsValidatorPass(pass) {
		t.Error("expected validator pass")
	}

	withWarnings := &domaintool.Result{Success: true, Output: map[string]interface{}{
		"valid": true, "warnings": []interface{}{"be careful"},
	}}
	if IsValidatorPass(withWarnings) {
		t.Error("expected warnings to block auto-approval")
	}

	failed := &domaintool.Result{Success: false}
	if IsValidatorPass(failed) {
		t.Error("expected failed run to never auto-approve")
	}
}

func TestRuntimeBinaryResolution(t *testing.T) {
	cases := map[domaintool.Runtime]string{
		domaintool.RuntimePython: "python3",
		domaintool.RuntimeNode:   "node",
		domaintool.RuntimeShell:  "bash",
		domaintool.RuntimeAuto:   "bash",
	}
	for rt, want := range cases {
		if got := runtimeBinary(rt); got != want {
			t.Errorf("runtimeBinary(%s) = %s, want %s", rt, got, want)
		}
	}
}
