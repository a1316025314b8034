package sandbox

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRun_CompletesAndCapturesOutput(t *testing.T) {
	sb := New(zap.NewNop())
	result, err := sb.Run(context.Background(), Spec{
		Path: "/bin/sh",
		Args: []string{"-c", "echo hello"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 0 || !strings.Contains(result.Stdout, "hello") {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestRun_TimeoutReportsConfiguredDurationInMilliseconds(t *testing.T) {
	sb := New(zap.NewNop())
	result, err := sb.Run(context.Background(), Spec{
		Path:       "/bin/sh",
		Args:       []string{"-c", "sleep 5"},
		Timeout:    50 * time.Millisecond,
		GraceDelay: 10 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if !result.Killed {
		t.Error("expected the result to report Killed=true")
	}
	if err.Error() != "script timed out after 50 ms" {
		t.Errorf("expected the spec-mandated timeout message, got %q", err.Error())
	}
}
