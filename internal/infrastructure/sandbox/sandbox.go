// Package sandbox runs subprocesses with an allow-listed environment,
// group-kill timeout handling, and graceful-then-forced termination.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// EnvAllowList is the fixed set of parent-env variable name prefixes that
// survive into a sandboxed subprocess (spec §4.4).
var EnvAllowList = []string{
	"PATH", "HOME", "USER", "SHELL", "TERM", "TMP", "NODE_", "PYTHON",
	"VIRTUAL_ENV", "LANG", "LC_", "EDITOR", "CI",
}

func allowed(name string) bool {
	for _, prefix := range EnvAllowList {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// FilteredParentEnv returns the parent process environment filtered
// through EnvAllowList.
func FilteredParentEnv() []string {
	var out []string
	for _, kv := range os.Environ() {
		name := kv
		if i := strings.IndexByte(kv, '='); i >= 0 {
			name = kv[:i]
		}
		if allowed(name) {
			out = append(out, kv)
		}
	}
	return out
}

// Spec describes one subprocess invocation.
type Spec struct {
	Path       string
	Args       []string
	WorkDir    string
	Env        []string // full "KEY=value" env, already merged by the caller
	Stdin      []byte
	Timeout    time.Duration
	GraceDelay time.Duration // delay between SIGTERM and SIGKILL, default 1s
}

// Result is a completed (or killed) subprocess outcome.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	Killed   bool
}

// Sandbox runs Specs, logging each invocation.
type Sandbox struct {
	logger *zap.Logger
}

// New creates a Sandbox that logs through logger.
func New(logger *zap.Logger) *Sandbox {
	return &Sandbox{logger: logger}
}

// Run executes spec to completion, respecting ctx cancellation in addition
// to spec.Timeout. On timeout it sends SIGTERM to the process group and
// escalates to SIGKILL after GraceDelay (default 1s) if it hasn't exited.
func (s *Sandbox) Run(ctx context.Context, spec Spec) (*Result, error) {
	start := time.Now()

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	grace := spec.GraceDelay
	if grace <= 0 {
		grace = time.Second
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, spec.Path, spec.Args...)
	cmd.Dir = spec.WorkDir
	cmd.Env = spec.Env
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if len(spec.Stdin) > 0 {
		cmd.Stdin = bytes.NewReader(spec.Stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	s.logger.Debug("executing sandboxed script",
		zap.String("path", spec.Path),
		zap.Strings("args", spec.Args),
		zap.Duration("timeout", timeout))

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-runCtx.Done():
		s.terminateGroup(cmd, syscall.SIGTERM)
		select {
		case waitErr = <-done:
		case <-time.After(grace):
			s.terminateGroup(cmd, syscall.SIGKILL)
			waitErr = <-done
		}
	}

	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if runCtx.Err() == context.DeadlineExceeded {
		result.Killed = true
		result.ExitCode = -1
		s.logger.Warn("sandboxed script timed out", zap.String("path", spec.Path), zap.Duration("timeout", timeout))
		return result, fmt.Errorf("script timed out after %d ms", timeout.Milliseconds())
	}

	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if waitErr != nil {
		return result, waitErr
	}
	result.ExitCode = 0
	return result, nil
}

func (s *Sandbox) terminateGroup(cmd *exec.Cmd, sig syscall.Signal) {
	if cmd.Process == nil {
		return
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		_ = cmd.Process.Signal(sig)
		return
	}
	_ = syscall.Kill(-pgid, sig)
}
