// Package cli implements the interactive terminal front-end for the
// prompt engine: a line-oriented REPL built around bufio.Scanner rather
// than a readline library, since the REPL here has no history/completion
// requirements beyond what a scanner already gives it (see DESIGN.md).
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/promptgate/gateway/internal/infrastructure/promptengine"
)

// REPLConfig configures one interactive session.
type REPLConfig struct {
	PromptCount int
	GateCount   int
	PromptsRoot string
	GatesRoot   string
	Width       int
}

// RunREPL drives an interactive execute/resume loop against dispatcher,
// reading lines from in and writing rendered output to out, until the
// user quits or in is exhausted.
func RunREPL(ctx context.Context, dispatcher *promptengine.Dispatcher, cfg REPLConfig, in io.Reader, out io.Writer, logger *zap.Logger) error {
	renderer := NewRenderer(cfg.Width)
	fmt.Fprint(out, RenderBanner(BannerInfo{
		PromptCount: cfg.PromptCount,
		GateCount:   cfg.GateCount,
		PromptsRoot: cfg.PromptsRoot,
		GatesRoot:   cfg.GatesRoot,
	}))

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var chainID string

	prompt := func() {
		p := "> "
		if chainID != "" {
			p = fmt.Sprintf("(%s)> ", chainID)
		}
		fmt.Fprint(out, p)
	}

	prompt()
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			prompt()
			continue
		}

		if slash := ParseSlashCommand(line); slash != nil && isReplMeta(slash.Name) {
			result := ExecuteCommand(slash, chainID, cfg.PromptCount, cfg.GateCount)
			if result.IsQuit {
				return nil
			}
			if result.IsReset {
				chainID = ""
			}
			fmt.Fprintln(out, result.Output)
			prompt()
			continue
		}

		env, err := dispatch(ctx, dispatcher, line, chainID)
		if err != nil {
			fmt.Fprintln(out, renderer.RenderError(err))
			prompt()
			continue
		}

		fmt.Fprintln(out, renderer.RenderEnvelope(env))
		if !env.Completed {
			chainID = env.ChainID
		} else {
			chainID = ""
		}
		prompt()
	}

	if err := scanner.Err(); err != nil {
		logger.Warn("REPL input stream ended with an error", zap.Error(err))
		return err
	}
	return nil
}

// dispatch routes a line to Resume when a chain session is already open,
// Execute otherwise — mirroring how a human operator drives the HTTP
// surface's /execute and /resume endpoints by hand. A bare "retry",
// "skip", or "abort" is sent as gate_action rather than a plain response,
// so an exhausted gate retry budget can be resolved from the REPL.
func dispatch(ctx context.Context, dispatcher *promptengine.Dispatcher, line, chainID string) (*promptengine.PauseEnvelope, error) {
	if chainID == "" {
		return dispatcher.Execute(ctx, promptengine.ExecuteRequest{Command: line})
	}
	switch strings.ToLower(line) {
	case "retry", "skip", "abort":
		return dispatcher.Resume(ctx, promptengine.ResumeRequest{ChainID: chainID, GateAction: strings.ToLower(line)})
	}
	return dispatcher.Resume(ctx, promptengine.ResumeRequest{ChainID: chainID, UserResponse: line})
}

var replMetaCommands = map[string]bool{
	"help": true, "h": true,
	"exit": true, "quit": true, "q": true,
	"new": true, "reset": true,
	"status": true, "s": true,
	"version": true,
}

func isReplMeta(name string) bool {
	return replMetaCommands[name]
}
