package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/promptgate/gateway/internal/infrastructure/chainsession"
	"github.com/promptgate/gateway/internal/infrastructure/config"
	gateinfra "github.com/promptgate/gateway/internal/infrastructure/gate"
	"github.com/promptgate/gateway/internal/infrastructure/injection"
	"github.com/promptgate/gateway/internal/infrastructure/logger"
	"github.com/promptgate/gateway/internal/infrastructure/parser"
	"github.com/promptgate/gateway/internal/infrastructure/promptengine"
	"github.com/promptgate/gateway/internal/infrastructure/registry"
	"github.com/promptgate/gateway/internal/infrastructure/sandbox"
	"github.com/promptgate/gateway/internal/infrastructure/scripttool"
	"github.com/promptgate/gateway/internal/interfaces/tui"
)

const cliName = "promptgate-server"

// ServeFunc starts the HTTP/WebSocket transport; supplied by main so this
// package doesn't import interfaces/http (keeping the CLI ignorant of
// transport wiring beyond its own REPL).
type ServeFunc func(ctx context.Context, cfg *config.Config, log *zap.Logger) error

// NewRootCommand builds the promptgate-server cobra command tree: `serve`
// launches the HTTP surface via serve, `repl` and the bare root both drop
// into the interactive REPL, `validate` loads the authoring trees without
// serving anything, and `version` prints the build version.
func NewRootCommand(serve ServeFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   cliName,
		Short: "promptgate-server — prompt orchestration gateway",
		Long:  "promptgate-server parses orchestration commands, plans multi-step prompt chains, and evaluates quality gates between steps.",
		RunE:  runRepl,
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "start the HTTP + WebSocket transport",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), serve)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "repl",
		Short: "start an interactive REPL against the prompt engine",
		RunE:  runRepl,
	})

	root.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "load the prompts/ and gates/ authoring trees and report errors",
		RunE:  runValidate,
	})

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s v%s\n", cliName, appVersion)
		},
	})

	return root
}

func runServe(ctx context.Context, serve ServeFunc) error {
	log, err := logger.New(logger.Config{Level: "info", Format: "json", OutputPath: "stdout"})
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	return serve(ctx, cfg, log)
}

// runRepl starts the bubbletea TUI (internal/interfaces/tui) when stdout
// is an interactive terminal, and falls back to the plain bufio.Scanner
// REPL otherwise — bubbletea's alt-screen rendering assumes a real tty,
// so piped/scripted invocations (tests, `promptgate-server repl < script`)
// get the scanner loop instead. mattn/go-isatty is already pulled in
// transitively by gin; promoting it to a direct dependency here avoids
// adding golang.org/x/term purely for this one check.
func runRepl(cmd *cobra.Command, args []string) error {
	log, err := logger.New(logger.Config{Level: "error", Format: "console", OutputPath: "stderr"})
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	dispatcher, promptCount, gateCount, err := buildDispatcher(cfg, log)
	if err != nil {
		return fmt.Errorf("initializing prompt engine: %w", err)
	}

	if isatty.IsTerminal(os.Stdout.Fd()) {
		return tui.Run(dispatcher, tui.Options{PromptCount: promptCount, GateCount: gateCount})
	}

	replCfg := REPLConfig{
		PromptCount: promptCount,
		GateCount:   gateCount,
		PromptsRoot: cfg.Paths.PromptsRoot,
		GatesRoot:   cfg.Paths.GatesRoot,
		Width:       80,
	}
	return RunREPL(cmd.Context(), dispatcher, replCfg, os.Stdin, os.Stdout, log)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	prompts, err := registry.NewPromptSource(cfg.Paths.PromptsRoot)
	if err != nil {
		return fmt.Errorf("prompts: %w", err)
	}
	gates, err := registry.NewGateSource(cfg.Paths.GatesRoot)
	if err != nil {
		return fmt.Errorf("gates: %w", err)
	}
	defs, err := gates.All()
	if err != nil {
		return fmt.Errorf("gates: %w", err)
	}

	fmt.Printf("OK: %d prompt(s) under %s, %d gate(s) under %s\n",
		len(prompts.List()), cfg.Paths.PromptsRoot, len(defs), cfg.Paths.GatesRoot)
	return nil
}

// buildDispatcher wires up a Dispatcher from an on-disk config the way
// both `serve` and `repl` need it, returning the loaded prompt/gate counts
// for the REPL banner.
func buildDispatcher(cfg *config.Config, log *zap.Logger) (*promptengine.Dispatcher, int, int, error) {
	prompts, err := registry.NewPromptSource(cfg.Paths.PromptsRoot)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("loading prompts: %w", err)
	}
	gateSource, err := registry.NewGateSource(cfg.Paths.GatesRoot)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("loading gates: %w", err)
	}
	gateDefs, err := gateSource.All()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("loading gates: %w", err)
	}

	gateRegistry := gateinfra.NewRegistry(gateSource)
	sandboxExec := sandbox.New(log)
	executor := scripttool.NewExecutor(sandboxExec, nil, log)

	store := chainsession.NewFileStore(cfg.Paths.RuntimeStateDir)
	sessions := chainsession.New(store, log)

	dispatcher := promptengine.New(promptengine.Deps{
		Parser:          parser.New(),
		Prompts:         prompts,
		Gates:           gateRegistry,
		Sessions:        sessions,
		InjectionSource: injection.EmptySource{},
		InjectionEval:   nil,
		ScriptMatcher:   scripttool.NewMatcher(),
		ScriptExecutor:  executor,
		Confirmations:   scripttool.NewConfirmationTracker(),
		Logger:          log,
	})

	return dispatcher, len(prompts.List()), len(gateDefs), nil
}
