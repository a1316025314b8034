package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/promptgate/gateway/internal/infrastructure/chainsession"
	"github.com/promptgate/gateway/internal/infrastructure/config"
	gateinfra "github.com/promptgate/gateway/internal/infrastructure/gate"
	"github.com/promptgate/gateway/internal/infrastructure/injection"
	managerinfra "github.com/promptgate/gateway/internal/infrastructure/manager"
	"github.com/promptgate/gateway/internal/infrastructure/parser"
	"github.com/promptgate/gateway/internal/infrastructure/promptengine"
	"github.com/promptgate/gateway/internal/infrastructure/registry"
	"github.com/promptgate/gateway/internal/infrastructure/sandbox"
	"github.com/promptgate/gateway/internal/infrastructure/scripttool"
	httpiface "github.com/promptgate/gateway/internal/interfaces/http"
	"github.com/promptgate/gateway/internal/interfaces/cli"
)

func main() {
	root := cli.NewRootCommand(serve)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// serve wires every collaborator together and runs the HTTP/WebSocket
// transport until SIGINT/SIGTERM, grounded on the teacher's runServe:
// build the application, start it, block on a signal, shut down with a
// bounded grace period.
func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	prompts, err := registry.NewPromptSource(cfg.Paths.PromptsRoot)
	if err != nil {
		return fmt.Errorf("loading prompts: %w", err)
	}
	gateSource, err := registry.NewGateSource(cfg.Paths.GatesRoot)
	if err != nil {
		return fmt.Errorf("loading gates: %w", err)
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

	reloadSource := &registry.ManagerSource{Prompts: prompts, Gates: gateSource}
	mgr := managerinfra.New(reloadSource)
	if err := mgr.Reload(); err != nil {
		log.Warn("initial manager reload failed", zap.Error(err))
	}

	server := httpiface.NewServer(httpiface.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
		Mode: "release",
	}, dispatcher, mgr, sessions, log)

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting HTTP server: %w", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("error during shutdown", zap.Error(err))
		return err
	}

	log.Info("server stopped")
	return nil
}
