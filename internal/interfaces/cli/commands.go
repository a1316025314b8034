package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// SlashCommand is a parsed `/name arg...` REPL command, distinct from the
// `>>prompt_id key:"value"` commands the engine itself parses.
type SlashCommand struct {
	Name string
	Args []string
}

// ParseSlashCommand parses a slash command from a line of REPL input, or
// returns nil if the line isn't one (so the caller falls through to
// treating it as an engine command).
func ParseSlashCommand(input string) *SlashCommand {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return nil
	}
	parts := strings.Fields(input)
	name := strings.TrimPrefix(parts[0], "/")
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	return &SlashCommand{Name: name, Args: args}
}

// CommandResult is what executing a slash command produces.
type CommandResult struct {
	Output  string
	IsQuit  bool
	IsReset bool // abandon the current chain session, if any
}

// ExecuteCommand handles a parsed slash command against the REPL's
// current display state (current chain id, prompt/gate counts).
func ExecuteCommand(cmd *SlashCommand, chainID string, promptCount, gateCount int) CommandResult {
	switch cmd.Name {
	case "help", "h":
		return CommandResult{Output: renderHelp()}
	case "exit", "quit", "q":
		return CommandResult{IsQuit: true}
	case "new", "reset":
		return CommandResult{Output: "session state cleared", IsReset: true}
	case "status", "s":
		return CommandResult{Output: renderStatus(chainID, promptCount, gateCount)}
	case "version":
		return CommandResult{Output: fmt.Sprintf("promptgate v%s", appVersion)}
	default:
		return CommandResult{Output: fmt.Sprintf("unknown command: /%s  (try /help)", cmd.Name)}
	}
}

func renderHelp() string {
	titleStyle := lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	cmdStyle := lipgloss.NewStyle().Foreground(colorGreen)
	descStyle := lipgloss.NewStyle().Foreground(colorDim)

	cmds := []struct{ name, desc string }{
		{"/help", "show this help"},
		{"/status", "show the active chain id and loaded prompt/gate counts"},
		{"/new", "abandon the active chain session"},
		{"/version", "print the version"},
		{"/exit", "quit"},
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Available commands"))
	sb.WriteString("\n\n")
	for _, c := range cmds {
		sb.WriteString(fmt.Sprintf("  %s  %s\n",
			cmdStyle.Render(fmt.Sprintf("%-12s", c.name)),
			descStyle.Render(c.desc),
		))
	}
	sb.WriteString("\nAnything else is parsed as an engine command, e.g.:\n")
	sb.WriteString(descStyle.Render("  @CAGEERF >>summarize text:\"...\"\n"))
	return sb.String()
}

func renderStatus(chainID string, promptCount, gateCount int) string {
	titleStyle := lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(colorDim)
	valueStyle := lipgloss.NewStyle().Foreground(colorWhite)

	active := chainID
	if active == "" {
		active = "(none)"
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Status"))
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("  %s %s\n", labelStyle.Render("Chain id:"), valueStyle.Render(active)))
	sb.WriteString(fmt.Sprintf("  %s %d\n", labelStyle.Render("Prompts: "), promptCount))
	sb.WriteString(fmt.Sprintf("  %s %d\n", labelStyle.Render("Gates:   "), gateCount))
	return sb.String()
}
