package cli

import (
	"fmt"
	"runtime"

	"github.com/charmbracelet/lipgloss"
)

const appVersion = "0.1.0"

var (
	colorCyan   = lipgloss.Color("#00D7FF")
	colorDim    = lipgloss.Color("#6C6C6C")
	colorWhite  = lipgloss.Color("#FFFFFF")
	colorGreen  = lipgloss.Color("#00FF87")
	colorYellow = lipgloss.Color("#FFD75F")
	colorRed    = lipgloss.Color("#FF5F5F")
)

var logoLines = []string{
	" ____                            _    ____       _       ",
	"|  _ \\ _ __ ___  _ __ ___  _ __ | |_ / ___| __ _| |_ ___ ",
	"| |_) | '__/ _ \\| '_ ` _ \\| '_ \\| __| |  _ / _` | __/ _ \\",
	"|  __/| | | (_) | | | | | | |_) | |_| |_| | (_| | ||  __/",
	"|_|   |_|  \\___/|_| |_| |_| .__/ \\__|\\____|\\__,_|\\__\\___|",
	"                          |_|                             ",
}

// BannerInfo carries the dynamic stats shown in the welcome banner.
type BannerInfo struct {
	PromptCount int
	GateCount   int
	PromptsRoot string
	GatesRoot   string
}

// RenderBanner returns the styled welcome banner printed once a REPL
// session starts.
func RenderBanner(info BannerInfo) string {
	labelStyle := lipgloss.NewStyle().Foreground(colorDim)
	greenStyle := lipgloss.NewStyle().Foreground(colorGreen)
	tipStyle := lipgloss.NewStyle().Foreground(colorDim)
	versionStyle := lipgloss.NewStyle().Foreground(colorCyan)

	var logo string
	for _, line := range logoLines {
		logo += lipgloss.NewStyle().Foreground(colorCyan).Bold(true).Render(line) + "\n"
	}

	ver := versionStyle.Render(fmt.Sprintf("  v%s", appVersion))

	promptsLine := fmt.Sprintf("  %s %s",
		labelStyle.Render("Prompts"),
		greenStyle.Render(fmt.Sprintf("%d loaded from %s", info.PromptCount, info.PromptsRoot)),
	)
	gatesLine := fmt.Sprintf("  %s %s",
		labelStyle.Render("Gates  "),
		greenStyle.Render(fmt.Sprintf("%d loaded from %s", info.GateCount, info.GatesRoot)),
	)
	envLine := fmt.Sprintf("  %s %s/%s",
		labelStyle.Render("Env    "),
		labelStyle.Render(runtime.GOOS),
		labelStyle.Render(runtime.GOARCH),
	)

	tips := tipStyle.Render("  Type a command (e.g. >>summarize text:\"...\") · /help · Ctrl+C to quit")

	return fmt.Sprintf("\n%s%s\n\n%s\n%s\n%s\n\n%s\n",
		logo, ver,
		promptsLine, gatesLine, envLine,
		tips,
	)
}
