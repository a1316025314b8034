package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/promptgate/gateway/internal/infrastructure/promptengine"
	apperrors "github.com/promptgate/gateway/pkg/errors"
)

// Renderer turns PauseEnvelopes and errors into terminal output, rendering
// the envelope's markdown (prompt body plus any injected gate guidance)
// through glamour the way a human reviewer reads it.
type Renderer struct {
	glamour *glamour.TermRenderer
}

// NewRenderer creates a Renderer for the given terminal width.
func NewRenderer(width int) *Renderer {
	if width <= 0 {
		width = 80
	}
	r, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	return &Renderer{glamour: r}
}

// RenderEnvelope renders a PauseEnvelope: the markdown body, then a status
// line noting the chain id / step / awaiting gates.
func (r *Renderer) RenderEnvelope(env *promptengine.PauseEnvelope) string {
	if env == nil {
		return ""
	}

	body := r.renderMarkdown(env.RenderedPrompt)

	statusStyle := lipgloss.NewStyle().Foreground(colorDim)
	var statusLine string
	switch {
	case env.Completed:
		statusLine = statusStyle.Render(fmt.Sprintf("[%s]", orDefault(env.Status, "completed")))
	case len(env.AwaitingGates) > 0:
		gateStyle := lipgloss.NewStyle().Foreground(colorYellow)
		statusLine = fmt.Sprintf("%s  %s",
			statusStyle.Render(fmt.Sprintf("[step %d/%d · chain %s]", env.StepNumber, env.TotalSteps, env.ChainID)),
			gateStyle.Render(fmt.Sprintf("awaiting: %s", strings.Join(env.AwaitingGates, ", "))),
		)
	default:
		statusLine = statusStyle.Render(fmt.Sprintf("[step %d/%d · chain %s · %s]", env.StepNumber, env.TotalSteps, env.ChainID, orDefault(env.Status, "in_progress")))
	}

	return body + "\n" + statusLine
}

// RenderError renders an AppError's envelope as a terminal-friendly block.
func (r *Renderer) RenderError(err error) string {
	env := apperrors.ToEnvelope(err)
	iconStyle := lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	msgStyle := lipgloss.NewStyle().Foreground(colorWhite)
	hintStyle := lipgloss.NewStyle().Foreground(colorDim)

	out := fmt.Sprintf("%s %s", iconStyle.Render("✗"), msgStyle.Render(env.Message))
	if len(env.SuggestedActions) > 0 {
		out += "\n" + hintStyle.Render("  try: "+strings.Join(env.SuggestedActions, ", "))
	}
	return out
}

func (r *Renderer) renderMarkdown(md string) string {
	if r.glamour == nil || strings.TrimSpace(md) == "" {
		return md
	}
	out, err := r.glamour.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimSpace(out)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
