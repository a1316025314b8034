// Package tui implements the bubbletea-based interactive terminal for
// exercising the prompt engine's execute/resume surface by hand — a
// single text input submits a command or chain-session response, and the
// resulting pause envelope (with gate guidance rendered as Markdown) is
// shown in a scrollable viewport.
//
// There's no bubbletea precedent anywhere in the retrieval pack: the
// teacher's own internal/interfaces/tui/tui.go explicitly defers
// bubbletea integration in favor of plain ANSI printf rendering, despite
// carrying bubbletea/bubbles/lipgloss/glamour in its go.mod, and no other
// example repo imports it in source either (only manifest-only go.mod
// entries appear elsewhere in the pack). This file is built directly
// against the standard bubbletea Elm-architecture API (Init/Update/View)
// rather than adapted from any pack source — see DESIGN.md.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/promptgate/gateway/internal/infrastructure/promptengine"
	apperrors "github.com/promptgate/gateway/pkg/errors"
)

var (
	colorCyan  = lipgloss.Color("#00D7FF")
	colorDim   = lipgloss.Color("#6C6C6C")
	colorRed   = lipgloss.Color("#FF5F5F")
	colorGreen = lipgloss.Color("#00FF87")

	headerStyle = lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	footerStyle = lipgloss.NewStyle().Foreground(colorDim)
	errorStyle  = lipgloss.NewStyle().Foreground(colorRed)
	chainStyle  = lipgloss.NewStyle().Foreground(colorGreen)
)

// Options configures the initial display state of the TUI.
type Options struct {
	PromptCount int
	GateCount   int
}

// resultMsg carries a dispatcher call's outcome back into Update.
type resultMsg struct {
	env *promptengine.PauseEnvelope
	err error
}

// Model is the bubbletea Elm-architecture model driving the REPL screen.
type Model struct {
	dispatcher *promptengine.Dispatcher
	glamour    *glamour.TermRenderer

	input    textinput.Model
	viewport viewport.Model

	chainID     string
	promptCount int
	gateCount   int
	lastErr     error
	history     []string

	width, height int
	ready         bool
}

// New builds the initial Model. The caller runs it via
// tea.NewProgram(tui.New(...), tea.WithAltScreen()).Run().
func New(dispatcher *promptengine.Dispatcher, opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = `>>summarize text:"..."`
	ti.Focus()
	ti.CharLimit = 2000
	ti.Width = 78

	gr, _ := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(76))

	return Model{
		dispatcher:  dispatcher,
		glamour:     gr,
		input:       ti,
		promptCount: opts.PromptCount,
		gateCount:   opts.GateCount,
	}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles key presses, window resizes, and dispatcher results.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		headerHeight := 3
		footerHeight := 3
		vpHeight := msg.Height - headerHeight - footerHeight
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.viewport.SetContent(m.welcomeText())
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		m.input.Width = msg.Width - 4
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line == "" {
				return m, nil
			}
			if line == "/exit" || line == "/quit" {
				return m, tea.Quit
			}
			if line == "/new" {
				m.chainID = ""
				m.appendLine(footerStyle.Render("session state cleared"))
				return m, nil
			}
			m.appendLine(lipgloss.NewStyle().Foreground(colorDim).Render("> " + line))
			return m, m.dispatch(line)
		}

	case resultMsg:
		if msg.err != nil {
			m.lastErr = msg.err
			m.appendLine(m.renderError(msg.err))
			return m, nil
		}
		m.lastErr = nil
		if !msg.env.Completed {
			m.chainID = msg.env.ChainID
		} else {
			m.chainID = ""
		}
		m.appendLine(m.renderEnvelope(msg.env))
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// View renders the header, scrollback viewport, and input line.
func (m Model) View() string {
	if !m.ready {
		return "initializing…"
	}

	chain := "(none)"
	if m.chainID != "" {
		chain = m.chainID
	}
	header := headerStyle.Render("promptgate") + "  " +
		footerStyle.Render(fmt.Sprintf("%d prompts · %d gates", m.promptCount, m.gateCount)) +
		"  " + chainStyle.Render("chain: "+chain)

	footer := footerStyle.Render("enter to submit · /new to abandon the session · esc to quit")

	return fmt.Sprintf("%s\n%s\n%s\n%s", header, m.viewport.View(), m.input.View(), footer)
}

func (m *Model) appendLine(s string) {
	m.history = append(m.history, s)
	m.viewport.SetContent(strings.Join(m.history, "\n\n"))
	m.viewport.GotoBottom()
}

func (m Model) welcomeText() string {
	return footerStyle.Render(fmt.Sprintf("%d prompt(s), %d gate(s) loaded. Type a command to begin.", m.promptCount, m.gateCount))
}

// dispatch runs Execute or Resume (depending on whether a chain session
// is open) off the UI goroutine, returning its outcome as a resultMsg.
func (m Model) dispatch(line string) tea.Cmd {
	dispatcher := m.dispatcher
	chainID := m.chainID
	return func() tea.Msg {
		ctx := context.Background()
		if chainID == "" {
			env, err := dispatcher.Execute(ctx, promptengine.ExecuteRequest{Command: line})
			return resultMsg{env: env, err: err}
		}
		switch strings.ToLower(line) {
		case "retry", "skip", "abort":
			env, err := dispatcher.Resume(ctx, promptengine.ResumeRequest{ChainID: chainID, GateAction: strings.ToLower(line)})
			return resultMsg{env: env, err: err}
		}
		env, err := dispatcher.Resume(ctx, promptengine.ResumeRequest{ChainID: chainID, UserResponse: line})
		return resultMsg{env: env, err: err}
	}
}

func (m Model) renderEnvelope(env *promptengine.PauseEnvelope) string {
	body := env.RenderedPrompt
	if m.glamour != nil && strings.TrimSpace(body) != "" {
		if out, err := m.glamour.Render(body); err == nil {
			body = strings.TrimSpace(out)
		}
	}
	status := footerStyle.Render(fmt.Sprintf("[step %d/%d · %s]", env.StepNumber, env.TotalSteps, orDefault(env.Status, "completed")))
	if len(env.AwaitingGates) > 0 {
		status = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD75F")).Render(
			fmt.Sprintf("[step %d/%d] awaiting: %s", env.StepNumber, env.TotalSteps, strings.Join(env.AwaitingGates, ", ")))
	}
	return body + "\n" + status
}

func (m Model) renderError(err error) string {
	env := apperrors.ToEnvelope(err)
	out := errorStyle.Render("✗ " + env.Message)
	if len(env.SuggestedActions) > 0 {
		out += "\n" + footerStyle.Render("try: "+strings.Join(env.SuggestedActions, ", "))
	}
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
