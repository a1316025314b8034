package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	gatedomain "github.com/promptgate/gateway/internal/domain/gate"
	promptdomain "github.com/promptgate/gateway/internal/domain/prompt"
	"github.com/promptgate/gateway/internal/infrastructure/chainsession"
	gateinfra "github.com/promptgate/gateway/internal/infrastructure/gate"
	"github.com/promptgate/gateway/internal/infrastructure/parser"
	"github.com/promptgate/gateway/internal/infrastructure/promptengine"
)

type fakePrompts struct {
	records map[string]*promptdomain.Record
	content map[string]string
}

func (f *fakePrompts) Get(id string) (*promptdomain.Record, bool) {
	r, ok := f.records[id]
	return r, ok
}
func (f *fakePrompts) List() []string {
	ids := make([]string, 0, len(f.records))
	for id := range f.records {
		ids = append(ids, id)
	}
	return ids
}
func (f *fakePrompts) Content(id string) (string, error) { return f.content[id], nil }

type emptyGateSource struct{}

func (emptyGateSource) All() ([]*gatedomain.Definition, error)       { return nil, nil }
func (emptyGateSource) ReadGuidanceFile(path string) (string, error) { return "", nil }

func newTestDispatcher(t *testing.T) *promptengine.Dispatcher {
	t.Helper()
	prompts := &fakePrompts{
		records: map[string]*promptdomain.Record{"summarize": {ID: "summarize", Category: "writing"}},
		content: map[string]string{"summarize": "Summarize: {{text}}"},
	}
	gateReg := gateinfra.NewRegistry(emptyGateSource{})
	sessions := chainsession.New(nil, zap.NewNop())
	return promptengine.New(promptengine.Deps{
		Parser:   parser.New(),
		Prompts:  prompts,
		Gates:    gateReg,
		Sessions: sessions,
		Logger:   zap.NewNop(),
	})
}

func readyModel(t *testing.T, dispatcher *promptengine.Dispatcher) Model {
	t.Helper()
	m := New(dispatcher, Options{PromptCount: 1, GateCount: 0})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return updated.(Model)
}

func TestModel_SubmitRendersResult(t *testing.T) {
	m := readyModel(t, newTestDispatcher(t))
	m.input.SetValue(`>>summarize text:"hi"`)

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	if cmd == nil {
		t.Fatal("expected a dispatch command")
	}

	msg := cmd()
	updated, _ = m.Update(msg)
	m = updated.(Model)

	if !strings.Contains(m.View(), "Summarize: hi") {
		t.Errorf("expected rendered prompt in view, got %q", m.View())
	}
}

func TestModel_UnknownPromptShowsError(t *testing.T) {
	m := readyModel(t, newTestDispatcher(t))
	m.input.SetValue(">>missing")

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	msg := cmd()
	updated, _ = m.Update(msg)
	m = updated.(Model)

	if !strings.Contains(m.View(), "✗") {
		t.Errorf("expected an error marker in view, got %q", m.View())
	}
}

func TestModel_CtrlCQuits(t *testing.T) {
	m := readyModel(t, newTestDispatcher(t))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected a Quit command")
	}
}

func TestModel_NewClearsChainID(t *testing.T) {
	m := readyModel(t, newTestDispatcher(t))
	m.chainID = "chain-1"
	m.input.SetValue("/new")

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)

	if m.chainID != "" {
		t.Errorf("expected chainID to be cleared, got %q", m.chainID)
	}
}
