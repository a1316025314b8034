package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/promptgate/gateway/internal/infrastructure/promptengine"
)

// Run starts the bubbletea program on the alternate screen and blocks
// until the user quits.
func Run(dispatcher *promptengine.Dispatcher, opts Options) error {
	program := tea.NewProgram(New(dispatcher, opts), tea.WithAltScreen())
	_, err := program.Run()
	return err
}
