package promptengine

import (
	"fmt"
	"sort"
	"strings"
)

// builtinHandlers maps each bare-word built-in command (no `%modifier`,
// no `>>promptId`), routed before the command parser ever sees it (spec
// §4.7 execute algorithm step 1).
var builtinHandlers = map[string]func(*Dispatcher) string{
	"help":        (*Dispatcher).helpText,
	"status":      (*Dispatcher).statusText,
	"listprompts": (*Dispatcher).listPromptsText,
}

// routeBuiltin recognises a handful of bare administrative commands
// before handing anything to the parser. Matching is case-insensitive and
// ignores surrounding whitespace; anything else falls through to C1.
func (d *Dispatcher) routeBuiltin(raw string) (*PauseEnvelope, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	handler, ok := builtinHandlers[key]
	if !ok {
		return nil, false
	}
	return &PauseEnvelope{RenderedPrompt: handler(d), Completed: true, Status: "builtin"}, true
}

func (d *Dispatcher) helpText() string {
	return strings.Join([]string{
		"Commands:",
		"  >>promptId args…            run a single prompt",
		"  >>a --> >>b                 chain prompts in sequence",
		"  %clean|%lean|%guided|%framework|%judge  optional modifier (at most one)",
		"  ::\"criteria\"                inline quick gate",
		"  @FRAMEWORK                   request a specific reasoning framework",
		"",
		"Built-ins: help, status, listprompts",
	}, "\n")
}

func (d *Dispatcher) statusText() string {
	ids := d.prompts.List()
	return fmt.Sprintf("promptgate ready — %d prompt(s) registered", len(ids))
}

func (d *Dispatcher) listPromptsText() string {
	ids := append([]string(nil), d.prompts.List()...)
	sort.Strings(ids)
	if len(ids) == 0 {
		return "no prompts registered"
	}
	return "Registered prompts:\n  " + strings.Join(ids, "\n  ")
}
