package gate

import (
	"bytes"

	"github.com/yuin/goldmark"
)

// RenderGuidanceMarkdown renders a gate's guidance file contents to plain
// HTML for display in the interactive REPL and HTTP surfaces. Rendering
// failures fall back to the raw source rather than erroring the whole
// gate evaluation (spec §4.3: guidance is advisory, never fatal).
func RenderGuidanceMarkdown(source string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(source), &buf); err != nil {
		return source
	}
	return buf.String()
}
