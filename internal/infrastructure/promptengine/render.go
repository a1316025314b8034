package promptengine

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	injectiondomain "github.com/promptgate/gateway/internal/domain/injection"
	promptdomain "github.com/promptgate/gateway/internal/domain/prompt"
)

// placeholderRe matches a bare `{{key}}` template placeholder. `\w+` never
// matches the colon in `{{ref:id}}`, so authoring-time reference tokens
// pass through untouched.
var placeholderRe = regexp.MustCompile(`\{\{(\w+)\}\}`)

// interpolate substitutes every `{{key}}` placeholder in content with its
// matching extracted input (spec §8 end-to-end scenario 1: template
// `Summarize: {{text}}` plus `text:"hello"` renders `Summarize: hello`).
// A placeholder with no matching input is left untouched — it is either a
// `{{ref:...}}` authoring token (resolved by C8, not here) or a typo the
// caller should notice in the rendered output rather than have silently
// erased.
func interpolate(content string, inputs map[string]interface{}) string {
	if len(inputs) == 0 {
		return content
	}
	return placeholderRe.ReplaceAllStringFunc(content, func(token string) string {
		key := token[2 : len(token)-2]
		val, ok := inputs[key]
		if !ok {
			return token
		}
		return fmt.Sprintf("%v", val)
	})
}

// renderContent assembles the final step text from the authored template,
// the resolved injection decisions, and any script tool output (spec
// §4.7: "render the step content with injected system-prompt/style/gate-
// guidance").
func renderContent(content string, decisions map[injectiondomain.Type]injectiondomain.Decision, rec *promptdomain.Record, scriptOutput map[string]interface{}, guidance string) string {
	var sb strings.Builder

	if decisions[injectiondomain.TypeSystemPrompt].Inject {
		if rec.SystemMessage != "" {
			sb.WriteString(rec.SystemMessage)
			sb.WriteString("\n\n")
		} else {
			sb.WriteString(fmt.Sprintf("[system: category=%s]\n\n", rec.Category))
		}
	}

	sb.WriteString(content)

	if len(scriptOutput) > 0 {
		sb.WriteString("\n\n---\nScript tool output:\n")
		sb.WriteString(formatScriptOutput(scriptOutput))
	}

	if decisions[injectiondomain.TypeStyleGuidance].Inject {
		sb.WriteString("\n\n[style guidance applies]")
	}

	if guidance != "" {
		sb.WriteString("\n\n---\nGate guidance:\n")
		sb.WriteString(guidance)
	}

	return sb.String()
}

func formatScriptOutput(out map[string]interface{}) string {
	keys := make([]string, 0, len(out))
	for k := range out {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = fmt.Sprintf("%s: %v", k, out[k])
	}
	return strings.Join(lines, "\n")
}

// gateReviewPrompt builds the text asking the LLM to review a step's
// output against the active gate set (spec §4.3/§4.7).
func gateReviewPrompt(guidance string) string {
	var sb strings.Builder
	sb.WriteString("Review the previous step's output against the following gate(s):\n\n")
	sb.WriteString(guidance)
	sb.WriteString("\n\nRespond with gate_verdict: \"PASS - rationale\" or \"FAIL - rationale\".")
	return sb.String()
}

// retryPrompt re-emits a step with improvement hints after a FAIL verdict
// still within the retry budget (spec §4.3, §4.7).
func retryPrompt(rationale string, hints []string) string {
	var sb strings.Builder
	sb.WriteString("Gate review failed: ")
	sb.WriteString(rationale)
	if len(hints) > 0 {
		sb.WriteString("\n\nImprovement hints:\n")
		lines := make([]string, len(hints))
		for i, h := range hints {
			lines[i] = fmt.Sprintf("- %s", h)
		}
		sb.WriteString(strings.Join(lines, "\n"))
	}
	sb.WriteString("\n\nRevise and resubmit as user_response.")
	return sb.String()
}

// gateActionPrompt asks the caller to choose retry/skip/abort once a
// gate's retry budget is exhausted (spec §4.7 example 5).
func gateActionPrompt(rationale string) string {
	return fmt.Sprintf("Gate review failed and the retry budget is exhausted (%s). Resume with gate_action: \"retry\" (reset budget), \"skip\" (advance anyway), or \"abort\" (end the run).", rationale)
}
