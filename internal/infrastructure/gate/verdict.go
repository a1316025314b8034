package gate

import (
	"regexp"
	"strings"
)

// Verdict is a parsed gate review outcome.
type Verdict struct {
	Passed    bool
	Rationale string
}

// explicitVerdictPatterns are the two unambiguous "this is a gate review"
// phrasings that are safe to recognise inside arbitrary free text, since
// they can't be confused with ordinary step output.
var explicitVerdictPatterns = []*regexp.Regexp{
	// "GATE_REVIEW: PASS - rationale" / "GATE_REVIEW: FAIL: rationale"
	regexp.MustCompile(`(?is)^\s*GATE_REVIEW:\s*(PASS|FAIL)\s*[-:]\s*(.*)$`),
	// "GATE PASS - rationale" / "GATE FAIL - rationale"
	regexp.MustCompile(`(?is)^\s*GATE\s+(PASS|FAIL)\s*[-:]\s*(.*)$`),
}

// minimalVerdictPattern is the bare "PASS|FAIL - rationale" form. It's only
// safe for the dedicated gate_verdict field (spec §4.4) — applying it to
// free-form step output would misread ordinary text that happens to start
// with "PASS -" or "FAIL -" as a gate verdict.
var minimalVerdictPattern = regexp.MustCompile(`(?is)^\s*(PASS|FAIL)\s*[-:]\s*(.*)$`)

func matchVerdict(trimmed string, patterns []*regexp.Regexp) (Verdict, bool) {
	for _, re := range patterns {
		m := re.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		rationale := strings.TrimSpace(m[2])
		if rationale == "" {
			return Verdict{}, false
		}
		return Verdict{
			Passed:    strings.EqualFold(m[1], "PASS"),
			Rationale: rationale,
		}, true
	}
	return Verdict{}, false
}

// ParseVerdict extracts a pass/fail decision and rationale from the
// dedicated gate_verdict field (spec §4.4). It tries each accepted
// phrasing, including the bare minimal form, in order of specificity.
func ParseVerdict(text string) (Verdict, bool) {
	trimmed := strings.TrimSpace(text)
	patterns := append(append([]*regexp.Regexp{}, explicitVerdictPatterns...), minimalVerdictPattern)
	return matchVerdict(trimmed, patterns)
}

// ParseVerdictFreeText extracts a pass/fail decision from arbitrary free
// text such as user_response (spec §4.4 "scan user_response for recognised
// forms"). Unlike ParseVerdict, it never applies the bare minimal pattern,
// since step output is free-form and must not be misread as a verdict.
func ParseVerdictFreeText(text string) (Verdict, bool) {
	trimmed := strings.TrimSpace(text)
	return matchVerdict(trimmed, explicitVerdictPatterns)
}
