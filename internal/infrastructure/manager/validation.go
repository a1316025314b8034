package manager

import (
	"regexp"

	domain "github.com/promptgate/gateway/internal/domain/manager"
)

// refRe matches a `{{ref:prompt_id}}` token inside an authored prompt body
// (spec §4.8).
var refRe = regexp.MustCompile(`\{\{ref:([a-z0-9_]+)\}\}`)

// extractReferences returns every prompt id referenced in body, in order
// of first appearance, deduplicated.
func extractReferences(body string) []string {
	matches := refRe.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		id := m[1]
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// lookupFunc resolves a prompt id to its current body, for reference
// validation against the rest of the in-memory prompt set.
type lookupFunc func(id string) (body string, ok bool)

// validateReferences rejects a self-reference, a dangling reference
// (strict mode: every `{{ref:x}}` must resolve), or a reference chain that
// cycles back to id — discovered via DFS over the in-memory prompt set
// (spec §4.8, §7 Validation, §8 "Circular reference detection catches
// A→B→C→A"). body is id's own candidate body (not yet necessarily stored,
// since this runs at create/update time); lookup resolves every other
// node in the graph.
func validateReferences(id, body string, lookup lookupFunc) error {
	visited := map[string]bool{id: true}

	var walk func(currentBody string, chain []string) error
	walk = func(currentBody string, chain []string) error {
		for _, ref := range extractReferences(currentBody) {
			nextChain := append(append([]string(nil), chain...), ref)
			if ref == id {
				return &domain.ValidationError{Kind: domain.ValidationCircularReference, Entry: id, Chain: nextChain}
			}
			refBody, ok := lookup(ref)
			if !ok {
				return &domain.ValidationError{Kind: domain.ValidationDanglingReference, Entry: chain[len(chain)-1], Chain: nextChain}
			}
			if visited[ref] {
				continue // already explored this branch without finding a cycle back to id
			}
			visited[ref] = true
			if err := walk(refBody, nextChain); err != nil {
				return err
			}
		}
		return nil
	}

	for _, ref := range extractReferences(body) {
		if ref == id {
			return &domain.ValidationError{Kind: domain.ValidationSelfReference, Entry: id, Chain: []string{id}}
		}
	}

	return walk(body, []string{id})
}
