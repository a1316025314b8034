package promptengine

import "regexp"

// keyValueRe matches `key:"quoted value"` or `key:bareword` pairs inside a
// step's raw argument text, the same surface script tool schemas validate
// against (spec §4.4 example: `file:"x.csv"`).
var keyValueRe = regexp.MustCompile(`(\w+):(?:"([^"]*)"|(\S+))`)

// extractInputs pulls every `key:value`/`key:"value"` pair out of rawArgs
// into a flat map, the shape the script tool matcher's schema_match
// trigger validates against.
func extractInputs(rawArgs string) map[string]interface{} {
	matches := keyValueRe.FindAllStringSubmatch(rawArgs, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(matches))
	for _, m := range matches {
		key := m[1]
		val := m[2]
		if val == "" {
			val = m[3]
		}
		out[key] = val
	}
	return out
}
