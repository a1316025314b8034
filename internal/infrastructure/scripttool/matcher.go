// Package scripttool implements the script tool subsystem (C4): matching a
// declared tool against extracted inputs, the confirmation tracker, and
// sandboxed execution.
package scripttool

import (
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	domaintool "github.com/promptgate/gateway/internal/domain/scripttool"
)

// Match describes which declared tool (if any) matched a request, plus the
// normalised inputs it matched against.
type Match struct {
	Tool   *domaintool.Definition
	Inputs map[string]interface{}
}

// Matcher selects the script tool to run for a prompt's declared tools and
// a request's raw args/extracted inputs (spec §4.4).
type Matcher struct{}

// NewMatcher returns a Matcher.
func NewMatcher() *Matcher {
	return &Matcher{}
}

// Match evaluates tools in declaration order, returning the first one whose
// trigger is satisfied. rawArgs is the prompt's raw argument string (used
// for explicit `tool:<id>` detection); inputs is the prompt's extracted,
// normalised argument map.
func (m *Matcher) Match(tools []*domaintool.Definition, rawArgs string, inputs map[string]interface{}) (*Match, error) {
	explicitID, hasExplicit := explicitToolID(rawArgs)
	cleaned := cleanInputs(inputs, tools)

	for _, tool := range tools {
		if !tool.Enabled || tool.Execution.Trigger == domaintool.TriggerNever {
			continue
		}
		switch tool.Execution.Trigger {
		case domaintool.TriggerAlways:
			return &Match{Tool: tool, Inputs: cleaned}, nil
		case domaintool.TriggerExplicit:
			if hasExplicit && explicitID == tool.ID {
				return &Match{Tool: tool, Inputs: cleaned}, nil
			}
		case domaintool.TriggerSchemaMatch:
			ok, err := schemaMatches(tool, cleaned)
			if err != nil {
				return nil, err
			}
			if ok {
				return &Match{Tool: tool, Inputs: cleaned}, nil
			}
		}
	}
	return nil, nil
}

// explicitToolID extracts the id following a `tool:<id>` token in rawArgs.
func explicitToolID(rawArgs string) (string, bool) {
	idx := strings.Index(rawArgs, "tool:")
	if idx < 0 {
		return "", false
	}
	rest := rawArgs[idx+len("tool:"):]
	end := strings.IndexAny(rest, " \t\n")
	if end >= 0 {
		rest = rest[:end]
	}
	rest = strings.Trim(rest, `"'`)
	return rest, rest != ""
}

// cleanInputs drops every blank string input and parses any string that
// looks like a JSON array or object into its decoded value (spec §4.4).
// The tools' schemas are not consulted: both rules apply to every field,
// whatever its declared type and whether or not it is required.
func cleanInputs(inputs map[string]interface{}, tools []*domaintool.Definition) map[string]interface{} {
	if len(inputs) == 0 {
		return inputs
	}
	out := make(map[string]interface{}, len(inputs))
	for k, v := range inputs {
		s, isString := v.(string)
		if !isString {
			out[k] = v
			continue
		}
		trimmed := strings.TrimSpace(s)
		if trimmed == "" {
			// Blank strings are dropped entirely, whatever the field;
			// required-field emptiness is caught by schema validation.
			continue
		}
		if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
			var parsed interface{}
			if json.Unmarshal([]byte(trimmed), &parsed) == nil {
				out[k] = parsed
				continue
			}
		}
		out[k] = s
	}
	return out
}

// schemaMatches validates inputs against tool's JSON Schema. Under
// strict=false, a match requires at least one required property present
// and individually valid; under strict=true, every required property must
// be present and the whole document must validate.
func schemaMatches(tool *domaintool.Definition, inputs map[string]interface{}) (bool, error) {
	if len(tool.InputSchema) == 0 {
		return true, nil
	}
	raw, err := json.Marshal(tool.InputSchema)
	if err != nil {
		return false, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(tool.ID, strings.NewReader(string(raw))); err != nil {
		return false, err
	}
	schema, err := compiler.Compile(tool.ID)
	if err != nil {
		return false, err
	}

	required := requiredProperties(tool.InputSchema)

	if tool.Execution.Strict {
		if len(required) == 0 {
			return schema.Validate(toAny(inputs)) == nil, nil
		}
		for _, req := range required {
			if _, ok := inputs[req]; !ok {
				return false, nil
			}
		}
		return schema.Validate(toAny(inputs)) == nil, nil
	}

	if len(required) == 0 {
		return schema.Validate(toAny(inputs)) == nil, nil
	}
	for _, req := range required {
		value, ok := inputs[req]
		if !ok {
			continue
		}
		if validateProperty(tool.InputSchema, req, value) {
			return true, nil
		}
	}
	return false, nil
}

func requiredProperties(schemaDoc map[string]interface{}) []string {
	raw, ok := schemaDoc["required"].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// validateProperty compiles field's own subschema in isolation and
// validates value against it, so a relaxed match never fails on other
// required properties being absent.
func validateProperty(schemaDoc map[string]interface{}, field string, value interface{}) bool {
	props, ok := schemaDoc["properties"].(map[string]interface{})
	if !ok {
		return true
	}
	propSchema, ok := props[field]
	if !ok {
		return true
	}
	raw, err := json.Marshal(propSchema)
	if err != nil {
		return false
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(field, strings.NewReader(string(raw))); err != nil {
		return false
	}
	schema, err := compiler.Compile(field)
	if err != nil {
		return false
	}
	return schema.Validate(value) == nil
}

func toAny(m map[string]interface{}) interface{} {
	return map[string]interface{}(m)
}
