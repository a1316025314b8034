package registry

// promptYAML is the on-disk shape of prompts/{category}/{id}/prompt.yaml
// (spec §6 on-disk layout).
type promptYAML struct {
	ID                     string             `yaml:"id"`
	Category               string             `yaml:"category"`
	Chain                  []chainStepYAML    `yaml:"chain,omitempty"`
	FrameworkRecommendation *frameworkRecYAML `yaml:"framework_recommendation,omitempty"`
	ExplicitGateIDs        []string           `yaml:"explicit_gate_ids,omitempty"`
	Tools                  []string           `yaml:"tools,omitempty"` // tool ids, each under tools/{toolId}/
}

type chainStepYAML struct {
	PromptID     string   `yaml:"prompt_id"`
	ApplyToSteps []string `yaml:"apply_to_steps,omitempty"`
}

type frameworkRecYAML struct {
	FrameworkID string  `yaml:"framework_id"`
	Confidence  float64 `yaml:"confidence"`
}

// toolYAML is the on-disk shape of tools/{toolId}/tool.yaml.
type toolYAML struct {
	ID         string            `yaml:"id"`
	Name       string            `yaml:"name"`
	ScriptPath string            `yaml:"script_path"`
	Runtime    string            `yaml:"runtime"`
	Execution  executionYAML     `yaml:"execution"`
	TimeoutMS  int               `yaml:"timeout_ms"`
	Env        map[string]string `yaml:"env,omitempty"`
	WorkingDir string            `yaml:"working_dir,omitempty"`
	Enabled    bool              `yaml:"enabled"`
}

type executionYAML struct {
	Trigger            string `yaml:"trigger"`
	Confirm            bool   `yaml:"confirm"`
	Strict             bool   `yaml:"strict"`
	ConfirmMessage     string `yaml:"confirm_message,omitempty"`
	AutoApproveOnValid bool   `yaml:"auto_approve_on_valid"`
}

// gateYAML is the on-disk shape of gates/{id}/gate.yaml.
type gateYAML struct {
	ID                 string            `yaml:"id"`
	Name               string            `yaml:"name"`
	Type               string            `yaml:"type"`
	Severity           string            `yaml:"severity"`
	EnforcementOverride string           `yaml:"enforcement_override,omitempty"`
	Guidance           string            `yaml:"guidance,omitempty"`
	GuidanceFile       string            `yaml:"guidance_file,omitempty"`
	PassCriteria       []criterionYAML   `yaml:"pass_criteria,omitempty"`
	Activation         activationYAML    `yaml:"activation"`
	Retry              retryYAML         `yaml:"retry"`
	GateKind           string            `yaml:"gate_kind,omitempty"`
}

type criterionYAML struct {
	Type           string  `yaml:"type"`
	Description    string  `yaml:"description,omitempty"`
	MinLength      int     `yaml:"min_length,omitempty"`
	MaxLength      int     `yaml:"max_length,omitempty"`
	Pattern        string  `yaml:"pattern,omitempty"`
	PromptTemplate string  `yaml:"prompt_template,omitempty"`
	Threshold      float64 `yaml:"threshold,omitempty"`
}

type activationYAML struct {
	Categories      []string `yaml:"categories,omitempty"`
	Frameworks      []string `yaml:"frameworks,omitempty"`
	ExplicitRequest bool     `yaml:"explicit_request,omitempty"`
}

type retryYAML struct {
	MaxAttempts      int  `yaml:"max_attempts,omitempty"`
	ImprovementHints bool `yaml:"improvement_hints,omitempty"`
	PreserveContext  bool `yaml:"preserve_context,omitempty"`
}
